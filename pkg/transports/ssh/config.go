package ssh

import (
	"fmt"
	"os"
	"time"
)

// Config holds the connection settings for an SSH client.
type Config struct {
	// Host is the address of the target instance.
	Host string

	// Port is the SSH port, defaulting to 22.
	Port int

	// User is the login user on the target.
	User string

	// PrivateKeyPath is the path to the PEM-encoded private key used
	// for authentication.
	PrivateKeyPath string

	// KnownHostsPath is the known_hosts file consulted when
	// StrictHostKeyChecking is enabled. Empty means the user's default
	// ~/.ssh/known_hosts.
	KnownHostsPath string

	// StrictHostKeyChecking verifies the host key against
	// KnownHostsPath. When false the host key is accepted and only its
	// fingerprint is recorded.
	StrictHostKeyChecking bool

	// ConnectTimeout bounds the TCP dial and SSH handshake.
	ConnectTimeout time.Duration

	// CommandTimeout bounds a single remote command when the caller's
	// context carries no earlier deadline.
	CommandTimeout time.Duration
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &TransportError{Op: "validate", Err: fmt.Errorf("host is required")}
	}
	if c.User == "" {
		return &TransportError{Op: "validate", Err: fmt.Errorf("user is required")}
	}
	if c.PrivateKeyPath == "" {
		return &TransportError{Op: "validate", Err: fmt.Errorf("private key path is required")}
	}
	if _, err := os.Stat(c.PrivateKeyPath); err != nil {
		return &TransportError{Op: "validate", Err: fmt.Errorf("private key not accessible: %w", err)}
	}
	if c.Port <= 0 {
		c.Port = 22
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 5 * time.Minute
	}
	return nil
}

// Addr returns the host:port dial address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
