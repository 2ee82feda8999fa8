package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// TransportError describes a failure in the SSH transport layer.
type TransportError struct {
	// Op is the operation that failed (dial, auth, exec, upload).
	Op string

	// Err is the underlying error.
	Err error

	// Temporary marks failures worth retrying, such as connection
	// refused while an instance is still booting.
	Temporary bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ssh %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a TransportError marked temporary.
func IsTemporary(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Temporary
	}
	return false
}

// Result carries the outcome of a remote command.
type Result struct {
	// ExitCode is the remote process exit status.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string
}

// Client is an SSH connection to a single instance. It is safe for
// concurrent use after Connect returns.
type Client struct {
	config Config

	mu          sync.Mutex
	conn        *ssh.Client
	fingerprint string
}

// NewClient validates the config and returns an unconnected client.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{config: config}, nil
}

// Connect dials the target and completes the SSH handshake. The
// negotiated host key fingerprint is recorded and available through
// HostKeyFingerprint. Connect is a no-op if already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	key, err := os.ReadFile(c.config.PrivateKeyPath)
	if err != nil {
		return &TransportError{Op: "auth", Err: fmt.Errorf("read private key: %w", err)}
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return &TransportError{Op: "auth", Err: fmt.Errorf("parse private key: %w", err)}
	}

	verify, err := c.hostKeyCallback()
	if err != nil {
		return err
	}

	clientConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: verify,
		Timeout:         c.config.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: c.config.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", c.config.Addr())
	if err != nil {
		return &TransportError{Op: "dial", Err: err, Temporary: true}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, c.config.Addr(), clientConfig)
	if err != nil {
		netConn.Close()
		return &TransportError{Op: "handshake", Err: err, Temporary: true}
	}
	c.conn = ssh.NewClient(sshConn, chans, reqs)

	log.Debug().
		Str("host", c.config.Host).
		Int("port", c.config.Port).
		Str("fingerprint", c.fingerprint).
		Msg("ssh connection established")
	return nil
}

// hostKeyCallback builds the verification callback, wrapping it so the
// fingerprint of the presented key is captured either way.
func (c *Client) hostKeyCallback() (ssh.HostKeyCallback, error) {
	var inner ssh.HostKeyCallback
	if c.config.StrictHostKeyChecking {
		path := c.config.KnownHostsPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, &TransportError{Op: "auth", Err: fmt.Errorf("resolve known_hosts: %w", err)}
			}
			path = home + "/.ssh/known_hosts"
		}
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, &TransportError{Op: "auth", Err: fmt.Errorf("load known_hosts: %w", err)}
		}
		inner = cb
	} else {
		inner = ssh.InsecureIgnoreHostKey()
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		c.fingerprint = ssh.FingerprintSHA256(key)
		return inner(hostname, remote, key)
	}, nil
}

// HostKeyFingerprint returns the SHA256 fingerprint captured during the
// handshake, or empty before Connect.
func (c *Client) HostKeyFingerprint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fingerprint
}

// Close tears down the connection. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

func (c *Client) connection() (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, &TransportError{Op: "exec", Err: fmt.Errorf("not connected")}
	}
	return c.conn, nil
}

// Run executes a command on the target and captures its output. A
// non-zero exit status is returned in the Result, not as an error;
// errors indicate the command could not be run at all.
func (c *Client) Run(ctx context.Context, command string) (*Result, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	session, err := conn.NewSession()
	if err != nil {
		return nil, &TransportError{Op: "exec", Err: fmt.Errorf("open session: %w", err), Temporary: true}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return nil, &TransportError{Op: "exec", Err: ctx.Err(), Temporary: true}
	case err = <-done:
	}

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return nil, &TransportError{Op: "exec", Err: err}
	}
	return result, nil
}

// Probe attempts a single connect-and-close against the target. It is
// the building block for reachability waits after provisioning.
func Probe(ctx context.Context, config Config) (string, error) {
	client, err := NewClient(config)
	if err != nil {
		return "", err
	}
	if err := client.Connect(ctx); err != nil {
		return "", err
	}
	fingerprint := client.HostKeyFingerprint()
	if err := client.Close(); err != nil {
		return fingerprint, err
	}
	return fingerprint, nil
}
