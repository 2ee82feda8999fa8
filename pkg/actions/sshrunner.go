package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/transports/ssh"
)

// probeInterval is the pause between reachability attempts.
const probeInterval = 2 * time.Second

// RemoteRunner implements SSHRunner on top of the SSH transport. One
// runner serves a single set of credentials; the host varies per call
// because the instance address is only known after provisioning.
type RemoteRunner struct {
	// User is the login user on the target hosts.
	User string

	// Port is the SSH port on the target hosts.
	Port int

	// PrivateKeyPath is the key used for authentication.
	PrivateKeyPath string

	// KnownHostsPath enables strict host key checking when non-empty.
	KnownHostsPath string
}

var _ SSHRunner = (*RemoteRunner)(nil)

func (r *RemoteRunner) clientConfig(host string, port int) ssh.Config {
	if port <= 0 {
		port = r.Port
	}
	return ssh.Config{
		Host:                  host,
		Port:                  port,
		User:                  r.User,
		PrivateKeyPath:        r.PrivateKeyPath,
		KnownHostsPath:        r.KnownHostsPath,
		StrictHostKeyChecking: r.KnownHostsPath != "",
	}
}

// WaitReachable probes host until an SSH handshake succeeds or timeout
// elapses. Only temporary transport failures keep the wait going; an
// authentication failure aborts immediately.
func (r *RemoteRunner) WaitReachable(ctx context.Context, host string, port int, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := r.clientConfig(host, port)
	cfg.ConnectTimeout = probeInterval * 2

	attempt := 0
	for {
		attempt++
		fingerprint, err := ssh.Probe(ctx, cfg)
		if err == nil {
			log.Debug().
				Str("host", host).
				Int("attempts", attempt).
				Msg("instance reachable over ssh")
			return fingerprint, nil
		}
		if !ssh.IsTemporary(err) {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for %s: %w", host, ctx.Err())
		case <-time.After(probeInterval):
		}
	}
}

// RunCommand executes command on host over a fresh connection.
func (r *RemoteRunner) RunCommand(ctx context.Context, host string, command string) (CommandResult, error) {
	client, err := ssh.NewClient(r.clientConfig(host, 0))
	if err != nil {
		return CommandResult{}, err
	}
	if err := client.Connect(ctx); err != nil {
		return CommandResult{}, err
	}
	defer client.Close()

	result, err := client.Run(ctx, command)
	if err != nil {
		return CommandResult{}, err
	}
	return CommandResult{
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}, nil
}

// UploadDir copies localDir to remoteDir on host over SFTP.
func (r *RemoteRunner) UploadDir(ctx context.Context, host string, localDir, remoteDir string) error {
	client, err := ssh.NewClient(r.clientConfig(host, 0))
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	return client.UploadDirectory(ctx, localDir, remoteDir)
}
