package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// remoteBaseDir is where release artifacts live on the instance.
func remoteBaseDir(sc *Context) string {
	return "/opt/" + sc.Env.Name().String()
}

// WaitSSH blocks until the instance accepts an SSH connection and
// records the observed host key fingerprint. The underlying runner owns
// the polling loop, so this step is not wrapped with Retry.
type WaitSSH struct {
	// Timeout bounds the wait. Zero means five minutes.
	Timeout time.Duration
}

func (WaitSSH) Name() string { return "wait-ssh-reachable" }

func (s WaitSSH) Run(ctx context.Context, sc *Context) error {
	addr := sc.Address()
	if addr == "" {
		return ConfigInvalid(fmt.Errorf("no instance address to probe"))
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	fingerprint, err := sc.Exec.Remote.WaitReachable(ctx, addr, sc.Env.SSH().Port, timeout)
	if err != nil {
		return Classify(err)
	}
	sc.Facts.HostKeyFingerprint = fingerprint
	return nil
}

// WaitCloudInit probes cloud-init once and reports not-finished as
// retryable. Handlers wrap it with Retry.
type WaitCloudInit struct{}

func (WaitCloudInit) Name() string { return "wait-cloud-init" }

func (WaitCloudInit) Run(ctx context.Context, sc *Context) error {
	result, err := sc.Exec.Remote.RunCommand(ctx, sc.Address(), "cloud-init status")
	if err != nil {
		return Classify(err)
	}
	status := strings.TrimSpace(result.Stdout)
	switch {
	case strings.Contains(status, "done"):
		return nil
	case strings.Contains(status, "error"):
		return ExternalTool(result.ExitCode, status, fmt.Errorf("cloud-init reported an error"))
	default:
		return RetryableTimeout(fmt.Errorf("cloud-init not finished: %q", status))
	}
}

// RunPlaybook executes the rendered configuration playbook against the
// rendered inventory.
type RunPlaybook struct{}

func (RunPlaybook) Name() string { return "run-playbook" }

func (RunPlaybook) Run(ctx context.Context, sc *Context) error {
	if err := sc.Exec.Playbooks.RunPlaybook(ctx, inventoryPath(sc), playbookPath(sc)); err != nil {
		return Classify(err)
	}
	return nil
}

// UploadArtifacts copies the rendered release artifacts to the instance
// over SFTP.
type UploadArtifacts struct{}

func (UploadArtifacts) Name() string { return "upload-artifacts" }

func (UploadArtifacts) Run(ctx context.Context, sc *Context) error {
	if err := sc.Exec.Remote.UploadDir(ctx, sc.Address(), sc.ArtifactDir(), remoteBaseDir(sc)); err != nil {
		return Classify(err)
	}
	return nil
}

// DeployRelease runs the uploaded deploy script, which places the
// release without starting services.
type DeployRelease struct{}

func (DeployRelease) Name() string { return "deploy-release" }

func (DeployRelease) Run(ctx context.Context, sc *Context) error {
	return runRemoteScript(ctx, sc, "deploy.sh")
}

// StartServices runs the uploaded start script, bringing the deployed
// services up.
type StartServices struct{}

func (StartServices) Name() string { return "start-services" }

func (StartServices) Run(ctx context.Context, sc *Context) error {
	return runRemoteScript(ctx, sc, "start.sh")
}

func runRemoteScript(ctx context.Context, sc *Context, script string) error {
	command := fmt.Sprintf("sh %s/%s", remoteBaseDir(sc), script)
	result, err := sc.Exec.Remote.RunCommand(ctx, sc.Address(), command)
	if err != nil {
		return Classify(err)
	}
	if result.ExitCode != 0 {
		return ExternalTool(result.ExitCode, strings.TrimSpace(result.Stdout+result.Stderr),
			fmt.Errorf("%s exited with code %d", script, result.ExitCode))
	}
	return nil
}

// DiscoverEndpoints reads the endpoint manifest the start script writes
// and records the service endpoints on the fact sheet. Services may
// still be registering endpoints shortly after start, so a missing or
// empty manifest is retryable.
type DiscoverEndpoints struct{}

func (DiscoverEndpoints) Name() string { return "discover-endpoints" }

func (DiscoverEndpoints) Run(ctx context.Context, sc *Context) error {
	command := fmt.Sprintf("cat %s/endpoints.json", remoteBaseDir(sc))
	result, err := sc.Exec.Remote.RunCommand(ctx, sc.Address(), command)
	if err != nil {
		return Classify(err)
	}
	if result.ExitCode != 0 {
		return RetryableTimeout(fmt.Errorf("endpoint manifest not available yet (exit %d)", result.ExitCode))
	}

	var endpoints map[string]string
	if err := json.Unmarshal([]byte(result.Stdout), &endpoints); err != nil {
		return Classify(fmt.Errorf("parse endpoint manifest: %w", err))
	}
	if len(endpoints) == 0 {
		return RetryableTimeout(fmt.Errorf("endpoint manifest is empty"))
	}

	sc.Facts.Endpoints = endpoints
	log.Debug().
		Str("environment", sc.Env.Name().String()).
		Int("endpoints", len(endpoints)).
		Msg("service endpoints discovered")
	return nil
}

// SmokeCheck verifies a running environment from the inside: the status
// script reports services healthy, and every recorded endpoint answers.
// It never transitions state.
type SmokeCheck struct{}

func (SmokeCheck) Name() string { return "smoke-check" }

func (SmokeCheck) Run(ctx context.Context, sc *Context) error {
	if err := runRemoteScript(ctx, sc, "status.sh"); err != nil {
		return err
	}
	for service, url := range sc.Env.Outputs().Endpoints {
		command := fmt.Sprintf("curl -fsS -m 10 -o /dev/null %s", url)
		result, err := sc.Exec.Remote.RunCommand(ctx, sc.Address(), command)
		if err != nil {
			return Classify(err)
		}
		if result.ExitCode != 0 {
			return ExternalTool(result.ExitCode, strings.TrimSpace(result.Stderr),
				fmt.Errorf("endpoint %s (%s) not responding", service, url))
		}
	}
	return nil
}
