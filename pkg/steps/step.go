package steps

import (
	"context"
	"path/filepath"

	"github.com/hoistlab/hoist/pkg/actions"
	"github.com/hoistlab/hoist/pkg/environment"
)

// Step is a named unit of work inside a command handler's sequence.
// Implementations must not persist environment state; they record
// discovered facts on the shared Context for the handler to commit.
type Step interface {
	// Name identifies the step in progress events and failure reports.
	Name() string

	// Run performs the step against sc. The returned error should be a
	// *Failure or something Classify can map.
	Run(ctx context.Context, sc *Context) error
}

// Executors bundles the remote action capabilities steps run against.
// Tests substitute fakes.
type Executors struct {
	// Infra provisions and destroys infrastructure.
	Infra actions.Provisioner

	// Playbooks runs configuration-management playbooks.
	Playbooks actions.PlaybookRunner

	// Remote executes SSH commands and uploads against the instance.
	Remote actions.SSHRunner

	// Renderer materializes template sets into working directories.
	Renderer actions.Renderer
}

// Facts is the scratch sheet steps share within one handler invocation.
// Earlier steps record what later steps and the final transition need.
type Facts struct {
	// InstanceAddress is set by the infrastructure apply step.
	InstanceAddress string

	// HostKeyFingerprint is set by the SSH reachability step.
	HostKeyFingerprint string

	// Endpoints is set by the endpoint discovery step.
	Endpoints map[string]string
}

// Context carries everything a step may read or record. One Context
// lives for the duration of a single handler invocation.
type Context struct {
	// Env is the read-only environment snapshot the handler loaded.
	Env environment.Environment

	// Exec are the injected external capabilities.
	Exec Executors

	// WorkDir is the per-environment scratch directory for rendered
	// files.
	WorkDir string

	// Facts accumulates outputs discovered by completed steps.
	Facts Facts
}

// InfraDir is where infrastructure templates are rendered.
func (sc *Context) InfraDir() string { return filepath.Join(sc.WorkDir, "infra") }

// ConfigDir is where inventory and playbooks are rendered.
func (sc *Context) ConfigDir() string { return filepath.Join(sc.WorkDir, "config") }

// ArtifactDir is where release artifacts are rendered before upload.
func (sc *Context) ArtifactDir() string { return filepath.Join(sc.WorkDir, "artifacts") }

// Address returns the instance address for remote steps: the one
// discovered this invocation, falling back to the persisted output.
func (sc *Context) Address() string {
	if sc.Facts.InstanceAddress != "" {
		return sc.Facts.InstanceAddress
	}
	return sc.Env.InstanceAddress()
}

// templateContext builds the value map template sets are resolved
// against.
func (sc *Context) templateContext() map[string]any {
	ssh := sc.Env.SSH()
	return map[string]any{
		"name":             sc.Env.Name().String(),
		"provider":         sc.Env.Provider(),
		"service":          sc.Env.Service(),
		"ssh_user":         ssh.User,
		"ssh_port":         ssh.Port,
		"ssh_public_key":   ssh.PublicKeyPath,
		"instance_address": sc.Address(),
	}
}
