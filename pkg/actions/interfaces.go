package actions

import (
	"context"
	"fmt"
	"time"
)

// InfraOutputs are the key facts parsed from a successful apply.
type InfraOutputs struct {
	// InstanceAddress is the address assigned to the provisioned instance.
	InstanceAddress string
}

// Provisioner wraps the infrastructure-as-code tool. All methods operate
// on a rendered configuration directory prepared by the caller.
type Provisioner interface {
	// Plan computes the pending infrastructure changes.
	Plan(ctx context.Context, workDir string) error

	// Apply creates or updates the infrastructure and returns the parsed
	// outputs.
	Apply(ctx context.Context, workDir string) (InfraOutputs, error)

	// Destroy tears the infrastructure down. Implementations report
	// already-absent infrastructure as success, so destroy stays
	// idempotent.
	Destroy(ctx context.Context, workDir string) error
}

// PlaybookRunner wraps the configuration-management tool.
type PlaybookRunner interface {
	// RunPlaybook executes playbookPath against the hosts in
	// inventoryPath.
	RunPlaybook(ctx context.Context, inventoryPath, playbookPath string) error
}

// CommandResult is the outcome of one remote command.
type CommandResult struct {
	// ExitCode is the remote command's exit status.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string
}

// SSHRunner wraps SSH access to the target host.
type SSHRunner interface {
	// WaitReachable blocks until an SSH connection to host succeeds or
	// timeout elapses, and returns the observed host key fingerprint.
	WaitReachable(ctx context.Context, host string, port int, timeout time.Duration) (fingerprint string, err error)

	// RunCommand executes command on host and returns the structured
	// result. A non-zero exit status is reported in the result, not as an
	// error; errors mean the command could not be run at all.
	RunCommand(ctx context.Context, host string, command string) (CommandResult, error)

	// UploadDir recursively copies localDir to remoteDir on host.
	UploadDir(ctx context.Context, host string, localDir, remoteDir string) error
}

// Renderer materializes a template set into a directory of concrete files.
type Renderer interface {
	// Render writes the named template set, resolved against context
	// values, into destDir and returns destDir.
	Render(ctx context.Context, templateSet string, context map[string]any, destDir string) (string, error)
}

// ToolError is a failed external tool invocation: the command that ran,
// its exit code, and its truncated output.
type ToolError struct {
	// Tool is the executable that was invoked.
	Tool string

	// Args are the arguments it was invoked with.
	Args []string

	// ExitCode is the process exit status, or -1 when the process could
	// not be started.
	ExitCode int

	// Output is the combined, truncated output.
	Output string

	// Err is the underlying error.
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Output)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// maxCapturedOutput bounds the output carried inside a ToolError.
const maxCapturedOutput = 4096

// truncateOutput keeps the tail of out, where tool errors usually are.
func truncateOutput(out string) string {
	if len(out) <= maxCapturedOutput {
		return out
	}
	return "..." + out[len(out)-maxCapturedOutput:]
}
