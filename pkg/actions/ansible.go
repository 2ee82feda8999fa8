package actions

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/telemetry"
)

// AnsibleRunner drives the ansible-playbook CLI against a resolved
// inventory. It implements PlaybookRunner.
type AnsibleRunner struct {
	// Binary is the executable to invoke. Defaults to "ansible-playbook".
	Binary string

	// Metrics records tool invocations when set.
	Metrics *telemetry.Metrics
}

// NewAnsibleRunner creates a runner using the default binary name.
func NewAnsibleRunner() *AnsibleRunner {
	return &AnsibleRunner{Binary: "ansible-playbook"}
}

// RunPlaybook executes playbookPath against the hosts in inventoryPath.
func (r *AnsibleRunner) RunPlaybook(ctx context.Context, inventoryPath, playbookPath string) error {
	binary := r.Binary
	if binary == "" {
		binary = "ansible-playbook"
	}
	args := []string{"-i", inventoryPath, playbookPath}

	log.Debug().
		Str("binary", binary).
		Str("inventory", inventoryPath).
		Str("playbook", playbookPath).
		Msg("invoking configuration tool")

	cmd := exec.CommandContext(ctx, binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	timer := telemetry.NewTimer()
	err := cmd.Run()
	if r.Metrics != nil {
		r.Metrics.RecordToolCall(binary, "playbook", timer.Duration())
		if err != nil {
			r.Metrics.RecordToolError(binary, "playbook")
		}
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &ToolError{
			Tool:     binary,
			Args:     args,
			ExitCode: exitCode,
			Output:   truncateOutput(output.String()),
			Err:      err,
		}
	}
	return nil
}
