package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/hoistlab/hoist/pkg/actions"
	"github.com/hoistlab/hoist/pkg/transports/ssh"
)

// FailureKind classifies a step failure for retry and reporting
// decisions.
type FailureKind string

const (
	// KindRetryableTimeout marks external state that was not ready yet.
	// The only kind worth retrying.
	KindRetryableTimeout FailureKind = "retryable_timeout"

	// KindExternalTool marks a non-zero exit from an external tool.
	KindExternalTool FailureKind = "external_tool"

	// KindConfigInvalid marks malformed input that no retry can fix.
	KindConfigInvalid FailureKind = "config_invalid"

	// KindInternal marks everything else.
	KindInternal FailureKind = "internal"
)

// Failure is a classified step error.
type Failure struct {
	// Kind drives retry behavior and reporting.
	Kind FailureKind

	// ExitCode is the tool exit status for KindExternalTool, else zero.
	ExitCode int

	// Output is truncated tool output for KindExternalTool.
	Output string

	// Err is the underlying error.
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// RetryableTimeout wraps err as a not-ready-yet failure.
func RetryableTimeout(err error) *Failure {
	return &Failure{Kind: KindRetryableTimeout, Err: err}
}

// ExternalTool builds a failure for a remote command or tool that ran
// but exited non-zero.
func ExternalTool(exitCode int, output string, err error) *Failure {
	return &Failure{Kind: KindExternalTool, ExitCode: exitCode, Output: output, Err: err}
}

// ConfigInvalid wraps err as a terminal configuration failure.
func ConfigInvalid(err error) *Failure {
	return &Failure{Kind: KindConfigInvalid, Err: err}
}

// Classify maps an arbitrary error to a Failure. Already classified
// errors pass through unchanged.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var toolErr *actions.ToolError
	if errors.As(err, &toolErr) {
		return &Failure{
			Kind:     KindExternalTool,
			ExitCode: toolErr.ExitCode,
			Output:   toolErr.Output,
			Err:      err,
		}
	}

	if ssh.IsTemporary(err) || errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindRetryableTimeout, Err: err}
	}

	return &Failure{Kind: KindInternal, Err: err}
}

// IsRetryable reports whether err is classified as a retryable timeout.
func IsRetryable(err error) bool {
	return Classify(err).Kind == KindRetryableTimeout
}
