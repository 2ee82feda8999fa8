package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hoistlab/hoist/pkg/environment"
)

// InvalidStateError reports a verb invoked against an environment whose
// persisted state does not satisfy the verb's precondition.
type InvalidStateError struct {
	// Name is the target environment.
	Name string

	// Verb is the operation that was requested.
	Verb Verb

	// Current is the environment's persisted state.
	Current environment.State

	// Required lists the states the verb accepts.
	Required []environment.State
}

func (e *InvalidStateError) Error() string {
	required := make([]string, len(e.Required))
	for i, s := range e.Required {
		required[i] = string(s)
	}
	return fmt.Sprintf("cannot %s environment %q in state %s (requires %s)",
		e.Verb, e.Name, e.Current, strings.Join(required, " or "))
}

// StepError reports which step failed and why. The cause is a
// steps.Failure when the step classified it.
type StepError struct {
	// Step is the name of the failing step.
	Step string

	// Cause is the step's classified failure.
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error { return e.Cause }

// DestroyError aggregates the failures of a best-effort destroy.
type DestroyError struct {
	// Name is the target environment.
	Name string

	// Failures holds every step that failed, in sequence order.
	Failures []*StepError

	// Destroyed reports whether the environment was still recorded as
	// destroyed despite the failures.
	Destroyed bool
}

func (e *DestroyError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("destroy of %q finished with %d failure(s): %s",
		e.Name, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the first failure for errors.Is / errors.As chains.
func (e *DestroyError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0]
}
