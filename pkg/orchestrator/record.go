package orchestrator

import (
	"context"
	"time"
)

// Verb is a lifecycle operation.
type Verb string

const (
	VerbCreate    Verb = "create"
	VerbProvision Verb = "provision"
	VerbRegister  Verb = "register"
	VerbConfigure Verb = "configure"
	VerbRelease   Verb = "release"
	VerbRun       Verb = "run"
	VerbTest      Verb = "test"
	VerbDestroy   Verb = "destroy"
	VerbPurge     Verb = "purge"
)

// Outcome is the result of a step or command.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// StepRecord is the outcome of one step within a command invocation.
type StepRecord struct {
	// Step is the step name.
	Step string

	// StartedAt and FinishedAt bound the step's execution. Both are
	// zero for skipped steps.
	StartedAt  time.Time
	FinishedAt time.Time

	// Outcome is success, failure, or skipped.
	Outcome Outcome

	// Error describes the failure, empty otherwise.
	Error string
}

// CommandRecord is one command handler invocation: which verb ran
// against which environment, and how each step fared.
type CommandRecord struct {
	// ID uniquely identifies the invocation.
	ID string

	// Environment is the target environment name.
	Environment string

	// Verb is the lifecycle operation that ran.
	Verb Verb

	// StartedAt and FinishedAt bound the invocation.
	StartedAt  time.Time
	FinishedAt time.Time

	// Outcome is the overall result.
	Outcome Outcome

	// Error describes the overall failure, empty on success.
	Error string

	// Steps holds the per-step outcomes in execution order.
	Steps []StepRecord
}

// History accepts finished command records for audit and inspection.
// Append failures must not fail the command itself.
type History interface {
	// Append stores one finished record.
	Append(ctx context.Context, record CommandRecord) error

	// Recent returns up to limit records for the named environment,
	// newest first. An empty name returns records for all environments.
	Recent(ctx context.Context, environment string, limit int) ([]CommandRecord, error)
}

// NopHistory discards records.
type NopHistory struct{}

func (NopHistory) Append(context.Context, CommandRecord) error { return nil }

func (NopHistory) Recent(context.Context, string, int) ([]CommandRecord, error) {
	return nil, nil
}
