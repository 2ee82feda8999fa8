package orchestrator

import (
	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/telemetry"
)

// ProgressListener observes step execution. Calls are fire-and-forget:
// a listener that panics or misbehaves never affects the command.
type ProgressListener interface {
	// StepStarted fires before a step runs.
	StepStarted(environment string, verb Verb, step string)

	// StepFinished fires after a step completes, is skipped, or fails.
	StepFinished(environment string, verb Verb, step string, outcome Outcome, err error)
}

// NopListener ignores all progress.
type NopListener struct{}

func (NopListener) StepStarted(string, Verb, string) {}

func (NopListener) StepFinished(string, Verb, string, Outcome, error) {}

// LogListener writes progress to the global logger.
type LogListener struct{}

func (LogListener) StepStarted(environment string, verb Verb, step string) {
	log.Info().
		Str("environment", environment).
		Str("verb", string(verb)).
		Str("step", step).
		Msg("step started")
}

func (LogListener) StepFinished(environment string, verb Verb, step string, outcome Outcome, err error) {
	event := log.Info()
	if outcome == OutcomeFailure {
		event = log.Error().Err(err)
	}
	event.
		Str("environment", environment).
		Str("verb", string(verb)).
		Str("step", step).
		Str("outcome", string(outcome)).
		Msg("step finished")
}

// EventListener republishes progress on the telemetry event bus.
type EventListener struct {
	// Events is the publisher to forward to.
	Events *telemetry.EventPublisher
}

func (l EventListener) StepStarted(environment string, verb Verb, step string) {
	if l.Events == nil {
		return
	}
	_ = l.Events.PublishStepStarted(environment, string(verb), step)
}

func (l EventListener) StepFinished(environment string, verb Verb, step string, outcome Outcome, _ error) {
	if l.Events == nil {
		return
	}
	_ = l.Events.PublishStepFinished(environment, string(verb), step, string(outcome))
}

// MultiListener fans progress out to several listeners.
type MultiListener []ProgressListener

func (m MultiListener) StepStarted(environment string, verb Verb, step string) {
	for _, l := range m {
		l.StepStarted(environment, verb, step)
	}
}

func (m MultiListener) StepFinished(environment string, verb Verb, step string, outcome Outcome, err error) {
	for _, l := range m {
		l.StepFinished(environment, verb, step, outcome, err)
	}
}

// notifyStarted shields the handler from listener faults.
func notifyStarted(l ProgressListener, environment string, verb Verb, step string) {
	defer func() { _ = recover() }()
	l.StepStarted(environment, verb, step)
}

// notifyFinished shields the handler from listener faults.
func notifyFinished(l ProgressListener, environment string, verb Verb, step string, outcome Outcome, err error) {
	defer func() { _ = recover() }()
	l.StepFinished(environment, verb, step, outcome, err)
}
