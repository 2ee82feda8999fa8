package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/hoistlab/hoist/pkg/environment"
	"github.com/hoistlab/hoist/pkg/steps"
	"github.com/hoistlab/hoist/pkg/telemetry"
)

// PolicyGuard decides whether a verb may run against an environment.
// Provision and destroy are gated; a denial aborts before any step
// runs.
type PolicyGuard interface {
	Allow(ctx context.Context, verb string, env environment.Environment) error
}

// Deps are the collaborators a Handler needs. Repo and Exec are
// required; everything else defaults to a no-op.
type Deps struct {
	// Repo persists environments and issues per-name locks.
	Repo environment.Repository

	// Exec are the external capabilities steps run against.
	Exec steps.Executors

	// History receives finished command records.
	History History

	// Clock supplies transition timestamps.
	Clock Clock

	// Listener observes step progress.
	Listener ProgressListener

	// Policy gates provision and destroy. Nil allows everything.
	Policy PolicyGuard

	// Telemetry carries metrics, tracing, and events. Nil disables all
	// three.
	Telemetry *telemetry.Telemetry

	// WorkRoot is the directory holding per-environment scratch dirs.
	WorkRoot string

	// LockTimeout bounds lock acquisition.
	LockTimeout time.Duration

	// CloudInitRetry overrides the wait policy for instance boot.
	// Zero-valued fields fall back to defaults.
	CloudInitRetry steps.RetryPolicy
}

// Handler executes lifecycle verbs against environments.
type Handler struct {
	deps Deps
}

// NewHandler validates deps and fills defaults.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if deps.History == nil {
		deps.History = NopHistory{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Listener == nil {
		deps.Listener = NopListener{}
	}
	if deps.LockTimeout <= 0 {
		deps.LockTimeout = 10 * time.Second
	}
	if deps.CloudInitRetry == (steps.RetryPolicy{}) {
		deps.CloudInitRetry = steps.DefaultRetryPolicy()
	}
	return &Handler{deps: deps}, nil
}

// invocation is the per-command scratch state.
type invocation struct {
	name   environment.Name
	verb   Verb
	record CommandRecord
	sc     *steps.Context
}

// execute is the uniform verb skeleton: lock, run, finalize the
// record, publish telemetry, append history. The lock is released on
// every exit path, including panics inside fn.
func (h *Handler) execute(ctx context.Context, rawName string, verb Verb, fn func(context.Context, *invocation) error) (CommandRecord, error) {
	name, err := environment.NewName(rawName)
	if err != nil {
		return CommandRecord{}, err
	}

	inv := &invocation{
		name: name,
		verb: verb,
		record: CommandRecord{
			ID:          uuid.New().String(),
			Environment: name.String(),
			Verb:        verb,
			StartedAt:   h.deps.Clock.Now(),
		},
	}

	tel := h.deps.Telemetry
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartCommandSpan(ctx, name.String(), string(verb))
		tel.Metrics.RecordCommandStarted(string(verb))
		_ = tel.Events.PublishCommandStarted(name.String(), string(verb))
	}

	runErr := h.withLock(ctx, name, func(ctx context.Context) error {
		return fn(ctx, inv)
	})

	inv.record.FinishedAt = h.deps.Clock.Now()
	if runErr != nil {
		inv.record.Outcome = OutcomeFailure
		inv.record.Error = runErr.Error()
	} else {
		inv.record.Outcome = OutcomeSuccess
	}

	if err := h.deps.History.Append(ctx, inv.record); err != nil {
		log.Warn().Err(err).
			Str("environment", name.String()).
			Str("verb", string(verb)).
			Msg("could not append command history")
	}

	if tel != nil {
		duration := inv.record.FinishedAt.Sub(inv.record.StartedAt)
		tel.Metrics.RecordCommandCompleted(string(verb), string(inv.record.Outcome), duration)
		if runErr != nil {
			telemetry.RecordError(span, runErr)
			_ = tel.Events.PublishCommandFailed(name.String(), string(verb), runErr.Error())
		} else {
			telemetry.RecordSuccess(span)
			_ = tel.Events.PublishCommandCompleted(name.String(), string(verb), duration)
		}
		span.End()
	}

	return inv.record, runErr
}

// withLock runs fn under the environment's exclusive lock. Release is
// deferred so a panic in fn still frees the lock.
func (h *Handler) withLock(ctx context.Context, name environment.Name, fn func(context.Context) error) error {
	release, err := h.deps.Repo.Lock(ctx, name, h.deps.LockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			log.Warn().Err(rerr).
				Str("environment", name.String()).
				Msg("could not release environment lock")
		}
	}()
	return fn(ctx)
}

func (h *Handler) workDir(name environment.Name) string {
	return filepath.Join(h.deps.WorkRoot, name.String())
}

func (h *Handler) stepContext(env environment.Environment) *steps.Context {
	return &steps.Context{
		Env:     env,
		Exec:    h.deps.Exec,
		WorkDir: h.workDir(env.Name()),
	}
}

func (h *Handler) checkPolicy(ctx context.Context, verb Verb, env environment.Environment) error {
	if h.deps.Policy == nil {
		return nil
	}
	if err := h.deps.Policy.Allow(ctx, string(verb), env); err != nil {
		if tel := h.deps.Telemetry; tel != nil {
			_ = tel.Events.PublishPolicyDenied(env.Name().String(), string(verb), err.Error())
		}
		return err
	}
	return nil
}

// persistTransition saves the new state and publishes the transition.
func (h *Handler) persistTransition(ctx context.Context, from environment.State, next environment.Any) error {
	if err := h.deps.Repo.Save(ctx, next); err != nil {
		return fmt.Errorf("persist %s environment: %w", next.State(), err)
	}
	if tel := h.deps.Telemetry; tel != nil {
		_ = tel.Events.PublishStateChanged(next.Name().String(), string(from), string(next.State()))
	}
	log.Info().
		Str("environment", next.Name().String()).
		Str("from", string(from)).
		Str("to", string(next.State())).
		Msg("environment state persisted")
	return nil
}

// runStep executes one step with progress, metrics, and span coverage,
// and appends its record to the invocation.
func (h *Handler) runStep(ctx context.Context, inv *invocation, step steps.Step) error {
	env := inv.name.String()
	notifyStarted(h.deps.Listener, env, inv.verb, step.Name())

	tel := h.deps.Telemetry
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartStepSpan(ctx, env, step.Name())
	}

	started := h.deps.Clock.Now()
	err := step.Run(ctx, inv.sc)
	finished := h.deps.Clock.Now()

	rec := StepRecord{
		Step:       step.Name(),
		StartedAt:  started,
		FinishedAt: finished,
		Outcome:    OutcomeSuccess,
	}
	if err != nil {
		rec.Outcome = OutcomeFailure
		rec.Error = err.Error()
	}
	inv.record.Steps = append(inv.record.Steps, rec)

	if tel != nil {
		tel.Metrics.RecordStepExecution(step.Name(), string(rec.Outcome), finished.Sub(started))
		if err != nil {
			tel.Metrics.RecordError(string(steps.Classify(err).Kind))
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	}

	notifyFinished(h.deps.Listener, env, inv.verb, step.Name(), rec.Outcome, err)

	if err != nil {
		return &StepError{Step: step.Name(), Cause: err}
	}
	return nil
}

// runSequence executes steps in order, stopping at the first failure
// and recording the rest as skipped.
func (h *Handler) runSequence(ctx context.Context, inv *invocation, seq ...steps.Step) error {
	for i, step := range seq {
		if err := h.runStep(ctx, inv, step); err != nil {
			h.markSkipped(inv, seq[i+1:])
			return err
		}
	}
	return nil
}

func (h *Handler) markSkipped(inv *invocation, remaining []steps.Step) {
	for _, step := range remaining {
		inv.record.Steps = append(inv.record.Steps, StepRecord{
			Step:    step.Name(),
			Outcome: OutcomeSkipped,
		})
		notifyFinished(h.deps.Listener, inv.name.String(), inv.verb, step.Name(), OutcomeSkipped, nil)
	}
}

// load reads the environment and fails with InvalidStateError
// unless its state is one of required.
func (h *Handler) load(ctx context.Context, inv *invocation, required ...environment.State) (environment.Any, error) {
	loaded, err := h.deps.Repo.Load(ctx, inv.name)
	if err != nil {
		return environment.Any{}, err
	}
	for _, s := range required {
		if loaded.State() == s {
			return loaded, nil
		}
	}
	return environment.Any{}, &InvalidStateError{
		Name:     inv.name.String(),
		Verb:     inv.verb,
		Current:  loaded.State(),
		Required: required,
	}
}
