package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds a retrying step. The step's total budget is
// OverallTimeout; each attempt additionally gets AttemptTimeout when
// set.
type RetryPolicy struct {
	// MaxAttempts caps the number of attempts. Zero means attempts are
	// bounded only by OverallTimeout.
	MaxAttempts int

	// InitialBackoff is the pause after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth of the pause.
	MaxBackoff time.Duration

	// AttemptTimeout bounds a single attempt. Zero leaves attempts on
	// the overall deadline.
	AttemptTimeout time.Duration

	// OverallTimeout bounds the whole retry loop.
	OverallTimeout time.Duration
}

// DefaultRetryPolicy suits waits on instance boot: a few minutes
// overall, short attempts, backoff growing to a modest cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		AttemptTimeout: 20 * time.Second,
		OverallTimeout: 5 * time.Minute,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

type retryStep struct {
	inner  Step
	policy RetryPolicy
}

// Retry wraps step so failures classified as retryable timeouts are
// reattempted with exponential backoff. Terminal failures and context
// cancellation stop the loop immediately.
func Retry(step Step, policy RetryPolicy) Step {
	return &retryStep{inner: step, policy: policy}
}

func (s *retryStep) Name() string { return s.inner.Name() }

func (s *retryStep) Run(ctx context.Context, sc *Context) error {
	if s.policy.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.OverallTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; s.policy.MaxAttempts <= 0 || attempt <= s.policy.MaxAttempts; attempt++ {
		lastErr = s.attempt(ctx, sc)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			break
		}

		pause := s.policy.backoff(attempt)
		log.Debug().
			Str("step", s.inner.Name()).
			Int("attempt", attempt).
			Dur("backoff", pause).
			Err(lastErr).
			Msg("step not ready, retrying")

		select {
		case <-ctx.Done():
			return RetryableTimeout(fmt.Errorf("%s: %w (last attempt: %v)", s.inner.Name(), ctx.Err(), lastErr))
		case <-time.After(pause):
		}
	}

	if ctx.Err() != nil {
		return RetryableTimeout(fmt.Errorf("%s: %w (last attempt: %v)", s.inner.Name(), ctx.Err(), lastErr))
	}
	return RetryableTimeout(fmt.Errorf("%s: retries exhausted: %w", s.inner.Name(), lastErr))
}

func (s *retryStep) attempt(ctx context.Context, sc *Context) error {
	if s.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.AttemptTimeout)
		defer cancel()
	}
	return s.inner.Run(ctx, sc)
}
