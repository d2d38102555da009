package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/pharmaintel/core"
)

// Retry re-invokes a wrapped agent on failure.
type Retry struct {
	agent    core.Agent
	attempts int
	backoff  time.Duration
}

// WithRetry wraps a so that a failed call is retried up to attempts times in
// total, sleeping backoff (doubled after each try) in between. Invalid
// contributions and context errors are not retried.
func WithRetry(a core.Agent, attempts int, backoff time.Duration) *Retry {
	if attempts < 1 {
		attempts = 1
	}
	return &Retry{agent: a, attempts: attempts, backoff: backoff}
}

// Run implements core.Agent.
func (r *Retry) Run(ctx context.Context, req core.Request) (core.Contribution, error) {
	var (
		lastErr error
		tries   int
	)
	wait := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		tries = attempt
		c, err := r.agent.Run(ctx, req)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if !retryable(err) || attempt == r.attempts {
			break
		}

		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return core.Contribution{}, ctx.Err()
			}
			wait *= 2
		}
	}
	if tries == 1 {
		return core.Contribution{}, lastErr
	}
	return core.Contribution{}, fmt.Errorf("after %d attempts: %w", tries, lastErr)
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, core.ErrInvalidContribution)
}
