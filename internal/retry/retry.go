// Package retry provides bounded retry policies with exponential backoff for
// calls to external collaborators.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes how an external call is retried: a bounded number of
// additional attempts with an exponential backoff curve and jitter. Policies
// are values; wrap each call site with the policy it needs instead of relying
// on error propagation for control flow.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry, doubled on each subsequent retry.
	BaseDelay time.Duration
	// Jitter is the +/- fraction applied to each delay (e.g. 0.3 for ±30%).
	Jitter float64
	// Retryable classifies errors; nil means every error is retryable.
	Retryable func(error) bool
}

// DefaultPolicy matches the external-call limits used across the pipeline.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Jitter:      0.3,
	}
}

// sleep waits for d or until the context is cancelled (injectable for tests).
var sleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Do runs op, retrying per the policy. The last error is returned when
// attempts are exhausted. Context cancellation is never retried.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return lastErr
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		if err := sleep(ctx, p.backoffDelay(attempt)); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return lastErr
}

// backoffDelay computes the delay for a given attempt with jitter applied.
func (p Policy) backoffDelay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	if p.Jitter > 0 {
		jitter := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
	}
	if delay < 0 {
		delay = 0
	}

	return delay
}
