// Package retry is a bounded exponential-backoff executor with jitter,
// distinguishing retryable from terminal errors.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/iskng/embed-star/internal/domain"
)

// Policy configures one retry executor.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      float64 // fraction, e.g. 0.20 for ±20%
	OnRetry     func(attempt int, err error, delay time.Duration)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
		Jitter:      0.20,
	}
}

// Executor runs a function under Policy, retrying retryable failures with
// exponential backoff and checking cancellation before every sleep.
type Executor struct {
	policy Policy
	logger *zap.Logger
}

func New(policy Policy, logger *zap.Logger) *Executor {
	if policy.MaxAttempts < 0 {
		policy.MaxAttempts = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 1 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	return &Executor{policy: policy, logger: logger}
}

// Do runs fn, retrying on retryable errors until MaxAttempts is exhausted,
// a terminal error is returned, or ctx is cancelled.
func (e *Executor) Do(ctx context.Context, fn func() error) error {
	_, err := e.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult is the any-typed core; DoWithResultTyped wraps it for
// callers that want a concrete type back without a type assertion.
func (e *Executor) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	var result any

	for attempt := 0; attempt <= e.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.calculateDelay(attempt)

			if e.policy.OnRetry != nil {
				e.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, domain.NewError(domain.ErrCancelled, "retry cancelled").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !domain.IsRetryable(lastErr) {
			return nil, lastErr
		}

		if attempt >= e.policy.MaxAttempts {
			break
		}
	}

	return nil, lastErr
}

// calculateDelay computes base * multiplier^(attempt-1), capped at
// MaxDelay, with symmetric jitter applied around the capped value.
func (e *Executor) calculateDelay(attempt int) time.Duration {
	delay := float64(e.policy.BaseDelay) * math.Pow(e.policy.Multiplier, float64(attempt-1))
	if delay > float64(e.policy.MaxDelay) {
		delay = float64(e.policy.MaxDelay)
	}
	if e.policy.Jitter > 0 {
		jitter := delay * e.policy.Jitter
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// DoWithResultTyped is a type-safe wrapper around Executor.DoWithResult.
func DoWithResultTyped[T any](e *Executor, ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := e.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
