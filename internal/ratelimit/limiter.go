// Package ratelimit gates outbound provider calls with a per-provider
// token bucket built on golang.org/x/time/rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/iskng/embed-star/internal/domain"
)

// Limiter wraps an x/time/rate.Limiter with the "acquire blocks up to a
// ceiling" semantics: capacity = quota, refill = quota/60 tokens per
// second, continuous.
type Limiter struct {
	inner *rate.Limiter
}

// New builds a limiter for requestsPerMinute with burst equal to the quota.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	perSecond := rate.Limit(float64(requestsPerMinute) / 60.0)
	return &Limiter{inner: rate.NewLimiter(perSecond, requestsPerMinute)}
}

// Acquire blocks until a token is available or ctx is done. ctx should
// already carry the local ceiling as a deadline; exceeding it surfaces as
// a retryable RateLimitedLocally error rather than ctx.Err() directly, so
// callers can feed it straight into the retry executor.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.inner.Wait(ctx); err != nil {
		return domain.NewError(domain.ErrRateLimitedLocally, "rate limited locally").
			WithRetryable(true).
			WithCause(err)
	}
	return nil
}
