// Package ratelimit paces attempt dispatch: a completion-driven slot pacer and
// an optional token-bucket ceiling on the dispatch rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter spaces dispatches at most perSecond apart. A nil RateLimiter
// or a non-positive rate does not limit.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(perSecond float64) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	// Burst of one: no spikes after an idle period.
	return &RateLimiter{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next dispatch is allowed or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter.Limit() == rate.Inf {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Limit returns the configured rate in dispatches per second, 0 when unlimited.
func (r *RateLimiter) Limit() float64 {
	if r == nil || r.limiter.Limit() == rate.Inf {
		return 0
	}
	return float64(r.limiter.Limit())
}
