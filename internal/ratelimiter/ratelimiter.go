// Package ratelimiter paces bulk filesystem work such as orphan deletion.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces operations with a token bucket.
//
// A nil *Limiter never blocks, so callers can hold one unconditionally.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a Limiter allowing opsPerSecond sustained operations with
// bursts of up to burst. opsPerSecond = 0 disables pacing and returns nil.
// A burst below 1 is raised to 1.
func New(opsPerSecond, burst uint) *Limiter {
	if opsPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(opsPerSecond), int(burst))}
}

// Wait blocks until one operation may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether one operation may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
