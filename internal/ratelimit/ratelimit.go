// Package ratelimit throttles analytics requests per caller.
//
// Analytics endpoints are CPU heavy (hitting-time walks and Monte Carlo
// trials), so each caller gets a token bucket. The in-memory limiter is
// per-instance; the Limiter interface lets a shared implementation be
// substituted when running several replicas.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Remaining is the whole number of tokens left after this call.
	Remaining int
	// RetryAfter is how long until the next token, set when denied.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow consumes one token for key. The key is opaque; callers build it
	// (e.g. "org:<uuid>:sub:<uuid>"). An error signals a limiter
	// malfunction and callers fail open.
	Allow(ctx context.Context, key string) (Decision, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always permits.
func (NoopLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
