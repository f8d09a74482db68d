// Package ratelimiter throttles connection accepts using a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// ConnLimiter limits the rate at which new connections are admitted.
//
// It wraps golang.org/x/time/rate: tokens accrue at a sustained
// connections-per-second rate, each accepted connection consumes one, and
// the burst capacity absorbs short spikes above the sustained rate.
//
// All methods are safe for concurrent use.
type ConnLimiter struct {
	limiter *rate.Limiter
}

// New creates a ConnLimiter allowing connsPerSecond sustained accepts with
// the given burst capacity. A connsPerSecond of 0 disables limiting.
func New(connsPerSecond, burst uint) *ConnLimiter {
	if connsPerSecond == 0 {
		// Effectively unlimited. rate.Inf has awkward Wait semantics, so a
		// very large finite rate is used instead.
		connsPerSecond = 1_000_000_000
		burst = connsPerSecond
	}

	return &ConnLimiter{
		limiter: rate.NewLimiter(rate.Limit(connsPerSecond), int(burst)),
	}
}

// Allow reports whether one more connection may be admitted right now,
// consuming a token when it may. Use this to reject over-limit connections
// outright.
func (l *ConnLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled. Use this to
// throttle the accept loop instead of dropping connections.
func (l *ConnLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Tokens returns the number of currently available tokens. Monitoring and
// tests only; the value is stale as soon as it is read.
func (l *ConnLimiter) Tokens() float64 {
	return l.limiter.Tokens()
}
