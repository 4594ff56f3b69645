package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"
)

// Limiter paces outbound API calls, incorporating optional jitter.
// It is safe for concurrent use by multiple goroutines. A nil *Limiter
// never blocks, so callers can hold an optional limiter without nil checks.
type Limiter struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
}

// NewLimiter creates a new limiter with the given requests per second (rps)
// and jitter factor. Jitter is clamped to [0, 1].
// If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}

	interval := time.Duration(float64(time.Second) / rps)
	ticker := time.NewTicker(interval)

	return &Limiter{
		ticker:   ticker,
		jitter:   jitter,
		interval: interval,
		ch:       ticker.C,
	}
}

// Interval reports the configured spacing between calls, zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until it is time to perform the next operation, or until the
// context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.ch == nil {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
	}

	if l.jitter == 0 {
		return nil
	}

	// Negative jitter collapses to "run on the tick"; the ticker already
	// enforces the minimum spacing.
	extra := time.Duration(float64(l.interval) * l.jitter * (rand.Float64()*2 - 1))
	if extra <= 0 {
		return nil
	}

	timer := time.NewTimer(extra)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases any resources associated with the limiter.
func (l *Limiter) Stop() {
	if l != nil && l.ticker != nil {
		l.ticker.Stop()
	}
}
