// Package loader loads outlet pages through a session with bounded retries and
// escalating per-attempt timeouts. Every page-based navigation an adapter
// performs goes through a Loader.
package loader

import (
	"context"
	"time"
)

// Defaults for RetryPolicy and Loader.
const (
	DefaultMaxAttempts = 3
	DefaultBaseTimeout = 20 * time.Second
	DefaultTimeoutStep = 10 * time.Second
	DefaultBackoff     = 3 * time.Second
	DefaultSettleDelay = time.Second
)

// RetryPolicy decides how many attempts a load gets, how long each attempt
// may take, and how long to wait between attempts. Attempt indexes start at 0.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Timeout     func(attempt int) time.Duration
}

// NewRetryPolicy builds a policy with a fixed backoff and a timeout of
// base + attempt*step.
func NewRetryPolicy(maxAttempts int, base, step, backoff time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if base <= 0 {
		base = DefaultBaseTimeout
	}
	if step < 0 {
		step = DefaultTimeoutStep
	}
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     FixedBackoff(backoff),
		Timeout:     LinearTimeout(base, step),
	}
}

// DefaultRetryPolicy returns three attempts at 20s/30s/40s with a 3s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(DefaultMaxAttempts, DefaultBaseTimeout, DefaultTimeoutStep, DefaultBackoff)
}

// FixedBackoff waits d between every pair of attempts.
func FixedBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// LinearTimeout grows the per-attempt timeout by step on each retry.
func LinearTimeout(base, step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base + time.Duration(attempt)*step
	}
}

// Sleeper pauses between attempts. Implementations must return early with
// ctx.Err() when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
