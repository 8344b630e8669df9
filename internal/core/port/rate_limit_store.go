package port

import (
	"context"
	"time"
)

// RateLimitPolicy parameterises a fixed-window limit with an optional
// escalating block once the window budget is exhausted.
type RateLimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

// RateLimitDecision reports the outcome of a limiter check.
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitStore tracks per-key attempt counters. Counters are best
// effort: concurrent checks for the same key may over- or under-count,
// which is acceptable for abuse deterrence.
type RateLimitStore interface {
	Check(ctx context.Context, key string, policy RateLimitPolicy) (RateLimitDecision, error)
	Reset(ctx context.Context, key string) error
}
