package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yenvi12/aifshop-auth/internal/core/port"
)

// sweepInterval bounds how many Check calls may pass between sweeps of
// fully expired entries.
const sweepInterval = 256

// RateLimitStore is an in-process fixed-window limiter used for
// development and tests. Expired entries are treated as absent on read
// and swept opportunistically so the map does not grow without bound.
type RateLimitStore struct {
	mu         sync.Mutex
	entries    map[string]*rateLimitEntry
	now        func() time.Time
	sinceSweep int
}

type rateLimitEntry struct {
	count        int
	resetAt      time.Time
	blockedUntil time.Time
}

// NewRateLimitStore constructs an empty limiter.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		entries: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

// Check records one attempt against the key and reports whether it is
// allowed under the policy.
func (s *RateLimitStore) Check(_ context.Context, key string, policy port.RateLimitPolicy) (port.RateLimitDecision, error) {
	if strings.TrimSpace(key) == "" {
		return port.RateLimitDecision{}, errors.New("key is required")
	}
	if policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return port.RateLimitDecision{}, errors.New("policy must set max attempts and window")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	s.sinceSweep++
	if s.sinceSweep >= sweepInterval {
		s.sweep(now)
	}

	entry, ok := s.entries[key]
	if !ok {
		entry = &rateLimitEntry{}
		s.entries[key] = entry
	}

	if entry.blockedUntil.After(now) {
		return port.RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: entry.blockedUntil.Sub(now),
		}, nil
	}

	if !entry.resetAt.After(now) {
		entry.count = 0
		entry.resetAt = now.Add(policy.Window)
	}

	entry.count++

	if entry.count > policy.MaxAttempts {
		entry.blockedUntil = now.Add(policy.Block)
		return port.RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: entry.blockedUntil.Sub(now),
		}, nil
	}

	entry.blockedUntil = time.Time{}

	return port.RateLimitDecision{
		Allowed:   true,
		Remaining: policy.MaxAttempts - entry.count,
	}, nil
}

// Reset clears all counters for the key.
func (s *RateLimitStore) Reset(_ context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// sweep removes entries whose window and block have both elapsed.
// Caller holds the mutex.
func (s *RateLimitStore) sweep(now time.Time) {
	for key, entry := range s.entries {
		if !entry.resetAt.After(now) && !entry.blockedUntil.After(now) {
			delete(s.entries, key)
		}
	}
	s.sinceSweep = 0
}

// WithClock overrides the internal clock, used in tests.
func (s *RateLimitStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
