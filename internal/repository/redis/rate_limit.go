package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/yenvi12/aifshop-auth/internal/core/port"
)

const (
	defaultRateLimitPrefix = "shop:ratelimit"

	fieldCount        = "count"
	fieldResetAt      = "reset_at"
	fieldBlockedUntil = "blocked_until"
)

// RateLimitRepository implements a fixed-window counter with an
// escalating block in Redis hashes. Each key carries its attempt count,
// the window reset time, and an optional block deadline.
type RateLimitRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewRateLimitRepository constructs a limiter backed by the provided
// Redis client and key prefix.
func NewRateLimitRepository(client *red.Client, keyPrefix string) *RateLimitRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}

	return &RateLimitRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Check records one attempt against the key and reports whether it is
// allowed under the policy. Once the window budget is exhausted the key
// is blocked for the policy's block duration.
func (r *RateLimitRepository) Check(ctx context.Context, key string, policy port.RateLimitPolicy) (port.RateLimitDecision, error) {
	if strings.TrimSpace(key) == "" {
		return port.RateLimitDecision{}, errors.New("key is required")
	}
	if policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return port.RateLimitDecision{}, errors.New("policy must set max attempts and window")
	}

	now := r.now().UTC()
	redisKey := r.key(key)

	values, err := r.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return port.RateLimitDecision{}, fmt.Errorf("redis hgetall rate limit: %w", err)
	}

	blockedUntil := parseUnixField(values[fieldBlockedUntil])
	if blockedUntil.After(now) {
		return port.RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: blockedUntil.Sub(now),
		}, nil
	}

	count := 0
	resetAt := parseUnixField(values[fieldResetAt])
	if resetAt.After(now) {
		if raw := values[fieldCount]; raw != "" {
			if v, convErr := strconv.Atoi(raw); convErr == nil {
				count = v
			}
		}
	} else {
		resetAt = now.Add(policy.Window)
	}

	count++

	if count > policy.MaxAttempts {
		blockedUntil = now.Add(policy.Block)

		pipe := r.client.TxPipeline()
		pipe.HSet(ctx, redisKey, map[string]any{
			fieldCount:        strconv.Itoa(count),
			fieldResetAt:      strconv.FormatInt(resetAt.Unix(), 10),
			fieldBlockedUntil: strconv.FormatInt(blockedUntil.Unix(), 10),
		})
		pipe.Expire(ctx, redisKey, policy.Window+policy.Block)
		if _, err := pipe.Exec(ctx); err != nil {
			return port.RateLimitDecision{}, fmt.Errorf("redis store rate limit block: %w", err)
		}

		return port.RateLimitDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: blockedUntil.Sub(now),
		}, nil
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, redisKey, map[string]any{
		fieldCount:        strconv.Itoa(count),
		fieldResetAt:      strconv.FormatInt(resetAt.Unix(), 10),
		fieldBlockedUntil: "0",
	})
	pipe.Expire(ctx, redisKey, policy.Window+policy.Block)
	if _, err := pipe.Exec(ctx); err != nil {
		return port.RateLimitDecision{}, fmt.Errorf("redis store rate limit: %w", err)
	}

	return port.RateLimitDecision{
		Allowed:   true,
		Remaining: policy.MaxAttempts - count,
	}, nil
}

// Reset clears all counters for the key, typically after a successful
// login.
func (r *RateLimitRepository) Reset(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete rate limit: %w", err)
	}

	return nil
}

// WithClock overrides the internal clock, used in tests.
func (r *RateLimitRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

func (r *RateLimitRepository) key(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func parseUnixField(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return time.Time{}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
