package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is a named fixed-window budget: at most Max hits per Window.
type Policy struct {
	Name   string
	Max    int
	Window time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool {
	return p.Name != "" && p.Max > 0 && p.Window > 0
}

// Limiter counts hits per policy and key using Redis counters.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

func key(p Policy, subject string) string {
	return "rl:" + p.Name + ":" + subject
}

// Check returns ErrRateLimited when the current window already holds Max
// hits. It does not count a hit.
func (l *Limiter) Check(ctx context.Context, p Policy, subject string) error {
	if l == nil || !p.Enabled() {
		return nil
	}

	count, err := l.redis.Get(ctx, key(p, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(p.Max) {
		return ErrRateLimited
	}
	return nil
}

// Hit counts one hit and returns ErrRateLimited when the count now exceeds
// Max.
func (l *Limiter) Hit(ctx context.Context, p Policy, subject string) error {
	if l == nil || !p.Enabled() {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, key(p, subject), p.Window)
	if err != nil {
		return err
	}
	if count > int64(p.Max) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
