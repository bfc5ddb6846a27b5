package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every service instance.
// The window starts with the first request of a key.
type RateLimiter struct {
	c *redis.Client
}

// NewRateLimiter wraps an existing client.
func NewRateLimiter(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow increments the counter of key and reports whether it is still within
// limit for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	k := "fleet:ratelimit:" + key
	n, err := rl.c.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis ratelimit: %w", err)
	}
	if n == 1 {
		if err := rl.c.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("redis ratelimit expire: %w", err)
		}
	}
	return n <= limit, nil
}
