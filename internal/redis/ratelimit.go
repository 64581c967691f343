package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter over Redis, shared across processes.
type RateLimiter struct {
	client *goredis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *goredis.Client, limit int64, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window}
}

// AllowMessage reports whether the user may send another message in the
// current window. Redis errors fail open: losing rate limiting is better
// than losing messaging.
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (bool, error) {
	if r == nil || r.client == nil {
		return true, nil
	}
	key := "ratelimit:message:" + userID

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= r.limit, nil
}
