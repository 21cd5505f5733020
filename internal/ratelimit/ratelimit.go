// Package ratelimit provides Redis-based fixed-window rate limiting.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter counts requests per key in Redis. A nil Redis client disables
// limiting entirely, and Redis errors fail open to preserve availability.
type Limiter struct {
	redis *redis.Client
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{redis: rdb}
}

// Limit describes one fixed window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// LoginLimit bounds password attempts per email address.
func LoginLimit() Limit { return Limit{Requests: 10, Window: time.Minute} }

// VisionLimit bounds image-to-document generations per user; each call is an
// expensive upstream model request.
func VisionLimit() Limit { return Limit{Requests: 5, Window: time.Minute} }

// Check increments the counter for scope:identifier and reports whether the
// limit is exceeded.
func (l *Limiter) Check(ctx context.Context, scope, identifier string, limit Limit) error {
	if l == nil || l.redis == nil {
		return nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", scope, identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		// Fail-open on Redis errors to maintain availability.
		return nil
	}
	if count == 1 {
		l.redis.Expire(ctx, key, limit.Window)
	}
	if int(count) > limit.Requests {
		return ErrRateLimited
	}
	return nil
}
