package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/campusmkt/campus-commerce-engine/internal/adapters/redis"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
)

// RateLimiter is a fixed-window counter in redis. Fails open when
// redis is unreachable; throttling must never take checkout down.
type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return true
	}

	if incr.Val() > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}
