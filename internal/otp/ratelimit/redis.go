package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter with a fixed window counter per key, shared
// across replicas. The TTL is set when the first event of a window lands, so
// the window starts at first issuance, not at a wall-clock boundary.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "otp:issue:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit ttl: %w", err)
	}
	resetAt := time.Now().Add(ttl)

	if count > int64(limit) {
		// A denied call must not count against the window.
		if err := l.client.Decr(ctx, redisKey).Err(); err != nil {
			return nil, fmt.Errorf("rate limit decr: %w", err)
		}
		return &Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	return &Result{
		Allowed:   true,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
