package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts hits with INCR and starts the window with PEXPIRE on
// the first hit, so all instances behind a load balancer share one budget.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (l *RedisLimiter) Allow(ctx context.Context, policy Policy, key string) (Decision, error) {
	k := l.key(policy, key)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incr %s: %w", policy.Name, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, k, policy.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("pexpire %s: %w", policy.Name, err)
		}
	}

	if count <= int64(policy.Max) {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil || ttl <= 0 {
		ttl = policy.Window
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

func (l *RedisLimiter) Release(ctx context.Context, policy Policy, key string) error {
	k := l.key(policy, key)
	count, err := l.client.Decr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("decr %s: %w", policy.Name, err)
	}
	if count <= 0 {
		if err := l.client.Del(ctx, k).Err(); err != nil {
			return fmt.Errorf("del %s: %w", policy.Name, err)
		}
	}
	return nil
}

func (l *RedisLimiter) key(policy Policy, key string) string {
	return l.prefix + ":" + policy.Name + ":" + key
}
