package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter 是基于 Redis 固定窗口计数器的限流器
type RateLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRateLimiter 创建 RateLimiter 实例
func NewRateLimiter(client *redis.Client, keyPrefix string) *RateLimiter {
	if client == nil {
		panic("redis client cannot be nil for RateLimiter")
	}
	if keyPrefix == "" {
		keyPrefix = "sr:"
	}
	return &RateLimiter{client: client, keyPrefix: keyPrefix}
}

// Allow 递增 key 的计数并判断是否仍在 limit 之内。
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.keyPrefix + "ratelimit:" + key
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window) // 设置/刷新过期时间
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	return count <= int64(limit), nil
}
