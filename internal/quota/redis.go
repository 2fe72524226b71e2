package quota

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter backs the quota service with Redis atomic increments.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a redis-backed counter.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr increments the key, attaching the TTL when the key was just created.
func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		_ = c.client.Expire(ctx, key, ttl).Err()
	}
	return n, nil
}

// Decr decrements the key.
func (c *RedisCounter) Decr(ctx context.Context, key string) (int64, error) {
	return c.client.Decr(ctx, key).Result()
}

// Get returns the current counter value, 0 when absent.
func (c *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
