package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "threadsentinel:ai_quota:"

// RedisCounter keeps window counts in Redis so several processes share one budget.
type RedisCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis initializes a Redis client from URL or host:port input.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// NewRedisCounter creates a counter whose keys expire two days after first use.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, ttl: 48 * time.Hour}
}

func (c *RedisCounter) IncrementUsage(ctx context.Context, window string) (int64, error) {
	key := redisKeyPrefix + window
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if n == 1 {
		_ = c.client.Expire(ctx, key, c.ttl).Err()
	}
	return n, nil
}

func (c *RedisCounter) Usage(ctx context.Context, window string) (int64, error) {
	key := redisKeyPrefix + window
	n, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}
