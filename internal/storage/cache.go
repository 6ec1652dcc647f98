package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stdin/venezuelawatch/internal/llm"
)

// RedisCache implements llm.Cache: a byte-oriented get/set with TTL,
// generalized from the Bus's own redis.Client usage (internal/bus) to
// a plain key/value cache rather than a stream.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache builds a RedisCache over an already-connected client.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

var _ llm.Cache = (*RedisCache)(nil)

// Get returns the cached value for key, or ok=false if absent.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: cache get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("storage: cache set %s: %w", key, err)
	}
	return nil
}
