// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling and the hash operations used by the pagination run guard.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/calmhive/content-archive/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// SetFieldNX sets field in the hash at key only if it is not already present,
// refreshing the hash's TTL either way. It reports whether the field was
// newly set (false means it already existed).
func (c *Client) SetFieldNX(ctx context.Context, key, field, value string, ttl time.Duration) (bool, error) {
	added, err := c.rdb.HSetNX(ctx, key, field, value).Result()
	if err != nil {
		return false, fmt.Errorf("setting field in %s: %w", key, err)
	}
	if ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return added, fmt.Errorf("setting ttl on %s: %w", key, err)
		}
	}
	return added, nil
}

// GetField reads field from the hash at key. A missing field returns "" with
// no error.
func (c *Client) GetField(ctx context.Context, key, field string) (string, error) {
	value, err := c.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading field from %s: %w", key, err)
	}
	return value, nil
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
