// Package redis is a shared cache on go-redis, so every replica sees the
// same windows and the same invalidations.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kailas-cloud/docsearch/internal/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Config holds connection parameters for the cache.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache stores values as plain strings with an expiry.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects a go-redis client. The connection is established lazily;
// call Ping to verify it.
func New(cfg Config) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewFromClient(client, cfg.TTL), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the stored value or cache.ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

// Set stores value with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
