// Package memory is an in-process cache on ristretto.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/kailas-cloud/docsearch/internal/cache"
)

var _ cache.Cache = (*Cache)(nil)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("cache closed")

// Config sizes the cache. MaxBytes bounds the summed length of stored values.
type Config struct {
	MaxBytes int64
	TTL      time.Duration
}

const defaultMaxBytes = 64 << 20

// Cache is a cost-bounded TinyLFU cache. Admission is probabilistic, so a
// Set may be dropped; callers treat that as a later miss.
type Cache struct {
	c      *ristretto.Cache[string, []byte]
	ttl    time.Duration
	closed atomic.Bool
}

// New builds the cache. NumCounters follows ristretto's guidance of ten
// counters per expected item, with items estimated at 1 KiB.
func New(cfg Config) (*Cache, error) {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	counters := max(maxBytes/1024*10, 1000)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Get returns the stored value or cache.ErrMiss.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	v, ok := c.c.Get(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

// Set stores value with the configured TTL and waits for the write buffer
// to drain so the value is visible to the next Get.
func (c *Cache) Set(_ context.Context, key string, value []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.c.SetWithTTL(key, value, int64(len(value)), c.ttl)
	c.c.Wait()
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.c.Del(key)
	return nil
}

// Ping reports whether the cache is open.
func (c *Cache) Ping(_ context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close stops ristretto's background goroutines.
func (c *Cache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.c.Close()
	}
	return nil
}
