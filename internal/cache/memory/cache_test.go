package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docsearch/internal/cache"
)

func newCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := New(Config{MaxBytes: 1 << 20, TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetGetDelete(t *testing.T) {
	c := newCache(t, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestCache_Overwrite(t *testing.T) {
	c := newCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("one")))
	require.NoError(t, c.Set(ctx, "k", []byte("two")))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newCache(t, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	time.Sleep(60 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestCache_Closed(t *testing.T) {
	c := newCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close must be idempotent")

	assert.ErrorIs(t, c.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, c.Set(ctx, "k", nil), ErrClosed)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, cache.DefaultTTL, c.ttl)
}
