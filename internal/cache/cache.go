// Package cache defines the byte-oriented cache contract used for candidate windows.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// DefaultTTL bounds the lifetime of every entry when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// Cache stores opaque values with a TTL fixed at construction.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

var _ Cache = Noop{}

// Get always reports a miss.
func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set discards the value.
func (Noop) Set(context.Context, string, []byte) error { return nil }

// Delete is a no-op.
func (Noop) Delete(context.Context, string) error { return nil }

// Ping always succeeds.
func (Noop) Ping(context.Context) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
