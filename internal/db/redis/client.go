package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docsearch/internal/db"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Compile-time check: Store implements db.DocumentStore.
var _ db.DocumentStore = (*Store)(nil)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "docsearch:"

// ErrClusterUnsupported is returned when the server runs in cluster mode.
var ErrClusterUnsupported = errors.New("redis cluster mode is not supported; use a standalone or sentinel deployment")

// Config holds connection parameters for a Redis or Valkey store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// Backend is reported in migration results ("redis" or "valkey").
	Backend string
	// ForceSingleClient skips topology discovery, e.g. for a single node
	// that answers CLUSTER commands or sits behind a proxy.
	ForceSingleClient bool
	Now               func() time.Time
}

// Store implements db.DocumentStore via rueidis. Writes run as Lua scripts
// so a document, its ordering entries and its tag sets change atomically.
type Store struct {
	client  rueidis.Client
	keys    keyspace
	backend string
	now     func() time.Time
}

// NewStore creates a store via rueidis. The wire protocol is the same for
// Redis and Valkey, so one implementation serves both drivers.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:       cfg.Addrs,
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		DisableCache:      true,
		ForceSingleClient: cfg.ForceSingleClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	// The scripts touch keys across slots.
	if client.Mode() == rueidis.ClientModeCluster {
		client.Close()
		return nil, ErrClusterUnsupported
	}

	return newStore(client, cfg), nil
}

func newStore(client rueidis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "redis"
	}
	now := cfg.Now
	if now == nil {
		now = domdoc.Now
	}
	return &Store{client: client, keys: keyspace{prefix: prefix}, backend: backend, now: now}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.b().Ping().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return db.Wrap(db.OpPing, err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
