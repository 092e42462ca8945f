package docsearch

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*config.Config, *clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*config.Config, *clientConfig)

func (f optionFunc) apply(cfg *config.Config, c *clientConfig) { f(cfg, c) }

type clientConfig struct {
	logger  *zap.Logger
	migrate bool
}

// WithMemory keeps documents in process memory. This is the default.
func WithMemory() Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Database.Driver = config.DriverMemory
	})
}

// WithSQLite stores documents in SQLite. dsn is a file path or ":memory:".
func WithSQLite(dsn string) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.DSN = dsn
	})
}

// WithBadger stores documents in an embedded Badger database under dir.
// An empty dir keeps the database in memory.
func WithBadger(dir string) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Database.Driver = config.DriverBadger
		cfg.Database.Path = dir
		cfg.Database.InMemory = dir == ""
	})
}

// WithMongo stores documents in a MongoDB database.
func WithMongo(uri, database string) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Database.Driver = config.DriverMongo
		cfg.Database.DSN = uri
		cfg.Database.Database = database
	})
}

// WithRedis stores documents in Redis.
func WithRedis(addr, password string) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Database.Driver = config.DriverRedis
		cfg.Database.Addrs = []string{addr}
		cfg.Database.Password = password
	})
}

// WithValkey stores documents in Valkey.
func WithValkey(addr, password string) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Database.Driver = config.DriverValkey
		cfg.Database.Addrs = []string{addr}
		cfg.Database.Password = password
	})
}

// WithMemoryCache caches candidate windows in process, bounded by maxBytes.
func WithMemoryCache(maxBytes int64) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Cache.Driver = config.CacheMemory
		cfg.Cache.MaxBytes = maxBytes
	})
}

// WithRedisCache shares cached windows through Redis.
func WithRedisCache(addr, password string) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Cache.Driver = config.CacheRedis
		cfg.Cache.Addr = addr
		cfg.Cache.Password = password
	})
}

// WithoutCache reads every window from the store.
func WithoutCache() Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Cache.Driver = config.CacheNone
	})
}

// WithCacheTTL bounds how long a cached window may be served.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Cache.TTLSec = int(ttl / time.Second)
	})
}

// WithScanRange sets how many recent documents a query considers.
func WithScanRange(n int) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Search.ScanRange = n
	})
}

// WithStopWords replaces the built-in English stop word list.
// An empty non-nil list disables stop words.
func WithStopWords(words []string) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Search.StopWords = words
	})
}

// WithBulkWorkers sizes the worker pool used by BulkUpsert.
func WithBulkWorkers(n int) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Bulk.Workers = n
	})
}

// WithMaxBatchSize sets the maximum number of documents per BulkUpsert.
func WithMaxBatchSize(n int) Option {
	return optionFunc(func(cfg *config.Config, _ *clientConfig) {
		cfg.Bulk.MaxBatchSize = n
	})
}

// WithLogger sets the logger used by the client's components.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(_ *config.Config, c *clientConfig) {
		c.logger = logger
	})
}

// WithoutMigrations skips applying the schema on New.
func WithoutMigrations() Option {
	return optionFunc(func(_ *config.Config, c *clientConfig) {
		c.migrate = false
	})
}
