// Package app is the composition root: it opens the configured document
// store and cache and wires the services on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/cache"
	cachememory "github.com/kailas-cloud/docsearch/internal/cache/memory"
	cacheredis "github.com/kailas-cloud/docsearch/internal/cache/redis"
	"github.com/kailas-cloud/docsearch/internal/config"
	"github.com/kailas-cloud/docsearch/internal/db"
	dbbadger "github.com/kailas-cloud/docsearch/internal/db/badger"
	dbmemory "github.com/kailas-cloud/docsearch/internal/db/memory"
	dbmongo "github.com/kailas-cloud/docsearch/internal/db/mongodb"
	dbredis "github.com/kailas-cloud/docsearch/internal/db/redis"
	dbsqlite "github.com/kailas-cloud/docsearch/internal/db/sqlite"
	"github.com/kailas-cloud/docsearch/internal/metrics"
	"github.com/kailas-cloud/docsearch/internal/ranking"
	"github.com/kailas-cloud/docsearch/internal/repository/window"
	batchuc "github.com/kailas-cloud/docsearch/internal/usecase/batch"
	documentuc "github.com/kailas-cloud/docsearch/internal/usecase/document"
	healthuc "github.com/kailas-cloud/docsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/docsearch/internal/usecase/search"
)

// App holds the opened backends and the services wired on them.
type App struct {
	Store     db.DocumentStore
	Cache     cache.Cache
	Documents *documentuc.Service
	Bulk      *batchuc.Service
	Search    *searchuc.Service
	Health    *healthuc.Service

	pool *ants.Pool
}

// New opens the store and cache named by cfg and wires the services.
// cfg must already carry defaults. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenStore(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	c, err := OpenCache(&cfg.Cache)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	pool, err := ants.NewPool(cfg.Bulk.Workers)
	if err != nil {
		_ = c.Close()
		_ = store.Close()
		return nil, fmt.Errorf("create bulk pool: %w", err)
	}

	windows := window.New(store, c, metrics.WindowCacheTotal, logger.Named("window"))
	ranker := ranking.New(cfg.Search.StopWords, logger.Named("ranking")).
		WithMetrics(metrics.RankingDuration, metrics.RankingWindowSize)

	a := &App{
		Store:     store,
		Cache:     c,
		Documents: documentuc.New(store, windows, logger.Named("documents")),
		Bulk: batchuc.New(store, windows, pool, logger.Named("bulk")).
			WithMaxBatchSize(cfg.Bulk.MaxBatchSize),
		Search: searchuc.New(windows, ranker).WithScanRange(cfg.Search.ScanRange),
		pool:   pool,
	}
	// A disabled cache is not a health dependency.
	if _, disabled := c.(cache.Noop); disabled {
		a.Health = healthuc.New(store, nil)
	} else {
		a.Health = healthuc.New(store, c)
	}
	return a, nil
}

// Close releases the worker pool, the cache and the store.
func (a *App) Close() error {
	a.pool.Release()
	return errors.Join(a.Cache.Close(), a.Store.Close())
}

// OpenStore opens and verifies the configured document store.
func OpenStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (db.DocumentStore, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second
	if readiness <= 0 {
		readiness = 10 * time.Second
	}

	var (
		store db.DocumentStore
		err   error
	)
	switch cfg.Driver {
	case config.DriverMemory, "":
		store = dbmemory.NewStore()
	case config.DriverSQLite:
		store, err = dbsqlite.NewStore(ctx, dbsqlite.Config{DSN: cfg.DSN})
	case config.DriverMongo:
		store, err = dbmongo.NewStore(ctx, dbmongo.Config{
			URI:        cfg.DSN,
			Database:   cfg.Database,
			Collection: cfg.Collection,
			Timeout:    readiness,
		})
	case config.DriverBadger:
		store, err = dbbadger.NewStore(dbbadger.Config{
			Path:     cfg.Path,
			InMemory: cfg.InMemory,
			Logger:   logger,
		})
	case config.DriverRedis, config.DriverValkey:
		var rs *dbredis.Store
		rs, err = dbredis.NewStore(dbredis.Config{
			Addrs:             cfg.Addrs,
			Username:          cfg.Username,
			Password:          cfg.Password,
			DB:                cfg.DB,
			KeyPrefix:         cfg.KeyPrefix,
			Backend:           cfg.Driver,
			ForceSingleClient: cfg.ForceSingleClient,
		})
		if err == nil {
			if werr := rs.WaitForReady(ctx, readiness); werr != nil {
				_ = rs.Close()
				return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, werr)
			}
		}
		store = rs
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}
	return store, nil
}

// OpenCache builds the configured window cache. The none driver returns cache.Noop.
func OpenCache(cfg *config.CacheConfig) (cache.Cache, error) {
	switch cfg.Driver {
	case config.CacheNone:
		return cache.Noop{}, nil
	case config.CacheMemory, "":
		c, err := cachememory.New(cachememory.Config{MaxBytes: cfg.MaxBytes, TTL: cfg.TTL()})
		if err != nil {
			return nil, fmt.Errorf("open memory cache: %w", err)
		}
		return c, nil
	case config.CacheRedis:
		c, err := cacheredis.New(cacheredis.Config{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      cfg.TTL(),
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
