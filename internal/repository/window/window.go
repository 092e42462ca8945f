// Package window caches candidate windows, the bounded recent-document sets
// the ranking engine scores, in front of a document store.
package window

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/cache"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

const (
	windowKeyPrefix     = "docsearch:window:"
	generationKeyPrefix = "docsearch:window-gen:"
	allIndexes          = "*"
	noTags              = "none"
)

// store is the consumer interface for window loads (ISP).
type store interface {
	GetDocuments(ctx context.Context, tenant, index string, limit int) ([]domdoc.Document, error)
	GetDocumentsByTags(ctx context.Context, tags []string, tenant, index string, limit int) ([]domdoc.Document, error)
}

// Query identifies a window. Index may be empty for the whole tenant; Tags
// narrow it to documents carrying every tag.
type Query struct {
	Tenant    string
	Index     string
	Tags      []string
	ScanRange int
}

// Repository reads windows through the cache. Every tenant has a generation
// token that is part of each window key; writers drop the token, which makes
// every cached window of the tenant unreachable at once.
type Repository struct {
	store      store
	cache      cache.Cache
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching window repository.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, c cache.Cache, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Repository {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{store: s, cache: c, cacheTotal: cacheTotal, logger: logger}
}

// Window returns up to q.ScanRange documents of the scope, most recently
// updated first. Cache failures degrade to a store read.
func (r *Repository) Window(ctx context.Context, q Query) ([]domdoc.Document, error) {
	q.Tags = domdoc.NormalizeTags(q.Tags)
	if _, disabled := r.cache.(cache.Noop); disabled {
		return r.load(ctx, q)
	}

	gen, ok := r.generation(ctx, q.Tenant)
	if !ok {
		return r.load(ctx, q)
	}
	key := windowKey(q, gen)

	if docs, hit := r.getFromCache(ctx, key); hit {
		r.incCache("hit")
		return docs, nil
	}
	r.incCache("miss")

	docs, err := r.load(ctx, q)
	if err != nil {
		return nil, err
	}
	r.putToCache(ctx, key, docs)
	return docs, nil
}

// Invalidate drops the tenant's generation. Call it after a write commits.
func (r *Repository) Invalidate(ctx context.Context, tenant string) {
	if err := r.cache.Delete(ctx, generationKey(tenant)); err != nil {
		r.logger.Warn("Failed to invalidate window cache", zap.String("tenant", tenant), zap.Error(err))
	}
}

func (r *Repository) load(ctx context.Context, q Query) ([]domdoc.Document, error) {
	if len(q.Tags) > 0 {
		docs, err := r.store.GetDocumentsByTags(ctx, q.Tags, q.Tenant, q.Index, q.ScanRange)
		if err != nil {
			return nil, fmt.Errorf("load tagged window: %w", err)
		}
		return docs, nil
	}
	docs, err := r.store.GetDocuments(ctx, q.Tenant, q.Index, q.ScanRange)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}
	return docs, nil
}

// generation returns the tenant's current token, minting one on a miss.
// The bool is false when the cache is unusable.
func (r *Repository) generation(ctx context.Context, tenant string) (string, bool) {
	key := generationKey(tenant)
	b, err := r.cache.Get(ctx, key)
	if err == nil && len(b) > 0 {
		return string(b), true
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("Failed to read window generation", zap.String("tenant", tenant), zap.Error(err))
		return "", false
	}

	gen := uuid.NewString()
	if err := r.cache.Set(ctx, key, []byte(gen)); err != nil {
		r.logger.Warn("Failed to store window generation", zap.String("tenant", tenant), zap.Error(err))
		return "", false
	}
	return gen, true
}

func (r *Repository) getFromCache(ctx context.Context, key string) ([]domdoc.Document, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.logger.Warn("Failed to get cached window", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var recs []domdoc.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		r.logger.Warn("Failed to parse cached window", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return domdoc.FromRecords(recs), true
}

func (r *Repository) putToCache(ctx context.Context, key string, docs []domdoc.Document) {
	data, err := json.Marshal(domdoc.ToRecords(docs))
	if err != nil {
		r.logger.Warn("Failed to encode window", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, data); err != nil {
		r.logger.Warn("Failed to cache window", zap.String("key", key), zap.Error(err))
	}
}

func (r *Repository) incCache(result string) {
	if r.cacheTotal != nil {
		r.cacheTotal.WithLabelValues(result).Inc()
	}
}

func generationKey(tenant string) string {
	return generationKeyPrefix + tenant
}

// windowKey is docsearch:window:<tenant>:<gen>:<index|*>:<tags|none>:<scanRange>.
// Tenant, index and each tag are quoted so no value can pose as a separator
// or as the all-indexes marker. Tags must be normalized.
func windowKey(q Query, gen string) string {
	index := allIndexes
	if q.Index != "" {
		index = strconv.Quote(q.Index)
	}
	tags := noTags
	if len(q.Tags) > 0 {
		quoted := make([]string, len(q.Tags))
		for i, t := range q.Tags {
			quoted[i] = strconv.Quote(t)
		}
		tags = strings.Join(quoted, ",")
	}
	return windowKeyPrefix + strconv.Quote(q.Tenant) + ":" + gen + ":" + index + ":" + tags + ":" + strconv.Itoa(q.ScanRange)
}
