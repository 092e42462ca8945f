package window

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/cache"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	docs      []domdoc.Document
	err       error
	calls     int
	tagCalls  int
	lastTags  []string
	lastIndex string
	lastLimit int
}

func (m *mockStore) GetDocuments(_ context.Context, _, index string, limit int) ([]domdoc.Document, error) {
	m.calls++
	m.lastIndex = index
	m.lastLimit = limit
	return m.docs, m.err
}

func (m *mockStore) GetDocumentsByTags(
	_ context.Context, tags []string, _, index string, limit int,
) ([]domdoc.Document, error) {
	m.tagCalls++
	m.lastTags = tags
	m.lastIndex = index
	m.lastLimit = limit
	return m.docs, m.err
}

// mapCache is a map-backed cache.Cache with injectable failures.
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	delErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.data, key)
	return nil
}

func (c *mapCache) Ping(context.Context) error { return nil }
func (c *mapCache) Close() error               { return nil }

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_window_cache_total"}, []string{"result"})
}

func newTestRepo(t *testing.T, s *mockStore, c cache.Cache) (*Repository, *prometheus.CounterVec) {
	t.Helper()
	counter := newCounter()
	return New(s, c, counter, zap.NewNop()), counter
}

func mustDoc(t *testing.T, id string, tags ...string) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(id, "t", "i", domdoc.MustData("title", "doc "+id), tags)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return d
}
