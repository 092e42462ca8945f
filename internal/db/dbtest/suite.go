// Package dbtest is the behavioural test-suite shared by every db.DocumentStore backend.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Clock is a deterministic time source that advances one millisecond per call.
type Clock struct {
	mu  sync.Mutex
	cur time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{cur: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

// Now returns the next tick.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Millisecond)
	return c.cur
}

// Freeze makes every following call return the same instant.
func (c *Clock) Freeze() func() time.Time {
	at := c.Now()
	return func() time.Time { return at }
}

// Factory opens a fresh, migrated store using now for timestamps.
type Factory func(t *testing.T, now func() time.Time) db.DocumentStore

// Run executes the full contract suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, newStore Factory)
	}{
		{"UpsertThenGet", testUpsertThenGet},
		{"UpsertKeepsCreatedAt", testUpsertKeepsCreatedAt},
		{"UpsertDiffsTags", testUpsertDiffsTags},
		{"UpsertConflictingScope", testUpsertConflictingScope},
		{"GetDocumentNotFound", testGetDocumentNotFound},
		{"GetDocumentsOrdering", testGetDocumentsOrdering},
		{"GetDocumentsTieBreak", testGetDocumentsTieBreak},
		{"GetDocumentsScope", testGetDocumentsScope},
		{"GetDocumentsByTagsSuperset", testGetDocumentsByTagsSuperset},
		{"GetDocumentsByTagsScenario", testGetDocumentsByTagsScenario},
		{"DeleteDocument", testDeleteDocument},
		{"GetTags", testGetTags},
		{"MigrationsIdempotent", testMigrationsIdempotent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) { tc.fn(t, newStore) })
	}
}

func mustDoc(t *testing.T, id, tenant, index string, data domdoc.Data, tags ...string) *domdoc.Document {
	t.Helper()
	d, err := domdoc.New(id, tenant, index, data, tags)
	require.NoError(t, err)
	return &d
}

func upsert(t *testing.T, s db.DocumentStore, d *domdoc.Document) domdoc.Document {
	t.Helper()
	out, err := s.UpsertDocument(context.Background(), d)
	require.NoError(t, err)
	return out
}

func ids(docs []domdoc.Document) []string {
	out := make([]string, len(docs))
	for i := range docs {
		out[i] = docs[i].ID()
	}
	return out
}

func testUpsertThenGet(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	data := domdoc.MustData("title", "Hello World", "n", 3, "nested", map[string]any{"b": []any{1, "x"}})
	stored := upsert(t, s, mustDoc(t, "d1", "t", "i", data, "greeting", "a"))
	assert.Equal(t, []string{"a", "greeting"}, stored.Tags())
	assert.False(t, stored.CreatedAt().IsZero())
	assert.True(t, stored.CreatedAt().Equal(stored.UpdatedAt()))

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, got.Data().Equal(data), "data must round-trip")
	assert.Equal(t, []string{"a", "greeting"}, got.Tags())
	assert.Equal(t, "t", got.Tenant())
	assert.Equal(t, "i", got.Index())
	assert.True(t, got.UpdatedAt().Equal(stored.UpdatedAt()))
}

func testUpsertKeepsCreatedAt(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)

	first := upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.MustData("v", 1)))
	second := upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.MustData("v", 2)))

	assert.True(t, second.CreatedAt().Equal(first.CreatedAt()), "createdAt must not change")
	assert.True(t, second.UpdatedAt().After(first.UpdatedAt()), "updatedAt must advance")

	got, err := s.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Data().Text("v"))
}

func testUpsertDiffsTags(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.Data{}, "a", "b"))
	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.Data{}, "b", "c"))

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got.Tags())

	byA, err := s.GetDocumentsByTags(ctx, []string{"a"}, "t", "", 10)
	require.NoError(t, err)
	assert.Empty(t, byA)

	byC, err := s.GetDocumentsByTags(ctx, []string{"c"}, "t", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids(byC))

	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.Data{}))
	got, err = s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, got.Tags())
}

func testUpsertConflictingScope(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.MustData("v", "original"), "x"))

	_, err := s.UpsertDocument(ctx, mustDoc(t, "d1", "other", "i", domdoc.MustData("v", "hijack")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDocumentConflict), "got %v", err)

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Data().Text("v"))
	assert.Equal(t, "t", got.Tenant())
}

func testGetDocumentNotFound(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func testGetDocumentsOrdering(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	for i := range 5 {
		upsert(t, s, mustDoc(t, fmt.Sprintf("d%d", i), "t", "i", domdoc.Data{}))
	}
	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.MustData("touched", true)))

	docs, err := s.GetDocuments(ctx, "t", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d4", "d3", "d2", "d0"}, ids(docs))
	for i := 1; i < len(docs); i++ {
		assert.False(t, docs[i].UpdatedAt().After(docs[i-1].UpdatedAt()), "updatedAt must be non-increasing")
	}

	limited, err := s.GetDocuments(ctx, "t", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d4"}, ids(limited))
}

func testGetDocumentsTieBreak(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Freeze())
	for _, id := range []string{"b", "c", "a"} {
		upsert(t, s, mustDoc(t, id, "t", "i", domdoc.Data{}, "x"))
	}

	docs, err := s.GetDocuments(context.Background(), "t", "i", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(docs))

	tagged, err := s.GetDocumentsByTags(context.Background(), []string{"x"}, "t", "i", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(tagged))
}

func testGetDocumentsScope(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	upsert(t, s, mustDoc(t, "a1", "tA", "i1", domdoc.Data{}))
	upsert(t, s, mustDoc(t, "a2", "tA", "i2", domdoc.Data{}))
	upsert(t, s, mustDoc(t, "b1", "tB", "i1", domdoc.Data{}))

	all, err := s.GetDocuments(ctx, "tA", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, ids(all))

	idx, err := s.GetDocuments(ctx, "tA", "i1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids(idx))

	none, err := s.GetDocuments(ctx, "tC", "", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testGetDocumentsByTagsSuperset(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	upsert(t, s, mustDoc(t, "ab", "t", "i", domdoc.Data{}, "a", "b"))
	upsert(t, s, mustDoc(t, "abc", "t", "i", domdoc.Data{}, "a", "b", "c"))
	upsert(t, s, mustDoc(t, "a", "t", "i", domdoc.Data{}, "a"))
	upsert(t, s, mustDoc(t, "ab-other", "u", "i", domdoc.Data{}, "a", "b"))

	want := []string{"a", "b"}
	docs, err := s.GetDocumentsByTags(ctx, want, "t", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "ab"}, ids(docs))
	for i := range docs {
		assert.True(t, docs[i].HasTags(want), "%s must carry %v", docs[i].ID(), want)
	}

	dup, err := s.GetDocumentsByTags(ctx, []string{"a", "a", "b"}, "t", "", 10)
	require.NoError(t, err)
	assert.Equal(t, ids(docs), ids(dup), "duplicate tags must not change AND semantics")

	limited, err := s.GetDocumentsByTags(ctx, want, "t", "i", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, ids(limited))
}

func testGetDocumentsByTagsScenario(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.MustData("title", "Hello World"), "greeting"))

	hit, err := s.GetDocumentsByTags(ctx, []string{"greeting"}, "t", "", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids(hit))

	miss, err := s.GetDocumentsByTags(ctx, []string{"other"}, "t", "", 100)
	require.NoError(t, err)
	assert.Empty(t, miss)
}

func testDeleteDocument(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.Data{}, "x"))
	upsert(t, s, mustDoc(t, "d2", "t", "i", domdoc.Data{}, "x"))

	require.NoError(t, s.DeleteDocument(ctx, "d1"))
	require.NoError(t, s.DeleteDocument(ctx, "d1"), "delete must be idempotent")
	require.NoError(t, s.DeleteDocument(ctx, "never-existed"))

	_, err := s.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	docs, err := s.GetDocuments(ctx, "t", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, ids(docs))

	tagged, err := s.GetDocumentsByTags(ctx, []string{"x"}, "t", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, ids(tagged))
}

func testGetTags(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.Data{}, "b", "a"))
	upsert(t, s, mustDoc(t, "d2", "u", "j", domdoc.Data{}, "c", "a"))

	tags, err := s.GetTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tags)

	require.NoError(t, s.DeleteDocument(ctx, "d2"))
	tags, err = s.GetTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags, "tags of deleted documents leave the vocabulary")
}

func testMigrationsIdempotent(t *testing.T, newStore Factory) {
	s := newStore(t, NewClock().Now)
	ctx := context.Background()

	up := s.RunMigrations(ctx, false)
	require.True(t, up.Success, up.Error)
	assert.Equal(t, db.DirectionUp, up.Direction)

	upsert(t, s, mustDoc(t, "d1", "t", "i", domdoc.Data{}, "x"))

	again := s.RunMigrations(ctx, false)
	require.True(t, again.Success, again.Error)
	_, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err, "re-running up must keep data")

	down := s.RunMigrations(ctx, true)
	require.True(t, down.Success, down.Error)
	assert.Equal(t, db.DirectionDown, down.Direction)
	downAgain := s.RunMigrations(ctx, true)
	require.True(t, downAgain.Success, downAgain.Error)

	restored := s.RunMigrations(ctx, false)
	require.True(t, restored.Success, restored.Error)
	docs, err := s.GetDocuments(ctx, "t", "", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
