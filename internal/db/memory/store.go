package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Compile-time check: Store implements db.DocumentStore.
var _ db.DocumentStore = (*Store)(nil)

const backendName = "memory"

// Store keeps documents and tag associations in process memory.
// Upserts hold the write lock for the whole read-modify-write, so they are atomic.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]domdoc.Document
	tags   map[string]map[string]struct{} // tag -> document ids
	now    func() time.Time
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		docs: make(map[string]domdoc.Document),
		tags: make(map[string]map[string]struct{}),
		now:  domdoc.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return db.ErrClosed
	}
	return nil
}

// Close marks the store closed. Data is kept so a closed store can still be inspected in tests.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// GetDocuments returns the most recently updated documents in scope.
func (s *Store) GetDocuments(_ context.Context, tenant, index string, limit int) ([]domdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domdoc.Document, 0)
	for _, d := range s.docs {
		if db.InScope(&d, tenant, index) {
			out = append(out, d)
		}
	}
	domdoc.SortRecent(out)
	return db.Page(out, limit), nil
}

// GetDocumentsByTags intersects the association sets of every requested tag.
func (s *Store) GetDocumentsByTags(
	_ context.Context, tags []string, tenant, index string, limit int,
) ([]domdoc.Document, error) {
	want := domdoc.NormalizeTags(tags)
	if len(want) == 0 {
		return []domdoc.Document{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Start from the smallest set to keep the intersection cheap.
	sets := make([]map[string]struct{}, 0, len(want))
	for _, t := range want {
		ids, ok := s.tags[t]
		if !ok {
			return []domdoc.Document{}, nil
		}
		sets = append(sets, ids)
	}
	slices.SortFunc(sets, func(a, b map[string]struct{}) int { return len(a) - len(b) })

	out := make([]domdoc.Document, 0)
	for id := range sets[0] {
		if !inAll(id, sets[1:]) {
			continue
		}
		d := s.docs[id]
		if db.InScope(&d, tenant, index) {
			out = append(out, d)
		}
	}
	domdoc.SortRecent(out)
	return db.Page(out, limit), nil
}

func inAll(id string, sets []map[string]struct{}) bool {
	for _, set := range sets {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(_ context.Context, id string) (domdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return d, nil
}

// UpsertDocument inserts or updates doc and diffs its tag associations.
func (s *Store) UpsertDocument(_ context.Context, doc *domdoc.Document) (domdoc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	createdAt := now
	var current []string

	if existing, ok := s.docs[doc.ID()]; ok {
		if existing.Tenant() != doc.Tenant() || existing.Index() != doc.Index() {
			return domdoc.Document{}, domain.NewConflict(doc.ID(), existing.Tenant(), existing.Index())
		}
		createdAt = existing.CreatedAt()
		current = existing.Tags()
	}

	added, removed := domdoc.DiffTags(current, doc.Tags())
	for _, t := range removed {
		s.unlink(t, doc.ID())
	}
	for _, t := range added {
		ids, ok := s.tags[t]
		if !ok {
			ids = make(map[string]struct{})
			s.tags[t] = ids
		}
		ids[doc.ID()] = struct{}{}
	}

	stored := domdoc.Reconstruct(
		doc.ID(), doc.Tenant(), doc.Index(), doc.Data().Clone(), doc.Tags(), createdAt, now,
	)
	s.docs[doc.ID()] = stored
	return stored, nil
}

// DeleteDocument removes the document and its associations.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return nil
	}
	for _, t := range d.Tags() {
		s.unlink(t, id)
	}
	delete(s.docs, id)
	return nil
}

func (s *Store) unlink(tag, id string) {
	ids, ok := s.tags[tag]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(s.tags, tag)
	}
}

// GetTags returns the sorted tag vocabulary.
func (s *Store) GetTags(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tags))
	for t := range s.tags {
		out = append(out, t)
	}
	slices.Sort(out)
	return out, nil
}

// RunMigrations has no schema to create; down clears all data.
func (s *Store) RunMigrations(_ context.Context, down bool) db.MigrationResult {
	if !down {
		return db.MigrationOK(backendName, down, nil)
	}

	s.mu.Lock()
	s.docs = make(map[string]domdoc.Document)
	s.tags = make(map[string]map[string]struct{})
	s.mu.Unlock()
	return db.MigrationOK(backendName, down, []string{"clear documents", "clear tags"})
}
