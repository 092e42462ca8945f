package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Compile-time check: Store implements db.DocumentStore.
var _ db.DocumentStore = (*Store)(nil)

const backendName = "badger"

// Config holds parameters for an embedded Badger store.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *zap.Logger
	Now      func() time.Time
}

// Store implements db.DocumentStore on an embedded Badger database.
// Every document is a JSON record under doc/<id>; ordering and tag keys
// are secondary indexes maintained in the same transaction.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// zapAdapter adapts zap to the badger.Logger interface.
type zapAdapter struct {
	log *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, items ...any)   { a.log.Errorf(msg, items...) }
func (a *zapAdapter) Warningf(msg string, items ...any) { a.log.Warnf(msg, items...) }
func (a *zapAdapter) Infof(msg string, items ...any)    { a.log.Debugf(msg, items...) }
func (a *zapAdapter) Debugf(msg string, items ...any)   { a.log.Debugf(msg, items...) }

// NewStore opens the database, creating the data directory if needed.
func NewStore(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, db.Wrap(db.OpOpen, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Compression = options.None
	if cfg.Logger != nil {
		opts.Logger = &zapAdapter{log: cfg.Logger.Named("badger").Sugar()}
	} else {
		opts.Logger = nil
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, db.Wrap(db.OpOpen, err)
	}

	now := cfg.Now
	if now == nil {
		now = domdoc.Now
	}
	return &Store{db: bdb, now: now}, nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return db.Wrap(db.OpPing, db.ErrClosed)
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

// GetDocuments walks the tenant (or tenant+index) ordering keys newest first.
func (s *Store) GetDocuments(ctx context.Context, tenant, index string, limit int) ([]domdoc.Document, error) {
	if limit <= 0 {
		return []domdoc.Document{}, nil
	}
	prefix := tenantScanPrefix(tenant)
	if index != "" {
		prefix = indexScanPrefix(tenant, index)
	}

	out := make([]domdoc.Document, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanRecent(ctx, txn, prefix, func(id string) (bool, error) {
			rec, err := getRecord(txn, id)
			if err != nil {
				return false, err
			}
			out = append(out, domdoc.FromRecord(&rec))
			return len(out) < limit, nil
		})
	})
	if err != nil {
		return nil, db.Wrap(db.OpGetDocuments, err)
	}
	return out, nil
}

// GetDocumentsByTags walks the ordering keys of the scope newest first and keeps
// documents carrying every requested tag. Tag membership is checked on the
// association keys so the record is only decoded for matches.
func (s *Store) GetDocumentsByTags(
	ctx context.Context, tags []string, tenant, index string, limit int,
) ([]domdoc.Document, error) {
	want := domdoc.NormalizeTags(tags)
	if len(want) == 0 || limit <= 0 {
		return []domdoc.Document{}, nil
	}
	prefix := tenantScanPrefix(tenant)
	if index != "" {
		prefix = indexScanPrefix(tenant, index)
	}

	out := make([]domdoc.Document, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanRecent(ctx, txn, prefix, func(id string) (bool, error) {
			ok, err := hasAllTags(txn, id, want)
			if err != nil || !ok {
				return true, err
			}
			rec, err := getRecord(txn, id)
			if err != nil {
				return false, err
			}
			out = append(out, domdoc.FromRecord(&rec))
			return len(out) < limit, nil
		})
	})
	if err != nil {
		return nil, db.Wrap(db.OpGetByTags, err)
	}
	return out, nil
}

// scanRecent iterates ordering keys under prefix in descending (updatedAt, id)
// order and calls fn with each id until fn returns false.
func scanRecent(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(id string) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := fn(idFromOrderKey(prefix, it.Item().Key()))
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func hasAllTags(txn *badger.Txn, id string, want []string) (bool, error) {
	for _, t := range want {
		_, err := txn.Get(tagKey(t, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(_ context.Context, id string) (domdoc.Document, error) {
	var rec domdoc.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpGetDocument, err)
	}
	return domdoc.FromRecord(&rec), nil
}

func getRecord(txn *badger.Txn, id string) (domdoc.Record, error) {
	var rec domdoc.Record
	item, err := txn.Get(docKey(id))
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, db.Wrap(db.OpDecode, fmt.Errorf("document %s: %w", id, err))
	}
	return rec, nil
}

// UpsertDocument writes the record and its index keys in one transaction.
// Badger transactions are optimistic: a concurrent write to the same keys
// fails the commit with badger.ErrConflict and nothing is applied.
func (s *Store) UpsertDocument(_ context.Context, doc *domdoc.Document) (domdoc.Document, error) {
	now := domdoc.Truncate(s.now())
	var stored domdoc.Document

	err := s.db.Update(func(txn *badger.Txn) error {
		createdAt := now
		var current []string

		existing, err := getRecord(txn, doc.ID())
		switch {
		case err == nil:
			if existing.Tenant != doc.Tenant() || existing.Index != doc.Index() {
				return domain.NewConflict(doc.ID(), existing.Tenant, existing.Index)
			}
			createdAt = existing.CreatedAt
			current = existing.Tags
			if err := deleteOrderKeys(txn, &existing); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		stored = domdoc.Reconstruct(doc.ID(), doc.Tenant(), doc.Index(), doc.Data(), doc.Tags(), createdAt, now)
		rec := domdoc.ToRecord(&stored)
		val, err := json.Marshal(rec)
		if err != nil {
			return db.Wrap(db.OpEncode, err)
		}
		if err := txn.Set(docKey(doc.ID()), val); err != nil {
			return err
		}
		if err := txn.Set(orderKey(tenantScanPrefix(rec.Tenant), now, rec.ID), nil); err != nil {
			return err
		}
		if err := txn.Set(orderKey(indexScanPrefix(rec.Tenant, rec.Index), now, rec.ID), nil); err != nil {
			return err
		}

		added, removed := domdoc.DiffTags(current, doc.Tags())
		for _, t := range removed {
			if err := txn.Delete(tagKey(t, doc.ID())); err != nil {
				return err
			}
		}
		for _, t := range added {
			if err := txn.Set(tagKey(t, doc.ID()), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrDocumentConflict) {
		return domdoc.Document{}, err
	}
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, err)
	}
	return stored, nil
}

func deleteOrderKeys(txn *badger.Txn, rec *domdoc.Record) error {
	if err := txn.Delete(orderKey(tenantScanPrefix(rec.Tenant), rec.UpdatedAt, rec.ID)); err != nil {
		return err
	}
	return txn.Delete(orderKey(indexScanPrefix(rec.Tenant, rec.Index), rec.UpdatedAt, rec.ID))
}

// DeleteDocument removes the record and every index key pointing at it.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := deleteOrderKeys(txn, &rec); err != nil {
			return err
		}
		for _, t := range rec.Tags {
			if err := txn.Delete(tagKey(t, id)); err != nil {
				return err
			}
		}
		return txn.Delete(docKey(id))
	})
	return db.Wrap(db.OpDelete, err)
}

// GetTags lists distinct tags from the association keys, already in byte order.
func (s *Store) GetTags(_ context.Context) ([]string, error) {
	out := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(tagPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			t := tagFromKey(it.Item().Key())
			if len(out) == 0 || out[len(out)-1] != t {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, db.Wrap(db.OpGetTags, err)
	}
	return out, nil
}

// RunMigrations writes the schema marker on up; down drops every key prefix.
func (s *Store) RunMigrations(_ context.Context, down bool) db.MigrationResult {
	if down {
		if err := s.db.DropPrefix(allPrefixes...); err != nil {
			return db.MigrationFailed(backendName, down, nil, db.Wrap(db.OpMigrate, err))
		}
		return db.MigrationOK(backendName, down, []string{"drop all prefixes"})
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaVersionKey), []byte(schemaVersion))
	})
	if err != nil {
		return db.MigrationFailed(backendName, down, nil, db.Wrap(db.OpMigrate, err))
	}
	return db.MigrationOK(backendName, down, []string{"set schema version " + schemaVersion})
}
