package mongodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Compile-time check: Store implements db.DocumentStore.
var _ db.DocumentStore = (*Store)(nil)

const (
	backendName       = "mongo"
	defaultCollection = "documents"
	defaultTimeout    = 10 * time.Second
)

// Config holds connection parameters for a MongoDB store.
type Config struct {
	URI        string
	Database   string
	Collection string
	// Timeout bounds the initial connect and ping.
	Timeout time.Duration
	Now     func() time.Time
}

// Store implements db.DocumentStore on one MongoDB collection. Tags are
// embedded in the document, so every write touches a single document and
// is atomic without a transaction.
type Store struct {
	client *mongo.Client
	col    *mongo.Collection
	now    func() time.Time
}

// NewStore connects, pings and returns the store.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, db.Wrap(db.OpOpen, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, db.Wrap(db.OpPing, err)
	}

	return newStore(client, client.Database(cfg.Database).Collection(collection), cfg.Now), nil
}

func newStore(client *mongo.Client, col *mongo.Collection, now func() time.Time) *Store {
	if now == nil {
		now = domdoc.Now
	}
	return &Store{client: client, col: col, now: now}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return db.Wrap(db.OpPing, s.client.Ping(ctx, nil))
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// GetDocuments returns the most recently updated documents in scope.
func (s *Store) GetDocuments(ctx context.Context, tenant, index string, limit int) ([]domdoc.Document, error) {
	if limit <= 0 {
		return []domdoc.Document{}, nil
	}
	docs, err := s.find(ctx, scopeFilter(tenant, index), limit)
	if err != nil {
		return nil, db.Wrap(db.OpGetDocuments, err)
	}
	return docs, nil
}

// GetDocumentsByTags matches documents whose tags array contains every requested tag.
func (s *Store) GetDocumentsByTags(
	ctx context.Context, tags []string, tenant, index string, limit int,
) ([]domdoc.Document, error) {
	want := domdoc.NormalizeTags(tags)
	if len(want) == 0 || limit <= 0 {
		return []domdoc.Document{}, nil
	}
	docs, err := s.find(ctx, tagFilter(want, tenant, index), limit)
	if err != nil {
		return nil, db.Wrap(db.OpGetByTags, err)
	}
	return docs, nil
}

func (s *Store) find(ctx context.Context, filter bson.D, limit int) ([]domdoc.Document, error) {
	cur, err := s.col.Find(ctx, filter, findOptions(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	out := make([]domdoc.Document, 0)
	for cur.Next(ctx) {
		var m mongoDocument
		if err := cur.Decode(&m); err != nil {
			return nil, db.Wrap(db.OpDecode, err)
		}
		d, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, cur.Err()
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (domdoc.Document, error) {
	var m mongoDocument
	err := s.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpGetDocument, err)
	}
	return m.toDomain()
}

// UpsertDocument matches on id, tenant and index with upsert enabled. When
// the id exists under another scope the filter misses, the implied insert
// collides on _id, and the duplicate key error becomes a conflict.
func (s *Store) UpsertDocument(ctx context.Context, doc *domdoc.Document) (domdoc.Document, error) {
	data, err := doc.Data().MarshalJSON()
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpEncode, err)
	}
	now := domdoc.Truncate(s.now()).UnixMicro()

	filter := bson.D{
		{Key: "_id", Value: doc.ID()},
		{Key: fieldTenant, Value: doc.Tenant()},
		{Key: fieldIndex, Value: doc.Index()},
	}
	update := upsertUpdate(string(data), doc.Tags(), now)
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var m mongoDocument
	err = s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if mongo.IsDuplicateKeyError(err) {
		return domdoc.Document{}, s.conflict(ctx, doc.ID())
	}
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, err)
	}
	return m.toDomain()
}

func (s *Store) conflict(ctx context.Context, id string) error {
	var owner mongoDocument
	err := s.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(bson.D{{Key: fieldTenant, Value: 1}, {Key: fieldIndex, Value: 1}}),
	).Decode(&owner)
	if err != nil {
		return domain.NewConflict(id, "", "")
	}
	return domain.NewConflict(id, owner.Tenant, owner.Index)
}

// DeleteDocument removes the document. Unknown ids are not an error.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return db.Wrap(db.OpDelete, err)
}

// GetTags returns the distinct tags over all documents.
func (s *Store) GetTags(ctx context.Context) ([]string, error) {
	vals, err := s.col.Distinct(ctx, fieldTags, bson.D{})
	if err != nil {
		return nil, db.Wrap(db.OpGetTags, err)
	}
	return distinctStrings(vals), nil
}

func distinctStrings(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
