package db

import (
	"context"

	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// DocumentStore is the storage contract every backend implements.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type DocumentStore interface {
	Pinger
	DocumentReader
	TagReader
	DocumentWriter
	Migrator
	Close() error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentReader reads documents by scope, tags or id.
type DocumentReader interface {
	// GetDocuments returns documents of tenant (and index when non-empty),
	// most recently updated first, ties broken by id descending.
	GetDocuments(ctx context.Context, tenant, index string, limit int) ([]domdoc.Document, error)
	// GetDocumentsByTags returns documents carrying every tag in tags, ordered like GetDocuments.
	GetDocumentsByTags(ctx context.Context, tags []string, tenant, index string, limit int) ([]domdoc.Document, error)
	// GetDocument returns domain.ErrDocumentNotFound for unknown ids.
	GetDocument(ctx context.Context, id string) (domdoc.Document, error)
}

// TagReader lists the tag vocabulary.
type TagReader interface {
	GetTags(ctx context.Context) ([]string, error)
}

// DocumentWriter mutates documents and their tag associations.
type DocumentWriter interface {
	// UpsertDocument inserts or updates doc and diffs its tag associations.
	// Returns the stored document with resolved timestamps.
	UpsertDocument(ctx context.Context, doc *domdoc.Document) (domdoc.Document, error)
	// DeleteDocument removes the document and its tags. Unknown ids are not an error.
	DeleteDocument(ctx context.Context, id string) error
}

// Migrator manages the backend schema.
type Migrator interface {
	// RunMigrations applies (down=false) or reverts (down=true) the schema.
	// Failures are reported in the result, never as a Go error.
	RunMigrations(ctx context.Context, down bool) MigrationResult
}

// MigrationResult reports the outcome of a schema change.
type MigrationResult struct {
	Success   bool     `json:"success"`
	Direction string   `json:"direction"`
	Backend   string   `json:"backend"`
	Applied   []string `json:"applied,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Migration directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Direction maps the down flag to its name.
func Direction(down bool) string {
	if down {
		return DirectionDown
	}
	return DirectionUp
}

// MigrationOK builds a successful result.
func MigrationOK(backend string, down bool, applied []string) MigrationResult {
	return MigrationResult{Success: true, Direction: Direction(down), Backend: backend, Applied: applied}
}

// MigrationFailed builds a failed result keeping the steps applied before the failure.
func MigrationFailed(backend string, down bool, applied []string, err error) MigrationResult {
	return MigrationResult{
		Success: false, Direction: Direction(down), Backend: backend,
		Applied: applied, Error: err.Error(),
	}
}

// Page truncates docs to limit. A non-positive limit returns no documents.
func Page(docs []domdoc.Document, limit int) []domdoc.Document {
	if limit <= 0 {
		return nil
	}
	if len(docs) > limit {
		return docs[:limit]
	}
	return docs
}

// InScope reports whether doc belongs to tenant and, when index is non-empty, to index.
func InScope(doc *domdoc.Document, tenant, index string) bool {
	return doc.Tenant() == tenant && (index == "" || doc.Index() == index)
}
