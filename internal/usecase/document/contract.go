package document

import (
	"context"

	"github.com/kailas-cloud/docsearch/internal/db"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Store is the storage contract for single-document operations.
type Store interface {
	GetDocument(ctx context.Context, id string) (domdoc.Document, error)
	UpsertDocument(ctx context.Context, doc *domdoc.Document) (domdoc.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	GetTags(ctx context.Context) ([]string, error)
	RunMigrations(ctx context.Context, down bool) db.MigrationResult
}

// WindowInvalidator drops cached candidate windows of a tenant.
type WindowInvalidator interface {
	Invalidate(ctx context.Context, tenant string)
}
