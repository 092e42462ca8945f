package batch

import (
	"context"

	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// DocumentUpserter creates or updates a document in storage.
type DocumentUpserter interface {
	UpsertDocument(ctx context.Context, doc *domdoc.Document) (domdoc.Document, error)
}

// WindowInvalidator drops cached candidate windows of a tenant.
type WindowInvalidator interface {
	Invalidate(ctx context.Context, tenant string)
}

// Submitter runs tasks on a bounded worker pool (*ants.Pool).
type Submitter interface {
	Submit(task func()) error
}
