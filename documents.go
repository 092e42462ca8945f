package docsearch

import (
	"context"
	"fmt"

	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	batchuc "github.com/kailas-cloud/docsearch/internal/usecase/batch"
	documentuc "github.com/kailas-cloud/docsearch/internal/usecase/document"
)

// DocumentService writes and looks up documents across tenants.
type DocumentService struct {
	docs *documentuc.Service
	bulk *batchuc.Service
}

// Upsert creates or replaces a document and returns it with store timestamps.
// An id owned by another tenant or index fails with ErrDocumentConflict.
func (s *DocumentService) Upsert(ctx context.Context, doc Document) (Document, error) {
	d, err := toInternalDocument(&doc)
	if err != nil {
		return Document{}, fmt.Errorf("upsert: %w: %w", ErrInvalidRequest, err)
	}
	stored, err := s.docs.Upsert(ctx, &d)
	if err != nil {
		return Document{}, fmt.Errorf("upsert: %w", err)
	}
	return fromInternalDocument(&stored), nil
}

// BulkUpsert stores every document independently. Results follow input order.
func (s *DocumentService) BulkUpsert(ctx context.Context, docs []Document) ([]BulkResult, error) {
	items := make([]domdoc.Document, len(docs))
	for i := range docs {
		d, err := toInternalDocument(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("bulk upsert: item %d: %w: %w", i, ErrInvalidRequest, err)
		}
		items[i] = d
	}

	results, err := s.bulk.Upsert(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("bulk upsert: %w", err)
	}
	out := make([]BulkResult, len(results))
	for i, r := range results {
		out[i] = fromInternalBulk(r)
	}
	return out, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (Document, error) {
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return fromInternalDocument(&d), nil
}

// Delete removes a document. Deleting an unknown ID succeeds.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Tags returns every tag in use, sorted.
func (s *DocumentService) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.docs.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	return tags, nil
}
