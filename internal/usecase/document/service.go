package document

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Service handles document writes, lookups and schema lifecycle. Every
// successful write invalidates the cached windows of the document's tenant.
type Service struct {
	store   Store
	windows WindowInvalidator
	logger  *zap.Logger
}

// New creates a document service. windows may be nil when no cache is configured.
func New(store Store, windows WindowInvalidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, windows: windows, logger: logger}
}

// Upsert creates or updates a document and returns it with resolved timestamps.
func (s *Service) Upsert(ctx context.Context, doc *domdoc.Document) (domdoc.Document, error) {
	stored, err := s.store.UpsertDocument(ctx, doc)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("upsert document: %w", err)
	}
	s.invalidate(ctx, stored.Tenant())
	return stored, nil
}

// Get retrieves a document by ID.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	if id == "" {
		return domdoc.Document{}, fmt.Errorf("%w: id is required", domain.ErrInvalidRequest)
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes a document. Deleting an unknown ID succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", domain.ErrInvalidRequest)
	}
	// The tenant is needed to invalidate its windows.
	doc, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.invalidate(ctx, doc.Tenant())
	return nil
}

// Tags returns the tag vocabulary, sorted.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.store.GetTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	return tags, nil
}

// Migrate applies or reverts the backend schema. Failures are part of the result.
func (s *Service) Migrate(ctx context.Context, down bool) db.MigrationResult {
	res := s.store.RunMigrations(ctx, down)
	if !res.Success {
		s.logger.Error("migration failed",
			zap.String("backend", res.Backend),
			zap.String("direction", res.Direction),
			zap.Strings("applied", res.Applied),
			zap.String("error", res.Error),
		)
		return res
	}
	s.logger.Info("migration applied",
		zap.String("backend", res.Backend),
		zap.String("direction", res.Direction),
		zap.Strings("applied", res.Applied),
	)
	return res
}

func (s *Service) invalidate(ctx context.Context, tenant string) {
	if s.windows != nil {
		s.windows.Invalidate(ctx, tenant)
	}
}
