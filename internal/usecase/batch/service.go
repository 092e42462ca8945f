package batch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/domain"
	dombatch "github.com/kailas-cloud/docsearch/internal/domain/batch"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// MaxBatchSize is the default maximum number of items per bulk request.
const MaxBatchSize = 100

// Service upserts documents in bulk with per-item results.
type Service struct {
	docs         DocumentUpserter
	windows      WindowInvalidator
	pool         Submitter
	logger       *zap.Logger
	maxBatchSize int
}

// New creates a bulk service. Without a pool items are upserted sequentially.
func New(docs DocumentUpserter, windows WindowInvalidator, pool Submitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		docs: docs, windows: windows, pool: pool, logger: logger,
		maxBatchSize: MaxBatchSize,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// MaxBatchSize returns the configured limit.
func (s *Service) MaxBatchSize() int { return s.maxBatchSize }

// Upsert stores every item independently; one failing item does not stop the
// others. Results are in input order. Each tenant touched by at least one
// successful item has its windows invalidated once.
func (s *Service) Upsert(ctx context.Context, items []domdoc.Document) ([]dombatch.Result, error) {
	if len(items) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d items exceed %d", domain.ErrBatchTooLarge, len(items), s.maxBatchSize)
	}

	results := make([]dombatch.Result, len(items))
	var wg sync.WaitGroup
	for i := range items {
		task := func() { results[i] = s.upsertOne(ctx, &items[i]) }
		if s.pool == nil {
			task()
			continue
		}
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			task()
		}); err != nil {
			wg.Done()
			results[i] = dombatch.NewError(items[i].ID(), fmt.Errorf("submit: %w", err))
		}
	}
	wg.Wait()

	s.invalidate(ctx, results)
	if failed := dombatch.Failed(results); failed > 0 {
		s.logger.Warn("bulk upsert finished with failures",
			zap.Int("items", len(items)), zap.Int("failed", failed))
	}
	return results, nil
}

func (s *Service) upsertOne(ctx context.Context, doc *domdoc.Document) dombatch.Result {
	if err := ctx.Err(); err != nil {
		return dombatch.NewError(doc.ID(), err)
	}
	stored, err := s.docs.UpsertDocument(ctx, doc)
	if err != nil {
		return dombatch.NewError(doc.ID(), fmt.Errorf("upsert: %w", err))
	}
	return dombatch.NewOK(stored)
}

func (s *Service) invalidate(ctx context.Context, results []dombatch.Result) {
	if s.windows == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, r := range results {
		doc := r.Document()
		if doc == nil {
			continue
		}
		if _, ok := seen[doc.Tenant()]; ok {
			continue
		}
		seen[doc.Tenant()] = struct{}{}
		s.windows.Invalidate(ctx, doc.Tenant())
	}
}
