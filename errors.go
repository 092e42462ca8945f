package docsearch

import "github.com/kailas-cloud/docsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDocumentNotFound = domain.ErrDocumentNotFound
	ErrDocumentConflict = domain.ErrDocumentConflict
	ErrInvalidCursor    = domain.ErrInvalidCursor
	ErrInvalidRequest   = domain.ErrInvalidRequest
	ErrBatchTooLarge    = domain.ErrBatchTooLarge
)
