package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentConflict signals an id already owned by another tenant or index.
	ErrDocumentConflict = errors.New("document id belongs to another scope")
	// ErrInvalidCursor signals a pagination cursor that is malformed or no longer resolvable.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrInvalidRequest signals a malformed query or document body.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrBatchTooLarge signals a bulk request above the configured limit.
	ErrBatchTooLarge = errors.New("batch too large")
)

// ConflictError wraps ErrDocumentConflict with the scope that owns the id.
type ConflictError struct {
	ID     string
	Tenant string
	Index  string
}

func (e *ConflictError) Error() string {
	if e.Tenant == "" {
		return fmt.Sprintf("%s: %q", ErrDocumentConflict.Error(), e.ID)
	}
	return fmt.Sprintf("%s: %q is owned by %s/%s", ErrDocumentConflict.Error(), e.ID, e.Tenant, e.Index)
}

func (e *ConflictError) Unwrap() error { return ErrDocumentConflict }

// NewConflict creates a conflict error. Owner scope may be empty when the backend cannot report it.
func NewConflict(id, tenant, index string) error {
	return &ConflictError{ID: id, Tenant: tenant, Index: index}
}
