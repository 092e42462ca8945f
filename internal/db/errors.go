package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrClosed      = errors.New("db: store is closed")
	ErrUnknownKind = errors.New("db: unknown backend kind")
)

// Op constants name storage operations for error context.
const (
	OpPing         = "PING"
	OpGetDocuments = "GET_DOCUMENTS"
	OpGetByTags    = "GET_DOCUMENTS_BY_TAGS"
	OpGetDocument  = "GET_DOCUMENT"
	OpUpsert       = "UPSERT_DOCUMENT"
	OpDelete       = "DELETE_DOCUMENT"
	OpGetTags      = "GET_TAGS"
	OpMigrate      = "MIGRATE"
	OpDecode       = "DECODE"
	OpEncode       = "ENCODE"
	OpOpen         = "OPEN"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, otherwise an *Error tagged with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
