// Package batch holds per-item outcomes of bulk document operations.
package batch

import domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"

// ItemStatus is the processing outcome of a single bulk item.
type ItemStatus string

// Bulk item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of upserting one item of a bulk request.
type Result struct {
	id       string
	status   ItemStatus
	document *domdoc.Document
	err      error
}

// NewOK creates a successful result carrying the stored document.
func NewOK(doc domdoc.Document) Result {
	return Result{id: doc.ID(), status: StatusOK, document: &doc}
}

// NewError creates a failed result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Document returns the stored document, nil on failure.
func (r Result) Document() *domdoc.Document { return r.document }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Failed counts results with StatusError.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.status == StatusError {
			n++
		}
	}
	return n
}
