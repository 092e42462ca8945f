package chi

import (
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	"github.com/kailas-cloud/docsearch/internal/pagination"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeDocumentNotFound ErrorCode = "document_not_found"
	ErrorCodeDocumentConflict ErrorCode = "document_conflict"
	ErrorCodeInvalidCursor    ErrorCode = "invalid_cursor"
	ErrorCodeBatchTooLarge    ErrorCode = "batch_too_large"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// UpsertDocumentRequest is the body of PUT /v1/documents and of each bulk item.
type UpsertDocumentRequest struct {
	ID     string      `json:"id"`
	Tenant string      `json:"tenant"`
	Index  string      `json:"index"`
	Data   domdoc.Data `json:"data"`
	Tags   []string    `json:"tags"`
}

// BulkUpsertRequest is the body of POST /v1/documents/bulk.
type BulkUpsertRequest struct {
	Documents []UpsertDocumentRequest `json:"documents"`
}

// BulkResultItem is the outcome of one bulk item.
type BulkResultItem struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Document *domdoc.Record `json:"document,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

// BulkUpsertResponse lists per-item outcomes in request order.
type BulkUpsertResponse struct {
	Items     []BulkResultItem `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// ResultItem is one ranked or listed document.
type ResultItem struct {
	ID       string              `json:"id"`
	Document domdoc.Record       `json:"document"`
	Score    float64             `json:"score"`
	Terms    []string            `json:"terms"`
	Match    map[string][]string `json:"match"`
}

// ResultPage is the body of search and list responses.
type ResultPage struct {
	Data       []ResultItem        `json:"data"`
	Pagination pagination.PageInfo `json:"pagination"`
}

// SuggestionItem is one autocomplete candidate.
type SuggestionItem struct {
	Text  string   `json:"text"`
	Score float64  `json:"score"`
	Terms []string `json:"terms"`
}

// SuggestResponse is the body of GET /v1/tenants/{tenant}/suggest.
type SuggestResponse struct {
	Data []SuggestionItem `json:"data"`
}

// TagsResponse is the body of GET /v1/tags.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
