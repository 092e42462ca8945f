package docsearch

import (
	"time"

	"github.com/kailas-cloud/docsearch/internal/db"
	dombatch "github.com/kailas-cloud/docsearch/internal/domain/batch"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	"github.com/kailas-cloud/docsearch/internal/domain/search/result"
	"github.com/kailas-cloud/docsearch/internal/pagination"
)

// Data is an ordered JSON object. Keys keep their insertion order through
// storage and serialization.
type Data = domdoc.Data

// NewData builds Data from alternating keys and values.
func NewData(pairs ...any) (Data, error) { return domdoc.NewData(pairs...) }

// ParseData decodes a JSON object keeping key order.
func ParseData(raw []byte) (Data, error) { return domdoc.ParseData(raw) }

// MigrationResult reports the outcome of a schema change.
type MigrationResult = db.MigrationResult

// Document is a schemaless payload owned by a tenant and optionally grouped
// into an index. CreatedAt and UpdatedAt are set by the store.
type Document struct {
	ID        string
	Tenant    string
	Index     string
	Data      Data
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result is a ranked or listed document. Terms and Match are empty for listings.
type Result struct {
	Document Document
	Score    float64
	// Terms are the query terms that matched, sorted.
	Terms []string
	// Match maps each matched term to the data fields it was found in.
	Match map[string][]string
}

// Page is one page of results.
type Page struct {
	Results     []Result
	HasNextPage bool
	// EndCursor resumes after the last result. Empty on an empty page.
	EndCursor string
}

// Suggestion is an autocomplete candidate built from matched terms.
type Suggestion struct {
	Text  string
	Score float64
	Terms []string
}

// BulkResult is the outcome of one BulkUpsert item.
type BulkResult struct {
	ID       string
	Document *Document
	Err      error
}

func toInternalDocument(d *Document) (domdoc.Document, error) {
	return domdoc.New(d.ID, d.Tenant, d.Index, d.Data, d.Tags)
}

func fromInternalDocument(d *domdoc.Document) Document {
	return Document{
		ID:        d.ID(),
		Tenant:    d.Tenant(),
		Index:     d.Index(),
		Data:      d.Data(),
		Tags:      d.Tags(),
		CreatedAt: d.CreatedAt(),
		UpdatedAt: d.UpdatedAt(),
	}
}

func fromInternalResult(r *result.Result) Result {
	doc := r.Document()
	return Result{
		Document: fromInternalDocument(&doc),
		Score:    r.Score(),
		Terms:    r.Terms(),
		Match:    r.Match(),
	}
}

func fromInternalPage(results []result.Result, info pagination.PageInfo) Page {
	p := Page{Results: make([]Result, len(results)), HasNextPage: info.HasNextPage}
	for i := range results {
		p.Results[i] = fromInternalResult(&results[i])
	}
	if info.EndCursor != nil {
		p.EndCursor = *info.EndCursor
	}
	return p
}

func fromInternalBulk(r dombatch.Result) BulkResult {
	out := BulkResult{ID: r.ID(), Err: r.Err()}
	if d := r.Document(); d != nil {
		doc := fromInternalDocument(d)
		out.Document = &doc
	}
	return out
}
