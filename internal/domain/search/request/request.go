package request

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Query parameter limits.
const (
	// MaxQueryLength is the maximum allowed search term length.
	MaxQueryLength = 4096
	DefaultLimit   = 100
	MaxLimit       = 1000
	MaxFields      = 64
	// MaxFuzzy is the largest edit distance a term may be expanded by.
	MaxFuzzy = 2
)

// Params are the raw query inputs.
type Params struct {
	Tenant string
	Index  string
	Term   string
	Fields []string
	Tags   []string
	Limit  int
	After  string
	// Fuzzy below 1 is a fraction of the token length, otherwise an edit distance.
	Fuzzy  float64
	Prefix bool
	Exact  bool
}

// Request is a validated full-text query.
type Request struct {
	tenant string
	index  string
	term   string
	fields []string
	tags   []string
	limit  int
	after  string
	fuzzy  float64
	prefix bool
	exact  bool
}

// New validates and normalizes search parameters.
// Defaults: limit=100, all top-level fields. Limit is clamped to MaxLimit.
func New(p Params) (Request, error) {
	if p.Term == "" {
		return Request{}, fmt.Errorf("%w: term is required", domain.ErrInvalidRequest)
	}
	if len(p.Term) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: term too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	l, err := NewList(p.Tenant, p.Index, p.Tags, p.Limit, p.After)
	if err != nil {
		return Request{}, err
	}
	if len(p.Fields) > MaxFields {
		return Request{}, fmt.Errorf("%w: too many fields (max %d)", domain.ErrInvalidRequest, MaxFields)
	}
	if p.Fuzzy < 0 || math.IsNaN(p.Fuzzy) {
		return Request{}, fmt.Errorf("%w: fuzzy must not be negative", domain.ErrInvalidRequest)
	}
	if p.Fuzzy >= 1 && p.Fuzzy != math.Trunc(p.Fuzzy) {
		return Request{}, fmt.Errorf("%w: fuzzy must be a fraction below 1 or a whole edit distance",
			domain.ErrInvalidRequest)
	}

	return Request{
		tenant: l.tenant,
		index:  l.index,
		term:   p.Term,
		fields: compactFields(p.Fields),
		tags:   l.tags,
		limit:  l.limit,
		after:  l.after,
		fuzzy:  min(p.Fuzzy, MaxFuzzy),
		prefix: p.Prefix,
		exact:  p.Exact,
	}, nil
}

// Tenant returns the tenant scope.
func (r *Request) Tenant() string { return r.tenant }

// Index returns the index scope; empty means every index of the tenant.
func (r *Request) Index() string { return r.index }

// Term returns the search term.
func (r *Request) Term() string { return r.term }

// Fields returns the data fields to search; empty means all top-level fields.
func (r *Request) Fields() []string { return r.fields }

// Tags returns the normalized tag filter.
func (r *Request) Tags() []string { return r.tags }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }

// After returns the pagination cursor.
func (r *Request) After() string { return r.after }

// Fuzzy returns the fuzziness setting.
func (r *Request) Fuzzy() float64 { return r.fuzzy }

// Prefix reports whether the last token also matches as a prefix.
func (r *Request) Prefix() bool { return r.prefix }

// Exact reports whether every token must match.
func (r *Request) Exact() bool { return r.exact }

// List returns the scope and paging part of the request.
func (r *Request) List() ListRequest {
	return ListRequest{tenant: r.tenant, index: r.index, tags: r.tags, limit: r.limit, after: r.after}
}

func compactFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// ListRequest is a validated recent-documents listing, optionally tag-filtered.
type ListRequest struct {
	tenant string
	index  string
	tags   []string
	limit  int
	after  string
}

// NewList validates listing parameters.
func NewList(tenant, index string, tags []string, limit int, after string) (ListRequest, error) {
	if tenant == "" {
		return ListRequest{}, fmt.Errorf("%w: tenant is required", domain.ErrInvalidRequest)
	}
	if len(tenant) > domdoc.MaxScopeLength || len(index) > domdoc.MaxScopeLength {
		return ListRequest{}, fmt.Errorf("%w: tenant and index must be at most %d bytes",
			domain.ErrInvalidRequest, domdoc.MaxScopeLength)
	}
	normalized := domdoc.NormalizeTags(tags)
	if len(normalized) > domdoc.MaxTags {
		return ListRequest{}, fmt.Errorf("%w: too many tags (max %d)", domain.ErrInvalidRequest, domdoc.MaxTags)
	}
	if len(normalized) > 0 && normalized[0] == "" {
		return ListRequest{}, fmt.Errorf("%w: tags must not be empty", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return ListRequest{tenant: tenant, index: index, tags: normalized, limit: limit, after: after}, nil
}

// Tenant returns the tenant scope.
func (r *ListRequest) Tenant() string { return r.tenant }

// Index returns the index scope.
func (r *ListRequest) Index() string { return r.index }

// Tags returns the normalized tag filter.
func (r *ListRequest) Tags() []string { return r.tags }

// Limit returns the page size.
func (r *ListRequest) Limit() int { return r.limit }

// After returns the pagination cursor.
func (r *ListRequest) After() string { return r.after }
