package docsearch

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docsearch/internal/domain/search/request"
	searchuc "github.com/kailas-cloud/docsearch/internal/usecase/search"
)

// TenantService runs queries over one tenant's documents.
type TenantService struct {
	tenant string
	svc    *searchuc.Service
}

// Search starts a ranked full-text query for term.
func (s *TenantService) Search(term string) *SearchBuilder {
	return &SearchBuilder{svc: s.svc, params: request.Params{Tenant: s.tenant, Term: term}}
}

// List starts a listing of the tenant's documents, most recently updated first.
func (s *TenantService) List() *ListBuilder {
	return &ListBuilder{svc: s.svc, tenant: s.tenant}
}

// SearchBuilder is a fluent builder for full-text queries.
type SearchBuilder struct {
	svc    *searchuc.Service
	params request.Params
}

// Index restricts the query to one index of the tenant.
func (b *SearchBuilder) Index(name string) *SearchBuilder {
	b.params.Index = name
	return b
}

// Fields restricts matching to the named top-level data fields.
func (b *SearchBuilder) Fields(names ...string) *SearchBuilder {
	b.params.Fields = append(b.params.Fields, names...)
	return b
}

// Tags restricts the query to documents carrying every tag.
func (b *SearchBuilder) Tags(tags ...string) *SearchBuilder {
	b.params.Tags = append(b.params.Tags, tags...)
	return b
}

// Fuzzy allows approximate matches. Values below 1 are a fraction of each
// term's length, whole numbers are an edit distance. Capped at 2 edits.
func (b *SearchBuilder) Fuzzy(f float64) *SearchBuilder {
	b.params.Fuzzy = f
	return b
}

// Prefix lets the last term match as a prefix.
func (b *SearchBuilder) Prefix() *SearchBuilder {
	b.params.Prefix = true
	return b
}

// Exact requires every term to match.
func (b *SearchBuilder) Exact() *SearchBuilder {
	b.params.Exact = true
	return b
}

// Limit sets the page size.
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.params.Limit = n
	return b
}

// After resumes from a previous page's EndCursor.
func (b *SearchBuilder) After(cursor string) *SearchBuilder {
	b.params.After = cursor
	return b
}

// Do executes the query and returns one page of ranked results.
func (b *SearchBuilder) Do(ctx context.Context) (Page, error) {
	req, err := request.New(b.params)
	if err != nil {
		return Page{}, fmt.Errorf("search: %w", err)
	}
	page, err := b.svc.Search(ctx, &req)
	if err != nil {
		return Page{}, fmt.Errorf("search: %w", err)
	}
	return fromInternalPage(page.Results, page.PageInfo), nil
}

// Suggest executes the query as autocomplete and returns up to Limit suggestions.
func (b *SearchBuilder) Suggest(ctx context.Context) ([]Suggestion, error) {
	req, err := request.New(b.params)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	suggestions, err := b.svc.Suggest(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	out := make([]Suggestion, len(suggestions))
	for i := range suggestions {
		out[i] = Suggestion{
			Text:  suggestions[i].Text(),
			Score: suggestions[i].Score(),
			Terms: suggestions[i].Terms(),
		}
	}
	return out, nil
}

// ListBuilder is a fluent builder for listings.
type ListBuilder struct {
	svc    *searchuc.Service
	tenant string
	index  string
	tags   []string
	limit  int
	after  string
}

// Index restricts the listing to one index of the tenant.
func (b *ListBuilder) Index(name string) *ListBuilder {
	b.index = name
	return b
}

// Tags restricts the listing to documents carrying every tag.
func (b *ListBuilder) Tags(tags ...string) *ListBuilder {
	b.tags = append(b.tags, tags...)
	return b
}

// Limit sets the page size.
func (b *ListBuilder) Limit(n int) *ListBuilder {
	b.limit = n
	return b
}

// After resumes from a previous page's EndCursor.
func (b *ListBuilder) After(cursor string) *ListBuilder {
	b.after = cursor
	return b
}

// Do executes the listing.
func (b *ListBuilder) Do(ctx context.Context) (Page, error) {
	req, err := request.NewList(b.tenant, b.index, b.tags, b.limit, b.after)
	if err != nil {
		return Page{}, fmt.Errorf("list: %w", err)
	}
	page, err := b.svc.List(ctx, &req)
	if err != nil {
		return Page{}, fmt.Errorf("list: %w", err)
	}
	return fromInternalPage(page.Results, page.PageInfo), nil
}
