package search

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	"github.com/kailas-cloud/docsearch/internal/domain/search/request"
	"github.com/kailas-cloud/docsearch/internal/domain/search/result"
	"github.com/kailas-cloud/docsearch/internal/pagination"
	"github.com/kailas-cloud/docsearch/internal/ranking"
	"github.com/kailas-cloud/docsearch/internal/repository/window"
)

// DefaultScanRange bounds how many recent documents a query considers.
const DefaultScanRange = 1000

var tracer = otel.Tracer("github.com/kailas-cloud/docsearch/internal/usecase/search")

// Page is one page of results plus its position in the full list.
type Page struct {
	Results  []result.Result
	PageInfo pagination.PageInfo
}

// Service answers ranked, suggest and listing queries over candidate windows.
type Service struct {
	windows   WindowReader
	ranker    Ranker
	scanRange int
	boost     ranking.BoostFunc
	filter    ranking.FilterFunc
}

// New creates a search service.
func New(windows WindowReader, ranker Ranker) *Service {
	return &Service{windows: windows, ranker: ranker, scanRange: DefaultScanRange}
}

// WithScanRange configures the candidate window size.
func (s *Service) WithScanRange(n int) *Service {
	if n > 0 {
		s.scanRange = n
	}
	return s
}

// WithRanking installs a score multiplier and a result predicate applied to every query.
func (s *Service) WithRanking(boost ranking.BoostFunc, filter ranking.FilterFunc) *Service {
	s.boost = boost
	s.filter = filter
	return s
}

// Search ranks the window of req and returns the requested page.
func (s *Service) Search(ctx context.Context, req *request.Request) (Page, error) {
	ctx, span := tracer.Start(ctx, "search.Search", trace.WithAttributes(scopeAttrs(req.Tenant(), req.Index())...))
	defer span.End()

	docs, err := s.window(ctx, req.Tenant(), req.Index(), req.Tags())
	if err != nil {
		span.RecordError(err)
		return Page{}, err
	}
	ranked, err := s.ranker.Search(ctx, docs, s.rankingQuery(req))
	if err != nil {
		span.RecordError(err)
		return Page{}, fmt.Errorf("rank: %w", err)
	}
	return paginate(ranked, req.Limit(), req.After())
}

// Suggest returns up to req.Limit() term completions for the window of req.
func (s *Service) Suggest(ctx context.Context, req *request.Request) ([]result.Suggestion, error) {
	ctx, span := tracer.Start(ctx, "search.Suggest", trace.WithAttributes(scopeAttrs(req.Tenant(), req.Index())...))
	defer span.End()

	docs, err := s.window(ctx, req.Tenant(), req.Index(), req.Tags())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	suggestions, err := s.ranker.Suggest(ctx, docs, s.rankingQuery(req))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("suggest: %w", err)
	}
	if len(suggestions) > req.Limit() {
		suggestions = suggestions[:req.Limit()]
	}
	return suggestions, nil
}

// List pages through the window most recently updated first, tag-filtered
// when req carries tags.
func (s *Service) List(ctx context.Context, req *request.ListRequest) (Page, error) {
	docs, err := s.window(ctx, req.Tenant(), req.Index(), req.Tags())
	if err != nil {
		return Page{}, err
	}
	listed := make([]result.Result, len(docs))
	for i := range docs {
		listed[i] = result.FromDocument(docs[i])
	}
	return paginate(listed, req.Limit(), req.After())
}

// ByTags is List restricted to documents carrying every tag of req.
func (s *Service) ByTags(ctx context.Context, req *request.ListRequest) (Page, error) {
	if len(req.Tags()) == 0 {
		return Page{}, fmt.Errorf("%w: at least one tag is required", domain.ErrInvalidRequest)
	}
	return s.List(ctx, req)
}

func (s *Service) window(ctx context.Context, tenant, index string, tags []string) ([]domdoc.Document, error) {
	docs, err := s.windows.Window(ctx, window.Query{
		Tenant: tenant, Index: index, Tags: tags, ScanRange: s.scanRange,
	})
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}
	return docs, nil
}

func (s *Service) rankingQuery(req *request.Request) ranking.Query {
	return ranking.Query{
		Term:   req.Term(),
		Fields: req.Fields(),
		Fuzzy:  req.Fuzzy(),
		Prefix: req.Prefix(),
		Exact:  req.Exact(),
		Boost:  s.boost,
		Filter: s.filter,
	}
}

func paginate(rs []result.Result, limit int, after string) (Page, error) {
	page, info, err := pagination.Paginate(rs, (*result.Result).ID, limit, after)
	if err != nil {
		return Page{}, err
	}
	return Page{Results: page, PageInfo: info}, nil
}

func scopeAttrs(tenant, index string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("docsearch.tenant", tenant),
		attribute.String("docsearch.index", index),
	}
}
