// Package ranking scores a candidate window against a full-text query using
// a throwaway bleve index built for the single request.
package ranking

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	"github.com/kailas-cloud/docsearch/internal/domain/search/result"
)

const maxFuzzy = 2

var tracer = otel.Tracer("github.com/kailas-cloud/docsearch/internal/ranking")

// BoostFunc returns a score multiplier for doc given the query term.
type BoostFunc func(doc *domdoc.Document, term string) float64

// FilterFunc reports whether a scored candidate is kept.
type FilterFunc func(doc *domdoc.Document, r *result.Result) bool

// Query describes what to match in the window.
type Query struct {
	Term string
	// Fields of data to index. Empty means every top-level field seen in the window.
	Fields []string
	// Fuzzy below 1 is a fraction of each token's length, otherwise an edit distance.
	Fuzzy  float64
	Prefix bool
	Exact  bool
	Boost  BoostFunc
	Filter FilterFunc
}

// Engine ranks windows. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	stopWords  []string
	logger     *zap.Logger
	duration   *prometheus.HistogramVec
	windowSize prometheus.Histogram
}

// New creates an engine. A nil stopWords selects DefaultStopWords; an empty
// non-nil slice disables stop word removal.
func New(stopWords []string, logger *zap.Logger) *Engine {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{stopWords: stopWords, logger: logger}
}

// WithMetrics records per-operation duration and window sizes.
func (e *Engine) WithMetrics(duration *prometheus.HistogramVec, windowSize prometheus.Histogram) *Engine {
	e.duration = duration
	e.windowSize = windowSize
	return e
}

// Search returns the window documents matching q, best first. Ties keep window order.
func (e *Engine) Search(ctx context.Context, window []domdoc.Document, q Query) ([]result.Result, error) {
	ctx, span := tracer.Start(ctx, "ranking.Search", trace.WithAttributes(
		attribute.Int("docsearch.window.size", len(window)),
	))
	defer span.End()
	start := time.Now()
	defer e.observe("search", start, len(window))

	scored, err := e.rank(ctx, window, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]result.Result, len(scored))
	for i := range scored {
		out[i] = scored[i].res
	}
	span.SetAttributes(attribute.Int("docsearch.results", len(out)))
	return out, nil
}

// Suggest groups the matches of q by their set of matched terms. Each group
// becomes one suggestion whose score is the sum of its members' scores.
func (e *Engine) Suggest(ctx context.Context, window []domdoc.Document, q Query) ([]result.Suggestion, error) {
	ctx, span := tracer.Start(ctx, "ranking.Suggest", trace.WithAttributes(
		attribute.Int("docsearch.window.size", len(window)),
	))
	defer span.End()
	start := time.Now()
	defer e.observe("suggest", start, len(window))

	scored, err := e.rank(ctx, window, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := suggestions(scored)
	span.SetAttributes(attribute.Int("docsearch.results", len(out)))
	return out, nil
}

func (e *Engine) observe(op string, start time.Time, size int) {
	if e.duration != nil {
		e.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	if e.windowSize != nil {
		e.windowSize.Observe(float64(size))
	}
}

type scoredResult struct {
	res result.Result
	pos int
}

func (e *Engine) rank(ctx context.Context, window []domdoc.Document, q Query) ([]scoredResult, error) {
	if len(window) == 0 {
		return []scoredResult{}, nil
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = topLevelFields(window)
	}
	if len(fields) == 0 {
		return []scoredResult{}, nil
	}
	// Data keys are arbitrary strings; bleve treats dots as path separators,
	// so fields are indexed under positional names.
	names := make([]string, len(fields))
	byName := make(map[string]string, len(fields))
	for i, f := range fields {
		names[i] = "f" + strconv.Itoa(i)
		byName[names[i]] = f
	}

	im, err := newMapping(e.stopWords, names)
	if err != nil {
		return nil, err
	}
	tokens, err := analyze(im, q.Term)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []scoredResult{}, nil
	}

	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			e.logger.Warn("close ranking index", zap.Error(cerr))
		}
	}()

	batch := idx.NewBatch()
	for i := range window {
		data := window[i].Data()
		body := make(map[string]interface{}, len(fields))
		for j, f := range fields {
			if text := data.Text(f); text != "" {
				body[names[j]] = text
			}
		}
		if err = batch.Index(strconv.Itoa(i), body); err != nil {
			return nil, fmt.Errorf("index document %s: %w", window[i].ID(), err)
		}
	}
	if err = idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("index window: %w", err)
	}

	req := bleve.NewSearchRequestOptions(buildQuery(tokens, names, q), len(window), 0, false)
	req.IncludeLocations = true
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search window: %w", err)
	}

	out := make([]scoredResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, perr := strconv.Atoi(hit.ID)
		if perr != nil || pos < 0 || pos >= len(window) {
			return nil, fmt.Errorf("unexpected hit id %q", hit.ID)
		}
		doc := &window[pos]
		terms, match := matchedTerms(hit, byName)
		score := hit.Score
		if q.Boost != nil {
			score *= q.Boost(doc, q.Term)
		}
		r := result.New(*doc, score, terms, match)
		if q.Filter != nil && !q.Filter(doc, &r) {
			continue
		}
		out = append(out, scoredResult{res: r, pos: pos})
	}

	slices.SortStableFunc(out, func(a, b scoredResult) int {
		if sa, sb := a.res.Score(), b.res.Score(); sa != sb {
			if sa > sb {
				return -1
			}
			return 1
		}
		return a.pos - b.pos
	})
	return out, nil
}

// buildQuery ORs each token across fields, then combines tokens with AND when exact.
func buildQuery(tokens, fields []string, q Query) query.Query {
	perToken := make([]query.Query, 0, len(tokens))
	for i, tok := range tokens {
		dist := fuzziness(tok, q.Fuzzy)
		alternatives := make([]query.Query, 0, 2*len(fields))
		for _, f := range fields {
			if dist > 0 {
				fq := bleve.NewFuzzyQuery(tok)
				fq.SetFuzziness(dist)
				fq.SetField(f)
				alternatives = append(alternatives, fq)
			} else {
				tq := bleve.NewTermQuery(tok)
				tq.SetField(f)
				alternatives = append(alternatives, tq)
			}
			if q.Prefix && i == len(tokens)-1 {
				pq := bleve.NewPrefixQuery(tok)
				pq.SetField(f)
				alternatives = append(alternatives, pq)
			}
		}
		perToken = append(perToken, bleve.NewDisjunctionQuery(alternatives...))
	}
	if q.Exact {
		return bleve.NewConjunctionQuery(perToken...)
	}
	return bleve.NewDisjunctionQuery(perToken...)
}

func fuzziness(token string, fuzzy float64) int {
	if fuzzy <= 0 {
		return 0
	}
	dist := int(fuzzy)
	if fuzzy < 1 {
		dist = int(math.Round(fuzzy * float64(utf8.RuneCountInString(token))))
	}
	return min(dist, maxFuzzy)
}

// matchedTerms reads term locations back into sorted terms and term -> fields.
func matchedTerms(hit *blevesearch.DocumentMatch, byName map[string]string) ([]string, map[string][]string) {
	match := make(map[string][]string)
	for name, termLocs := range hit.Locations {
		field, ok := byName[name]
		if !ok {
			continue
		}
		for term := range termLocs {
			match[term] = append(match[term], field)
		}
	}
	terms := make([]string, 0, len(match))
	for term, fields := range match {
		slices.Sort(fields)
		match[term] = slices.Compact(fields)
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return terms, match
}

func topLevelFields(window []domdoc.Document) []string {
	var fields []string
	seen := make(map[string]struct{})
	for i := range window {
		for _, k := range window[i].Data().Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			fields = append(fields, k)
		}
	}
	return fields
}
