package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsearch/internal/domain"
	dombatch "github.com/kailas-cloud/docsearch/internal/domain/batch"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	"github.com/kailas-cloud/docsearch/internal/domain/search/request"
	"github.com/kailas-cloud/docsearch/internal/domain/search/result"
	"github.com/kailas-cloud/docsearch/internal/metrics"
	batchuc "github.com/kailas-cloud/docsearch/internal/usecase/batch"
	documentuc "github.com/kailas-cloud/docsearch/internal/usecase/document"
	healthuc "github.com/kailas-cloud/docsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/docsearch/internal/usecase/search"
	"github.com/kailas-cloud/docsearch/internal/version"
)

const defaultMaxBodyBytes = 10 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API over the document, bulk, search and health services.
type Server struct {
	documents     *documentuc.Service
	bulk          *batchuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler

	defaultLimit int
	maxLimit     int
	maxBodyBytes int64
	bulkItems    *prometheus.CounterVec
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *documentuc.Service,
	bulk *batchuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		documents:    documents,
		bulk:         bulk,
		search:       search,
		health:       health,
		logger:       logger,
		defaultLimit: request.DefaultLimit,
		maxLimit:     request.MaxLimit,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, ErrorCodeDocumentNotFound),
		sentinelHandler(domain.ErrDocumentConflict, http.StatusConflict, ErrorCodeDocumentConflict),
		sentinelHandler(domain.ErrInvalidCursor, http.StatusBadRequest, ErrorCodeInvalidCursor),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrBatchTooLarge, http.StatusRequestEntityTooLarge, ErrorCodeBatchTooLarge),
	}
	return s
}

// WithLimits sets the page size used when a query has no limit and the
// largest page a query may ask for.
func (s *Server) WithLimits(defaultLimit, maxLimit int) *Server {
	if maxLimit > 0 {
		s.maxLimit = min(maxLimit, request.MaxLimit)
	}
	if defaultLimit > 0 {
		s.defaultLimit = min(defaultLimit, s.maxLimit)
	}
	return s
}

// WithMaxBodyBytes bounds request bodies.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// WithBulkMetrics counts bulk items by outcome.
func (s *Server) WithBulkMetrics(items *prometheus.CounterVec) *Server {
	s.bulkItems = items
	return s
}

// Handler builds the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chimw.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/version", s.Version)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r gochi.Router) {
		r.Put("/documents", s.UpsertDocument)
		r.Post("/documents/bulk", s.BulkUpsert)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
		r.Get("/tenants/{tenant}/documents", s.ListDocuments)
		r.Get("/tenants/{tenant}/search", s.SearchDocuments)
		r.Get("/tenants/{tenant}/suggest", s.Suggest)
		r.Get("/tags", s.ListTags)
		r.Post("/admin/migrations", s.RunMigrations)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// UpsertDocument handles PUT /v1/documents.
func (s *Server) UpsertDocument(w http.ResponseWriter, r *http.Request) {
	var req UpsertDocumentRequest
	if !s.decode(w, r, &req) {
		return
	}

	doc, err := documentFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	stored, err := s.documents.Upsert(r.Context(), &doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domdoc.ToRecord(&stored))
}

// BulkUpsert handles POST /v1/documents/bulk.
func (s *Server) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	var req BulkUpsertRequest
	if !s.decode(w, r, &req) {
		return
	}

	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "documents must not be empty")
		return
	}

	docs := make([]domdoc.Document, 0, len(req.Documents))
	for i := range req.Documents {
		doc, err := documentFromRequest(&req.Documents[i])
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
				fmt.Sprintf("documents[%d]: %s", i, err.Error()))
			return
		}
		docs = append(docs, doc)
	}

	results, err := s.bulk.Upsert(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := BulkUpsertResponse{Items: make([]BulkResultItem, len(results))}
	for i, res := range results {
		resp.Items[i] = bulkResultToDTO(res)
		if res.Status() == dombatch.StatusOK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
		if s.bulkItems != nil {
			s.bulkItems.WithLabelValues(string(res.Status())).Inc()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetDocument handles GET /v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domdoc.ToRecord(&doc))
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), gochi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListDocuments handles GET /v1/tenants/{tenant}/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	p, err := s.queryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}
	req, err := request.NewList(p.Tenant, p.Index, p.Tags, p.Limit, p.After)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	page, err := s.search.List(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pageToDTO(page))
}

// SearchDocuments handles GET /v1/tenants/{tenant}/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	req, ok := s.searchRequest(w, r)
	if !ok {
		return
	}

	page, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pageToDTO(page))
}

// Suggest handles GET /v1/tenants/{tenant}/suggest.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	req, ok := s.searchRequest(w, r)
	if !ok {
		return
	}

	suggestions, err := s.search.Suggest(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := SuggestResponse{Data: make([]SuggestionItem, len(suggestions))}
	for i := range suggestions {
		resp.Data[i] = SuggestionItem{
			Text:  suggestions[i].Text(),
			Score: suggestions[i].Score(),
			Terms: suggestions[i].Terms(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTags handles GET /v1/tags.
func (s *Server) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.documents.Tags(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}

	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// RunMigrations handles POST /v1/admin/migrations. A failed migration is
// reported with its partial progress and a 500.
func (s *Server) RunMigrations(w http.ResponseWriter, r *http.Request) {
	down := false
	if v := r.URL.Query().Get("down"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "down must be a boolean")
			return
		}
		down = b
	}

	res := s.documents.Migrate(r.Context(), down)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Version handles GET /version.
func (s *Server) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeBadRequest,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) searchRequest(w http.ResponseWriter, r *http.Request) (request.Request, bool) {
	p, err := s.queryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return request.Request{}, false
	}
	req, err := request.New(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return request.Request{}, false
	}
	return req, true
}

// queryParams reads the query string shared by list, search and suggest.
// fields and tags accept both repeated parameters and comma-separated values.
func (s *Server) queryParams(r *http.Request) (request.Params, error) {
	q := r.URL.Query()
	p := request.Params{
		Tenant: gochi.URLParam(r, "tenant"),
		Index:  q.Get("index"),
		Term:   q.Get("term"),
		Fields: splitList(q["fields"]),
		Tags:   splitList(q["tags"]),
		After:  q.Get("after"),
		Limit:  s.defaultLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return request.Params{}, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidRequest)
		}
		if n > 0 {
			p.Limit = min(n, s.maxLimit)
		}
	}
	if v := q.Get("fuzzy"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return request.Params{}, fmt.Errorf("%w: fuzzy must be a number", domain.ErrInvalidRequest)
		}
		p.Fuzzy = f
	}
	var err error
	if p.Prefix, err = parseBool(q.Get("prefix"), "prefix"); err != nil {
		return request.Params{}, err
	}
	if p.Exact, err = parseBool(q.Get("exact"), "exact"); err != nil {
		return request.Params{}, err
	}
	return p, nil
}

func parseBool(v, name string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", domain.ErrInvalidRequest, name)
	}
	return b, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrDocumentConflict,
		domain.ErrInvalidCursor,
		domain.ErrInvalidRequest,
		domain.ErrBatchTooLarge,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func documentFromRequest(req *UpsertDocumentRequest) (domdoc.Document, error) {
	return domdoc.New(req.ID, req.Tenant, req.Index, req.Data, req.Tags)
}

func pageToDTO(page searchuc.Page) ResultPage {
	resp := ResultPage{
		Data:       make([]ResultItem, len(page.Results)),
		Pagination: page.PageInfo,
	}
	for i := range page.Results {
		resp.Data[i] = resultToDTO(&page.Results[i])
	}
	return resp
}

func resultToDTO(r *result.Result) ResultItem {
	doc := r.Document()
	return ResultItem{
		ID:       r.ID(),
		Document: domdoc.ToRecord(&doc),
		Score:    r.Score(),
		Terms:    r.Terms(),
		Match:    r.Match(),
	}
}

func bulkResultToDTO(r dombatch.Result) BulkResultItem {
	item := BulkResultItem{
		ID:     r.ID(),
		Status: string(r.Status()),
	}
	if doc := r.Document(); doc != nil {
		rec := domdoc.ToRecord(doc)
		item.Document = &rec
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{
			Code:    bulkErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}

func bulkErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrDocumentConflict):
		return ErrorCodeDocumentConflict
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrorCodeValidationFailed
	default:
		return ErrorCodeInternalError
	}
}
