package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
	"github.com/kailas-cloud/patentscope/internal/metrics"
	healthuc "github.com/kailas-cloud/patentscope/internal/usecase/health"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
)

const (
	headerEmbeddingTokens  = "X-Embedding-Tokens"
	headerCompletionTokens = "X-Completion-Tokens"

	maxBodyBytes = 8 << 20
)

// Services are the use cases behind the API.
type Services struct {
	Extractor    Extractor
	Searcher     Searcher
	Indexer      Indexer
	Summarizer   Summarizer
	Conversation Conversation
	Sessions     Sessions
	Health       HealthChecker
}

// Options tune request defaults and limits.
type Options struct {
	// DefaultFrom replaces a missing publication_from in caller-supplied filters.
	DefaultFrom time.Time
	DefaultK    int
	MaxK        int
	// Confirm is the confirm mode of sessions created without an explicit choice.
	Confirm     bool
	MaxSessions int
	APIKeys     []string
}

// Server serves the patent search API.
type Server struct {
	svc           Services
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler

	// indexMu guards the index/mapping artifact pair: builds write, queries read.
	indexMu sync.RWMutex
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, opts Options, logger *zap.Logger) *Server {
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.MaxK < opts.DefaultK {
		opts.MaxK = opts.DefaultK
	}
	return &Server{
		svc:           svc,
		opts:          opts,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes returns the router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/filters/extract", s.ExtractFilter)
		r.Post("/queries/compile", s.CompileQuery)
		r.Post("/searches", s.Search)
		r.Post("/index", s.BuildIndex)
		r.Get("/similar", s.Similar)
		r.Post("/summaries", s.Summarize)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.CreateSession)
			r.Get("/{id}", s.GetSession)
			r.Delete("/{id}", s.DeleteSession)
			r.Post("/{id}/turns", s.SessionTurn)
			r.Post("/{id}/reset", s.ResetSession)
		})
	})
	return r
}

// ExtractFilter handles POST /v1/filters/extract.
func (s *Server) ExtractFilter(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "text is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	f, drift, err := s.svc.Extractor.Extract(ctx, req.Text)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExtractResponse{Filter: f, Drift: nonNilDrift(drift)})
}

// CompileQuery handles POST /v1/queries/compile.
func (s *Server) CompileQuery(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Filter) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "filter is required")
		return
	}
	f, _, err := filter.Parse(string(req.Filter), s.opts.DefaultFrom)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	plan := s.svc.Searcher.PlanFilter(f)
	writeJSON(w, http.StatusOK, CompileResponse{Statement: string(plan.Statement)})
}

// Search handles POST /v1/searches.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hasText, hasFilter := strings.TrimSpace(req.Text) != "", len(req.Filter) > 0
	if hasText == hasFilter {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "exactly one of text and filter is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	var plan searchuc.Plan
	if hasText {
		var err error
		if plan, err = s.svc.Searcher.Plan(ctx, req.Text); err != nil {
			setUsageHeaders(w, usage)
			s.handleDomainError(w, r, err)
			return
		}
	} else {
		f, drift, err := filter.Parse(string(req.Filter), s.opts.DefaultFrom)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		plan = s.svc.Searcher.PlanFilter(f)
		plan.Drift = drift
	}

	rows, indexed, err := s.execute(ctx, plan.Statement, req.Index)
	if err != nil {
		setUsageHeaders(w, usage)
		s.handleDomainError(w, r, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Filter:    plan.Filter,
		Drift:     nonNilDrift(plan.Drift),
		Statement: string(plan.Statement),
		Rows:      nonNilRows(rows),
		Indexed:   indexed,
	})
}

// BuildIndex handles POST /v1/index.
func (s *Server) BuildIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	stats, err := s.build(ctx, req.Rows)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{Indexed: stats})
}

// Similar handles GET /v1/similar.
func (s *Server) Similar(w http.ResponseWriter, r *http.Request) {
	var (
		q         string
		k         *int
		summarize *bool
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "q", query, &q); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", query, &k); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter k: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "summarize", query, &summarize); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter summarize: "+err.Error())
		return
	}
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "q is required")
		return
	}
	n := s.opts.DefaultK
	if k != nil {
		n = *k
	}
	if n < 1 || n > s.opts.MaxK {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("k must be between 1 and %d", s.opts.MaxK))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	s.indexMu.RLock()
	matches, err := s.svc.Indexer.Query(ctx, q, n)
	s.indexMu.RUnlock()
	if err != nil {
		setUsageHeaders(w, usage)
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SimilarItem, len(matches))
	for i, m := range matches {
		items[i] = SimilarItem{Row: m.Row, Distance: m.Distance}
	}
	if summarize != nil && *summarize {
		summarized, err := s.svc.Summarizer.SummarizeMatches(ctx, matches)
		if err != nil {
			setUsageHeaders(w, usage)
			s.handleDomainError(w, r, err)
			return
		}
		for i := range summarized {
			items[i].Summary = &summarized[i].Summary
		}
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, SimilarResponse{Items: items})
}

// Summarize handles POST /v1/summaries.
func (s *Server) Summarize(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	summary, err := s.svc.Summarizer.Summarize(ctx, req.Text)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Summary: summary})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) build(ctx context.Context, rows []patent.Row) (indexuc.Stats, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.svc.Indexer.Build(ctx, rows)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage == nil {
		return
	}
	if usage.Embedded {
		w.Header().Set(headerEmbeddingTokens, strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.Completed {
		w.Header().Set(headerCompletionTokens, strconv.Itoa(usage.CompletionTokens))
	}
}
