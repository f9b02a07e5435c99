package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/query"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Runner executes a pipeline run on demand.
type Runner interface {
	Run(ctx context.Context, dataFile string) domain.RunResult
}

// Querier answers package queries.
type Querier interface {
	SearchPackages(ctx context.Context, minScore float64, elements []domain.Element) ([]domain.PackageSummary, error)
	PackageMetrics(ctx context.Context, pkg string) (query.PackageMetrics, error)
	SummaryReport(ctx context.Context, pkg string) (string, error)
	ComparePackages(ctx context.Context, a, b string) (query.Comparison, error)
}

// RunHistory lists recent pipeline runs.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Option registers optional routes on a Server.
type Option func(*Server)

// WithRunner enables POST /runs.
func WithRunner(r Runner) Option { return func(s *Server) { s.runner = r } }

// WithQuery enables the /packages and /compare routes.
func WithQuery(q Querier) Option { return func(s *Server) { s.query = q } }

// WithHistory enables GET /runs.
func WithHistory(h RunHistory) Option { return func(s *Server) { s.history = h } }

// Server exposes health, metrics, package queries and run control over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	runner  Runner
	query   Querier
	history RunHistory
}

// NewServer creates an HTTP server with /healthz, /readyz and /metrics plus
// the routes enabled by opts.
func NewServer(addr string, ready ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			// POST /runs blocks for a whole pipeline run.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.query != nil {
		mux.HandleFunc("GET /packages", s.handleSearch)
		mux.HandleFunc("GET /packages/{namespace}/{name}", s.handleMetrics)
		mux.HandleFunc("GET /packages/{namespace}/{name}/report", s.handleReport)
		mux.HandleFunc("GET /compare", s.handleCompare)
	}
	if s.history != nil {
		mux.HandleFunc("GET /runs", s.handleRuns)
	}
	if s.runner != nil {
		mux.HandleFunc("POST /runs", s.handleTriggerRun)
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	minScore := 0.0
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be a number")
			return
		}
		minScore = v
	}
	var elements []domain.Element
	for _, raw := range r.URL.Query()["element"] {
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				elements = append(elements, domain.Element(strings.ToUpper(e)))
			}
		}
	}

	out, err := s.query.SearchPackages(r.Context(), minScore, elements)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// packageRef builds "namespace/name[@ref]" from the path and ?ref=.
func packageRef(r *http.Request) string {
	pkg := r.PathValue("namespace") + "/" + r.PathValue("name")
	if ref := r.URL.Query().Get("ref"); ref != "" {
		pkg += "@" + ref
	}
	return pkg
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.query.PackageMetrics(r.Context(), packageRef(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	text, err := s.query.SummaryReport(r.Context(), packageRef(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "both a and b are required")
		return
	}
	c, err := s.query.ComparePackages(r.Context(), a, b)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type runRequest struct {
	DataFile string `json:"data_file"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	res := s.runner.Run(r.Context(), req.DataFile)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrInvalidPackage),
		errors.Is(err, registry.ErrAmbiguousRef),
		errors.Is(err, query.ErrNoTemperatureData),
		errors.Is(err, query.ErrNoData):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
