package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/climate-data-monitor/internal/adapter/http"
	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/query"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type stubQuery struct {
	gotMinScore float64
	gotElements []domain.Element
	gotPackage  string
	err         error
}

func (s *stubQuery) SearchPackages(_ context.Context, minScore float64, elements []domain.Element) ([]domain.PackageSummary, error) {
	s.gotMinScore, s.gotElements = minScore, elements
	if s.err != nil {
		return nil, s.err
	}
	return []domain.PackageSummary{{Package: "climate/nyc", QualityScore: 91}}, nil
}

func (s *stubQuery) PackageMetrics(_ context.Context, pkg string) (query.PackageMetrics, error) {
	s.gotPackage = pkg
	if s.err != nil {
		return query.PackageMetrics{}, s.err
	}
	return query.PackageMetrics{Package: pkg, TopHash: "abc123"}, nil
}

func (s *stubQuery) SummaryReport(_ context.Context, pkg string) (string, error) {
	s.gotPackage = pkg
	if s.err != nil {
		return "", s.err
	}
	return "CLIMATE DATA PACKAGE ANALYSIS REPORT\nPackage: " + pkg + "\n", nil
}

func (s *stubQuery) ComparePackages(_ context.Context, a, b string) (query.Comparison, error) {
	if s.err != nil {
		return query.Comparison{}, s.err
	}
	return query.Comparison{PackageA: a, PackageB: b, QualityScoreChange: 12.5}, nil
}

type stubRunner struct {
	gotDataFile string
	result      domain.RunResult
}

func (s *stubRunner) Run(_ context.Context, dataFile string) domain.RunResult {
	s.gotDataFile = dataFile
	return s.result
}

type stubHistory struct {
	gotLimit int
	runs     []domain.RunRecord
	err      error
}

func (s *stubHistory) Recent(_ context.Context, limit int) ([]domain.RunRecord, error) {
	s.gotLimit = limit
	return s.runs, s.err
}

func newTestServer(readyErr error, opts ...httpadapter.Option) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, slog.Default(), opts...)
}

func serve(srv *httpadapter.Server, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(fmt.Errorf("no successful run yet")), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no successful run yet", body["error"])
}

func TestMetricsEndpointReturns200(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestOptionalRoutesDisabledByDefault(t *testing.T) {
	srv := newTestServer(nil)

	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/packages", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/runs", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodPost, "/runs", "").Code)
}

func TestSearchPackages(t *testing.T) {
	q := &stubQuery{}
	srv := newTestServer(nil, httpadapter.WithQuery(q))

	rec := serve(srv, http.MethodGet, "/packages?min_score=80&element=tmax,PRCP&element=snow", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 80.0, q.gotMinScore)
	assert.Equal(t, []domain.Element{"TMAX", "PRCP", "SNOW"}, q.gotElements)

	var body []domain.PackageSummary
	decode(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "climate/nyc", body[0].Package)
}

func TestSearchPackages_BadMinScore(t *testing.T) {
	srv := newTestServer(nil, httpadapter.WithQuery(&stubQuery{}))

	rec := serve(srv, http.MethodGet, "/packages?min_score=high", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPackageMetrics_WithRef(t *testing.T) {
	q := &stubQuery{}
	srv := newTestServer(nil, httpadapter.WithQuery(q))

	rec := serve(srv, http.MethodGet, "/packages/climate/nyc?ref=abc123", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "climate/nyc@abc123", q.gotPackage)
	var body query.PackageMetrics
	decode(t, rec, &body)
	assert.Equal(t, "abc123", body.TopHash)
}

func TestPackageMetrics_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("resolve: %w", registry.ErrNotFound), http.StatusNotFound},
		{"invalid package", registry.ErrInvalidPackage, http.StatusBadRequest},
		{"ambiguous ref", fmt.Errorf("resolve: %w", registry.ErrAmbiguousRef), http.StatusBadRequest},
		{"no data", query.ErrNoData, http.StatusBadRequest},
		{"backend failure", errors.New("s3 unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, httpadapter.WithQuery(&stubQuery{err: tt.err}))
			rec := serve(srv, http.MethodGet, "/packages/climate/nyc", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestPackageReport(t *testing.T) {
	q := &stubQuery{}
	srv := newTestServer(nil, httpadapter.WithQuery(q))

	rec := serve(srv, http.MethodGet, "/packages/climate/nyc/report", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Package: climate/nyc")
}

func TestCompare(t *testing.T) {
	srv := newTestServer(nil, httpadapter.WithQuery(&stubQuery{}))

	rec := serve(srv, http.MethodGet, "/compare?a=climate/nyc@old&b=climate/nyc", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body query.Comparison
	decode(t, rec, &body)
	assert.Equal(t, "climate/nyc@old", body.PackageA)
	assert.Equal(t, "climate/nyc", body.PackageB)
	assert.InDelta(t, 12.5, body.QualityScoreChange, 1e-9)
}

func TestCompare_MissingParam(t *testing.T) {
	srv := newTestServer(nil, httpadapter.WithQuery(&stubQuery{}))

	rec := serve(srv, http.MethodGet, "/compare?a=climate/nyc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuns(t *testing.T) {
	score := 88.0
	h := &stubHistory{runs: []domain.RunRecord{{RunID: "r1", PackageName: "climate/nyc", QualityScore: &score, Success: true}}}
	srv := newTestServer(nil, httpadapter.WithHistory(h))

	rec := serve(srv, http.MethodGet, "/runs?limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, h.gotLimit)
	var body []domain.RunRecord
	decode(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "r1", body[0].RunID)
}

func TestListRuns_DefaultsAndEmpty(t *testing.T) {
	h := &stubHistory{}
	srv := newTestServer(nil, httpadapter.WithHistory(h))

	rec := serve(srv, http.MethodGet, "/runs", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, h.gotLimit)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListRuns_BadLimit(t *testing.T) {
	srv := newTestServer(nil, httpadapter.WithHistory(&stubHistory{}))

	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/runs?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/runs?limit=abc", "").Code)
}

func TestListRuns_StoreError(t *testing.T) {
	srv := newTestServer(nil, httpadapter.WithHistory(&stubHistory{err: errors.New("db down")}))

	rec := serve(srv, http.MethodGet, "/runs", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerRun_Success(t *testing.T) {
	r := &stubRunner{result: domain.RunResult{RunID: "r1", Success: true, PackageName: "climate/nyc", TopHash: "abc"}}
	srv := newTestServer(nil, httpadapter.WithRunner(r))

	rec := serve(srv, http.MethodPost, "/runs", `{"data_file":"/tmp/ghcn.csv"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/tmp/ghcn.csv", r.gotDataFile)
	var body domain.RunResult
	decode(t, rec, &body)
	assert.True(t, body.Success)
	assert.Equal(t, "abc", body.TopHash)
}

func TestTriggerRun_EmptyBodyUsesConfiguredSource(t *testing.T) {
	r := &stubRunner{result: domain.RunResult{RunID: "r2", Success: true}}
	srv := newTestServer(nil, httpadapter.WithRunner(r))

	rec := serve(srv, http.MethodPost, "/runs", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, r.gotDataFile)
}

func TestTriggerRun_Failure(t *testing.T) {
	r := &stubRunner{result: domain.RunResult{RunID: "r3", Errors: []string{"quality score 40.00 below minimum 75.00"}}}
	srv := newTestServer(nil, httpadapter.WithRunner(r))

	rec := serve(srv, http.MethodPost, "/runs", "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body domain.RunResult
	decode(t, rec, &body)
	assert.False(t, body.Success)
	assert.Len(t, body.Errors, 1)
}

func TestTriggerRun_BadBody(t *testing.T) {
	srv := newTestServer(nil, httpadapter.WithRunner(&stubRunner{}))

	rec := serve(srv, http.MethodPost, "/runs", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
