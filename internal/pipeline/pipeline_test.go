package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/observability"
	"github.com/couchcryptid/climate-data-monitor/internal/pipeline"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
	"github.com/couchcryptid/climate-data-monitor/internal/source"
	"github.com/couchcryptid/climate-data-monitor/internal/validation"
)

var runTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

const fixtureCSV = `station_id,date,element,value,measurement_flag,quality_flag,source_flag
USW00094728,2024-01-01,TMAX,25.5,,,
USW00094728,2024-01-01,TMIN,10.2,,,
USC00305801,2024-01-01,PRCP,5.0,,,
`

// --- mocks ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.PackagePublished
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.PackagePublished) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

type recordingIndexer struct {
	summaries []domain.PackageSummary
}

func (i *recordingIndexer) Index(_ context.Context, s domain.PackageSummary) error {
	i.summaries = append(i.summaries, s)
	return nil
}

type recordingHistory struct {
	runs []domain.RunResult
}

func (h *recordingHistory) Record(_ context.Context, r domain.RunResult) error {
	h.runs = append(h.runs, r)
	return nil
}

// flakyPublisher fails the first failures pushes.
type flakyPublisher struct {
	*registry.Registry
	failures int
	pushes   int
}

func (f *flakyPublisher) Push(ctx context.Context, m *registry.Manifest) error {
	f.pushes++
	if f.pushes <= f.failures {
		return errors.New("connection reset")
	}
	return f.Registry.Push(ctx, m)
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	dir      string
	dataFile string
	registry *registry.Registry
	metrics  *observability.Metrics
	notifier *recordingNotifier
	indexer  *recordingIndexer
	history  *recordingHistory
	clock    clockwork.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(dataFile, []byte(fixtureCSV), 0o644))

	clock := clockwork.NewFakeClockAt(runTime)
	backend, err := registry.NewLocalBackend(filepath.Join(dir, "registry"))
	require.NoError(t, err)

	return &fixture{
		dir:      dir,
		dataFile: dataFile,
		registry: registry.New(backend, clock, discardLogger()),
		metrics:  observability.NewMetricsForTesting(),
		notifier: &recordingNotifier{},
		indexer:  &recordingIndexer{},
		history:  &recordingHistory{},
		clock:    clock,
	}
}

func (f *fixture) settings() pipeline.Settings {
	return pipeline.Settings{
		SourceURL:   "file://" + f.dataFile,
		DownloadDir: filepath.Join(f.dir, "downloads"),
		OutputDir:   filepath.Join(f.dir, "reports"),
		PackageName: "climate/daily",
		Push:        true,
	}
}

func (f *fixture) pipeline(t *testing.T, s pipeline.Settings, thresholds domain.Thresholds, pub pipeline.Publisher) *pipeline.Pipeline {
	t.Helper()
	engine, err := domain.NewEngine(thresholds, domain.WithClock(f.clock))
	require.NoError(t, err)
	if pub == nil {
		pub = f.registry
	}
	return pipeline.New(s, engine, pub, discardLogger(), f.metrics,
		pipeline.WithClock(f.clock),
		pipeline.WithNotifier(f.notifier),
		pipeline.WithIndexer(f.indexer),
		pipeline.WithHistory(f.history),
		pipeline.WithInitialBackoff(time.Millisecond),
	)
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, f.settings(), domain.DefaultThresholds(), nil)
	require.Error(t, p.CheckReadiness(context.Background()))

	res := p.Run(context.Background(), "")

	require.True(t, res.Success, res.Errors)
	assert.Empty(t, res.Errors)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, runTime, res.Timestamp)
	assert.Equal(t, "climate/daily", res.PackageName)
	assert.NotEmpty(t, res.TopHash)
	assert.True(t, res.Passed)

	assert.Equal(t, filepath.Join(f.dir, "downloads", "climate_data_processed_20240301_123000.csv"), res.DataFile)
	assert.FileExists(t, res.DataFile)
	assert.Equal(t, filepath.Join(f.dir, "reports", "quality_report_20240301_123000.json"), res.ReportFile)
	assert.FileExists(t, res.ReportFile)

	require.NotNil(t, res.QualityReport)
	assert.Equal(t, 3, res.QualityReport.RowCount)
	assert.Equal(t, 2, res.QualityReport.StationCount)
	assert.InDelta(t, 79.0, res.QualityReport.QualityScore, 1e-9)

	m, err := f.registry.Browse(context.Background(), "climate/daily", "latest")
	require.NoError(t, err)
	assert.Equal(t, res.TopHash, m.TopHash)
	assert.Equal(t, []string{"climate_data_processed_20240301_123000.csv"}, m.Keys())

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, res.TopHash, f.notifier.events[0].TopHash)
	assert.True(t, f.notifier.events[0].Passed)

	require.Len(t, f.indexer.summaries, 1)
	assert.Equal(t, []domain.Element{domain.ElementPRCP, domain.ElementTMAX, domain.ElementTMIN}, f.indexer.summaries[0].Elements)

	require.Len(t, f.history.runs, 1)
	assert.Equal(t, res.RunID, f.history.runs[0].RunID)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PackagesPublished))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ObservationsAssessed))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PipelineRunning))
}

func TestPipeline_Run_MissingFile(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, f.settings(), domain.DefaultThresholds(), nil)

	res := p.Run(context.Background(), filepath.Join(f.dir, "nope.csv"))

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, res.TopHash)
	assert.Nil(t, res.QualityReport)
	assert.Empty(t, f.notifier.events)
	require.Len(t, f.history.runs, 1, "failed runs are recorded too")
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("failure")))
}

func TestPipeline_Run_InvalidData(t *testing.T) {
	f := newFixture(t)
	bad := filepath.Join(f.dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("station_id,date,element,value\nA,01/02/2024,TMAX,1\n"), 0o644))
	p := f.pipeline(t, f.settings(), domain.DefaultThresholds(), nil)

	res := p.Run(context.Background(), bad)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "validate")
	assert.Empty(t, res.DataFile)
}

func TestPipeline_Run_UnsupportedSource(t *testing.T) {
	f := newFixture(t)
	s := f.settings()
	s.SourceURL = "https://example.com/data.csv"
	p := f.pipeline(t, s, domain.DefaultThresholds(), nil)

	res := p.Run(context.Background(), "")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Errors)
}

func TestPipeline_Run_EnforceMinScore(t *testing.T) {
	f := newFixture(t)
	s := f.settings()
	s.EnforceMinScore = true
	th := domain.DefaultThresholds()
	th.MinQualityScore = 90
	p := f.pipeline(t, s, th, nil)

	res := p.Run(context.Background(), "")

	assert.False(t, res.Success)
	assert.False(t, res.Passed)
	require.NotNil(t, res.QualityReport, "the report is still produced")
	assert.FileExists(t, res.ReportFile)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "below minimum")

	_, err := f.registry.Browse(context.Background(), "climate/daily", "latest")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestPipeline_Run_LowScoreNotEnforced(t *testing.T) {
	f := newFixture(t)
	th := domain.DefaultThresholds()
	th.MinQualityScore = 90
	p := f.pipeline(t, f.settings(), th, nil)

	res := p.Run(context.Background(), "")

	require.True(t, res.Success, res.Errors)
	assert.False(t, res.Passed)
	require.Len(t, f.notifier.events, 1)
	assert.False(t, f.notifier.events[0].Passed)
}

func TestPipeline_Run_PushRetries(t *testing.T) {
	f := newFixture(t)
	pub := &flakyPublisher{Registry: f.registry, failures: 2}
	p := f.pipeline(t, f.settings(), domain.DefaultThresholds(), pub)

	res := p.Run(context.Background(), "")

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 3, pub.pushes)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PublishRetries))
}

func TestPipeline_Run_PushExhausted(t *testing.T) {
	f := newFixture(t)
	s := f.settings()
	s.MaxPushAttempts = 2
	pub := &flakyPublisher{Registry: f.registry, failures: 10}
	p := f.pipeline(t, s, domain.DefaultThresholds(), pub)

	res := p.Run(context.Background(), "")

	assert.False(t, res.Success)
	assert.Equal(t, 2, pub.pushes)
	assert.Empty(t, res.TopHash)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "connection reset")
	assert.Empty(t, f.notifier.events)
}

func TestPipeline_Run_PushDisabled(t *testing.T) {
	f := newFixture(t)
	s := f.settings()
	s.Push = false
	p := f.pipeline(t, s, domain.DefaultThresholds(), nil)

	res := p.Run(context.Background(), "")

	require.True(t, res.Success, res.Errors)
	assert.NotEmpty(t, res.TopHash)
	assert.Empty(t, f.notifier.events)
	assert.Empty(t, f.indexer.summaries)

	pkgs, err := f.registry.ListPackages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

func TestPipeline_Run_NotifyFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	p := f.pipeline(t, f.settings(), domain.DefaultThresholds(), nil)

	res := p.Run(context.Background(), "")
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
}

func TestPipeline_Run_Filters(t *testing.T) {
	f := newFixture(t)
	s := f.settings()
	s.Filters = validation.Filters{StationIDs: []string{"USW00094728"}}
	p := f.pipeline(t, s, domain.DefaultThresholds(), nil)

	res := p.Run(context.Background(), "")

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 2, res.QualityReport.RowCount)
	assert.Equal(t, 1, res.QualityReport.StationCount)
}

func TestPipeline_Run_ReportDescribesPackagedFile(t *testing.T) {
	f := newFixture(t)
	narrow := "station_id,date,element,value\nUSW00094728,2024-01-01,TMAX,25.5\nUSW00094728,2024-01-01,TMIN,10.2\n"
	require.NoError(t, os.WriteFile(f.dataFile, []byte(narrow), 0o644))
	p := f.pipeline(t, f.settings(), domain.DefaultThresholds(), nil)

	res := p.Run(context.Background(), "")
	require.True(t, res.Success, res.Errors)
	require.NotNil(t, res.QualityReport)
	assert.Equal(t, len(domain.CanonicalColumns), res.QualityReport.ColumnCount)

	written, err := source.LoadCSV(res.DataFile)
	require.NoError(t, err)
	assert.Len(t, written.Header, res.QualityReport.ColumnCount)
}

func TestStatusReport(t *testing.T) {
	ok := domain.RunResult{
		RunID:         "run-1",
		Success:       true,
		PackageName:   "climate/daily",
		TopHash:       "abc123",
		DataFile:      "data/processed.csv",
		Timestamp:     runTime,
		QualityReport: &domain.Report{QualityScore: 82.5, RowCount: 120, NullPercentageAvg: 1.25, StationCount: 4},
	}
	out := pipeline.StatusReport(ok)
	assert.Contains(t, out, "Status: SUCCESS")
	assert.Contains(t, out, "Package: climate/daily")
	assert.Contains(t, out, "Data File: data/processed.csv")
	assert.Contains(t, out, "Quality Score: 82.5/100")
	assert.Contains(t, out, "Null %: 1.25%")
	assert.NotContains(t, out, "Errors:")

	failed := domain.RunResult{PackageName: "climate/daily", Timestamp: runTime, Errors: []string{"load: missing"}}
	out = pipeline.StatusReport(failed)
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "  - load: missing")
	assert.NotContains(t, out, "Quality Metrics")
}
