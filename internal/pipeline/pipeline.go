package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/observability"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
	"github.com/couchcryptid/climate-data-monitor/internal/source"
	"github.com/couchcryptid/climate-data-monitor/internal/validation"
)

const fileTimestampLayout = "20060102_150405"

// Publisher builds and pushes package versions.
type Publisher interface {
	Build(name string, files []string, meta map[string]any) (*registry.Manifest, error)
	Push(ctx context.Context, m *registry.Manifest) error
}

// Notifier announces published packages.
type Notifier interface {
	Notify(ctx context.Context, event domain.PackagePublished) error
}

// Indexer records the latest summary of a published package.
type Indexer interface {
	Index(ctx context.Context, s domain.PackageSummary) error
}

// HistoryRecorder persists run outcomes.
type HistoryRecorder interface {
	Record(ctx context.Context, r domain.RunResult) error
}

// Settings controls where a run reads from and writes to.
type Settings struct {
	SourceURL       string
	DownloadDir     string
	OutputDir       string
	PackageName     string
	Push            bool
	EnforceMinScore bool
	Filters         validation.Filters
	// MaxPushAttempts bounds registry push retries. Zero means 3.
	MaxPushAttempts int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithNotifier sets the publication notifier.
func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithIndexer sets the package score index.
func WithIndexer(i Indexer) Option { return func(p *Pipeline) { p.indexer = i } }

// WithHistory sets the run history recorder.
func WithHistory(h HistoryRecorder) Option { return func(p *Pipeline) { p.history = h } }

// WithClock sets the clock used for run timestamps and file names.
func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithInitialBackoff sets the first push retry delay.
func WithInitialBackoff(d time.Duration) Option { return func(p *Pipeline) { p.initialBackoff = d } }

// Pipeline runs load, validate, assess, package and publish as one unit.
type Pipeline struct {
	settings  Settings
	engine    *domain.Engine
	validator *validation.Validator
	publisher Publisher
	notifier  Notifier
	indexer   Indexer
	history   HistoryRecorder
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	initialBackoff time.Duration
	maxBackoff     time.Duration

	// mu serializes runs so scheduled and on-demand runs never overlap.
	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline. The notifier, indexer and history recorder default
// to no-ops.
func New(settings Settings, engine *domain.Engine, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	if settings.MaxPushAttempts <= 0 {
		settings.MaxPushAttempts = 3
	}
	p := &Pipeline{
		settings:       settings,
		engine:         engine,
		validator:      validation.NewValidator(logger),
		publisher:      publisher,
		notifier:       nopNotifier{},
		indexer:        nopIndexer{},
		history:        nopHistory{},
		clock:          clockwork.NewRealClock(),
		logger:         logger,
		metrics:        metrics,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a successful run yet")
	}
	return nil
}

// Run executes one pipeline run. dataFile overrides the configured source
// when non-empty. Step failures are reported in the result, never returned.
func (p *Pipeline) Run(ctx context.Context, dataFile string) domain.RunResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res := domain.RunResult{
		RunID:       uuid.NewString(),
		PackageName: p.settings.PackageName,
		Timestamp:   p.clock.Now().UTC(),
		Errors:      []string{},
	}
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("pipeline run started", "package", res.PackageName)

	if err := p.run(ctx, &res, dataFile, logger); err != nil {
		logger.Error("pipeline run failed", "error", err)
		res.Success = false
		res.TopHash = ""
		res.Errors = append(res.Errors, err.Error())
		p.metrics.RunsTotal.WithLabelValues("failure").Inc()
	} else {
		res.Success = true
		p.ready.Store(true)
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
		logger.Info("pipeline run completed", "top_hash", res.TopHash)
	}

	if err := p.history.Record(ctx, res); err != nil {
		logger.Warn("record run history failed", "error", err)
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, res *domain.RunResult, dataFile string, logger *slog.Logger) error {
	stamp := res.Timestamp.Format(fileTimestampLayout)

	var set domain.ObservationSet
	err := p.stage("load", func() error {
		path := dataFile
		if path == "" {
			var err error
			if path, err = source.ResolveSourceURL(p.settings.SourceURL); err != nil {
				return err
			}
		}
		logger.Info("loading data", "path", path)
		table, err := source.LoadCSV(path)
		if err != nil {
			return err
		}
		set, err = p.validator.Validate(table)
		if err != nil {
			return fmt.Errorf("validate %s: %w", path, err)
		}
		set = p.settings.Filters.Apply(set)

		res.DataFile = filepath.Join(p.settings.DownloadDir, "climate_data_processed_"+stamp+".csv")
		if err := source.WriteCSV(res.DataFile, set); err != nil {
			return err
		}
		// The report describes the file that gets packaged.
		set = domain.NewObservationSet(domain.CanonicalColumns, set.Records)
		return nil
	})
	if err != nil {
		return err
	}

	var report domain.Report
	err = p.stage("assess", func() error {
		var err error
		if report, err = p.engine.Assess(set); err != nil {
			return err
		}
		res.QualityReport = &report
		res.Passed = p.engine.Passes(report)
		p.metrics.ObservationsAssessed.Add(float64(set.Len()))
		p.metrics.QualityScore.WithLabelValues(p.settings.PackageName).Set(report.QualityScore)

		res.ReportFile = filepath.Join(p.settings.OutputDir, "quality_report_"+stamp+".json")
		return writeReport(res.ReportFile, report)
	})
	if err != nil {
		return err
	}
	logger.Info("quality assessed", "quality_score", report.QualityScore, "passed", res.Passed)

	if p.settings.EnforceMinScore && !res.Passed {
		return fmt.Errorf("quality score %.2f below minimum %.2f",
			report.QualityScore, p.engine.Thresholds().MinQualityScore)
	}

	var m *registry.Manifest
	err = p.stage("package", func() error {
		meta, err := report.ToMetadata()
		if err != nil {
			return err
		}
		m, err = p.publisher.Build(p.settings.PackageName, []string{res.DataFile}, meta)
		return err
	})
	if err != nil {
		return fmt.Errorf("build package: %w", err)
	}
	res.PackageName = m.Package

	if !p.settings.Push {
		logger.Info("push disabled, package built locally", "top_hash", m.TopHash)
		res.TopHash = m.TopHash
		return nil
	}

	if err := p.stage("push", func() error { return p.pushWithRetry(ctx, m, logger) }); err != nil {
		return err
	}
	res.TopHash = m.TopHash
	p.metrics.PackagesPublished.Inc()

	p.announce(ctx, set, report, res, logger)
	return nil
}

// stage runs fn and records its duration.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

// pushWithRetry pushes m, backing off exponentially between failed attempts.
func (p *Pipeline) pushWithRetry(ctx context.Context, m *registry.Manifest, logger *slog.Logger) error {
	backoff := p.initialBackoff
	var err error
	for attempt := 1; attempt <= p.settings.MaxPushAttempts; attempt++ {
		if err = p.publisher.Push(ctx, m); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == p.settings.MaxPushAttempts {
			break
		}
		logger.Warn("push failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		p.metrics.PublishRetries.Inc()
		if !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, p.maxBackoff)
	}
	return fmt.Errorf("push %s: %w", m.Package, err)
}

// announce indexes and notifies a published version. Failures are logged only.
func (p *Pipeline) announce(ctx context.Context, set domain.ObservationSet, report domain.Report, res *domain.RunResult, logger *slog.Logger) {
	summary := domain.PackageSummary{
		Package:      res.PackageName,
		TopHash:      res.TopHash,
		QualityScore: report.QualityScore,
		RowCount:     report.RowCount,
		StationCount: report.StationCount,
		Elements:     set.Elements(),
		UpdatedAt:    res.Timestamp,
	}
	if err := p.indexer.Index(ctx, summary); err != nil {
		logger.Warn("index package failed", "error", err)
	}

	event := domain.PackagePublished{
		Package:      res.PackageName,
		TopHash:      res.TopHash,
		QualityScore: report.QualityScore,
		Passed:       res.Passed,
		Timestamp:    res.Timestamp,
	}
	if err := p.notifier.Notify(ctx, event); err != nil {
		logger.Warn("notify package published failed", "error", err)
	}
}

func writeReport(path string, r domain.Report) error {
	raw, err := r.MarshalIndent()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.PackagePublished) error { return nil }

type nopIndexer struct{}

func (nopIndexer) Index(context.Context, domain.PackageSummary) error { return nil }

type nopHistory struct{}

func (nopHistory) Record(context.Context, domain.RunResult) error { return nil }
