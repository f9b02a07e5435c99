// Package query answers read-only questions about published packages from
// their quality metadata and data files.
package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
	"github.com/couchcryptid/climate-data-monitor/internal/source"
	"github.com/couchcryptid/climate-data-monitor/internal/validation"
)

// ErrNoData is returned when a package has no CSV data file.
var ErrNoData = errors.New("package has no data file")

// Source is the registry surface the analyzer reads from.
type Source interface {
	Browse(ctx context.Context, name, ref string) (*registry.Manifest, error)
	ReadFile(ctx context.Context, m *registry.Manifest, key string) ([]byte, error)
	ListPackages(ctx context.Context) ([]string, error)
}

// Searcher finds package summaries by minimum score.
type Searcher interface {
	Search(ctx context.Context, minScore float64) ([]domain.PackageSummary, error)
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithIndex makes SearchPackages use idx instead of scanning the registry.
func WithIndex(idx Searcher) Option { return func(a *Analyzer) { a.index = idx } }

// WithClock sets the clock used to stamp text reports.
func WithClock(c clockwork.Clock) Option { return func(a *Analyzer) { a.clock = c } }

// Analyzer is the query façade over a registry.
type Analyzer struct {
	source Source
	index  Searcher
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer reading from src.
func NewAnalyzer(src Source, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{source: src, clock: clockwork.NewRealClock(), logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// QualityMetrics is the quality section of a package's metadata.
type QualityMetrics struct {
	QualityScore      float64   `json:"quality_score"`
	RowCount          int       `json:"row_count"`
	NullPercentageAvg float64   `json:"null_percentage_avg"`
	DuplicateCount    int       `json:"duplicate_count"`
	StationCount      int       `json:"station_count"`
	Timestamp         time.Time `json:"timestamp"`
}

// DataSummary describes the shape of a package's data file.
type DataSummary struct {
	Rows          int              `json:"rows"`
	Columns       int              `json:"columns"`
	ColumnNames   []string         `json:"column_names"`
	Elements      []domain.Element `json:"unique_elements"`
	Stations      int              `json:"unique_stations"`
	MissingValues int              `json:"missing_values"`
}

// PackageMetrics combines a package's stored report with a summary of its data.
type PackageMetrics struct {
	Package            string                    `json:"package"`
	TopHash            string                    `json:"top_hash"`
	QualityMetrics     QualityMetrics            `json:"quality_metrics"`
	TemperatureStats   domain.TemperatureRange   `json:"temperature_stats"`
	PrecipitationStats domain.PrecipitationStats `json:"precipitation_stats"`
	DataSummary        DataSummary               `json:"data_summary"`
}

// Sample is the first rows of a package's data.
type Sample struct {
	Package   string      `json:"package"`
	TotalRows int         `json:"total_rows"`
	Columns   []string    `json:"columns"`
	Rows      []SampleRow `json:"sample"`
}

// SampleRow is one observation keyed by its CSV column names.
type SampleRow struct {
	StationID       string         `json:"station_id"`
	Date            string         `json:"date"`
	Element         domain.Element `json:"element"`
	Value           *float64       `json:"value"`
	MeasurementFlag string         `json:"measurement_flag"`
	QualityFlag     string         `json:"quality_flag"`
	SourceFlag      string         `json:"source_flag"`
}

func sampleRow(o domain.Observation) SampleRow {
	return SampleRow{
		StationID:       o.StationID,
		Date:            o.Date.Format(domain.DateLayout),
		Element:         o.Element,
		Value:           o.Value,
		MeasurementFlag: o.MeasurementFlag,
		QualityFlag:     o.QualityFlag,
		SourceFlag:      o.SourceFlag,
	}
}

// loaded is a browsed package with its report and parsed data.
type loaded struct {
	manifest *registry.Manifest
	report   domain.Report
	data     domain.ObservationSet
}

// splitRef splits "ns/name@ref" into name and ref. A missing ref is "latest".
func splitRef(s string) (name, ref string) {
	name, ref, found := strings.Cut(s, "@")
	if !found || ref == "" {
		ref = "latest"
	}
	return name, ref
}

func (a *Analyzer) load(ctx context.Context, pkg string) (*loaded, error) {
	name, ref := splitRef(pkg)
	m, err := a.source.Browse(ctx, name, ref)
	if err != nil {
		return nil, err
	}
	report, err := domain.ReportFromMetadata(m.Meta)
	if err != nil {
		return nil, fmt.Errorf("read metadata of %s: %w", pkg, err)
	}
	l := &loaded{manifest: m, report: report}

	key := dataKey(m)
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoData, pkg)
	}
	raw, err := a.source.ReadFile(ctx, m, key)
	if err != nil {
		return nil, err
	}
	table, err := source.ReadCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read %s of %s: %w", key, pkg, err)
	}
	if l.data, err = validation.Parse(table); err != nil {
		return nil, fmt.Errorf("parse %s of %s: %w", key, pkg, err)
	}
	return l, nil
}

// dataKey returns the first CSV entry of m.
func dataKey(m *registry.Manifest) string {
	for _, k := range m.Keys() {
		if strings.HasSuffix(strings.ToLower(k), ".csv") {
			return k
		}
	}
	return ""
}

// SearchPackages returns the latest version of every package scoring at least
// minScore and carrying any of elements, highest score first.
func (a *Analyzer) SearchPackages(ctx context.Context, minScore float64, elements []domain.Element) ([]domain.PackageSummary, error) {
	var candidates []domain.PackageSummary
	if a.index != nil {
		found, err := a.index.Search(ctx, minScore)
		if err != nil {
			return nil, err
		}
		candidates = found
	} else {
		names, err := a.source.ListPackages(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			l, err := a.load(ctx, name)
			if err != nil {
				a.logger.Warn("skipping package", "package", name, "error", err)
				continue
			}
			candidates = append(candidates, summarize(l))
		}
	}

	out := make([]domain.PackageSummary, 0, len(candidates))
	for _, s := range candidates {
		if s.QualityScore >= minScore && s.HasAnyElement(elements) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QualityScore != out[j].QualityScore {
			return out[i].QualityScore > out[j].QualityScore
		}
		return out[i].Package < out[j].Package
	})
	return out, nil
}

func summarize(l *loaded) domain.PackageSummary {
	return domain.PackageSummary{
		Package:      l.manifest.Package,
		TopHash:      l.manifest.TopHash,
		QualityScore: l.report.QualityScore,
		RowCount:     l.report.RowCount,
		StationCount: l.report.StationCount,
		Elements:     l.data.Elements(),
		UpdatedAt:    l.report.Timestamp,
	}
}

// PackageMetrics returns the stored quality metrics of pkg together with a
// summary of its data. pkg may carry an @ref suffix.
func (a *Analyzer) PackageMetrics(ctx context.Context, pkg string) (PackageMetrics, error) {
	l, err := a.load(ctx, pkg)
	if err != nil {
		return PackageMetrics{}, err
	}
	return metricsOf(l), nil
}

func metricsOf(l *loaded) PackageMetrics {
	r := l.report
	return PackageMetrics{
		Package: l.manifest.Package,
		TopHash: l.manifest.TopHash,
		QualityMetrics: QualityMetrics{
			QualityScore:      r.QualityScore,
			RowCount:          r.RowCount,
			NullPercentageAvg: r.NullPercentageAvg,
			DuplicateCount:    r.DuplicateCount,
			StationCount:      r.StationCount,
			Timestamp:         r.Timestamp,
		},
		TemperatureStats:   r.TemperatureRange,
		PrecipitationStats: r.PrecipitationStats,
		DataSummary: DataSummary{
			Rows:          l.data.Len(),
			Columns:       l.data.ColumnCount(),
			ColumnNames:   columnNames(l.data),
			Elements:      l.data.Elements(),
			Stations:      len(l.data.Stations()),
			MissingValues: nullCount(l.data.Records),
		},
	}
}

// DataSample returns up to limit rows of pkg. A non-positive limit means 10.
func (a *Analyzer) DataSample(ctx context.Context, pkg string, limit int) (Sample, error) {
	if limit <= 0 {
		limit = 10
	}
	l, err := a.load(ctx, pkg)
	if err != nil {
		return Sample{}, err
	}
	n := min(limit, l.data.Len())
	rows := make([]SampleRow, 0, n)
	for _, o := range l.data.Records[:n] {
		rows = append(rows, sampleRow(o))
	}
	return Sample{
		Package:   l.manifest.Package,
		TotalRows: l.data.Len(),
		Columns:   columnNames(l.data),
		Rows:      rows,
	}, nil
}

func columnNames(s domain.ObservationSet) []string {
	if s.Columns == nil {
		return append([]string(nil), domain.CanonicalColumns...)
	}
	return append([]string(nil), s.Columns...)
}
