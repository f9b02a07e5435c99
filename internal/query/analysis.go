package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// ErrNoTemperatureData is returned by TemperatureTrends for packages without
// TMAX or TMIN records.
var ErrNoTemperatureData = errors.New("no temperature data found")

// maxStationsInCompleteness caps the per-station completeness breakdown.
const maxStationsInCompleteness = 10

// Comparison is the drift between two packages or two versions of one package.
// Every change is B minus A.
type Comparison struct {
	PackageA             string   `json:"package_a"`
	PackageB             string   `json:"package_b"`
	QualityScoreChange   float64  `json:"quality_score_change"`
	RowCountChange       int      `json:"row_count_change"`
	StationCountChange   int      `json:"station_count_change"`
	NullPercentageChange float64  `json:"null_percentage_change"`
	TMaxChange           float64  `json:"tmax_change"`
	TMinChange           float64  `json:"tmin_change"`
	NewStations          []string `json:"new_stations"`
	InactiveStations     []string `json:"inactive_stations"`
}

// ComparePackages compares a against b. Either side may carry an @ref suffix,
// so two versions of one package compare the same way as two packages.
func (a *Analyzer) ComparePackages(ctx context.Context, pkgA, pkgB string) (Comparison, error) {
	la, err := a.load(ctx, pkgA)
	if err != nil {
		return Comparison{}, fmt.Errorf("load %s: %w", pkgA, err)
	}
	lb, err := a.load(ctx, pkgB)
	if err != nil {
		return Comparison{}, fmt.Errorf("load %s: %w", pkgB, err)
	}
	ra, rb := la.report, lb.report
	return Comparison{
		PackageA:             pkgA,
		PackageB:             pkgB,
		QualityScoreChange:   rb.QualityScore - ra.QualityScore,
		RowCountChange:       rb.RowCount - ra.RowCount,
		StationCountChange:   rb.StationCount - ra.StationCount,
		NullPercentageChange: rb.NullPercentageAvg - ra.NullPercentageAvg,
		TMaxChange:           orZero(rb.TemperatureRange.TMaxMean) - orZero(ra.TemperatureRange.TMaxMean),
		TMinChange:           orZero(rb.TemperatureRange.TMinMean) - orZero(ra.TemperatureRange.TMinMean),
		NewStations:          domain.NewStations(lb.data, la.data),
		InactiveStations:     domain.InactiveStations(lb.data, la.data),
	}, nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// ElementStats describes the non-null values of one element. Std needs at
// least two values.
type ElementStats struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

// ValueRange is the span of a set of values.
type ValueRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Trends summarizes the temperature records of a package.
type Trends struct {
	Package string       `json:"package"`
	TMax    ElementStats `json:"tmax_stats"`
	TMin    ElementStats `json:"tmin_stats"`
	Range   ValueRange   `json:"temperature_range"`
}

// TemperatureTrends describes the TMAX and TMIN values of pkg.
func (a *Analyzer) TemperatureTrends(ctx context.Context, pkg string) (Trends, error) {
	l, err := a.load(ctx, pkg)
	if err != nil {
		return Trends{}, err
	}
	all := l.data.Values(domain.ElementTMAX, domain.ElementTMIN)
	if len(all) == 0 {
		return Trends{}, fmt.Errorf("%w: %s", ErrNoTemperatureData, pkg)
	}
	s := domain.Summarize(all)
	return Trends{
		Package: l.manifest.Package,
		TMax:    describe(l.data.Values(domain.ElementTMAX)),
		TMin:    describe(l.data.Values(domain.ElementTMIN)),
		Range:   ValueRange{Min: *s.Min, Max: *s.Max, Mean: *s.Mean},
	}, nil
}

func describe(values []float64) ElementStats {
	s := domain.Summarize(values)
	out := ElementStats{Count: len(values), Mean: s.Mean, Min: s.Min, Max: s.Max}
	if _, std, ok := domain.MeanStdDev(values); ok {
		out.Std = &std
	}
	return out
}

// CompletenessGroup counts records and null values in one slice of the data.
type CompletenessGroup struct {
	Count          int     `json:"count"`
	NullCount      int     `json:"null_count"`
	NullPercentage float64 `json:"null_percentage"`
}

// CompletenessReport breaks down null values overall, by element and by
// station. MissingDays counts days between FirstDate and LastDate with no
// observation at all.
type CompletenessReport struct {
	Package     string                               `json:"package"`
	Overall     CompletenessGroup                    `json:"overall_completeness"`
	ByElement   map[domain.Element]CompletenessGroup `json:"by_element"`
	ByStation   map[string]CompletenessGroup         `json:"by_station"`
	FirstDate   string                               `json:"first_date,omitempty"`
	LastDate    string                               `json:"last_date,omitempty"`
	MissingDays int                                  `json:"missing_days"`
}

// Completeness reports null values of pkg. Only the first stations in sorted
// order are broken down.
func (a *Analyzer) Completeness(ctx context.Context, pkg string) (CompletenessReport, error) {
	l, err := a.load(ctx, pkg)
	if err != nil {
		return CompletenessReport{}, err
	}
	byElement := make(map[domain.Element][]domain.Observation)
	byStation := make(map[string][]domain.Observation)
	for _, o := range l.data.Records {
		byElement[o.Element] = append(byElement[o.Element], o)
		byStation[o.StationID] = append(byStation[o.StationID], o)
	}

	out := CompletenessReport{
		Package:   l.manifest.Package,
		Overall:   group(l.data.Records),
		ByElement: make(map[domain.Element]CompletenessGroup, len(byElement)),
		ByStation: make(map[string]CompletenessGroup),
	}
	for e, recs := range byElement {
		out.ByElement[e] = group(recs)
	}
	stations := l.data.Stations()
	if len(stations) > maxStationsInCompleteness {
		stations = stations[:maxStationsInCompleteness]
	}
	for _, id := range stations {
		out.ByStation[id] = group(byStation[id])
	}
	if first, last, ok := dateSpan(l.data); ok {
		out.FirstDate = first.Format(domain.DateLayout)
		out.LastDate = last.Format(domain.DateLayout)
		out.MissingDays = domain.MissingDays(l.data, first, last)
	}
	return out, nil
}

func dateSpan(s domain.ObservationSet) (first, last time.Time, ok bool) {
	for i, o := range s.Records {
		if i == 0 || o.Date.Before(first) {
			first = o.Date
		}
		if i == 0 || o.Date.After(last) {
			last = o.Date
		}
	}
	return first, last, s.Len() > 0
}

func group(recs []domain.Observation) CompletenessGroup {
	g := CompletenessGroup{Count: len(recs), NullCount: nullCount(recs)}
	if g.Count > 0 {
		g.NullPercentage = 100 * float64(g.NullCount) / float64(g.Count)
	}
	return g
}

func nullCount(recs []domain.Observation) int {
	n := 0
	for _, o := range recs {
		if o.IsNull() {
			n++
		}
	}
	return n
}

// Interpretation bands for a quality score.
const (
	BandExcellent = "EXCELLENT - Data is high quality and ready for analysis"
	BandGood      = "GOOD - Data is acceptable for most uses"
	BandModerate  = "MODERATE - Review results before use"
	BandPoor      = "POOR - Data requires investigation"
)

// Interpret maps a quality score to its interpretation band.
func Interpret(score float64) string {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 75:
		return BandGood
	case score >= 50:
		return BandModerate
	default:
		return BandPoor
	}
}

// SummaryReport renders a text analysis of pkg.
func (a *Analyzer) SummaryReport(ctx context.Context, pkg string) (string, error) {
	l, err := a.load(ctx, pkg)
	if err != nil {
		return "", err
	}
	m := metricsOf(l)
	q := m.QualityMetrics
	heavy := strings.Repeat("=", 70)
	light := strings.Repeat("-", 70)

	var b strings.Builder
	fmt.Fprintf(&b, "CLIMATE DATA PACKAGE ANALYSIS REPORT\n%s\n\n", heavy)
	fmt.Fprintf(&b, "Package: %s\n", m.Package)
	fmt.Fprintf(&b, "Top Hash: %s\n", m.TopHash)
	fmt.Fprintf(&b, "Generated: %s\n\n", a.clock.Now().UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "QUALITY METRICS\n%s\n", light)
	fmt.Fprintf(&b, "Quality Score: %.1f/100\n", q.QualityScore)
	fmt.Fprintf(&b, "Rows: %d\n", q.RowCount)
	fmt.Fprintf(&b, "Stations: %d\n", q.StationCount)
	fmt.Fprintf(&b, "Null Percentage: %.2f%%\n", q.NullPercentageAvg)
	fmt.Fprintf(&b, "Duplicates: %d\n\n", q.DuplicateCount)

	fmt.Fprintf(&b, "TEMPERATURE ANALYSIS\n%s\n", light)
	if all := l.data.Values(domain.ElementTMAX, domain.ElementTMIN); len(all) > 0 {
		s := domain.Summarize(all)
		fmt.Fprintf(&b, "Min Temperature: %.1f°C\n", *s.Min)
		fmt.Fprintf(&b, "Max Temperature: %.1f°C\n", *s.Max)
		fmt.Fprintf(&b, "Mean Temperature: %.1f°C\n", *s.Mean)
	} else {
		b.WriteString("No temperature data\n")
	}

	overall := group(l.data.Records)
	fmt.Fprintf(&b, "\nDATA COMPLETENESS\n%s\n", light)
	fmt.Fprintf(&b, "Overall Null %%: %.2f%%\n", overall.NullPercentage)
	if elements := elementNames(l.data); len(elements) > 0 {
		fmt.Fprintf(&b, "Elements: %s\n", strings.Join(elements, ", "))
	}

	fmt.Fprintf(&b, "\nINTERPRETATION\n%s\n%s\n", light, Interpret(q.QualityScore))
	return b.String(), nil
}

func elementNames(s domain.ObservationSet) []string {
	els := s.Elements()
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = string(e)
	}
	return out
}
