package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteSummary prints the quality metrics, temperature and precipitation
// statistics and data files of pkg.
func (a *Analyzer) WriteSummary(ctx context.Context, w io.Writer, pkg string) error {
	l, err := a.load(ctx, pkg)
	if err != nil {
		return err
	}
	m := metricsOf(l)
	q := m.QualityMetrics
	t := m.TemperatureStats
	p := m.PrecipitationStats
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(w, "\n%s\nPackage Analysis: %s\n%s\n", rule, m.Package, rule)
	fmt.Fprintf(w, "Top Hash: %s\n", m.TopHash)

	fmt.Fprintln(w, "\nQuality Metrics:")
	fmt.Fprintf(w, "  quality_score: %.2f\n", q.QualityScore)
	fmt.Fprintf(w, "  row_count: %d\n", q.RowCount)
	fmt.Fprintf(w, "  null_percentage_avg: %.2f\n", q.NullPercentageAvg)
	fmt.Fprintf(w, "  duplicate_count: %d\n", q.DuplicateCount)
	fmt.Fprintf(w, "  station_count: %d\n", q.StationCount)

	fmt.Fprintln(w, "\nTemperature Statistics:")
	writeStat(w, "tmax_min", t.TMaxMin)
	writeStat(w, "tmax_max", t.TMaxMax)
	writeStat(w, "tmax_mean", t.TMaxMean)
	writeStat(w, "tmin_min", t.TMinMin)
	writeStat(w, "tmin_max", t.TMinMax)
	writeStat(w, "tmin_mean", t.TMinMean)

	fmt.Fprintln(w, "\nPrecipitation Statistics:")
	writeStat(w, "prcp_min", p.PrcpMin)
	writeStat(w, "prcp_max", p.PrcpMax)
	writeStat(w, "prcp_mean", p.PrcpMean)

	fmt.Fprintln(w, "\nData Files:")
	for _, k := range l.manifest.Keys() {
		fmt.Fprintf(w, "  - %s\n", k)
	}
	_, err = fmt.Fprintf(w, "\n%s\n", rule)
	return err
}

func writeStat(w io.Writer, name string, v *float64) {
	if v == nil {
		fmt.Fprintf(w, "  %s: null\n", name)
		return
	}
	fmt.Fprintf(w, "  %s: %.2f\n", name, *v)
}

// ExportMetadata writes the metadata of pkg to path as indented JSON.
func (a *Analyzer) ExportMetadata(ctx context.Context, pkg, path string) error {
	name, ref := splitRef(pkg)
	m, err := a.source.Browse(ctx, name, ref)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata of %s: %w", pkg, err)
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	a.logger.Info("exported metadata", "package", pkg, "path", path)
	return nil
}

// ExportData copies the first CSV data file of pkg to path.
func (a *Analyzer) ExportData(ctx context.Context, pkg, path string) error {
	name, ref := splitRef(pkg)
	m, err := a.source.Browse(ctx, name, ref)
	if err != nil {
		return err
	}
	key := dataKey(m)
	if key == "" {
		return fmt.Errorf("%w: %s", ErrNoData, pkg)
	}
	data, err := a.source.ReadFile(ctx, m, key)
	if err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	a.logger.Info("exported data", "package", pkg, "key", key, "path", path)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
