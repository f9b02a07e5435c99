package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidReport is returned when a metadata dictionary is not a quality report.
var ErrInvalidReport = errors.New("invalid quality report")

// RequiredReportKeys must be present in any report attached to a package.
var RequiredReportKeys = []string{"timestamp", "row_count", "column_count", "quality_score"}

// TemperatureRange holds TMAX and TMIN summary statistics. A nil field means
// the element had no non-null values.
type TemperatureRange struct {
	TMaxMin  *float64 `json:"tmax_min"`
	TMaxMax  *float64 `json:"tmax_max"`
	TMaxMean *float64 `json:"tmax_mean"`
	TMinMin  *float64 `json:"tmin_min"`
	TMinMax  *float64 `json:"tmin_max"`
	TMinMean *float64 `json:"tmin_mean"`
}

// PrecipitationStats holds PRCP summary statistics.
type PrecipitationStats struct {
	PrcpMin  *float64 `json:"prcp_min"`
	PrcpMax  *float64 `json:"prcp_max"`
	PrcpMean *float64 `json:"prcp_mean"`
}

// Report is the outcome of one quality assessment. Field order matches the
// persisted JSON layout.
type Report struct {
	Timestamp             time.Time          `json:"timestamp"`
	RowCount              int                `json:"row_count"`
	ColumnCount           int                `json:"column_count"`
	QualityScore          float64            `json:"quality_score"`
	NullPercentageAvg     float64            `json:"null_percentage_avg"`
	DuplicateCount        int                `json:"duplicate_count"`
	StationCount          int                `json:"station_count"`
	TemperatureRange      TemperatureRange   `json:"temperature_range"`
	TemperatureOutliers   int                `json:"temperature_outliers"`
	PrecipitationStats    PrecipitationStats `json:"precipitation_stats"`
	PrecipitationZeroPct  float64            `json:"precipitation_zero_pct"`
	PrecipitationExtremes int                `json:"precipitation_extremes"`

	// Breakdown is kept in memory only; the persisted layout is fixed.
	Breakdown ScoreBreakdown `json:"-"`
}

// MarshalIndent returns the persisted, indented JSON form of r.
func (r Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToMetadata converts r into the generic dictionary attached to packages.
func (r Report) ToMetadata() (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode report metadata: %w", err)
	}
	return meta, nil
}

// ValidateReport checks that meta carries every key in RequiredReportKeys.
func ValidateReport(meta map[string]any) error {
	if meta == nil {
		return fmt.Errorf("%w: metadata is empty", ErrInvalidReport)
	}
	for _, k := range RequiredReportKeys {
		if _, ok := meta[k]; !ok {
			return fmt.Errorf("%w: missing required key %q", ErrInvalidReport, k)
		}
	}
	return nil
}

// ReportFromMetadata reads a Report back out of package metadata.
func ReportFromMetadata(meta map[string]any) (Report, error) {
	if err := ValidateReport(meta); err != nil {
		return Report{}, err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return r, nil
}
