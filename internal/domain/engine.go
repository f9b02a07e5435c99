package domain

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// ErrMissingValueColumn is returned when an observation set declares a header
// without a value column. Such a set cannot be scored at all.
var ErrMissingValueColumn = errors.New("observation set has no value column")

// Engine computes quality reports under a fixed threshold configuration.
// An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewEngine validates t and returns an engine bound to it.
func NewEngine(t Thresholds, opts ...Option) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		thresholds: t,
		clock:      clockwork.NewRealClock(),
		logger:     defaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Thresholds returns a copy of the engine's configuration.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Assess scores s and assembles a Report. Data-quality problems are measured,
// never returned; the only error is ErrMissingValueColumn.
func (e *Engine) Assess(s ObservationSet) (Report, error) {
	if err := checkStructure(s); err != nil {
		return Report{}, err
	}

	t := e.thresholds
	outliers := TemperatureOutliers(s, t.TempOutlierStdDev)
	rangeValid := TemperatureRangeValid(s, t.TempMinValid, t.TempMaxValid)
	stations := CountStations(s)
	nullPct := NullPercentage(s)

	breakdown := computeScore(scoreInputs{
		empty:          s.Len() == 0,
		nullPct:        nullPct,
		outliers:       outliers,
		temperatureN:   s.Count(ElementTMAX, ElementTMIN),
		rangeValid:     rangeValid,
		stationCount:   stations,
		requiredSchema: s.HasRequiredColumns(),
	}, t)

	r := Report{
		Timestamp:             e.clock.Now().UTC(),
		RowCount:              s.Len(),
		ColumnCount:           s.ColumnCount(),
		QualityScore:          breakdown.Total,
		NullPercentageAvg:     nullPct,
		DuplicateCount:        CountDuplicates(s),
		StationCount:          stations,
		TemperatureRange:      TemperatureStatistics(s),
		TemperatureOutliers:   outliers,
		PrecipitationStats:    PrecipitationStatistics(s),
		PrecipitationZeroPct:  ZeroPrecipitationPercentage(s),
		PrecipitationExtremes: PrecipitationExtremes(s, t.PrecipMaxDaily),
		Breakdown:             breakdown,
	}

	e.logger.Debug("quality assessment complete",
		"rows", r.RowCount,
		"stations", r.StationCount,
		"quality_score", r.QualityScore,
		"range_valid", rangeValid,
	)
	return r, nil
}

// ScoreBreakdown returns the per-dimension components of the score of s.
func (e *Engine) ScoreBreakdown(s ObservationSet) (ScoreBreakdown, error) {
	r, err := e.Assess(s)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	return r.Breakdown, nil
}

// Passes reports whether r meets the configured minimum quality score.
func (e *Engine) Passes(r Report) bool {
	return r.QualityScore >= e.thresholds.MinQualityScore
}

// ValidateTemperatureRange applies the engine's range bounds as a hard check.
func (e *Engine) ValidateTemperatureRange(s ObservationSet) error {
	return ValidateTemperatureRange(s, e.thresholds.TempMinValid, e.thresholds.TempMaxValid)
}

func checkStructure(s ObservationSet) error {
	if s.Columns != nil && !s.HasColumn(ColumnValue) {
		return fmt.Errorf("%w: header %v", ErrMissingValueColumn, s.Columns)
	}
	return nil
}
