package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cast"
)

// ErrInvalidThresholds is returned when a threshold configuration cannot be
// used for scoring.
var ErrInvalidThresholds = errors.New("invalid quality thresholds")

// Threshold configuration keys.
const (
	KeyMinQualityScore      = "min_quality_score"
	KeyMaxNullPercentage    = "max_null_percentage"
	KeyMaxOutlierPercentage = "max_outlier_percentage"
	KeyTempOutlierStdDev    = "temp_outlier_std_dev"
	KeyTempMinValid         = "temp_min_valid"
	KeyTempMaxValid         = "temp_max_valid"
	KeyPrecipMaxDaily       = "precip_max_daily"
)

// ThresholdKeys lists every threshold configuration key.
var ThresholdKeys = []string{
	KeyMinQualityScore, KeyMaxNullPercentage, KeyMaxOutlierPercentage,
	KeyTempOutlierStdDev, KeyTempMinValid, KeyTempMaxValid, KeyPrecipMaxDaily,
}

// Thresholds parameterize the quality engine. A Thresholds value is copied
// into each Engine and never mutated afterwards.
type Thresholds struct {
	MinQualityScore      float64 `json:"min_quality_score"`
	MaxNullPercentage    float64 `json:"max_null_percentage"`
	MaxOutlierPercentage float64 `json:"max_outlier_percentage"`
	TempOutlierStdDev    float64 `json:"temp_outlier_std_dev"`
	TempMinValid         float64 `json:"temp_min_valid"` // °C, inclusive
	TempMaxValid         float64 `json:"temp_max_valid"` // °C, inclusive
	PrecipMaxDaily       float64 `json:"precip_max_daily"`
}

// DefaultThresholds returns the stock configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinQualityScore:      75,
		MaxNullPercentage:    15,
		MaxOutlierPercentage: 5,
		TempOutlierStdDev:    3,
		TempMinValid:         -60,
		TempMaxValid:         60,
		PrecipMaxDaily:       500,
	}
}

// Validate rejects configurations that would divide by zero or make the
// range check unsatisfiable.
func (t Thresholds) Validate() error {
	values := t.values()
	for _, key := range ThresholdKeys {
		if v := values[key]; math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalidThresholds, key, v)
		}
	}
	switch {
	case t.MinQualityScore < 0 || t.MinQualityScore > 100:
		return fmt.Errorf("%w: %s must be within [0, 100], got %g", ErrInvalidThresholds, KeyMinQualityScore, t.MinQualityScore)
	case t.MaxNullPercentage <= 0:
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidThresholds, KeyMaxNullPercentage, t.MaxNullPercentage)
	case t.MaxOutlierPercentage <= 0:
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidThresholds, KeyMaxOutlierPercentage, t.MaxOutlierPercentage)
	case t.TempOutlierStdDev <= 0:
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidThresholds, KeyTempOutlierStdDev, t.TempOutlierStdDev)
	case t.TempMinValid > t.TempMaxValid:
		return fmt.Errorf("%w: %s (%g) exceeds %s (%g)", ErrInvalidThresholds,
			KeyTempMinValid, t.TempMinValid, KeyTempMaxValid, t.TempMaxValid)
	}
	return nil
}

func (t Thresholds) values() map[string]float64 {
	return map[string]float64{
		KeyMinQualityScore:      t.MinQualityScore,
		KeyMaxNullPercentage:    t.MaxNullPercentage,
		KeyMaxOutlierPercentage: t.MaxOutlierPercentage,
		KeyTempOutlierStdDev:    t.TempOutlierStdDev,
		KeyTempMinValid:         t.TempMinValid,
		KeyTempMaxValid:         t.TempMaxValid,
		KeyPrecipMaxDaily:       t.PrecipMaxDaily,
	}
}

// ThresholdsFromMap overlays loosely typed values (as decoded from YAML or
// JSON) onto the defaults. Unknown keys are ignored; a known key whose value
// is not numeric is an error.
func ThresholdsFromMap(m map[string]any) (Thresholds, error) {
	t := DefaultThresholds()
	fields := map[string]*float64{
		KeyMinQualityScore:      &t.MinQualityScore,
		KeyMaxNullPercentage:    &t.MaxNullPercentage,
		KeyMaxOutlierPercentage: &t.MaxOutlierPercentage,
		KeyTempOutlierStdDev:    &t.TempOutlierStdDev,
		KeyTempMinValid:         &t.TempMinValid,
		KeyTempMaxValid:         &t.TempMaxValid,
		KeyPrecipMaxDaily:       &t.PrecipMaxDaily,
	}
	for key, dst := range fields {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			return Thresholds{}, fmt.Errorf("%w: %s: %v", ErrInvalidThresholds, key, err)
		}
		*dst = v
	}
	return t, t.Validate()
}
