package domain

import "math"

// Component weights of the composite quality score.
const (
	WeightCompleteness     = 30.0
	WeightOutliers         = 25.0
	WeightTemperatureRange = 10.0
	WeightCoverage         = 25.0
	WeightSchema           = 10.0

	// coveragePerStation is the number of coverage points each distinct
	// station contributes before the component saturates.
	coveragePerStation = 2.0
)

// ScoreBreakdown is the per-dimension contribution to a quality score.
type ScoreBreakdown struct {
	Completeness     float64 `json:"completeness"`
	Outliers         float64 `json:"outliers"`
	TemperatureRange float64 `json:"temperature_range"`
	Coverage         float64 `json:"coverage"`
	Schema           float64 `json:"schema"`
	Total            float64 `json:"total"`
}

// scoreInputs are the metrics the composite score is derived from.
type scoreInputs struct {
	empty          bool
	nullPct        float64
	outliers       int
	temperatureN   int
	rangeValid     bool
	stationCount   int
	requiredSchema bool
}

func computeScore(in scoreInputs, t Thresholds) ScoreBreakdown {
	if in.empty {
		return ScoreBreakdown{}
	}

	var b ScoreBreakdown
	b.Completeness = math.Max(0, WeightCompleteness*(1-in.nullPct/t.MaxNullPercentage))

	outlierPct := 0.0
	if in.temperatureN > 0 {
		outlierPct = 100 * float64(in.outliers) / float64(in.temperatureN)
	}
	b.Outliers = math.Max(0, WeightOutliers*(1-outlierPct/t.MaxOutlierPercentage))

	if in.rangeValid {
		b.TemperatureRange = WeightTemperatureRange
	}
	b.Coverage = math.Min(WeightCoverage, coveragePerStation*float64(in.stationCount))
	if in.requiredSchema {
		b.Schema = WeightSchema
	}

	sum := b.Completeness + b.Outliers + b.TemperatureRange + b.Coverage + b.Schema
	b.Total = math.Min(100, math.Max(0, sum))
	return b
}
