package domain

import (
	"fmt"
	"math"
	"time"
)

// Temperature elements subject to the absolute range check.
var rangeElements = []Element{ElementTMAX, ElementTMIN, ElementTOBS}

// RangeError reports a temperature outside the configured valid range.
type RangeError struct {
	Observation Observation
	Min, Max    float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %s on %s: value %g outside [%g, %g]",
		e.Observation.StationID, e.Observation.Element, e.Observation.Date.Format(DateLayout),
		*e.Observation.Value, e.Min, e.Max)
}

// NullPercentage returns the share of records with a null value, in percent.
// It is 0 for an empty set.
func NullPercentage(s ObservationSet) float64 {
	if s.Len() == 0 {
		return 0
	}
	nulls := 0
	for i := range s.Records {
		if s.Records[i].IsNull() {
			nulls++
		}
	}
	return 100 * float64(nulls) / float64(s.Len())
}

// CountDuplicates returns the number of records beyond the first in every
// (station_id, date, element) group.
func CountDuplicates(s ObservationSet) int {
	seen := make(map[ObservationKey]struct{}, s.Len())
	dups := 0
	for i := range s.Records {
		k := s.Records[i].Key()
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// Summary holds min, max and mean of a series. Every field is nil when the
// series is empty.
type Summary struct {
	Min  *float64
	Max  *float64
	Mean *float64
}

// Summarize computes the min, max and mean of values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	lo, hi, sum := values[0], values[0], 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	mean := sum / float64(len(values))
	return Summary{Min: &lo, Max: &hi, Mean: &mean}
}

// TemperatureStatistics summarizes the non-null TMAX and TMIN values.
func TemperatureStatistics(s ObservationSet) TemperatureRange {
	tmax := Summarize(s.Values(ElementTMAX))
	tmin := Summarize(s.Values(ElementTMIN))
	return TemperatureRange{
		TMaxMin: tmax.Min, TMaxMax: tmax.Max, TMaxMean: tmax.Mean,
		TMinMin: tmin.Min, TMinMax: tmin.Max, TMinMean: tmin.Mean,
	}
}

// MeanStdDev returns the mean and sample standard deviation (n-1) of values.
// ok is false with fewer than two values.
func MeanStdDev(values []float64) (mean, std float64, ok bool) {
	n := len(values)
	if n < 2 {
		return 0, 0, false
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1)), true
}

// TemperatureOutliers counts TMAX and TMIN values more than k sample standard
// deviations from their element's mean. Each element is evaluated on its own.
func TemperatureOutliers(s ObservationSet, k float64) int {
	total := 0
	for _, el := range []Element{ElementTMAX, ElementTMIN} {
		values := s.Values(el)
		mean, std, ok := MeanStdDev(values)
		if !ok {
			continue
		}
		for _, v := range values {
			if math.Abs(v-mean) > k*std {
				total++
			}
		}
	}
	return total
}

// TemperatureRangeValid reports whether every non-null TMAX, TMIN and TOBS
// value lies within [lo, hi].
func TemperatureRangeValid(s ObservationSet, lo, hi float64) bool {
	return firstOutOfRange(s, lo, hi) < 0
}

// ValidateTemperatureRange is the raising form of TemperatureRangeValid. It
// returns a *RangeError for the first offending record.
func ValidateTemperatureRange(s ObservationSet, lo, hi float64) error {
	if i := firstOutOfRange(s, lo, hi); i >= 0 {
		return &RangeError{Observation: s.Records[i], Min: lo, Max: hi}
	}
	return nil
}

func firstOutOfRange(s ObservationSet, lo, hi float64) int {
	for i := range s.Records {
		r := &s.Records[i]
		if r.Value == nil || !matches(r.Element, rangeElements) {
			continue
		}
		if *r.Value < lo || *r.Value > hi {
			return i
		}
	}
	return -1
}

// PrecipitationStatistics summarizes the non-null PRCP values.
func PrecipitationStatistics(s ObservationSet) PrecipitationStats {
	sum := Summarize(s.Values(ElementPRCP))
	return PrecipitationStats{PrcpMin: sum.Min, PrcpMax: sum.Max, PrcpMean: sum.Mean}
}

// ZeroPrecipitationPercentage returns the share of PRCP records whose value is
// exactly zero. Null PRCP records count toward the denominator.
func ZeroPrecipitationPercentage(s ObservationSet) float64 {
	total := s.Count(ElementPRCP)
	if total == 0 {
		return 0
	}
	zeros := 0
	for _, v := range s.Values(ElementPRCP) {
		if v == 0 {
			zeros++
		}
	}
	return 100 * float64(zeros) / float64(total)
}

// PrecipitationExtremes counts PRCP values strictly above limit.
func PrecipitationExtremes(s ObservationSet, limit float64) int {
	n := 0
	for _, v := range s.Values(ElementPRCP) {
		if v > limit {
			n++
		}
	}
	return n
}

// CountStations returns the number of distinct station ids.
func CountStations(s ObservationSet) int {
	return len(s.Stations())
}

// NewStations returns stations present in current but not in previous, sorted.
func NewStations(current, previous ObservationSet) []string {
	return stationDiff(current, previous)
}

// InactiveStations returns stations present in previous but not in current,
// sorted.
func InactiveStations(current, previous ObservationSet) []string {
	return stationDiff(previous, current)
}

func stationDiff(a, b ObservationSet) []string {
	exclude := make(map[string]struct{})
	for _, id := range b.Stations() {
		exclude[id] = struct{}{}
	}
	out := []string{}
	for _, id := range a.Stations() {
		if _, ok := exclude[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// MissingDays returns how many calendar days in [start, end] have no
// observation at all. It is 0 when end precedes start.
func MissingDays(s ObservationSet, start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return 0
	}
	present := make(map[string]struct{})
	for i := range s.Records {
		d := truncateDay(s.Records[i].Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		present[d.Format(DateLayout)] = struct{}{}
	}
	expected := int(end.Sub(start).Hours()/24) + 1
	return max(0, expected-len(present))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
