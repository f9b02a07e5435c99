package validation

import (
	"time"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// Filters selects a subset of an observation set. Empty fields keep
// everything; a zero Start or End leaves that side of the range open.
type Filters struct {
	StationIDs []string
	Elements   []domain.Element
	Start      time.Time
	End        time.Time
}

// Apply runs the station, element and date range filters in that order.
func (f Filters) Apply(s domain.ObservationSet) domain.ObservationSet {
	s = FilterElements(FilterStations(s, f.StationIDs), f.Elements)
	if f.Start.IsZero() && f.End.IsZero() {
		return s
	}
	end := f.End
	if end.IsZero() {
		end = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return FilterDateRange(s, f.Start, end)
}

// FilterStations keeps records whose station id is in ids. An empty ids
// returns s unchanged.
func FilterStations(s domain.ObservationSet, ids []string) domain.ObservationSet {
	if len(ids) == 0 {
		return s
	}
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	return filter(s, func(o domain.Observation) bool {
		_, ok := keep[o.StationID]
		return ok
	})
}

// FilterElements keeps records whose element is in elements.
func FilterElements(s domain.ObservationSet, elements []domain.Element) domain.ObservationSet {
	if len(elements) == 0 {
		return s
	}
	keep := make(map[domain.Element]struct{}, len(elements))
	for _, e := range elements {
		keep[e] = struct{}{}
	}
	return filter(s, func(o domain.Observation) bool {
		_, ok := keep[o.Element]
		return ok
	})
}

// FilterDateRange keeps records dated within [start, end].
func FilterDateRange(s domain.ObservationSet, start, end time.Time) domain.ObservationSet {
	return filter(s, func(o domain.Observation) bool {
		return !o.Date.Before(start) && !o.Date.After(end)
	})
}

func filter(s domain.ObservationSet, keep func(domain.Observation) bool) domain.ObservationSet {
	out := make([]domain.Observation, 0, s.Len())
	for _, o := range s.Records {
		if keep(o) {
			out = append(out, o)
		}
	}
	return domain.NewObservationSet(s.Columns, out)
}
