package domain

import "time"

// PackageSummary is the searchable digest of one published package version.
type PackageSummary struct {
	Package      string    `json:"package"`
	TopHash      string    `json:"top_hash"`
	QualityScore float64   `json:"quality_score"`
	RowCount     int       `json:"row_count"`
	StationCount int       `json:"station_count"`
	Elements     []Element `json:"elements,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasAnyElement reports whether s carries at least one element in want. An
// empty want matches anything.
func (s PackageSummary) HasAnyElement(want []Element) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if matches(w, s.Elements) {
			return true
		}
	}
	return false
}
