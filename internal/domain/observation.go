package domain

import (
	"sort"
	"time"
)

// DateLayout is the on-disk representation of an observation date.
const DateLayout = "2006-01-02"

// Column names of the GHCN-Daily long format.
const (
	ColumnStationID       = "station_id"
	ColumnDate            = "date"
	ColumnElement         = "element"
	ColumnValue           = "value"
	ColumnMeasurementFlag = "measurement_flag"
	ColumnQualityFlag     = "quality_flag"
	ColumnSourceFlag      = "source_flag"
)

// RequiredColumns must all be present for the schema-stability check to pass.
var RequiredColumns = []string{ColumnStationID, ColumnDate, ColumnElement, ColumnValue}

// CanonicalColumns is the full column order written by the pipeline.
var CanonicalColumns = []string{
	ColumnStationID, ColumnDate, ColumnElement, ColumnValue,
	ColumnMeasurementFlag, ColumnQualityFlag, ColumnSourceFlag,
}

// Element is a GHCN-Daily measurement type code.
type Element string

const (
	ElementTMAX Element = "TMAX"
	ElementTMIN Element = "TMIN"
	ElementTOBS Element = "TOBS"
	ElementPRCP Element = "PRCP"
	ElementSNOW Element = "SNOW"
	ElementSNWD Element = "SNWD"
	ElementEVAP Element = "EVAP"
	ElementMXPN Element = "MXPN"
	ElementMNPN Element = "MNPN"
	ElementPGTM Element = "PGTM"
	ElementWDMV Element = "WDMV"
)

var knownElements = map[Element]struct{}{
	ElementTMAX: {}, ElementTMIN: {}, ElementTOBS: {}, ElementPRCP: {},
	ElementSNOW: {}, ElementSNWD: {}, ElementEVAP: {}, ElementMXPN: {},
	ElementMNPN: {}, ElementPGTM: {}, ElementWDMV: {},
}

// Valid reports whether e is one of the known GHCN-Daily element codes.
func (e Element) Valid() bool {
	_, ok := knownElements[e]
	return ok
}

// KnownElements returns every valid element code in sorted order.
func KnownElements() []Element {
	out := make([]Element, 0, len(knownElements))
	for e := range knownElements {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Observation is one row of daily station data.
type Observation struct {
	StationID       string
	Date            time.Time
	Element         Element
	Value           *float64 // nil when the source cell was empty
	MeasurementFlag string
	QualityFlag     string
	SourceFlag      string
}

// ObservationKey is the natural dedup key of an observation.
type ObservationKey struct {
	StationID string
	Date      string
	Element   Element
}

// Key returns the (station_id, date, element) key of o.
func (o Observation) Key() ObservationKey {
	return ObservationKey{StationID: o.StationID, Date: o.Date.Format(DateLayout), Element: o.Element}
}

// IsNull reports whether the observation has no value.
func (o Observation) IsNull() bool { return o.Value == nil }

// Float returns a pointer to v, for building observations in code.
func Float(v float64) *float64 { return &v }

// ObservationSet is the ordered, read-only input of one assessment run.
//
// Columns is the header of the table the records came from. A nil Columns
// means the records were built in code and carry the canonical schema.
type ObservationSet struct {
	Columns []string
	Records []Observation
}

// NewObservationSet returns a set over the given header and records.
func NewObservationSet(columns []string, records []Observation) ObservationSet {
	return ObservationSet{Columns: columns, Records: records}
}

// Len returns the number of records.
func (s ObservationSet) Len() int { return len(s.Records) }

// ColumnCount returns the width of the source table.
func (s ObservationSet) ColumnCount() int {
	if s.Columns == nil {
		return len(CanonicalColumns)
	}
	return len(s.Columns)
}

// HasColumn reports whether the source table declared the named column.
func (s ObservationSet) HasColumn(name string) bool {
	if s.Columns == nil {
		for _, c := range CanonicalColumns {
			if c == name {
				return true
			}
		}
		return false
	}
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// HasRequiredColumns reports whether every column in RequiredColumns is present.
func (s ObservationSet) HasRequiredColumns() bool {
	for _, c := range RequiredColumns {
		if !s.HasColumn(c) {
			return false
		}
	}
	return true
}

// Count returns how many records carry any of the given elements, nulls included.
func (s ObservationSet) Count(elements ...Element) int {
	n := 0
	for i := range s.Records {
		if matches(s.Records[i].Element, elements) {
			n++
		}
	}
	return n
}

// Values returns the non-null values of records carrying any of the given
// elements, in input order.
func (s ObservationSet) Values(elements ...Element) []float64 {
	var out []float64
	for i := range s.Records {
		r := &s.Records[i]
		if r.Value == nil || !matches(r.Element, elements) {
			continue
		}
		out = append(out, *r.Value)
	}
	return out
}

// Stations returns the distinct station ids in sorted order.
func (s ObservationSet) Stations() []string {
	seen := make(map[string]struct{})
	for i := range s.Records {
		seen[s.Records[i].StationID] = struct{}{}
	}
	return sortedKeys(seen)
}

// Elements returns the distinct element codes in sorted order.
func (s ObservationSet) Elements() []Element {
	seen := make(map[Element]struct{})
	for i := range s.Records {
		seen[s.Records[i].Element] = struct{}{}
	}
	out := make([]Element, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func matches(e Element, elements []Element) bool {
	for _, want := range elements {
		if e == want {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RawTable is an untyped table as read from a CSV file or API response,
// before validation.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named header column, or -1.
func (t RawTable) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns row[col] or "" when the row is short or col is -1.
func (t RawTable) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
