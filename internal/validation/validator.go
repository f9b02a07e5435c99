// Package validation turns raw observation tables into typed observation
// sets, rejecting input the quality engine is not meant to see.
package validation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// ErrInvalidData is wrapped by every validation failure.
var ErrInvalidData = errors.New("invalid climate data")

// Error describes the first failure of a named check.
type Error struct {
	Check  string
	Row    int // 1-based data row, 0 when the failure is not row-specific
	Detail string
}

func (e *Error) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s check failed at row %d: %s", e.Check, e.Row, e.Detail)
	}
	return fmt.Sprintf("%s check failed: %s", e.Check, e.Detail)
}

func (e *Error) Unwrap() error { return ErrInvalidData }

// Check is one named validation phase over a raw table.
type Check struct {
	Name string
	Run  func(domain.RawTable) error
}

// Checks lists every phase in the order Validate applies them.
var Checks = []Check{
	{Name: "columns", Run: CheckColumns},
	{Name: "dates", Run: CheckDates},
	{Name: "elements", Run: CheckElements},
	{Name: "values", Run: CheckValues},
	{Name: "station_ids", Run: CheckStationIDs},
}

// CheckColumns requires station_id, date, element and value in the header.
func CheckColumns(t domain.RawTable) error {
	var missing []string
	for _, c := range domain.RequiredColumns {
		if t.Column(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &Error{Check: "columns", Detail: "missing required columns: " + strings.Join(missing, ", ")}
	}
	return nil
}

// CheckDates requires every date cell to parse as YYYY-MM-DD.
func CheckDates(t domain.RawTable) error {
	col := t.Column(domain.ColumnDate)
	for i, row := range t.Rows {
		raw := strings.TrimSpace(t.Cell(row, col))
		if _, err := time.Parse(domain.DateLayout, raw); err != nil {
			return &Error{Check: "dates", Row: i + 1, Detail: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw)}
		}
	}
	return nil
}

// CheckElements requires every element cell to be a known GHCN-Daily code.
func CheckElements(t domain.RawTable) error {
	col := t.Column(domain.ColumnElement)
	for i, row := range t.Rows {
		el := domain.Element(strings.TrimSpace(t.Cell(row, col)))
		if !el.Valid() {
			return &Error{Check: "elements", Row: i + 1, Detail: fmt.Sprintf("invalid element type %q", el)}
		}
	}
	return nil
}

// CheckValues requires every value cell to be numeric or empty.
func CheckValues(t domain.RawTable) error {
	col := t.Column(domain.ColumnValue)
	for i, row := range t.Rows {
		if _, err := parseValue(t.Cell(row, col)); err != nil {
			return &Error{Check: "values", Row: i + 1, Detail: err.Error()}
		}
	}
	return nil
}

// CheckStationIDs requires every station_id cell to be non-empty.
func CheckStationIDs(t domain.RawTable) error {
	col := t.Column(domain.ColumnStationID)
	for i, row := range t.Rows {
		if strings.TrimSpace(t.Cell(row, col)) == "" {
			return &Error{Check: "station_ids", Row: i + 1, Detail: "missing or empty station id"}
		}
	}
	return nil
}

// Validator runs every check and converts the table on success.
type Validator struct {
	logger *slog.Logger
}

// NewValidator returns a Validator. A nil logger discards output.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Validator{logger: logger}
}

// Validate applies Checks in order, failing fast, then parses the rows.
func (v *Validator) Validate(t domain.RawTable) (domain.ObservationSet, error) {
	for _, c := range Checks {
		if err := c.Run(t); err != nil {
			v.logger.Warn("validation failed", "check", c.Name, "error", err)
			return domain.ObservationSet{}, err
		}
		v.logger.Debug("validation passed", "check", c.Name)
	}
	set, err := Parse(t)
	if err != nil {
		return domain.ObservationSet{}, err
	}
	v.logger.Info("all validations passed", "records", set.Len())
	return set, nil
}

// Parse converts a table that already passed Checks into an ObservationSet.
// The header is carried along so column_count reflects the source.
func Parse(t domain.RawTable) (domain.ObservationSet, error) {
	var (
		stationCol = t.Column(domain.ColumnStationID)
		dateCol    = t.Column(domain.ColumnDate)
		elementCol = t.Column(domain.ColumnElement)
		valueCol   = t.Column(domain.ColumnValue)
		mflagCol   = t.Column(domain.ColumnMeasurementFlag)
		qflagCol   = t.Column(domain.ColumnQualityFlag)
		sflagCol   = t.Column(domain.ColumnSourceFlag)
	)

	records := make([]domain.Observation, 0, len(t.Rows))
	for i, row := range t.Rows {
		date, err := time.Parse(domain.DateLayout, strings.TrimSpace(t.Cell(row, dateCol)))
		if err != nil {
			return domain.ObservationSet{}, &Error{Check: "dates", Row: i + 1, Detail: err.Error()}
		}
		value, err := parseValue(t.Cell(row, valueCol))
		if err != nil {
			return domain.ObservationSet{}, &Error{Check: "values", Row: i + 1, Detail: err.Error()}
		}
		records = append(records, domain.Observation{
			StationID:       strings.TrimSpace(t.Cell(row, stationCol)),
			Date:            date,
			Element:         domain.Element(strings.TrimSpace(t.Cell(row, elementCol))),
			Value:           value,
			MeasurementFlag: t.Cell(row, mflagCol),
			QualityFlag:     t.Cell(row, qflagCol),
			SourceFlag:      t.Cell(row, sflagCol),
		})
	}

	header := make([]string, len(t.Header))
	copy(header, t.Header)
	return domain.NewObservationSet(header, records), nil
}

// parseValue returns nil for an empty or NaN cell.
func parseValue(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric value %q", raw)
	}
	if math.IsInf(v, 0) {
		return nil, fmt.Errorf("non-finite value %q", raw)
	}
	return &v, nil
}
