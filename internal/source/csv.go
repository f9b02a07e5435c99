// Package source reads and writes GHCN-Daily style CSV files.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// ErrUnsupportedScheme is returned for source URLs other than file:// or a
// plain path.
var ErrUnsupportedScheme = errors.New("unsupported source url scheme")

// ResolveSourceURL turns a configured source URL into a local file path.
func ResolveSourceURL(raw string) (string, error) {
	switch {
	case raw == "":
		return "", fmt.Errorf("source url is empty")
	case strings.HasPrefix(raw, "file://"):
		return strings.TrimPrefix(raw, "file://"), nil
	case strings.Contains(raw, "://"):
		scheme, _, _ := strings.Cut(raw, "://")
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	default:
		return raw, nil
	}
}

// LoadCSV reads the file at path into a RawTable.
func LoadCSV(path string) (domain.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("open data file %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses CSV with a header row. Rows may have fewer cells than the
// header; missing cells read as empty.
func ReadCSV(r io.Reader) (domain.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawTable{}, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read rows: %w", err)
	}
	return domain.RawTable{Header: header, Rows: rows}, nil
}

// WriteCSV writes s in the canonical seven-column layout, creating parent
// directories as needed.
func WriteCSV(path string, s domain.ObservationSet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeCSV(f, s); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// EncodeCSV writes s to w in the canonical layout.
func EncodeCSV(w io.Writer, s domain.ObservationSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.CanonicalColumns); err != nil {
		return err
	}
	for _, o := range s.Records {
		value := ""
		if o.Value != nil {
			value = strconv.FormatFloat(*o.Value, 'f', -1, 64)
		}
		rec := []string{
			o.StationID, o.Date.Format(domain.DateLayout), string(o.Element), value,
			o.MeasurementFlag, o.QualityFlag, o.SourceFlag,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
