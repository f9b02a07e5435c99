package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

const sampleCSV = `station_id,date,element,value,measurement_flag,quality_flag,source_flag
USC00012345,2024-01-01,TMAX,25.5,,,7
USC00012345,2024-01-01,TMIN,10.2,,,7
USC00067890,2024-01-01,PRCP,,,,7
`

func TestResolveSourceURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"file:///data/climate.csv", "/data/climate.csv", nil},
		{"data/climate.csv", "data/climate.csv", nil},
		{"https://example.com/climate.csv", "", ErrUnsupportedScheme},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ResolveSourceURL(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveSourceURL("")
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "climate.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	tbl, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, domain.CanonicalColumns, tbl.Header)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "25.5", tbl.Rows[0][3])
	assert.Equal(t, "", tbl.Rows[2][3])
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	set := domain.NewObservationSet(nil, []domain.Observation{
		{StationID: "A", Date: day, Element: domain.ElementTMAX, Value: domain.Float(25.5), SourceFlag: "7"},
		{StationID: "B", Date: day, Element: domain.ElementPRCP},
	})

	path := filepath.Join(t.TempDir(), "nested", "dir", "out.csv")
	require.NoError(t, WriteCSV(path, set))

	tbl, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, domain.CanonicalColumns, tbl.Header)
	assert.Equal(t, [][]string{
		{"A", "2024-01-01", "TMAX", "25.5", "", "", "7"},
		{"B", "2024-01-01", "PRCP", "", "", "", ""},
	}, tbl.Rows)
}
