package query

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-monitor/internal/registry"
)

func TestWriteSummary(t *testing.T) {
	a := seeded(t).analyzer()

	var buf bytes.Buffer
	require.NoError(t, a.WriteSummary(context.Background(), &buf, "climate/a"))

	out := buf.String()
	assert.Contains(t, out, "Package Analysis: climate/a")
	assert.Contains(t, out, "quality_score: 49.00")
	assert.Contains(t, out, "station_count: 2")
	assert.Contains(t, out, "tmax_max: 22.00")
	assert.Contains(t, out, "prcp_mean: 0.00")
	assert.Contains(t, out, "Data Files:")
	assert.Contains(t, out, ".csv")
}

func TestExportMetadata(t *testing.T) {
	r := seeded(t)
	a := r.analyzer()
	path := filepath.Join(r.dir, "out", "meta.json")

	require.NoError(t, a.ExportMetadata(context.Background(), "climate/b", path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.InDelta(t, 79.0, meta["quality_score"], 1e-9)
}

func TestExportData(t *testing.T) {
	r := seeded(t)
	a := r.analyzer()
	path := filepath.Join(r.dir, "out", "data.csv")

	require.NoError(t, a.ExportData(context.Background(), "climate/a", path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, csvA, string(raw))
}

func TestExport_UnknownPackage(t *testing.T) {
	r := seeded(t)
	a := r.analyzer()

	err := a.ExportData(context.Background(), "climate/missing", filepath.Join(r.dir, "x.csv"))
	require.ErrorIs(t, err, registry.ErrNotFound)
}
