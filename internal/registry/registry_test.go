package registry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPackage = "climate/daily-observations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMeta(score float64) map[string]any {
	return map[string]any{
		"timestamp":     "2024-03-01T12:00:00Z",
		"row_count":     3.0,
		"column_count":  7.0,
		"quality_score": score,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock, string) {
	t.Helper()
	root := t.TempDir()
	backend, err := NewLocalBackend(root)
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(backend, clock, discardLogger()), clock, root
}

func TestBuild(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	dir := t.TempDir()
	data := writeFile(t, dir, "climate.csv", "station_id,date,element,value\n")

	m, err := reg.Build("daily-observations", []string{data}, testMeta(80))
	require.NoError(t, err)

	assert.Equal(t, testPackage, m.Package)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "climate.csv", m.Entries[0].LogicalKey)
	assert.Equal(t, int64(30), m.Entries[0].Size)
	assert.Len(t, m.Entries[0].Hash, 64)
	assert.Len(t, m.TopHash, 64)

	t.Run("identical content gives identical top hash", func(t *testing.T) {
		other := writeFile(t, t.TempDir(), "climate.csv", "station_id,date,element,value\n")
		m2, err := reg.Build(testPackage, []string{other}, testMeta(80))
		require.NoError(t, err)
		assert.Equal(t, m.TopHash, m2.TopHash)
	})

	t.Run("different metadata changes top hash", func(t *testing.T) {
		m2, err := reg.Build(testPackage, []string{data}, testMeta(81))
		require.NoError(t, err)
		assert.NotEqual(t, m.TopHash, m2.TopHash)
	})
}

func TestBuild_Invalid(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	dir := t.TempDir()
	data := writeFile(t, dir, "climate.csv", "x\n")

	tests := []struct {
		name  string
		files []string
		meta  map[string]any
	}{
		{"missing file", []string{filepath.Join(dir, "nope.csv")}, testMeta(80)},
		{"directory", []string{dir}, testMeta(80)},
		{"no files", nil, testMeta(80)},
		{"report missing score", []string{data}, map[string]any{"timestamp": "x", "row_count": 1, "column_count": 1}},
		{"duplicate key", []string{data, data}, testMeta(80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Build(testPackage, tt.files, tt.meta)
			assert.ErrorIs(t, err, ErrInvalidPackage)
		})
	}
}

func TestPushBrowseRead(t *testing.T) {
	ctx := context.Background()
	reg, clock, root := newTestRegistry(t)
	dir := t.TempDir()
	data := writeFile(t, dir, "climate.csv", "a,b\n1,2\n")
	report := writeFile(t, dir, "quality_report.json", `{"quality_score": 80}`)

	m1, err := reg.Build(testPackage, []string{data, report}, testMeta(80))
	require.NoError(t, err)
	require.NoError(t, reg.Push(ctx, m1))

	assert.FileExists(t, filepath.Join(root, "objects", m1.Entries[0].Hash))
	assert.FileExists(t, filepath.Join(root, "manifests", "climate", "daily-observations", m1.TopHash+".json"))
	assert.FileExists(t, filepath.Join(root, "pointers", "climate", "daily-observations", "latest"))

	got, err := reg.Browse(ctx, testPackage, "latest")
	require.NoError(t, err)
	assert.Equal(t, m1.TopHash, got.TopHash)
	assert.Equal(t, 80.0, got.Meta["quality_score"])
	assert.Equal(t, []string{"climate.csv", "quality_report.json"}, got.Keys())

	content, err := reg.ReadFile(ctx, got, "climate.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(content))

	_, err = reg.ReadFile(ctx, got, "missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	// Second version with the same data file reuses the stored object.
	clock.Advance(time.Hour)
	m2, err := reg.Build(testPackage, []string{data}, testMeta(90))
	require.NoError(t, err)
	require.NoError(t, reg.Push(ctx, m2))

	latest, err := reg.Browse(ctx, testPackage, "")
	require.NoError(t, err)
	assert.Equal(t, m2.TopHash, latest.TopHash)

	byPrefix, err := reg.Browse(ctx, testPackage, m1.TopHash[:12])
	require.NoError(t, err)
	assert.Equal(t, m1.TopHash, byPrefix.TopHash)

	history, err := reg.History(ctx, testPackage)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, m2.TopHash, history[0].TopHash)
	assert.Equal(t, m1.TopHash, history[1].TopHash)
	assert.True(t, history[0].PushedAt.After(history[1].PushedAt))

	objects, err := os.ReadDir(filepath.Join(root, "objects"))
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestBrowse_NotFound(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)

	_, err := reg.Browse(ctx, "climate/none", "latest")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Browse(ctx, "climate/none", "abc123")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.History(ctx, "climate/none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPackages(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)
	data := writeFile(t, t.TempDir(), "climate.csv", "x\n")

	for _, name := range []string{"climate/zeta", "stations/alpha", "beta"} {
		m, err := reg.Build(name, []string{data}, testMeta(70))
		require.NoError(t, err)
		require.NoError(t, reg.Push(ctx, m))
	}

	pkgs, err := reg.ListPackages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"climate/beta", "climate/zeta", "stations/alpha"}, pkgs)
}

func TestResolve_AmbiguousPrefix(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	reg := New(backend, clockwork.NewFakeClock(), discardLogger())

	pkg, err := ParsePackageName(testPackage)
	require.NoError(t, err)
	for _, hash := range []string{"abc123", "abc456"} {
		require.NoError(t, backend.Put(ctx, manifestKey(pkg, hash), strings.NewReader("{}")))
	}

	_, err = reg.Resolve(ctx, testPackage, "abc")
	require.ErrorIs(t, err, ErrAmbiguousRef)

	hash, err := reg.Resolve(ctx, testPackage, "abc4")
	require.NoError(t, err)
	assert.Equal(t, "abc456", hash)
}
