// Package registry stores versioned, content-addressed data packages.
//
// Layout under a backend:
//
//	objects/<sha256>                        file contents, shared across packages
//	manifests/<ns>/<name>/<tophash>.json    one manifest per version
//	pointers/<ns>/<name>/latest             top hash of the newest version
//	pointers/<ns>/<name>/<unix-ts>          top hash pushed at that time
package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

var (
	// ErrNotFound is returned for missing packages, versions and files.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPackage is returned when a package cannot be built.
	ErrInvalidPackage = errors.New("invalid package")
	// ErrAmbiguousRef is returned when a hash prefix matches several versions.
	ErrAmbiguousRef = errors.New("ambiguous version ref")
)

const latestRef = "latest"

// Version is one entry of a package's push history.
type Version struct {
	TopHash  string    `json:"top_hash"`
	PushedAt time.Time `json:"pushed_at"`
}

// Registry builds, pushes and browses packages on a Backend.
type Registry struct {
	backend Backend
	clock   clockwork.Clock
	logger  *slog.Logger
}

// New creates a Registry over backend.
func New(backend Backend, clock clockwork.Clock, logger *slog.Logger) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{backend: backend, clock: clock, logger: logger}
}

// Build hashes the given data files into an unpushed manifest with meta
// attached. meta must be a quality report dictionary.
func (r *Registry) Build(name string, files []string, meta map[string]any) (*Manifest, error) {
	pkg, err := ParsePackageName(name)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no data files", ErrInvalidPackage)
	}
	if err := domain.ValidateReport(meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPackage, err)
	}

	m := &Manifest{
		Package:   pkg.String(),
		Meta:      meta,
		CreatedAt: r.clock.Now().UTC(),
		sources:   make(map[string]string, len(files)),
	}
	for _, f := range files {
		entry, err := hashFile(f)
		if err != nil {
			return nil, err
		}
		if _, dup := m.sources[entry.LogicalKey]; dup {
			return nil, fmt.Errorf("%w: duplicate logical key %q", ErrInvalidPackage, entry.LogicalKey)
		}
		m.Entries = append(m.Entries, entry)
		m.sources[entry.LogicalKey] = f
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].LogicalKey < m.Entries[j].LogicalKey })

	if m.TopHash, err = ComputeTopHash(m.Entries, meta); err != nil {
		return nil, fmt.Errorf("compute top hash: %w", err)
	}
	return m, nil
}

func hashFile(p string) (Entry, error) {
	info, err := os.Stat(p)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: data file %s: %w", ErrInvalidPackage, p, err)
	}
	if info.IsDir() {
		return Entry{}, fmt.Errorf("%w: data file %s is a directory", ErrInvalidPackage, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return Entry{}, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", p, err)
	}
	return Entry{LogicalKey: filepath.Base(p), Hash: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// Push uploads the manifest's objects, skipping any already stored, then
// writes the manifest and moves the package pointers.
func (r *Registry) Push(ctx context.Context, m *Manifest) error {
	pkg, err := ParsePackageName(m.Package)
	if err != nil {
		return err
	}

	uploaded := 0
	for _, e := range m.Entries {
		key := objectKey(e.Hash)
		exists, err := r.backend.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("check object %s: %w", e.LogicalKey, err)
		}
		if exists {
			continue
		}
		src, ok := m.sources[e.LogicalKey]
		if !ok {
			return fmt.Errorf("%w: no local source for %q", ErrInvalidPackage, e.LogicalKey)
		}
		if err := r.putFile(ctx, key, src); err != nil {
			return err
		}
		uploaded++
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := r.backend.Put(ctx, manifestKey(pkg, m.TopHash), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	ts := strconv.FormatInt(r.clock.Now().Unix(), 10)
	for _, ref := range []string{ts, latestRef} {
		if err := r.backend.Put(ctx, pointerKey(pkg, ref), strings.NewReader(m.TopHash)); err != nil {
			return fmt.Errorf("write pointer %s: %w", ref, err)
		}
	}

	r.logger.Info("package pushed",
		"package", m.Package,
		"top_hash", m.TopHash,
		"objects_uploaded", uploaded,
		"objects_total", len(m.Entries),
	)
	return nil
}

func (r *Registry) putFile(ctx context.Context, key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()
	if err := r.backend.Put(ctx, key, f); err != nil {
		return fmt.Errorf("upload %s: %w", src, err)
	}
	return nil
}

// Resolve maps ref to a full top hash. ref may be empty or "latest", a full
// top hash, or a prefix matching exactly one version.
func (r *Registry) Resolve(ctx context.Context, name, ref string) (string, error) {
	pkg, err := ParsePackageName(name)
	if err != nil {
		return "", err
	}
	if ref == "" || ref == latestRef {
		return r.readPointer(ctx, pkg, latestRef)
	}

	keys, err := r.backend.List(ctx, manifestPrefix(pkg))
	if err != nil {
		return "", fmt.Errorf("list versions of %s: %w", pkg, err)
	}
	var matches []string
	for _, k := range keys {
		hash := strings.TrimSuffix(path.Base(k), ".json")
		if hash == ref {
			return hash, nil
		}
		if strings.HasPrefix(hash, ref) {
			matches = append(matches, hash)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s@%s", ErrNotFound, pkg, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: prefix %q matches %d versions of %s", ErrAmbiguousRef, ref, len(matches), pkg)
	}
}

// Browse loads the manifest of name at ref.
func (r *Registry) Browse(ctx context.Context, name, ref string) (*Manifest, error) {
	hash, err := r.Resolve(ctx, name, ref)
	if err != nil {
		return nil, err
	}
	return r.manifest(ctx, name, hash)
}

func (r *Registry) manifest(ctx context.Context, name, hash string) (*Manifest, error) {
	pkg, err := ParsePackageName(name)
	if err != nil {
		return nil, err
	}
	rc, err := r.backend.Get(ctx, manifestKey(pkg, hash))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest %s@%s: %w", pkg, hash, err)
	}
	return &m, nil
}

// ReadFile returns the contents of the entry with logical key in m.
func (r *Registry) ReadFile(ctx context.Context, m *Manifest, key string) ([]byte, error) {
	e, ok := m.Entry(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no file %q", ErrNotFound, m.Package, key)
	}
	rc, err := r.backend.Get(ctx, objectKey(e.Hash))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// ListPackages returns every package with a latest pointer, sorted.
func (r *Registry) ListPackages(ctx context.Context) ([]string, error) {
	keys, err := r.backend.List(ctx, "pointers/")
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	var out []string
	for _, k := range keys {
		parts := strings.Split(k, "/")
		if len(parts) == 4 && parts[3] == latestRef {
			out = append(out, parts[1]+"/"+parts[2])
		}
	}
	sort.Strings(out)
	return out, nil
}

// History returns the push history of name, newest first.
func (r *Registry) History(ctx context.Context, name string) ([]Version, error) {
	pkg, err := ParsePackageName(name)
	if err != nil {
		return nil, err
	}
	keys, err := r.backend.List(ctx, pointerPrefix(pkg))
	if err != nil {
		return nil, fmt.Errorf("list history of %s: %w", pkg, err)
	}

	var versions []Version
	for _, k := range keys {
		ts, err := strconv.ParseInt(path.Base(k), 10, 64)
		if err != nil {
			continue
		}
		hash, err := r.readPointer(ctx, pkg, path.Base(k))
		if err != nil {
			return nil, err
		}
		versions = append(versions, Version{TopHash: hash, PushedAt: time.Unix(ts, 0).UTC()})
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, pkg)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].PushedAt.After(versions[j].PushedAt) })
	return versions, nil
}

func (r *Registry) readPointer(ctx context.Context, pkg PackageName, ref string) (string, error) {
	rc, err := r.backend.Get(ctx, pointerKey(pkg, ref))
	if err != nil {
		return "", err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read pointer %s@%s: %w", pkg, ref, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func objectKey(hash string) string { return "objects/" + hash }

func manifestPrefix(p PackageName) string {
	return "manifests/" + p.Namespace + "/" + p.Name + "/"
}

func manifestKey(p PackageName, hash string) string {
	return manifestPrefix(p) + hash + ".json"
}

func pointerPrefix(p PackageName) string {
	return "pointers/" + p.Namespace + "/" + p.Name + "/"
}

func pointerKey(p PackageName, ref string) string { return pointerPrefix(p) + ref }
