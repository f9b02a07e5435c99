package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Entry is one content-addressed file within a package version.
type Entry struct {
	LogicalKey string `json:"logical_key"`
	Hash       string `json:"sha256"`
	Size       int64  `json:"size"`
}

// Manifest describes one immutable package version.
type Manifest struct {
	Package   string         `json:"package"`
	Entries   []Entry        `json:"entries"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
	TopHash   string         `json:"top_hash"`

	// sources maps logical keys to local paths for manifests not yet pushed.
	sources map[string]string
}

// Entry returns the entry with the given logical key.
func (m *Manifest) Entry(key string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.LogicalKey == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Keys returns the logical keys in manifest order.
func (m *Manifest) Keys() []string {
	keys := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		keys[i] = e.LogicalKey
	}
	return keys
}

// ComputeTopHash hashes the sorted entries and metadata. Creation time and
// package name do not contribute, so identical content always hashes alike.
func ComputeTopHash(entries []Entry, meta map[string]any) (string, error) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LogicalKey < sorted[j].LogicalKey })

	// encoding/json writes map keys in sorted order, which makes this canonical.
	raw, err := json.Marshal(struct {
		Entries []Entry        `json:"entries"`
		Meta    map[string]any `json:"meta"`
	}{sorted, meta})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
