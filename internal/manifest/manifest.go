// Package manifest records what a sync run produced so later runs (notably
// deploy-only runs that skip downloading) can rebuild the site from disk.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"git.home.luguber.info/inful/docs2static/internal/storage"
)

// FileName is where the manifest lives, relative to the output root.
const FileName = ".docs2static-manifest.json"

// Run status values.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// RunManifest describes one sync run.
type RunManifest struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Format    string    `json:"format"`
	Roots     []Root    `json:"roots"`
	Counts    Counts    `json:"counts"`
	Status    string    `json:"status"`
	Duration  int64     `json:"duration_ms"`
}

// Root is one mirrored traversal root.
type Root struct {
	ID         string         `json:"id"`
	Base       string         `json:"base"`
	Title      string         `json:"title"`
	Dir        string         `json:"dir"`
	ContentURL string         `json:"content_url"`
	LogoFile   string         `json:"logo_file,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Counts tallies node outcomes.
type Counts struct {
	Persisted int `json:"persisted"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// New starts a manifest for the run id.
func New(id, format string, started time.Time) *RunManifest {
	return &RunManifest{ID: id, Format: format, Timestamp: started.UTC()}
}

// Finish stamps the outcome of the run. The status is derived from the
// counts unless no root succeeded at all.
func (m *RunManifest) Finish(elapsed time.Duration) {
	m.Duration = elapsed.Milliseconds()
	switch {
	case len(m.Roots) == 0:
		m.Status = StatusFailed
	case m.Counts.Failed > 0:
		m.Status = StatusPartial
	default:
		m.Status = StatusSuccess
	}
}

// ToJSON serializes the manifest to JSON.
func (m *RunManifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*RunManifest, error) {
	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Hash identifies the inputs of the run: the format and the set of roots.
// Two runs over the same references in the same format hash equal.
func (m *RunManifest) Hash() string {
	type input struct {
		Format string   `json:"format"`
		Roots  []string `json:"roots"`
	}
	in := input{Format: m.Format}
	for _, r := range m.Roots {
		in.Roots = append(in.Roots, r.Base+"#"+r.ID)
	}
	sort.Strings(in.Roots)
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes the manifest at the store root.
func (m *RunManifest) Save(ctx context.Context, store storage.Store) error {
	data, err := m.ToJSON()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := store.WriteFile(ctx, FileName, append(data, '\n')); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load reads the manifest from the store root. A missing manifest yields
// storage.ErrNotFound.
func Load(ctx context.Context, store storage.Store) (*RunManifest, error) {
	data, err := store.ReadFile(ctx, FileName)
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}
