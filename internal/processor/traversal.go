package processor

import (
	"sync"

	"git.home.luguber.info/inful/docs2static/internal/manifest"
)

// Traversal is the state shared by every node of one run: the documents
// already claimed and the outcome tallies.
type Traversal struct {
	RunID string

	mu        sync.Mutex
	processed map[string]bool
	counts    manifest.Counts
}

// NewTraversal returns an empty traversal for runID.
func NewTraversal(runID string) *Traversal {
	return &Traversal{RunID: runID, processed: map[string]bool{}}
}

// Claim marks id as processed. It reports false when id was already claimed
// earlier in the run.
func (t *Traversal) Claim(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.processed[id] {
		return false
	}
	t.processed[id] = true
	return true
}

// Processed reports whether id has been claimed.
func (t *Traversal) Processed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed[id]
}

// Counts returns a snapshot of the outcome tallies.
func (t *Traversal) Counts() manifest.Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts
}

func (t *Traversal) tally(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch status {
	case statusPersisted:
		t.counts.Persisted++
	case statusUnchanged:
		t.counts.Unchanged++
	case statusSkipped:
		t.counts.Skipped++
	case statusFailed:
		t.counts.Failed++
	}
}
