// Package events publishes sync notifications: one per document outcome and
// a summary when a run ends.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/manifest"
)

// Event types.
const (
	TypeDocument = "document"
	TypeRun      = "run"
)

// Status values carried by a document Event. Run events carry the manifest
// run status instead.
const (
	StatusPersisted = "persisted"
	StatusUnchanged = "unchanged"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Event describes the outcome of one document, or of a whole run when Type
// is TypeRun.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	DocID     string    `json:"doc_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Path      string    `json:"path,omitempty"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Run summary fields.
	Counts     *manifest.Counts `json:"counts,omitempty"`
	DurationMS int64            `json:"duration_ms,omitempty"`
}

// RunSummary builds the event closing a run.
func RunSummary(runID, status string, counts manifest.Counts, elapsed time.Duration) Event {
	return Event{
		Type:       TypeRun,
		RunID:      runID,
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Counts:     &counts,
		DurationMS: elapsed.Milliseconds(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// OrNoop returns p, or Noop when p is nil.
func OrNoop(p Publisher) Publisher {
	if p == nil {
		return Noop{}
	}
	return p
}

// NATSPublisher publishes JSON encoded events on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url. The connection is owned by the publisher.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if subject == "" {
		return nil, fmt.Errorf("events subject is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("docs2static"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("NATS publisher initialized", logfields.URL(url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Type == "" {
		ev.Type = TypeDocument
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("Published event", slog.String("type", ev.Type), logfields.DocID(ev.DocID), slog.String("status", ev.Status))
	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.FlushTimeout(5 * time.Second)
	p.conn.Close()
	return err
}

// Memory keeps published events in memory.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Close implements Publisher.
func (m *Memory) Close() error { return nil }

// Events returns a copy of the published events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// ByStatus returns the doc ids of published document events with status.
func (m *Memory) ByStatus(status string) []string {
	var ids []string
	for _, ev := range m.Events() {
		if ev.Type != TypeRun && ev.Status == status {
			ids = append(ids, ev.DocID)
		}
	}
	return ids
}

// Runs returns the published run summaries.
func (m *Memory) Runs() []Event {
	var runs []Event
	for _, ev := range m.Events() {
		if ev.Type == TypeRun {
			runs = append(runs, ev)
		}
	}
	return runs
}
