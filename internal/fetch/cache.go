package fetch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is a cached response.
type Entry struct {
	StatusCode  int
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

// Cache stores successful responses keyed by URL.
type Cache interface {
	Get(ctx context.Context, url string) (*Entry, bool, error)
	Put(ctx context.Context, url string, e Entry) error
	Clear(ctx context.Context) error
	Close() error
}

// SQLiteCache implements Cache on a single SQLite table. Entries older than
// the TTL are treated as missing and purged lazily.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
}

// NewSQLiteCache opens (or creates) the cache database at path.
// Use ":memory:" for a throwaway cache.
func NewSQLiteCache(path string, ttl time.Duration) (*SQLiteCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db, ttl: ttl, now: time.Now}
	if err := c.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS responses (
		url TEXT PRIMARY KEY,
		status INTEGER NOT NULL,
		content_type TEXT,
		body BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stored_at ON responses(stored_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the entry for url when it exists and has not expired.
func (c *SQLiteCache) Get(ctx context.Context, url string) (*Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		e        Entry
		ct       sql.NullString
		storedAt int64
	)
	row := c.db.QueryRowContext(ctx,
		"SELECT status, content_type, body, stored_at FROM responses WHERE url = ?", url)
	if err := row.Scan(&e.StatusCode, &ct, &e.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query cache: %w", err)
	}
	e.ContentType = ct.String
	e.StoredAt = time.Unix(0, storedAt)
	if c.ttl > 0 && c.now().Sub(e.StoredAt) > c.ttl {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores e under url, replacing any previous entry.
func (c *SQLiteCache) Put(ctx context.Context, url string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.StoredAt.IsZero() {
		e.StoredAt = c.now()
	}
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO responses (url, status, content_type, body, stored_at) VALUES (?, ?, ?, ?, ?)",
		url, e.StatusCode, e.ContentType, e.Body, e.StoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	if c.ttl > 0 {
		cutoff := c.now().Add(-c.ttl).UnixNano()
		if _, err := c.db.ExecContext(ctx, "DELETE FROM responses WHERE stored_at < ?", cutoff); err != nil {
			return fmt.Errorf("purge expired entries: %w", err)
		}
	}
	return nil
}

// Clear drops every entry.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, "DELETE FROM responses"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
