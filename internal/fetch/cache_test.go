package fetch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCache_PutGetClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "nested", "cache.db"), time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, ok, err := c.Get(ctx, "https://x/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "https://x/a", Entry{StatusCode: 200, ContentType: "application/json", Body: []byte(`{"a":1}`)}))
	e, ok, err := c.Get(ctx, "https://x/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, e.StatusCode)
	assert.Equal(t, "application/json", e.ContentType)
	assert.JSONEq(t, `{"a":1}`, string(e.Body))

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Get(ctx, "https://x/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewSQLiteCache(":memory:", time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	require.NoError(t, c.Put(ctx, "u", Entry{StatusCode: 200, Body: []byte("x")}))

	now = now.Add(59 * time.Minute)
	_, ok, err := c.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "u")
	require.NoError(t, err)
	assert.False(t, ok, "entry older than the TTL must be ignored")
}

func TestSQLiteCache_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewSQLiteCache(path, 0)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "u", Entry{StatusCode: 200, Body: []byte("kept")}))
	require.NoError(t, c.Close())

	c, err = NewSQLiteCache(path, 0)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	e, ok, err := c.Get(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", string(e.Body))
}
