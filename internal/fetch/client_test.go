package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docs2static/internal/config"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/metrics"
	"git.home.luguber.info/inful/docs2static/internal/retry"
)

type countingRecorder struct {
	metrics.NoopRecorder
	cache, network, limited int
}

func (r *countingRecorder) IncFetch(source string) {
	if source == metrics.SourceCache {
		r.cache++
		return
	}
	r.network++
}
func (r *countingRecorder) IncRateLimited() { r.limited++ }

func newTestClient(t *testing.T, cache Cache, rec metrics.Recorder) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient(Options{
		Timeout:  5 * time.Second,
		Retry:    retry.NewPolicy(config.RetryBackoffFixed, 2*time.Second, 2*time.Second, 1),
		Cache:    cache,
		Recorder: rec,
	})
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestClient_RateLimitedThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := &countingRecorder{}
	c, slept := newTestClient(t, nil, rec)
	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
	assert.Equal(t, 1, rec.limited)
}

func TestClient_RateLimitedHonoursRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c, slept := newTestClient(t, nil, nil)
	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, []time.Duration{time.Second}, *slept)
}

func TestClient_RateLimitedTwiceFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, nil, nil)
	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, derrors.IsRateLimited(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "exactly one retry")
}

func TestClient_NonSuccessIsReturnedNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cache, err := NewSQLiteCache(":memory:", time.Hour)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	c, _ := newTestClient(t, cache, nil)
	resp, err := c.FetchCached(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())

	_, ok, err := cache.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_FetchCachedServesFromCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	cache, err := NewSQLiteCache(":memory:", time.Hour)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	rec := &countingRecorder{}
	c, _ := newTestClient(t, cache, rec)
	ctx := context.Background()

	first, err := c.FetchCached(ctx, srv.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	second, err := c.FetchCached(ctx, srv.URL)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "body", string(second.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, rec.cache)
	assert.Equal(t, 1, rec.network)

	// Fetch bypasses the cache but refreshes it.
	_, err = c.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_BypassIgnoresCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	cache, err := NewSQLiteCache(":memory:", time.Hour)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()
	require.NoError(t, cache.Put(context.Background(), srv.URL, Entry{StatusCode: 200, Body: []byte("stale")}))

	c, _ := newTestClient(t, cache, nil)
	c.opts.Bypass = true
	resp, err := c.FetchCached(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(resp.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ThrottleSpacesCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	c, slept := newTestClient(t, nil, nil)
	c.opts.Throttle = time.Hour
	ctx := context.Background()
	_, err := c.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	_, err = c.Fetch(ctx, srv.URL)
	require.NoError(t, err)

	require.Len(t, *slept, 2)
	assert.Equal(t, time.Duration(0), (*slept)[0])
	assert.Greater(t, (*slept)[1], 59*time.Minute)
}

func TestClient_NetworkErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := newTestClient(t, nil, nil)
	_, err := c.Fetch(context.Background(), url)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryNetwork))
}

func TestNewFromConfig_NoCacheClears(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Path = t.TempDir() + "/cache.db"
	ctx := context.Background()

	seed, err := NewSQLiteCache(cfg.Cache.Path, time.Hour)
	require.NoError(t, err)
	require.NoError(t, seed.Put(ctx, "u", Entry{StatusCode: 200, Body: []byte("x")}))
	require.NoError(t, seed.Close())

	c, closeFn, err := NewFromConfig(ctx, cfg, true, nil, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()
	_, ok, err := c.opts.Cache.Get(ctx, "u")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewFromConfig_RefreshBypassesReads(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Path = t.TempDir() + "/cache.db"
	cfg.Cache.Refresh = true
	cfg.API.Throttle = 0
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	seed, err := NewSQLiteCache(cfg.Cache.Path, time.Hour)
	require.NoError(t, err)
	require.NoError(t, seed.Put(ctx, srv.URL, Entry{StatusCode: 200, Body: []byte("stale")}))
	require.NoError(t, seed.Close())

	c, closeFn, err := NewFromConfig(ctx, cfg, false, nil, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()
	assert.True(t, c.opts.Bypass)

	resp, err := c.FetchCached(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(resp.Body))

	entry, ok, err := c.opts.Cache.Get(ctx, srv.URL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", string(entry.Body), "refreshed responses are stored")
}

func TestNewFromConfig_CacheDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Disabled = true
	c, closeFn, err := NewFromConfig(context.Background(), cfg, false, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, c.opts.Cache)
	assert.NoError(t, closeFn())
}
