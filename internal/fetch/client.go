package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/metrics"
	"git.home.luguber.info/inful/docs2static/internal/retry"
)

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Throttle is the minimum delay between two network calls.
	Throttle time.Duration
	// Retry governs the wait and attempt count after an HTTP 429.
	Retry retry.Policy
	// Cache is optional; nil disables response caching.
	Cache Cache
	// Bypass ignores cached entries on read while still refreshing them.
	Bypass   bool
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Client is the resty-backed Fetcher.
type Client struct {
	http     *resty.Client
	opts     Options
	recorder metrics.Recorder
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:     rc,
		opts:     opts,
		recorder: metrics.OrNoop(opts.Recorder),
		logger:   logger,
		sleep:    sleepContext,
	}
}

// FetchCached implements Fetcher.
func (c *Client) FetchCached(ctx context.Context, url string) (*Response, error) {
	if c.opts.Cache != nil && !c.opts.Bypass {
		entry, ok, err := c.opts.Cache.Get(ctx, url)
		if err != nil {
			// A broken cache degrades to network fetches.
			c.logger.Warn("Cache lookup failed", logfields.URL(url), logfields.Error(err))
		} else if ok {
			c.recorder.IncFetch(metrics.SourceCache)
			c.logger.Debug("Fetched", logfields.URL(url), logfields.Source(metrics.SourceCache))
			return &Response{
				URL:         url,
				StatusCode:  entry.StatusCode,
				ContentType: entry.ContentType,
				Body:        entry.Body,
				FromCache:   true,
			}, nil
		}
	}
	return c.Fetch(ctx, url)
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			c.store(ctx, resp)
			return resp, nil
		}
		c.recorder.IncRateLimited()
		if attempt >= c.opts.Retry.MaxRetries {
			return nil, derrors.RateLimited(url).
				WithContext("attempts", attempt+1).
				Build()
		}
		delay := c.opts.Retry.After(attempt+1, resp.RetryAfter, time.Now())
		c.logger.Warn("Rate limited, backing off",
			logfields.URL(url),
			slog.Duration("delay", delay),
			slog.Int("attempt", attempt+1))
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) do(ctx context.Context, url string) (*Response, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	r, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, derrors.WrapError(err, derrors.CategoryNetwork, "request failed").
			Retryable().
			WithContext("url", url).
			Build()
	}
	c.recorder.IncFetch(metrics.SourceNetwork)
	c.logger.Debug("Fetched",
		logfields.URL(url),
		logfields.Source(metrics.SourceNetwork),
		logfields.Status(r.StatusCode()),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return &Response{
		URL:         url,
		StatusCode:  r.StatusCode(),
		ContentType: r.Header().Get("Content-Type"),
		Body:        r.Body(),
		RetryAfter:  r.Header().Get("Retry-After"),
	}, nil
}

// store caches successful answers only.
func (c *Client) store(ctx context.Context, resp *Response) {
	if c.opts.Cache == nil || !resp.OK() {
		return
	}
	err := c.opts.Cache.Put(ctx, resp.URL, Entry{
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	})
	if err != nil {
		c.logger.Warn("Cache store failed", logfields.URL(resp.URL), logfields.Error(err))
	}
}

// throttle waits until the politeness delay since the previous network call has passed.
func (c *Client) throttle(ctx context.Context) error {
	if c.opts.Throttle <= 0 {
		return nil
	}
	c.mu.Lock()
	wait := time.Until(c.lastCall.Add(c.opts.Throttle))
	if wait < 0 {
		wait = 0
	}
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()
	return c.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
