// Package fetch retrieves remote resources for a sync run, with a politeness
// delay between network calls, a bounded retry on HTTP 429 and an optional
// persistent response cache.
package fetch

import (
	"context"
	"net/http"
)

// Response is a fetched resource. Non-2xx responses are returned without an
// error so callers can react to specific statuses (404 on optional endpoints).
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	FromCache   bool
	// RetryAfter is the raw Retry-After header of a network answer.
	RetryAfter string
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Fetcher is the capability the API client and the asset localizer depend on.
type Fetcher interface {
	// Fetch always goes to the network; a successful answer refreshes the cache.
	Fetch(ctx context.Context, url string) (*Response, error)
	// FetchCached serves a fresh cache entry when one exists and falls back to Fetch.
	FetchCached(ctx context.Context, url string) (*Response, error)
}
