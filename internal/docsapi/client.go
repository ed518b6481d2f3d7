// Package docsapi is a thin client for the Docs REST API (/api/v1.0).
package docsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/docref"
	"git.home.luguber.info/inful/docs2static/internal/fetch"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

// ErrUnsupported is returned when an optional endpoint answers 404.
var ErrUnsupported = errors.New("endpoint not supported by this instance")

// maxPages bounds cursor following so a looping `next` cannot stall a run.
const maxPages = 1000

// Content is the body of one document in one format.
type Content struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Document is a listing entry. Listings omit fields they do not know about.
type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Path     string `json:"path"`
	NumChild int    `json:"numchild"`
}

type page struct {
	Count   int        `json:"count"`
	Next    *string    `json:"next"`
	Results []Document `json:"results"`
}

// Client talks to one Docs instance.
type Client struct {
	fetcher fetch.Fetcher
	base    string
	logger  *slog.Logger
}

// NewClient binds a client to the instance root base (scheme://host).
func NewClient(f fetch.Fetcher, base string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{fetcher: f, base: base, logger: logger}
}

// Base returns the instance root the client is bound to.
func (c *Client) Base() string { return c.base }

// FetchContent downloads a document body in the requested format.
func (c *Client) FetchContent(ctx context.Context, id string, format config.ContentFormat) (*Content, error) {
	u := docref.APIURL(c.base, fmt.Sprintf("/documents/%s/content/?content_format=%s", url.PathEscape(id), url.QueryEscape(string(format))))
	var out Content
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	c.logger.Info("Downloaded document content", logfields.DocID(id), logfields.Format(string(format)))
	return &out, nil
}

// FetchChildren lists the immediate children of id, following pagination.
func (c *Client) FetchChildren(ctx context.Context, id string) ([]Document, error) {
	u := docref.APIURL(c.base, fmt.Sprintf("/documents/%s/children/", url.PathEscape(id)))
	docs, err := c.paginate(ctx, u, false)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Listed children", logfields.DocID(id), logfields.Count(len(docs)))
	return docs, nil
}

// FetchDescendants lists every descendant of id through the paginated
// descendants endpoint. ErrUnsupported means the instance lacks it.
func (c *Client) FetchDescendants(ctx context.Context, id string) ([]Document, error) {
	u := docref.APIURL(c.base, fmt.Sprintf("/documents/%s/descendants/", url.PathEscape(id)))
	return c.paginate(ctx, u, true)
}

// bulkParams are the query parameter names instances have used for the
// bulk listing, tried in order.
var bulkParams = []string{"ancestor", "id"}

// FetchAll queries the bulk listing for every descendant of id. The first
// parameter convention yielding results wins; failures fall through to the
// next convention and an empty result means "no usable bulk data".
func (c *Client) FetchAll(ctx context.Context, id string) []Document {
	for _, param := range bulkParams {
		u := docref.APIURL(c.base, "/documents/all/?"+url.Values{param: {id}}.Encode())
		docs, err := c.paginate(ctx, u, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Debug("Bulk listing unavailable", logfields.DocID(id), slog.String("param", param), logfields.Error(err))
			continue
		}
		if len(docs) > 0 {
			c.logger.Debug("Bulk listing succeeded", logfields.DocID(id), slog.String("param", param), logfields.Count(len(docs)))
			return docs
		}
	}
	return nil
}

// FetchDetails retrieves a single document record (notably its path).
func (c *Client) FetchDetails(ctx context.Context, id string) (*Document, error) {
	u := docref.APIURL(c.base, fmt.Sprintf("/documents/%s/", url.PathEscape(id)))
	var out Document
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

// paginate follows `next` links. With notFoundUnsupported, a 404 on the first
// page is reported as ErrUnsupported.
func (c *Client) paginate(ctx context.Context, first string, notFoundUnsupported bool) ([]Document, error) {
	var all []Document
	next := first
	for i := 0; next != "" && i < maxPages; i++ {
		resp, err := c.fetcher.FetchCached(ctx, next)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound && notFoundUnsupported && i == 0 {
			return nil, ErrUnsupported
		}
		if !resp.OK() {
			return nil, derrors.RemoteFailure(next, resp.StatusCode).Build()
		}
		var p page
		if err := json.Unmarshal(resp.Body, &p); err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryRemote, "malformed listing").
				WithContext("url", next).
				Build()
		}
		all = append(all, p.Results...)
		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return all, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	resp, err := c.fetcher.FetchCached(ctx, u)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return derrors.RemoteFailure(u, resp.StatusCode).Build()
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return derrors.WrapError(err, derrors.CategoryRemote, "malformed response").
			WithContext("url", u).
			Build()
	}
	return nil
}
