// Package testdocs provides an in-process fake of the Docs API for tests.
package testdocs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// SegmentLength is the width of one tree level in generated document paths.
const SegmentLength = 7

// FailMode defines how the fake answers requests for one document's content.
type FailMode int

const (
	FailModeNone FailMode = iota
	// FailModeRateLimit answers 429 to every content request.
	FailModeRateLimit
	// FailModeRateLimitOnce answers 429 to the first content request only.
	FailModeRateLimitOnce
	FailModeNotFound
	FailModeServerError
)

// BulkMode selects which bulk listing convention the fake understands.
type BulkMode int

const (
	BulkNone BulkMode = iota
	BulkAncestor
	BulkID
)

// Document is a fake remote document.
type Document struct {
	ID       string
	Title    string
	HTML     string
	Markdown string

	path     string
	parent   string
	children []string
}

// Server is a fake Docs instance backed by httptest.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	docs        map[string]*Document
	roots       int
	failures    map[string]FailMode
	calls       map[string]int
	assets      map[string][]byte
	bulk        BulkMode
	descendants bool
	pageSize    int
}

// NewServer starts a fake instance. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		docs:     map[string]*Document{},
		failures: map[string]FailMode{},
		calls:    map[string]int{},
		assets:   map[string][]byte{},
		pageSize: 2,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1.0/documents/all/{$}", s.handleAll)
	mux.HandleFunc("GET /api/v1.0/documents/{id}/{$}", s.handleDetails)
	mux.HandleFunc("GET /api/v1.0/documents/{id}/content/{$}", s.handleContent)
	mux.HandleFunc("GET /api/v1.0/documents/{id}/children/{$}", s.handleChildren)
	mux.HandleFunc("GET /api/v1.0/documents/{id}/descendants/{$}", s.handleDescendants)
	mux.HandleFunc("GET /media/", s.handleAsset)
	s.Server = httptest.NewServer(s.count(mux))
	return s
}

// AddRoot registers a top-level document.
func (s *Server) AddRoot(doc Document) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots++
	doc.path = segment(s.roots)
	s.docs[doc.ID] = &doc
	return s
}

// AddChild registers doc as the last child of parentID.
func (s *Server) AddChild(parentID string, doc Document) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.docs[parentID]
	if !ok {
		panic("testdocs: unknown parent " + parentID)
	}
	p.children = append(p.children, doc.ID)
	doc.parent = parentID
	doc.path = p.path + segment(len(p.children))
	s.docs[doc.ID] = &doc
	return s
}

// AddAsset serves body at /media/<name>.
func (s *Server) AddAsset(name string, body []byte) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets["/media/"+name] = body
	return s
}

// SetFailMode makes content requests for id fail as described by mode.
func (s *Server) SetFailMode(id string, mode FailMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = mode
}

// SetBulkMode selects the bulk listing convention the fake answers.
func (s *Server) SetBulkMode(mode BulkMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulk = mode
}

// SetDescendantsSupported toggles the paginated descendants endpoint.
func (s *Server) SetDescendantsSupported(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descendants = ok
}

// SetPageSize sets the page size of paginated listings.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Path returns the hierarchical path the fake assigned to id.
func (s *Server) Path(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id].path
}

// Calls returns how many requests hit path (query string excluded).
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// ContentCalls returns how many content requests were made for id.
func (s *Server) ContentCalls(id string) int {
	return s.Calls("/api/v1.0/documents/" + id + "/content/")
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type listing struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Path     string `json:"path"`
	NumChild int    `json:"numchild"`
}

func (s *Server) entry(d *Document) listing {
	return listing{ID: d.ID, Title: d.Title, Path: d.path, NumChild: len(d.children)}
}

// subtree returns the descendants of id in depth-first API order.
func (s *Server) subtree(id string) []listing {
	var out []listing
	for _, cid := range s.docs[id].children {
		c := s.docs[cid]
		out = append(out, s.entry(c))
		out = append(out, s.subtree(cid)...)
	}
	return out
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[r.PathValue("id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.entry(d))
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	d, ok := s.docs[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch s.failures[id] {
	case FailModeRateLimit:
		w.WriteHeader(http.StatusTooManyRequests)
		return
	case FailModeRateLimitOnce:
		s.failures[id] = FailModeNone
		w.WriteHeader(http.StatusTooManyRequests)
		return
	case FailModeNotFound:
		http.NotFound(w, r)
		return
	case FailModeServerError:
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	body := d.HTML
	if r.URL.Query().Get("content_format") == "markdown" {
		body = d.Markdown
	}
	writeJSON(w, map[string]string{"title": d.Title, "content": body})
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[r.PathValue("id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	var items []listing
	for _, cid := range d.children {
		items = append(items, s.entry(s.docs[cid]))
	}
	s.writePage(w, r, items)
}

func (s *Server) handleDescendants(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := s.docs[id]; !ok || !s.descendants {
		http.NotFound(w, r)
		return
	}
	s.writePage(w, r, s.subtree(id))
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	var id string
	switch s.bulk {
	case BulkAncestor:
		id = q.Get("ancestor")
	case BulkID:
		id = q.Get("id")
	}
	if _, ok := s.docs[id]; !ok {
		// Unknown filters are ignored by the real API; answer an empty set.
		s.writePage(w, r, nil)
		return
	}
	s.writePage(w, r, s.subtree(id))
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.assets[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(body)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, items []listing) {
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if pageNum < 1 {
		pageNum = 1
	}
	start := (pageNum - 1) * s.pageSize
	end := start + s.pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	resp := map[string]any{
		"count":   len(items),
		"results": append([]listing{}, items[start:end]...),
		"next":    nil,
	}
	if end < len(items) {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(pageNum+1))
		resp["next"] = s.URL + r.URL.Path + "?" + q.Encode()
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func segment(n int) string {
	return fmt.Sprintf("%0*d", SegmentLength, n)
}
