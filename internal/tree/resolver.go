package tree

import (
	"context"
	"errors"
	"log/slog"

	"git.home.luguber.info/inful/docs2static/internal/docsapi"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

// API is the subset of the Docs client the resolver needs.
type API interface {
	FetchAll(ctx context.Context, id string) []docsapi.Document
	FetchDescendants(ctx context.Context, id string) ([]docsapi.Document, error)
	FetchDetails(ctx context.Context, id string) (*docsapi.Document, error)
	FetchChildren(ctx context.Context, id string) ([]docsapi.Document, error)
}

// Resolver builds descendant hierarchies, preferring bulk listings and
// falling back to one child listing per node.
type Resolver struct {
	api           API
	segmentLength int
	logger        *slog.Logger
}

// NewResolver returns a resolver. segmentLength is the number of characters
// each tree level appends to a document path.
func NewResolver(api API, segmentLength int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{api: api, segmentLength: segmentLength, logger: logger}
}

// Resolve returns the ordered children of rootID, each carrying its own
// descendants.
func (r *Resolver) Resolve(ctx context.Context, rootID string) ([]*Node, error) {
	res := resolution{Resolver: r, visited: map[string]bool{rootID: true}}
	return res.resolve(ctx, rootID)
}

// resolution holds the state of one Resolve call.
type resolution struct {
	*Resolver
	visited map[string]bool
	// bulkUnavailable short-circuits bulk attempts once they failed for a
	// node that has children.
	bulkUnavailable bool
}

func (r *resolution) resolve(ctx context.Context, id string) ([]*Node, error) {
	if !r.bulkUnavailable {
		if nodes, ok := r.fromBulk(ctx, id); ok {
			return nodes, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.bulkUnavailable = true
	}
	return r.recursive(ctx, id)
}

// fromBulk tries the bulk listing then the paginated descendants endpoint.
// A listing only counts when at least one node links below the root, so a
// server answering with the root alone or with unrelated documents falls
// through to the next method.
func (r *resolution) fromBulk(ctx context.Context, id string) ([]*Node, bool) {
	var rootPath string
	usable := func(source string, docs []docsapi.Document) ([]*Node, bool) {
		if len(docs) == 0 {
			return nil, false
		}
		if rootPath == "" {
			root, err := r.api.FetchDetails(ctx, id)
			if err != nil || root.Path == "" {
				r.logger.Warn("Root details unavailable, falling back", logfields.DocID(id), logfields.Error(err))
				return nil, false
			}
			rootPath = root.Path
		}
		nodes := r.link(id, rootPath, docs)
		if len(nodes) == 0 {
			r.logger.Debug("Listing has no descendants of the root", logfields.DocID(id), logfields.Source(source))
			return nil, false
		}
		r.logger.Debug("Resolved tree from listing", logfields.DocID(id), logfields.Source(source), logfields.Count(len(docs)))
		return nodes, true
	}

	if nodes, ok := usable("bulk", r.api.FetchAll(ctx, id)); ok {
		return nodes, true
	}
	if err := ctx.Err(); err != nil {
		return nil, false
	}
	docs, err := r.api.FetchDescendants(ctx, id)
	switch {
	case errors.Is(err, docsapi.ErrUnsupported):
		r.logger.Debug("Descendants endpoint unsupported, falling back", logfields.DocID(id))
		return nil, false
	case err != nil:
		r.logger.Warn("Descendants listing failed, falling back", logfields.DocID(id), logfields.Error(err))
		return nil, false
	}
	return usable("descendants", docs)
}

// link rebuilds parent/child relations from hierarchical paths: the parent of
// a node is the node whose path is its own minus the last segment.
func (r *resolution) link(rootID, rootPath string, docs []docsapi.Document) []*Node {
	root := &Node{ID: rootID, Path: rootPath}
	byPath := map[string]*Node{rootPath: root}
	nodes := make([]*Node, 0, len(docs))
	for _, d := range docs {
		if d.ID == rootID || d.Path == rootPath || d.Path == "" {
			continue
		}
		if _, dup := byPath[d.Path]; dup {
			continue
		}
		n := fromDocument(d)
		byPath[d.Path] = n
		nodes = append(nodes, n)
	}
	for _, n := range nodes {
		if len(n.Path) <= r.segmentLength {
			r.logger.Debug("Dropping node above the root", logfields.DocID(n.ID), logfields.Path(n.Path))
			continue
		}
		parent, ok := byPath[n.Path[:len(n.Path)-r.segmentLength]]
		if !ok {
			r.logger.Debug("Dropping node without indexed parent", logfields.DocID(n.ID), logfields.Path(n.Path))
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return root.Children
}

// recursive lists children and descends into those reporting children.
func (r *resolution) recursive(ctx context.Context, id string) ([]*Node, error) {
	docs, err := r.api.FetchChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(docs))
	for _, d := range docs {
		if r.visited[d.ID] {
			r.logger.Debug("Skipping already visited document", logfields.DocID(d.ID))
			continue
		}
		r.visited[d.ID] = true
		n := fromDocument(d)
		if d.NumChild > 0 {
			n.Children, err = r.resolve(ctx, d.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				r.logger.Warn("Failed to list children, subtree left empty", logfields.DocID(d.ID), logfields.Error(err))
				n.Children = nil
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func fromDocument(d docsapi.Document) *Node {
	return &Node{ID: d.ID, Title: d.Title, Path: d.Path, NumChild: d.NumChild}
}
