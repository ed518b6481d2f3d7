package tree

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/docsapi"
	"git.home.luguber.info/inful/docs2static/internal/fetch"
	"git.home.luguber.info/inful/docs2static/internal/retry"
	"git.home.luguber.info/inful/docs2static/internal/testdocs"
)

type fakeAPI struct {
	all         []docsapi.Document
	descendants []docsapi.Document
	descErr     error
	details     map[string]docsapi.Document
	children    map[string][]docsapi.Document
	childCalls  int
}

func (f *fakeAPI) FetchAll(context.Context, string) []docsapi.Document { return f.all }

func (f *fakeAPI) FetchDescendants(context.Context, string) ([]docsapi.Document, error) {
	if f.descErr != nil {
		return nil, f.descErr
	}
	return f.descendants, nil
}

func (f *fakeAPI) FetchDetails(_ context.Context, id string) (*docsapi.Document, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &d, nil
}

func (f *fakeAPI) FetchChildren(_ context.Context, id string) ([]docsapi.Document, error) {
	f.childCalls++
	kids, ok := f.children[id]
	if !ok {
		return nil, errors.New("boom")
	}
	return kids, nil
}

func titles(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Title)
	}
	return out
}

func TestResolve_BulkLinksByPath(t *testing.T) {
	api := &fakeAPI{
		all: []docsapi.Document{
			{ID: "a", Title: "A", Path: "0000001" + "0000001"},
			{ID: "a1", Title: "A1", Path: "0000001" + "0000001" + "0000001"},
			{ID: "b", Title: "B", Path: "0000001" + "0000002"},
			{ID: "orphan", Title: "Orphan", Path: "0000001" + "0000009" + "0000001"},
		},
		details: map[string]docsapi.Document{"root": {ID: "root", Path: "0000001"}},
	}
	nodes, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(nodes))
	assert.Equal(t, []string{"A1"}, titles(nodes[0].Children))
	assert.Empty(t, nodes[1].Children)
	assert.Zero(t, api.childCalls)
}

func TestResolve_BulkExcludesRoot(t *testing.T) {
	api := &fakeAPI{
		all: []docsapi.Document{
			{ID: "root", Title: "Root", Path: "0000001"},
			{ID: "a", Title: "A", Path: "00000010000001"},
		},
		details: map[string]docsapi.Document{"root": {ID: "root", Path: "0000001"}},
	}
	nodes, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(nodes))
}

func TestResolve_BulkWithoutDescendantsFallsBack(t *testing.T) {
	api := &fakeAPI{
		all:     []docsapi.Document{{ID: "root", Title: "Root", Path: "0000001"}},
		descErr: docsapi.ErrUnsupported,
		details: map[string]docsapi.Document{"root": {ID: "root", Path: "0000001"}},
		children: map[string][]docsapi.Document{
			"root": {{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
		},
	}
	nodes, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(nodes))
	assert.Equal(t, 1, api.childCalls)
}

func TestResolve_UnrelatedBulkRowsTryDescendants(t *testing.T) {
	api := &fakeAPI{
		all: []docsapi.Document{{ID: "x", Title: "X", Path: "0000009" + "0000001"}},
		descendants: []docsapi.Document{
			{ID: "a", Title: "A", Path: "0000001" + "0000001"},
		},
		details: map[string]docsapi.Document{"root": {ID: "root", Path: "0000001"}},
	}
	nodes, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(nodes))
	assert.Zero(t, api.childCalls)
}

func TestResolve_SegmentLengthIsConfigurable(t *testing.T) {
	api := &fakeAPI{
		descendants: []docsapi.Document{
			{ID: "a", Title: "A", Path: "0101"},
			{ID: "a1", Title: "A1", Path: "010101"},
		},
		details: map[string]docsapi.Document{"root": {ID: "root", Path: "01"}},
	}
	nodes, err := NewResolver(api, 2, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"A1"}, titles(nodes[0].Children))
}

func TestResolve_RecursiveFallback(t *testing.T) {
	api := &fakeAPI{
		descErr: docsapi.ErrUnsupported,
		children: map[string][]docsapi.Document{
			"root": {{ID: "a", Title: "A", NumChild: 1}, {ID: "b", Title: "B"}},
			"a":    {{ID: "a1", Title: "A1"}},
		},
	}
	nodes, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(nodes))
	assert.Equal(t, []string{"A1"}, titles(nodes[0].Children))
	assert.Equal(t, 2, api.childCalls, "leaf children are not listed")
}

func TestResolve_RecursiveSubtreeFailureIsIsolated(t *testing.T) {
	api := &fakeAPI{
		descErr: docsapi.ErrUnsupported,
		children: map[string][]docsapi.Document{
			"root": {{ID: "a", Title: "A", NumChild: 2}, {ID: "b", Title: "B"}},
		},
	}
	nodes, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(nodes))
	assert.Empty(t, nodes[0].Children)
}

func TestResolve_RecursiveRootFailure(t *testing.T) {
	api := &fakeAPI{descErr: docsapi.ErrUnsupported, children: map[string][]docsapi.Document{}}
	_, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.Error(t, err)
}

func TestResolve_RecursiveCycleIsBroken(t *testing.T) {
	api := &fakeAPI{
		descErr: docsapi.ErrUnsupported,
		children: map[string][]docsapi.Document{
			"root": {{ID: "a", Title: "A", NumChild: 1}},
			"a":    {{ID: "root", Title: "Root", NumChild: 1}, {ID: "a1", Title: "A1"}},
		},
	}
	nodes, err := NewResolver(api, 7, nil).Resolve(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, titles(nodes[0].Children))
}

func TestResolve_AgainstFakeInstance(t *testing.T) {
	srv := testdocs.NewServer()
	defer srv.Close()
	srv.AddRoot(testdocs.Document{ID: "root", Title: "Root"}).
		AddChild("root", testdocs.Document{ID: "a", Title: "A"}).
		AddChild("root", testdocs.Document{ID: "b", Title: "B"}).
		AddChild("a", testdocs.Document{ID: "a1", Title: "A1"}).
		AddChild("a", testdocs.Document{ID: "a2", Title: "A2"})

	f := fetch.NewClient(fetch.Options{Timeout: 5 * time.Second, Retry: retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 1)})
	api := docsapi.NewClient(f, srv.URL, nil)

	for name, setup := range map[string]func(){
		"recursive":   func() {},
		"descendants": func() { srv.SetDescendantsSupported(true) },
		"bulk":        func() { srv.SetBulkMode(testdocs.BulkAncestor) },
	} {
		t.Run(name, func(t *testing.T) {
			setup()
			nodes, err := NewResolver(api, testdocs.SegmentLength, nil).Resolve(context.Background(), "root")
			require.NoError(t, err)
			assert.Equal(t, []string{"A", "B"}, titles(nodes))
			assert.Equal(t, []string{"A1", "A2"}, titles(nodes[0].Children))
		})
	}
}

func TestNode_WalkAndCount(t *testing.T) {
	root := &Node{ID: "r", Children: []*Node{{ID: "a", Children: []*Node{{ID: "a1"}}}, {ID: "b"}}}
	var seen []string
	root.Walk(func(n *Node, _ int) bool {
		seen = append(seen, n.ID)
		return n.ID != "a"
	})
	assert.Equal(t, []string{"r", "a", "b"}, seen)
	assert.Equal(t, 4, root.Count())
	assert.Equal(t, DefaultTitle, (&Node{}).DisplayTitle())
}
