// Package tree resolves the descendant hierarchy of a Docs document.
package tree

// DefaultTitle is used for documents the API returns without a title.
const DefaultTitle = "Sans titre"

// Node is one document of the resolved hierarchy. Children keep the order
// the API returned them in; Order and Slug are assigned by the processor.
type Node struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Path     string  `json:"path,omitempty"`
	NumChild int     `json:"numchild,omitempty"`
	Children []*Node `json:"children,omitempty"`
	Order    int     `json:"order"`
	Slug     string  `json:"slug,omitempty"`
}

// DisplayTitle returns Title or the default placeholder.
func (n *Node) DisplayTitle() string {
	if n == nil || n.Title == "" {
		return DefaultTitle
	}
	return n.Title
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn prunes the subtree.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node, int) bool { total++; return true })
	return total
}
