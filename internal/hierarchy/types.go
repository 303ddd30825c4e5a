package hierarchy

import (
	"github.com/mvp-joe/project-relocate/internal/model"
)

// Direction is the traversal direction of a graph build.
type Direction int

const (
	// Ascending walks from a class to its bases.
	Ascending Direction = iota
	// Descending walks from a class to the classes deriving from it.
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// Node is one positioned occurrence of a class in a traversal. The same class
// may occur at several nodes when it is reachable along several paths.
type Node struct {
	Predecessor *Node
	Class       *model.Class
	Base        *model.BaseSpecifier // nil for the root
	Level       int
	Successors  []*Node
	Virtual     bool
	Abstract    bool

	// Visibility is the least permissive base access on the path from the root.
	Visibility model.Visibility
}

// IsRoot reports whether n is the start of the traversal.
func (n *Node) IsRoot() bool {
	return n.Predecessor == nil
}

// Path returns the nodes from the root to n.
func (n *Node) Path() []*Node {
	var path []*Node
	for cur := n; cur != nil; cur = cur.Predecessor {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
