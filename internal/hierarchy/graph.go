package hierarchy

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/mvp-joe/project-relocate/internal/model"
)

// Graph is the result of one inheritance graph build. Besides the traversal
// tree it keeps a class-level digraph (derived -> base) used for path queries.
type Graph struct {
	Root      *Node
	Direction Direction

	oracle  model.Oracle
	classes graph.Graph[string, *model.Class]
	nodes   []*Node
}

func newGraph(dir Direction, root *model.Class, oracle model.Oracle) *Graph {
	g := &Graph{
		Direction: dir,
		oracle:    oracle,
		classes:   graph.New(func(c *model.Class) string { return oracle.Key(c) }, graph.Directed(), graph.PreventCycles()),
	}
	g.Root = &Node{
		Class:      root,
		Abstract:   root.Abstract(),
		Visibility: model.Public,
	}
	g.nodes = append(g.nodes, g.Root)
	_ = g.classes.AddVertex(root)
	return g
}

func (g *Graph) addChild(parent *Node, c *model.Class, spec model.BaseSpecifier) *Node {
	child := &Node{
		Predecessor: parent,
		Class:       c,
		Base:        &spec,
		Level:       parent.Level + 1,
		Virtual:     spec.Virtual,
		Abstract:    c.Abstract(),
		Visibility:  model.MinVisibility(parent.Visibility, spec.Visibility),
	}
	parent.Successors = append(parent.Successors, child)
	g.nodes = append(g.nodes, child)
	return child
}

// link records the derived -> base edge in the class digraph.
func (g *Graph) link(derived, base *model.Class, spec model.BaseSpecifier) {
	for _, c := range []*model.Class{derived, base} {
		if err := g.classes.AddVertex(c); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			log.Printf("Warning: failed to add class %s to inheritance graph: %v", c.QualifiedName(), err)
		}
	}
	err := g.classes.AddEdge(g.oracle.Key(derived), g.oracle.Key(base), graph.EdgeData(spec))
	switch {
	case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		log.Printf("Warning: ignoring cyclic inheritance %s -> %s", derived.QualifiedName(), base.QualifiedName())
	default:
		log.Printf("Warning: failed to link %s -> %s: %v", derived.QualifiedName(), base.QualifiedName(), err)
	}
}

// Nodes returns every node in depth-first discovery order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Levels groups the nodes by distance from the root.
func (g *Graph) Levels() [][]*Node {
	var levels [][]*Node
	queue := []*Node{g.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for len(levels) <= n.Level {
			levels = append(levels, nil)
		}
		levels[n.Level] = append(levels[n.Level], n)
		queue = append(queue, n.Successors...)
	}
	return levels
}

// Classes returns the distinct classes reached from the root, excluding the
// root, nearest first.
func (g *Graph) Classes() []*model.Class {
	seen := map[string]bool{g.oracle.Key(g.Root.Class): true}
	var out []*model.Class
	for _, level := range g.Levels() {
		for _, n := range level {
			key := g.oracle.Key(n.Class)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, n.Class)
		}
	}
	return out
}

// Occurrences returns the nodes whose class is b.
func (g *Graph) Occurrences(b model.Binding) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if g.oracle.Equal(n.Class, b) {
			out = append(out, n)
		}
	}
	return out
}

// Contains reports whether b occurs anywhere in the graph.
func (g *Graph) Contains(b model.Binding) bool {
	_, err := g.classes.Vertex(g.oracle.Key(b))
	return err == nil
}

// Class returns the graph's view of b.
func (g *Graph) Class(b model.Binding) (*model.Class, error) {
	c, err := g.classes.Vertex(g.oracle.Key(b))
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", b.BindingID(), model.ErrNotFound)
	}
	return c, nil
}

// Paths returns every chain of base-specifiers leading from derived up to base.
func (g *Graph) Paths(derived, base model.Binding) ([][]model.BaseSpecifier, error) {
	from, to := g.oracle.Key(derived), g.oracle.Key(base)
	if from == to {
		return nil, nil
	}
	keys, err := graph.AllPathsBetween(g.classes, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate paths %s -> %s: %w", from, to, err)
	}
	paths := make([][]model.BaseSpecifier, 0, len(keys))
	for _, path := range keys {
		hops := make([]model.BaseSpecifier, 0, len(path)-1)
		for i := 0; i+1 < len(path); i++ {
			edge, err := g.classes.Edge(path[i], path[i+1])
			if err != nil {
				return nil, fmt.Errorf("failed to read edge %s -> %s: %w", path[i], path[i+1], err)
			}
			spec, _ := edge.Properties.Data.(model.BaseSpecifier)
			hops = append(hops, spec)
		}
		paths = append(paths, hops)
	}
	return paths, nil
}

// PathVisibility returns the access through which base's members are seen from
// derived: the least permissive hop along the most permissive path. The second
// result is false when base is not reachable.
func (g *Graph) PathVisibility(derived, base model.Binding) (model.Visibility, bool, error) {
	paths, err := g.Paths(derived, base)
	if err != nil {
		return model.Private, false, err
	}
	if len(paths) == 0 {
		return model.Private, false, nil
	}
	best := model.Private
	for _, hops := range paths {
		v := model.Public
		for _, h := range hops {
			v = model.MinVisibility(v, h.Visibility)
		}
		if v > best {
			best = v
		}
	}
	return best, true, nil
}

// Diamond reports whether derived contains more than one distinct base
// subobject, which happens when several paths reach base without meeting at a
// shared virtual base.
func (g *Graph) Diamond(derived, base model.Binding) (bool, error) {
	paths, err := g.Paths(derived, base)
	if err != nil {
		return false, err
	}
	if len(paths) < 2 {
		return false, nil
	}
	subobjects := make(map[string]bool)
	for _, hops := range paths {
		subobjects[SubobjectKey(hops)] = true
	}
	return len(subobjects) > 1, nil
}

// SubobjectKey identifies the base subobject a path designates: a path through
// a virtual base is identified by the suffix starting at its last virtual hop.
func SubobjectKey(hops []model.BaseSpecifier) string {
	start := 0
	prefix := "path"
	for i, h := range hops {
		if h.Virtual {
			start = i
			prefix = "virtual"
		}
	}
	ids := make([]string, 0, len(hops)-start)
	for _, h := range hops[start:] {
		ids = append(ids, h.ClassID)
	}
	return prefix + ":" + strings.Join(ids, ">")
}

// IsDerivedFrom reports whether derived is base or inherits from it, directly
// or indirectly.
func (g *Graph) IsDerivedFrom(derived, base model.Binding) bool {
	from, to := g.oracle.Key(derived), g.oracle.Key(base)
	if from == to {
		return true
	}
	if _, err := g.classes.Vertex(from); err != nil {
		return false
	}
	found := false
	_ = graph.DFS(g.classes, from, func(k string) bool {
		found = k == to
		return found
	})
	return found
}
