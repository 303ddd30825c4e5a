// Package rewrite stages source edits produced by a refactoring. Edits are
// grouped per compilation unit and committed by the caller as one change.
package rewrite

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
)

// EditKind is the kind of a staged edit.
type EditKind int

const (
	Insert EditKind = iota
	Remove
)

func (k EditKind) String() string {
	if k == Remove {
		return "remove"
	}
	return "insert"
}

// NodeKind classifies a synthesized node.
type NodeKind int

const (
	DeclarationNode NodeKind = iota
	DefinitionNode
	FieldNode
)

func (k NodeKind) String() string {
	switch k {
	case DefinitionNode:
		return "definition"
	case FieldNode:
		return "field"
	default:
		return "declaration"
	}
}

// Anchor places an inserted node. A node inserted into a class body follows
// the access label for Visibility, creating the label when NewLabel is set.
// A node with an empty Class is appended to the unit.
type Anchor struct {
	Class      string           `json:"class,omitempty"`
	ClassName  string           `json:"class_name,omitempty"`
	Visibility model.Visibility `json:"-"`
	NewLabel   bool             `json:"new_label,omitempty"`
	After      model.Location   `json:"after"`
}

// InClass reports whether the anchor is inside a class body.
func (a Anchor) InClass() bool {
	return a.Class != ""
}

// Node is a synthesized piece of source.
type Node struct {
	Kind     NodeKind        `json:"-"`
	Name     string          `json:"name"`
	Text     string          `json:"text"`
	Comments []model.Comment `json:"-"`
}

// Edit is one staged insert or remove operation.
type Edit struct {
	Kind        EditKind       `json:"-"`
	Unit        string         `json:"unit"`
	Anchor      Anchor         `json:"anchor"`
	Node        Node           `json:"node"`
	Location    model.Location `json:"location"`
	Description string         `json:"description,omitempty"`
}

func (e Edit) String() string {
	if e.Kind == Remove {
		return fmt.Sprintf("remove %s at %s", e.Description, e.Location)
	}
	if e.Anchor.InClass() {
		label := "after " + e.Anchor.Visibility.Label()
		if e.Anchor.NewLabel {
			label = "under new " + e.Anchor.Visibility.Label()
		}
		return fmt.Sprintf("insert %s into %s %s", e.Node.Kind, e.Anchor.ClassName, label)
	}
	return fmt.Sprintf("insert %s %s", e.Node.Kind, e.Node.Name)
}

// Collector accumulates the edits of one refactoring session.
type Collector struct {
	name  string
	edits map[string][]Edit
	units []string
}

// NewCollector creates an empty edit group.
func NewCollector(name string) *Collector {
	return &Collector{name: name, edits: make(map[string][]Edit)}
}

// Name returns the edit group name.
func (c *Collector) Name() string {
	return c.name
}

// Insert stages node at anchor in unit.
func (c *Collector) Insert(unit string, anchor Anchor, node Node) {
	c.add(Edit{Kind: Insert, Unit: unit, Anchor: anchor, Node: node, Location: anchor.After})
}

// Remove stages the removal of the node at loc in unit.
func (c *Collector) Remove(unit string, loc model.Location, description string) {
	for _, e := range c.edits[unit] {
		if e.Kind == Remove && e.Location == loc {
			return
		}
	}
	c.add(Edit{Kind: Remove, Unit: unit, Location: loc, Description: description})
}

func (c *Collector) add(e Edit) {
	if _, ok := c.edits[e.Unit]; !ok {
		c.units = append(c.units, e.Unit)
	}
	c.edits[e.Unit] = append(c.edits[e.Unit], e)
}

// Merge appends every edit of o, preserving order.
func (c *Collector) Merge(o *Collector) {
	for _, u := range o.units {
		for _, e := range o.edits[u] {
			if e.Kind == Remove {
				c.Remove(e.Unit, e.Location, e.Description)
				continue
			}
			c.add(e)
		}
	}
}

// Units returns the touched units in sorted order.
func (c *Collector) Units() []string {
	out := append([]string(nil), c.units...)
	sort.Strings(out)
	return out
}

// Edits returns the edits staged for unit in staging order.
func (c *Collector) Edits(unit string) []Edit {
	return append([]Edit(nil), c.edits[unit]...)
}

// All returns every edit grouped by unit.
func (c *Collector) All() []Edit {
	var out []Edit
	for _, u := range c.Units() {
		out = append(out, c.edits[u]...)
	}
	return out
}

// Len returns the number of staged edits.
func (c *Collector) Len() int {
	n := 0
	for _, es := range c.edits {
		n += len(es)
	}
	return n
}

// WriteTo renders the staged edits in a human readable form.
func (c *Collector) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for _, u := range c.Units() {
		fmt.Fprintf(&sb, "--- %s\n", u)
		for _, e := range c.edits[u] {
			sb.WriteString(e.String())
			sb.WriteByte('\n')
			if e.Kind == Insert {
				for _, line := range strings.Split(Render(e.Node), "\n") {
					sb.WriteString("    ")
					sb.WriteString(line)
					sb.WriteByte('\n')
				}
			}
		}
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
