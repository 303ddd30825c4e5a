// Package insertion decides where relocated members are written.
package insertion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
)

// Kind selects which part of a member is being inserted.
type Kind int

const (
	Declaration Kind = iota
	Definition
)

func (k Kind) String() string {
	if k == Definition {
		return "definition"
	}
	return "declaration"
}

// Request describes one member part to insert into a target class.
type Request struct {
	Member     *model.Member
	Source     *model.Class
	Target     *model.Class
	Kind       Kind
	Visibility model.Visibility

	// Declared is set when an in-class declaration is inserted separately, so
	// an out-of-line definition does not need one synthesized.
	Declared bool
}

// Point is a resolved insertion point.
type Point struct {
	Unit     string
	InClass  bool
	Anchor   rewrite.Anchor
	Name     string
	Template string
	Comments []model.Comment

	// NeedsDeclaration is set when the definition goes out-of-line and the
	// target class body needs a synthesized declaration.
	NeedsDeclaration    bool
	DeclarationComments []model.Comment
}

// Resolver resolves insertion points. It remembers the access labels it has
// created so several members share one new label per class and visibility.
type Resolver struct {
	source model.Source
	oracle model.Oracle
	labels map[string]bool
}

// NewResolver creates a resolver over source.
func NewResolver(source model.Source, oracle model.Oracle) *Resolver {
	return &Resolver{source: source, oracle: oracle, labels: make(map[string]bool)}
}

// Resolve decides the unit, anchor and name for req.
func (r *Resolver) Resolve(req Request) (*Point, error) {
	if req.Member == nil || req.Target == nil {
		return nil, errors.New("insertion request needs a member and a target")
	}
	m := req.Member
	def := m.Definition
	templated := r.templateHeader(req) != "" || req.Target.Template != ""

	if req.Kind == Declaration {
		return r.inClass(req, declarationComments(m)), nil
	}

	switch {
	case def != nil && def.InClass:
		if templated {
			return r.inClass(req, allComments(def)), nil
		}
		pair, err := r.pairUnit(req.Target, model.SourceFile)
		if err != nil {
			return nil, err
		}
		if pair == nil {
			return r.inClass(req, allComments(def)), nil
		}
		return r.outOfLine(req, pair.Path, innerComments(def), !req.Declared), nil

	case def != nil:
		if templated {
			return r.inClass(req, allComments(def)), nil
		}
		orig, err := r.source.Unit(def.Unit)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve unit of %s: %w", m.Display(), err)
		}
		unit, err := r.pairUnit(req.Target, orig.Kind)
		if err != nil {
			return nil, err
		}
		path := req.Target.Unit
		if unit != nil {
			path = unit.Path
		}
		return r.outOfLine(req, path, allComments(def), !req.Declared), nil

	default:
		if templated {
			return r.inClass(req, nil), nil
		}
		pair, err := r.pairUnit(req.Target, model.SourceFile)
		if err != nil {
			return nil, err
		}
		if pair == nil {
			return r.inClass(req, nil), nil
		}
		return r.outOfLine(req, pair.Path, nil, !req.Declared), nil
	}
}

// pairUnit returns the counterpart of the target's primary unit when it has
// the wanted kind.
func (r *Resolver) pairUnit(target *model.Class, kind model.UnitKind) (*model.Unit, error) {
	primary, err := r.source.Unit(target.Unit)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve unit of %s: %w", target.QualifiedName(), err)
	}
	if primary.Pair == "" {
		return nil, nil
	}
	pair, err := r.source.Unit(primary.Pair)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve unit paired with %s: %w", primary.Path, err)
	}
	if pair.Kind != kind {
		return nil, nil
	}
	return pair, nil
}

func (r *Resolver) inClass(req Request, comments []model.Comment) *Point {
	return &Point{
		Unit:     req.Target.Unit,
		InClass:  true,
		Anchor:   r.LabelAnchor(req.Target, req.Visibility),
		Name:     req.Member.Name,
		Template: r.templateHeader(req),
		Comments: comments,
	}
}

func (r *Resolver) outOfLine(req Request, unit string, comments []model.Comment, needsDecl bool) *Point {
	p := &Point{
		Unit:             unit,
		Anchor:           rewrite.Anchor{After: model.Location{File: unit}},
		Name:             QualifiedName(req.Target, req.Member.Name),
		Comments:         comments,
		NeedsDeclaration: needsDecl,
	}
	if needsDecl {
		p.DeclarationComments = declarationComments(req.Member)
	}
	return p
}

// LabelAnchor returns the in-class anchor for visibility v, reusing an existing
// access label or one created earlier by this resolver.
func (r *Resolver) LabelAnchor(target *model.Class, v model.Visibility) rewrite.Anchor {
	a := rewrite.Anchor{
		Class:      target.ID,
		ClassName:  target.Name,
		Visibility: v,
		After:      target.End,
	}
	for _, l := range target.Labels {
		if l.Visibility == v {
			a.After = l.Location
		}
	}
	if a.After != target.End {
		return a
	}
	key := r.oracle.Key(target) + "\x00" + v.String()
	if !r.labels[key] {
		r.labels[key] = true
		a.NewLabel = true
	}
	return a
}

// templateHeader returns the template header the member needs in the target:
// its own, merged with the source class's when the target is not a template.
func (r *Resolver) templateHeader(req Request) string {
	own := req.Member.Template
	if req.Source == nil || req.Source.Template == "" || req.Target.Template != "" {
		return own
	}
	if r.oracle.Equal(req.Source, req.Target) {
		return own
	}
	return MergeTemplates(req.Source.Template, own)
}

// MergeTemplates combines two template headers into one parameter list.
func MergeTemplates(outer, inner string) string {
	params := func(h string) string {
		h = strings.TrimSpace(h)
		h = strings.TrimPrefix(h, "template")
		h = strings.TrimSpace(h)
		h = strings.TrimPrefix(h, "<")
		h = strings.TrimSuffix(h, ">")
		return strings.TrimSpace(h)
	}
	var parts []string
	for _, h := range []string{outer, inner} {
		if p := params(h); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "template<" + strings.Join(parts, ", ") + ">"
}

// QualifiedName qualifies name with the scope chain of c.
func QualifiedName(c *model.Class, name string) string {
	chain := []string{name, c.Name}
	for i := len(c.Scopes) - 1; i >= 0; i-- {
		chain = append(chain, c.Scopes[i].Name)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return strings.Join(chain, "::")
}

// declarationComments are the comments the member's declaration carries: the
// declaration's own, or the outer comments of an in-class definition.
func declarationComments(m *model.Member) []model.Comment {
	if m.Declaration != nil {
		return append([]model.Comment(nil), m.Declaration.Comments...)
	}
	if m.Definition != nil && m.Definition.InClass {
		var out []model.Comment
		for _, c := range m.Definition.Comments {
			if !c.Inner {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

func innerComments(d *model.Decl) []model.Comment {
	var out []model.Comment
	for _, c := range d.Comments {
		if c.Inner {
			out = append(out, c)
		}
	}
	return out
}

func allComments(d *model.Decl) []model.Comment {
	return append([]model.Comment(nil), d.Comments...)
}
