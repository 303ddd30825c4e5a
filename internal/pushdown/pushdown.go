// Package pushdown moves members from a class into its subclasses.
//
// Every selected member carries one action per subclass: ExistingDefinition
// copies the member there, MethodStub adds an empty override and None leaves
// the subclass to inherit whatever remains. A member selected for PushDown
// is removed from the source class; one selected for DeclareVirtual stays
// behind as a pure virtual declaration.
package pushdown

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvp-joe/project-relocate/internal/hierarchy"
	"github.com/mvp-joe/project-relocate/internal/members"
	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
	"github.com/mvp-joe/project-relocate/internal/status"
)

// ErrNotPrepared is returned when the refactoring is used before Prepare succeeded.
var ErrNotPrepared = errors.New("push down is not prepared")

// Refactoring is one push down session.
type Refactoring struct {
	source model.Source
	index  model.Index
	oracle model.Oracle

	class       *model.Class
	descendants *hierarchy.Graph
	catalog     *members.Catalog
	mandatory   map[*members.Entry]map[string]bool
}

// New creates a push down session.
func New(source model.Source, index model.Index, oracle model.Oracle) *Refactoring {
	return &Refactoring{source: source, index: index, oracle: oracle}
}

// Prepare resolves the source class and discovers its subclasses. Fatal
// conditions are recorded in st.
func (r *Refactoring) Prepare(ctx context.Context, classID string, st *status.Status) error {
	return plan.RunChecks(ctx, st,
		func(ctx context.Context, st *status.Status) error {
			c, err := r.source.Class(classID)
			if err != nil {
				if errors.Is(err, model.ErrNotFound) {
					st.Fatalf(model.Location{}, "no class selected: %v", err)
					return nil
				}
				return err
			}
			r.class = c
			return nil
		},
		func(ctx context.Context, st *status.Status) error {
			g, err := hierarchy.NewBuilder(r.source, r.index, r.oracle).Descending(ctx, r.class)
			if err != nil {
				return fmt.Errorf("failed to find subclasses of %s: %w", r.class.QualifiedName(), err)
			}
			r.descendants = g
			if len(g.Classes()) == 0 {
				st.Fatalf(r.class.Location, "'%s' has no subclass to push members into", r.class.Name)
			}
			return nil
		},
		func(ctx context.Context, st *status.Status) error {
			r.catalog = members.NewCatalog(r.class, r.oracle)
			r.mandatory = make(map[*members.Entry]map[string]bool)
			if len(r.catalog.Entries()) == 0 {
				st.Fatalf(r.class.Location, "'%s' has no members that can be pushed down", r.class.Name)
			}
			return nil
		},
	)
}

// Class returns the source class.
func (r *Refactoring) Class() *model.Class { return r.class }

// Descendants returns the descending inheritance graph of the source class.
func (r *Refactoring) Descendants() *hierarchy.Graph { return r.descendants }

// Catalog returns the source class's member catalog.
func (r *Refactoring) Catalog() *members.Catalog { return r.catalog }

// Targets returns the subclasses of the source class, nearest first.
func (r *Refactoring) Targets() []*model.Class {
	if r.descendants == nil {
		return nil
	}
	return r.descendants.Classes()
}

// Select chooses the action for member b and resets its per-subclass
// actions to their defaults.
func (r *Refactoring) Select(ctx context.Context, b model.Binding, kind plan.ActionKind) error {
	if r.catalog == nil {
		return ErrNotPrepared
	}
	e := r.catalog.Lookup(b)
	if e == nil {
		return fmt.Errorf("%s is not a member of %s: %w", b.BindingID(), r.class.Name, model.ErrNotFound)
	}
	switch kind {
	case plan.None, plan.PushDown:
	case plan.DeclareVirtual:
		if e.Member.Kind == model.Field {
			return fmt.Errorf("field %s cannot be declared virtual", e.Member.Name)
		}
	default:
		return fmt.Errorf("action %s is not available for push down", kind)
	}
	e.Action = kind
	e.ClearTargetActions()
	if kind == plan.None {
		return nil
	}
	return r.initTargets(ctx, e)
}

// initTargets gives every subclass of the source its default action for e.
// Subclasses that already reference e are mandatory and receive a copy
// unless a subclass between them and the source already does. Without
// mandatory subclasses the direct subclasses receive one. Subclasses that
// declare e themselves are left alone.
func (r *Refactoring) initTargets(ctx context.Context, e *members.Entry) error {
	mandatory, err := r.Mandatory(ctx, e)
	if err != nil {
		return err
	}
	for _, n := range r.descendants.Nodes() {
		if n.IsRoot() || e.HasTargetAction(n.Class) {
			continue
		}
		kind := plan.None
		switch {
		case n.Class.Declares(e.Member) != nil:
		case len(mandatory) == 0 && n.Level == 1:
			kind = plan.ExistingDefinition
		case mandatory[r.oracle.Key(n.Class)] && !r.covered(e, n):
			kind = plan.ExistingDefinition
		}
		e.SetTargetAction(n.Class, kind)
	}
	return nil
}

// covered reports whether a class between n and the root already receives e
// or declares it.
func (r *Refactoring) covered(e *members.Entry, n *hierarchy.Node) bool {
	for p := n.Predecessor; p != nil && !p.IsRoot(); p = p.Predecessor {
		if e.TargetAction(p.Class) != plan.None || p.Class.Declares(e.Member) != nil {
			return true
		}
	}
	return false
}

// Mandatory returns the keys of the subclasses whose members already
// reference e.
func (r *Refactoring) Mandatory(ctx context.Context, e *members.Entry) (map[string]bool, error) {
	if m, ok := r.mandatory[e]; ok {
		return m, nil
	}
	refs, err := r.catalog.ReferencingClasses(ctx, r.index, e)
	if err != nil {
		return nil, err
	}
	m := make(map[string]bool)
	for key := range refs {
		if r.descendants.Contains(model.Symbol(key)) {
			m[key] = true
		}
	}
	r.mandatory[e] = m
	return m, nil
}

// SetTargetAction overrides the action of member b for subclass target.
func (r *Refactoring) SetTargetAction(member, target model.Binding, kind plan.ActionKind) error {
	if r.catalog == nil {
		return ErrNotPrepared
	}
	e := r.catalog.Lookup(member)
	if e == nil {
		return fmt.Errorf("%s is not a member of %s: %w", member.BindingID(), r.class.Name, model.ErrNotFound)
	}
	if r.oracle.Equal(target, r.class) || !r.descendants.Contains(target) {
		return fmt.Errorf("%s is not a subclass of %s: %w", target.BindingID(), r.class.Name, model.ErrNotFound)
	}
	switch kind {
	case plan.None, plan.ExistingDefinition:
	case plan.MethodStub:
		if e.Member.Kind == model.Field {
			return fmt.Errorf("field %s cannot be stubbed", e.Member.Name)
		}
	default:
		return fmt.Errorf("action %s is not available for a subclass", kind)
	}
	e.SetTargetAction(target, kind)
	return nil
}

// Check validates the selection and builds the plan. Findings are recorded
// in st; the plan is returned even when st holds errors.
func (r *Refactoring) Check(ctx context.Context, st *status.Status) (*plan.Plan, error) {
	if r.catalog == nil {
		return nil, ErrNotPrepared
	}
	s := &session{r: r}
	p := plan.New(r.source, r.oracle)
	err := plan.RunChecks(ctx, st,
		s.checkSelection,
		s.checkDependents,
		s.checkCallSites,
		func(ctx context.Context, st *status.Status) error {
			return s.build(ctx, p, st)
		},
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Apply checks the selection and stages the plan's edits into c. Nothing is
// staged when st holds an error.
func (r *Refactoring) Apply(ctx context.Context, st *status.Status, c *rewrite.Collector) error {
	p, err := r.Check(ctx, st)
	if err != nil {
		return err
	}
	if st.HasError() {
		return fmt.Errorf("%w: %v", plan.ErrNotPossible, st.Err())
	}
	return p.Run(ctx, c)
}

// newAction builds the atomic action of the given kind. Per-subclass kinds
// take the subclass as target.
func newAction(kind plan.ActionKind, e *members.Entry, source, target *model.Class) plan.Action {
	m := e.Member
	switch kind {
	case plan.PushDown:
		return plan.Action{Kind: kind, Member: m, Source: source}
	case plan.DeclareVirtual:
		return plan.Action{Kind: kind, Member: m, Source: source, Target: source, Visibility: e.Visibility}
	case plan.ExistingDefinition, plan.MethodStub:
		return plan.Action{Kind: kind, Member: m, Source: source, Target: target, Visibility: e.Visibility}
	default:
		return plan.Action{Kind: plan.None}
	}
}
