// Package pullup moves members from a class into one of its base classes.
package pullup

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
var ErrNotPrepared = errors.New("pull up is not prepared")

// Options configures a pull up.
type Options struct {
	InsertStubs      bool
	PullIntoAbstract bool
}

// Option mutates Options.
type Option func(*Options)

// WithInsertStubs adds empty overrides to concrete subclasses of the target
// for members that end up pure virtual there.
func WithInsertStubs(enabled bool) Option {
	return func(o *Options) { o.InsertStubs = enabled }
}

// WithPullIntoAbstract allows pulling method bodies into abstract targets.
func WithPullIntoAbstract(enabled bool) Option {
	return func(o *Options) { o.PullIntoAbstract = enabled }
}

// Removal is a method of another subclass of the target that may be removed
// along with the pull up.
type Removal struct {
	Member *model.Member
	Owner  *model.Class
	Remove bool
}

// Refactoring is one pull up session.
type Refactoring struct {
	source model.Source
	index  model.Index
	oracle model.Oracle
	opts   Options

	class       *model.Class
	ancestors   *hierarchy.Graph
	catalog     *members.Catalog
	target      *model.Class
	descendants *hierarchy.Graph
	removals    []*Removal
}

// New creates a pull up session.
func New(source model.Source, index model.Index, oracle model.Oracle, opts ...Option) *Refactoring {
	r := &Refactoring{source: source, index: index, oracle: oracle}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

// Prepare resolves the source class and discovers its base classes. Fatal
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
			g, err := hierarchy.NewBuilder(r.source, r.index, r.oracle).Ascending(ctx, r.class)
			if err != nil {
				return fmt.Errorf("failed to build inheritance graph of %s: %w", r.class.QualifiedName(), err)
			}
			r.ancestors = g
			if len(g.Classes()) == 0 {
				st.Fatalf(r.class.Location, "'%s' has no base class to pull members into", r.class.Name)
			}
			return nil
		},
		func(ctx context.Context, st *status.Status) error {
			r.catalog = members.NewCatalog(r.class, r.oracle)
			if len(r.catalog.Entries()) == 0 {
				st.Fatalf(r.class.Location, "'%s' has no members that can be pulled up", r.class.Name)
			}
			return nil
		},
	)
}

// Class returns the source class.
func (r *Refactoring) Class() *model.Class { return r.class }

// Ancestors returns the ascending inheritance graph of the source class.
func (r *Refactoring) Ancestors() *hierarchy.Graph { return r.ancestors }

// Catalog returns the source class's member catalog.
func (r *Refactoring) Catalog() *members.Catalog { return r.catalog }

// Target returns the chosen target class, or nil.
func (r *Refactoring) Target() *model.Class { return r.target }

// Targets returns the candidate target classes, nearest first.
func (r *Refactoring) Targets() []*model.Class {
	if r.ancestors == nil {
		return nil
	}
	return r.ancestors.Classes()
}

// SetTarget chooses the base class members are pulled into and discovers its
// other subclasses.
func (r *Refactoring) SetTarget(ctx context.Context, b model.Binding) error {
	if r.ancestors == nil {
		return ErrNotPrepared
	}
	if r.oracle.Equal(b, r.class) || !r.ancestors.Contains(b) {
		return fmt.Errorf("%s is not a base class of %s: %w", b.BindingID(), r.class.Name, model.ErrNotFound)
	}
	target, err := r.ancestors.Class(b)
	if err != nil {
		return err
	}
	g, err := hierarchy.NewBuilder(r.source, r.index, r.oracle).Descending(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to find subclasses of %s: %w", target.QualifiedName(), err)
	}
	r.target = target
	r.descendants = g
	r.removals = nil
	for _, c := range g.Classes() {
		if r.oracle.Equal(c, r.class) {
			continue
		}
		for _, m := range c.Methods() {
			r.removals = append(r.removals, &Removal{Member: m, Owner: c})
		}
	}
	r.catalog.Reset()
	return nil
}

// Select chooses the action and target visibility for member b.
func (r *Refactoring) Select(b model.Binding, kind plan.ActionKind, vis model.Visibility) error {
	if r.catalog == nil {
		return ErrNotPrepared
	}
	e := r.catalog.Lookup(b)
	if e == nil {
		return fmt.Errorf("%s is not a member of %s: %w", b.BindingID(), r.class.Name, model.ErrNotFound)
	}
	switch kind {
	case plan.None, plan.PullUp, plan.MoveField, plan.DeclareVirtual:
	default:
		return fmt.Errorf("action %s is not available for pull up", kind)
	}
	e.Action = kind
	e.Visibility = vis
	return nil
}

// Removals returns the methods of the target's other subclasses.
func (r *Refactoring) Removals() []*Removal {
	return append([]*Removal(nil), r.removals...)
}

// ToggleRemove flips the removal flag of subclass method b.
func (r *Refactoring) ToggleRemove(b model.Binding) error {
	for _, rm := range r.removals {
		if r.oracle.Equal(rm.Member, b) {
			rm.Remove = !rm.Remove
			r.catalog.Reset()
			return nil
		}
	}
	return fmt.Errorf("%s is not a member of another subclass: %w", b.BindingID(), model.ErrNotFound)
}

// Check validates the selection and builds the plan. Findings are recorded
// in st; the plan is returned even when st holds errors.
func (r *Refactoring) Check(ctx context.Context, st *status.Status) (*plan.Plan, error) {
	if r.catalog == nil {
		return nil, ErrNotPrepared
	}
	s := &session{r: r, actions: make(map[*members.Entry]plan.ActionKind)}
	p := plan.New(r.source, r.oracle)
	err := plan.RunChecks(ctx, st,
		s.checkSelection,
		s.checkAbstractTarget,
		s.checkDiamond,
		s.checkVisibility,
		s.checkDependencies,
		s.checkAccessibility,
		s.checkRemovals,
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

// newAction builds the atomic action of the given kind.
func newAction(kind plan.ActionKind, m *model.Member, source, target *model.Class, vis model.Visibility) plan.Action {
	switch kind {
	case plan.PullUp, plan.MoveField:
		kind = plan.PullUp
		if m.Kind == model.Field {
			kind = plan.MoveField
		}
		return plan.Action{Kind: kind, Member: m, Source: source, Target: target, Visibility: vis}
	case plan.DeclareVirtual, plan.MethodStub:
		return plan.Action{Kind: kind, Member: m, Source: source, Target: target, Visibility: vis}
	case plan.RemoveMethod:
		return plan.Action{Kind: kind, Member: m, Source: source}
	default:
		return plan.Action{Kind: plan.None}
	}
}
