package pullup

import (
	"context"
	"fmt"

	"github.com/mvp-joe/project-relocate/internal/hierarchy"
	"github.com/mvp-joe/project-relocate/internal/members"
	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/status"
)

// session holds the effective action of each selected entry for one Check.
type session struct {
	r       *Refactoring
	entries []*members.Entry
	actions map[*members.Entry]plan.ActionKind
}

func (s *session) action(e *members.Entry) plan.ActionKind {
	return s.actions[e]
}

// moves reports whether e's body leaves the source class.
func (s *session) moves(e *members.Entry) bool {
	k := s.actions[e]
	return k == plan.PullUp || k == plan.MoveField
}

func (s *session) checkSelection(ctx context.Context, st *status.Status) error {
	r := s.r
	if r.target == nil {
		st.Fatalf(r.class.Location, "no target class selected for '%s'", r.class.Name)
		return nil
	}
	for _, e := range r.catalog.Selected() {
		s.entries = append(s.entries, e)
		s.actions[e] = e.Action
	}
	if len(s.entries) == 0 {
		st.Fatalf(r.class.Location, "no members of '%s' selected", r.class.Name)
	}
	return nil
}

// checkAbstractTarget downgrades methods pulled into an abstract target to
// pure virtual declarations. Fields cannot be downgraded.
func (s *session) checkAbstractTarget(ctx context.Context, st *status.Status) error {
	r := s.r
	if r.opts.PullIntoAbstract || !r.target.Abstract() {
		return nil
	}
	for _, e := range s.entries {
		if !s.moves(e) {
			continue
		}
		if e.Member.Kind == model.Field {
			st.Errorf(e.Member.Location(), "field '%s' cannot be pulled into abstract class '%s'", e.Member.Name, r.target.Name)
			s.actions[e] = plan.None
			continue
		}
		st.Warningf(e.Member.Location(), "'%s' is abstract; '%s' will be declared pure virtual there", r.target.Name, e.Member.Display())
		s.actions[e] = plan.DeclareVirtual
	}
	return nil
}

func (s *session) checkDiamond(ctx context.Context, st *status.Status) error {
	r := s.r
	diamond, err := r.ancestors.Diamond(r.class, r.target)
	if err != nil {
		return err
	}
	if diamond {
		st.Warningf(r.target.Location, "'%s' is inherited by '%s' along several non-virtual paths", r.target.Name, r.class.Name)
	}
	return nil
}

func (s *session) checkVisibility(ctx context.Context, st *status.Status) error {
	r := s.r
	pathVis, ok, err := r.ancestors.PathVisibility(r.class, r.target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not reachable from %s", r.target.Name, r.class.Name)
	}
	for _, e := range s.entries {
		if s.action(e) == plan.None {
			continue
		}
		if model.MinVisibility(e.Visibility, pathVis) < e.Member.Visibility {
			st.Warningf(e.Member.Location(), "visibility of '%s' cannot be guaranteed: '%s' is seen from '%s' as %s", e.Member.Display(), r.target.Name, r.class.Name, model.MinVisibility(e.Visibility, pathVis))
		}
	}
	return nil
}

// checkDependencies requires every member a pulled body relies on to be
// available in the target.
func (s *session) checkDependencies(ctx context.Context, st *status.Status) error {
	r := s.r
	for _, e := range s.entries {
		if !s.moves(e) {
			continue
		}
		deps, err := r.catalog.Dependencies(ctx, e)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if s.action(dep) != plan.None || r.target.Declares(dep.Member) != nil {
				continue
			}
			st.Errorf(e.Member.Location(), "'%s' uses '%s', which is not pulled up to '%s'", e.Member.Display(), dep.Member.Display(), r.target.Name)
		}
	}
	return nil
}

// checkAccessibility reports uses of pulled members that the chosen target
// visibility would no longer allow.
func (s *session) checkAccessibility(ctx context.Context, st *status.Status) error {
	r := s.r
	for _, e := range s.entries {
		if !s.moves(e) {
			continue
		}
		refs, err := r.index.FindReferences(ctx, e.Member)
		if err != nil {
			return fmt.Errorf("failed to find references to %s: %w", e.Member.Display(), err)
		}
		for _, ref := range refs {
			if !ref.IsUse() {
				continue
			}
			if in := r.catalog.Lookup(model.Symbol(ref.Enclosing)); in != nil && s.moves(in) {
				continue
			}
			need := s.required(ref)
			if e.Visibility < need {
				st.Errorf(ref.Location, "'%s' is used here but would not be accessible as a %s member of '%s'", e.Member.Display(), e.Visibility, r.target.Name)
				continue
			}
			through, ok, err := s.throughReceiver(ref)
			if err != nil {
				return err
			}
			if ok && model.MinVisibility(e.Visibility, through) < need {
				st.Errorf(ref.Location, "'%s' is used through '%s' but would not be accessible there: '%s' is inherited as %s", e.Member.Display(), s.className(ref.Receiver), r.target.Name, through)
			}
		}
	}
	return nil
}

// required returns the least visibility a member of the target needs to stay
// reachable from ref.
func (s *session) required(ref model.Reference) model.Visibility {
	r := s.r
	if ref.EnclosingClass == "" {
		return model.Public
	}
	enclosing := model.Symbol(ref.EnclosingClass)
	switch {
	case r.oracle.Equal(enclosing, r.target):
		return model.Private
	case r.oracle.Equal(enclosing, r.class), r.descendants.IsDerivedFrom(enclosing, r.target):
		return model.Protected
	default:
		return model.Public
	}
}

// throughReceiver returns the access under which the target's members are
// seen from the static type of ref's receiver. The second result is false
// when the receiver is absent, is the target, or encloses ref itself.
func (s *session) throughReceiver(ref model.Reference) (model.Visibility, bool, error) {
	r := s.r
	if ref.Receiver == "" {
		return model.Public, false, nil
	}
	receiver := model.Symbol(ref.Receiver)
	if r.oracle.Equal(receiver, r.target) || !r.descendants.Contains(receiver) {
		return model.Public, false, nil
	}
	if ref.EnclosingClass != "" && r.oracle.Equal(model.Symbol(ref.EnclosingClass), receiver) {
		return model.Public, false, nil
	}
	v, ok, err := r.descendants.PathVisibility(receiver, r.target)
	if err != nil {
		return model.Public, false, err
	}
	return v, ok, nil
}

func (s *session) className(id string) string {
	if c, err := s.r.source.Class(id); err == nil {
		return c.Name
	}
	return id
}

// checkRemovals rejects removing subclass methods that are still used and not
// replaced by a pulled-up member.
func (s *session) checkRemovals(ctx context.Context, st *status.Status) error {
	r := s.r
	for _, rm := range r.removals {
		if !rm.Remove || s.replaced(rm.Member) {
			continue
		}
		refs, err := r.index.FindReferences(ctx, rm.Member)
		if err != nil {
			return fmt.Errorf("failed to find references to %s: %w", rm.Member.Display(), err)
		}
		for _, ref := range refs {
			if ref.IsUse() && !r.oracle.Equal(model.Symbol(ref.Enclosing), rm.Member) {
				st.Errorf(ref.Location, "'%s' is still used and cannot be removed from '%s'", rm.Member.Display(), rm.Owner.Name)
			}
		}
	}
	return nil
}

// replaced reports whether a pulled-up method takes over calls to m.
func (s *session) replaced(m *model.Member) bool {
	for _, e := range s.entries {
		k := s.action(e)
		if k != plan.PullUp && k != plan.DeclareVirtual {
			continue
		}
		if e.Member.Name == m.Name && e.Member.Signature.Compatible(m.Signature) {
			return true
		}
	}
	return false
}

func (s *session) build(ctx context.Context, p *plan.Plan, st *status.Status) error {
	r := s.r
	for _, e := range s.entries {
		p.Add(newAction(s.action(e), e.Member, r.class, r.target, e.Visibility))
	}
	for _, rm := range r.removals {
		if rm.Remove {
			p.Add(newAction(plan.RemoveMethod, rm.Member, rm.Owner, nil, rm.Member.Visibility))
		}
	}
	if r.opts.InsertStubs {
		for _, e := range s.entries {
			for _, c := range s.stubClasses(e) {
				p.Add(newAction(plan.MethodStub, e.Member, r.target, c, e.Visibility))
			}
		}
	}
	return p.IsPossible(ctx, st)
}

// stubClasses walks the target's subclasses level by level and returns the
// concrete classes that would inherit e as pure virtual without overriding it.
// Abstract classes are descended into; a branch ends at the first class that
// overrides e or receives a stub.
func (s *session) stubClasses(e *members.Entry) []*model.Class {
	r := s.r
	k := s.action(e)
	pure := k == plan.DeclareVirtual || (k == plan.PullUp && e.Member.Pure)
	if !pure || e.Member.Kind != model.Method {
		return nil
	}
	var out []*model.Class
	visited := make(map[string]bool)
	queue := append([]*hierarchy.Node(nil), r.descendants.Root.Successors...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		key := r.oracle.Key(n.Class)
		if visited[key] {
			continue
		}
		visited[key] = true

		if r.oracle.Equal(n.Class, r.class) && k == plan.PullUp {
			queue = append(queue, n.Successors...)
			continue
		}
		if n.Class.Declares(e.Member) != nil {
			continue
		}
		if n.Abstract {
			queue = append(queue, n.Successors...)
			continue
		}
		out = append(out, n.Class)
	}
	return out
}
