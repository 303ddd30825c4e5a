package pushdown

import (
	"context"
	"fmt"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/hierarchy"
	"github.com/mvp-joe/project-relocate/internal/members"
	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/status"
)

type session struct {
	r       *Refactoring
	entries []*members.Entry
}

// targets returns the subclasses that receive e, nearest first.
func (s *session) targets(e *members.Entry) []*model.Class {
	var out []*model.Class
	for _, c := range s.r.descendants.Classes() {
		if e.TargetAction(c) != plan.None {
			out = append(out, c)
		}
	}
	return out
}

// copies returns the subclasses that receive a copy of e's body.
func (s *session) copies(e *members.Entry) []*model.Class {
	var out []*model.Class
	for _, c := range s.targets(e) {
		if e.TargetAction(c) == plan.ExistingDefinition {
			out = append(out, c)
		}
	}
	return out
}

// available reports whether e can be used from class c once the plan ran.
func (s *session) available(e *members.Entry, c model.Binding) bool {
	return e.Action != plan.PushDown || s.receives(e, c)
}

func (s *session) checkSelection(ctx context.Context, st *status.Status) error {
	r := s.r
	s.entries = r.catalog.Selected()
	if len(s.entries) == 0 {
		st.Fatalf(r.class.Location, "no members of '%s' selected", r.class.Name)
		return nil
	}
	for _, e := range s.entries {
		if e.Action == plan.PushDown && len(s.targets(e)) == 0 {
			st.Warningf(e.Member.Location(), "'%s' is removed from '%s' without being pushed into any subclass", e.Member.Display(), r.class.Name)
		}
	}
	return nil
}

// checkDependents verifies that every body relying on a pushed member still
// finds it after the move.
func (s *session) checkDependents(ctx context.Context, st *status.Status) error {
	r := s.r
	for _, e := range s.entries {
		if e.Action == plan.PushDown {
			dependents, err := r.catalog.Dependents(ctx, e)
			if err != nil {
				return err
			}
			for _, d := range dependents {
				s.checkDependent(st, d, e)
			}
		}
		if err := s.checkPrivateUses(ctx, st, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) checkDependent(st *status.Status, d, e *members.Entry) {
	r := s.r
	if d.Action == plan.None {
		targets := s.targets(e)
		if len(targets) == 0 {
			st.Errorf(d.Member.Location(), "'%s' uses '%s', which is removed from '%s'", d.Member.Display(), e.Member.Display(), r.class.Name)
		}
		for _, t := range targets {
			st.Errorf(d.Member.Location(), "'%s' uses '%s', which is pushed down to '%s' without it", d.Member.Display(), e.Member.Display(), t.Name)
		}
		return
	}
	for _, t := range s.copies(d) {
		if !s.available(e, t) {
			st.Errorf(d.Member.Location(), "'%s' is pushed down to '%s' but uses '%s', which is not available there", d.Member.Display(), t.Name, e.Member.Display())
		}
	}
}

// checkPrivateUses reports private members of the source class that a
// copied body uses and that stay behind.
func (s *session) checkPrivateUses(ctx context.Context, st *status.Status, e *members.Entry) error {
	r := s.r
	body := e.Member.Body()
	copies := s.copies(e)
	if body == nil || len(copies) == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	for _, ref := range body.References {
		dep := r.catalog.Lookup(model.Symbol(ref.Target))
		if dep == nil || dep == e || dep.Member.Visibility != model.Private {
			continue
		}
		var missing []string
		for _, t := range copies {
			if !s.receives(dep, t) {
				missing = append(missing, t.Name)
			}
		}
		if len(missing) > 0 {
			st.Errorf(ref.Location, "'%s' uses private member '%s' of '%s', which is not accessible from '%s'", e.Member.Display(), dep.Member.Display(), r.class.Name, strings.Join(missing, "', '"))
		}
	}
	return nil
}

// receives reports whether t or one of its bases below the source class
// gets its own copy of dep.
func (s *session) receives(dep *members.Entry, t model.Binding) bool {
	for _, c := range s.targets(dep) {
		if s.r.descendants.IsDerivedFrom(t, c) {
			return true
		}
	}
	return false
}

// checkCallSites requires every use of a removed member outside the source
// class to go through a type that still has exactly one of it.
func (s *session) checkCallSites(ctx context.Context, st *status.Status) error {
	r := s.r
	for _, e := range s.entries {
		if e.Action != plan.PushDown {
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
			if ref.EnclosingClass != "" && r.oracle.Equal(model.Symbol(ref.EnclosingClass), r.class) {
				continue
			}
			through := ref.Receiver
			if through == "" {
				through = ref.EnclosingClass
			}
			n := 0
			if through != "" {
				if n, err = s.holders(e, model.Symbol(through)); err != nil {
					return err
				}
			}
			switch {
			case n == 1:
			case n > 1:
				st.Errorf(ref.Location, "'%s' is ambiguous through '%s', which would inherit it from %d subclasses", e.Member.Display(), s.displayName(through), n)
			default:
				st.Errorf(ref.Location, "'%s' is used through '%s', which would no longer have it", e.Member.Display(), s.displayName(through))
			}
		}
	}
	return nil
}

// holders counts the distinct subobjects of c that provide e after the push
// down: c itself, or on each path up to the source class the nearest class
// that receives or already declares e.
func (s *session) holders(e *members.Entry, c model.Binding) (int, error) {
	r := s.r
	if !r.descendants.Contains(c) || r.oracle.Equal(c, r.class) {
		return 0, nil
	}
	if s.holds(e, c) {
		return 1, nil
	}
	paths, err := r.descendants.Paths(c, r.class)
	if err != nil {
		return 0, err
	}
	found := make(map[string]bool)
	for _, hops := range paths {
		for i, h := range hops[:len(hops)-1] {
			if s.holds(e, model.Symbol(h.ClassID)) {
				found[hierarchy.SubobjectKey(hops[:i+1])] = true
				break
			}
		}
	}
	return len(found), nil
}

// holds reports whether class c has its own e once the plan ran.
func (s *session) holds(e *members.Entry, c model.Binding) bool {
	if e.TargetAction(c) != plan.None {
		return true
	}
	cls, err := s.r.descendants.Class(c)
	return err == nil && cls.Declares(e.Member) != nil
}

func (s *session) displayName(id string) string {
	if id == "" {
		return "an unknown type"
	}
	if c, err := s.r.source.Class(id); err == nil {
		return c.Name
	}
	return id
}

func (s *session) build(ctx context.Context, p *plan.Plan, st *status.Status) error {
	r := s.r
	for _, e := range s.entries {
		p.Add(newAction(e.Action, e, r.class, nil))
		for _, t := range r.descendants.Classes() {
			p.Add(newAction(e.TargetAction(t), e, r.class, t))
		}
	}
	return p.IsPossible(ctx, st)
}
