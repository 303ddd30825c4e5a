package model

import (
	"context"
	"fmt"
	"sort"
)

// Workspace is an in-memory program model implementing Source and Index.
type Workspace struct {
	units     map[string]*Unit
	classes   map[string]*Class
	members   map[string]*Member
	functions map[string]*Function
	order     []string
	refs      map[string][]Reference
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{
		units:     make(map[string]*Unit),
		classes:   make(map[string]*Class),
		members:   make(map[string]*Member),
		functions: make(map[string]*Function),
		refs:      make(map[string][]Reference),
	}
}

// AddUnit registers a compilation unit.
func (w *Workspace) AddUnit(u *Unit) {
	w.units[u.Path] = u
}

// AddClass registers a class and its members and indexes their references.
func (w *Workspace) AddClass(c *Class) error {
	if _, ok := w.classes[c.ID]; ok {
		return fmt.Errorf("duplicate class %s", c.ID)
	}
	w.classes[c.ID] = c
	w.order = append(w.order, c.ID)
	for _, m := range c.Members {
		if _, ok := w.members[m.ID]; ok {
			return fmt.Errorf("duplicate member %s", m.ID)
		}
		m.Owner = c.ID
		w.members[m.ID] = m
	}
	return nil
}

// AddFunction registers a free function.
func (w *Workspace) AddFunction(f *Function) {
	w.functions[f.ID] = f
}

// Reindex rebuilds the reference index from the registered program.
func (w *Workspace) Reindex() {
	w.refs = make(map[string][]Reference)
	for _, id := range w.order {
		c := w.classes[id]
		for _, b := range c.Bases {
			w.addRef(Reference{
				Target:         b.ClassID,
				Roles:          RoleBaseSpecifier | RoleReference,
				Location:       b.Location,
				EnclosingClass: c.ID,
			})
		}
		for _, m := range c.Members {
			if m.Declaration != nil {
				w.addRef(Reference{Target: m.ID, Roles: RoleDeclaration, Location: m.Declaration.Location, Enclosing: m.ID, EnclosingClass: c.ID})
			}
			if m.Definition != nil {
				roles := RoleDefinition
				if m.Declaration == nil {
					roles |= RoleDeclaration
				}
				w.addRef(Reference{Target: m.ID, Roles: roles, Location: m.Definition.Location, Enclosing: m.ID, EnclosingClass: c.ID})
			}
			for _, d := range []*Decl{m.Declaration, m.Definition} {
				if d == nil {
					continue
				}
				for _, r := range d.References {
					if r.Enclosing == "" {
						r.Enclosing = m.ID
					}
					if r.EnclosingClass == "" {
						r.EnclosingClass = c.ID
					}
					w.addRef(r)
				}
			}
		}
	}
	ids := make([]string, 0, len(w.functions))
	for id := range w.functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := w.functions[id]
		if f.Definition == nil {
			continue
		}
		for _, r := range f.Definition.References {
			if r.Enclosing == "" {
				r.Enclosing = f.ID
			}
			w.addRef(r)
		}
	}
}

func (w *Workspace) addRef(r Reference) {
	if r.Roles == 0 {
		r.Roles = RoleReference
	}
	w.refs[r.Target] = append(w.refs[r.Target], r)
}

// References returns every indexed reference, grouped by target in a stable order.
func (w *Workspace) References() []Reference {
	targets := make([]string, 0, len(w.refs))
	for t := range w.refs {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	var out []Reference
	for _, t := range targets {
		out = append(out, w.refs[t]...)
	}
	return out
}

// Units returns copies of all compilation units sorted by path.
func (w *Workspace) Units() []*Unit {
	out := make([]*Unit, 0, len(w.units))
	for _, u := range w.units {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Classes returns fresh views of all classes in registration order.
func (w *Workspace) Classes() []*Class {
	out := make([]*Class, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, cloneClass(w.classes[id]))
	}
	return out
}

// Class implements Source.
func (w *Workspace) Class(id string) (*Class, error) {
	c, ok := w.classes[id]
	if !ok {
		return nil, fmt.Errorf("class %s: %w", id, ErrNotFound)
	}
	return cloneClass(c), nil
}

// Member implements Source.
func (w *Workspace) Member(id string) (*Member, error) {
	m, ok := w.members[id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	return cloneMember(m), nil
}

// Unit implements Source.
func (w *Workspace) Unit(path string) (*Unit, error) {
	u, ok := w.units[path]
	if !ok {
		return nil, fmt.Errorf("unit %s: %w", path, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// EnclosingClass implements Source.
func (w *Workspace) EnclosingClass(ref Reference) (*Class, error) {
	if ref.EnclosingClass != "" {
		return w.Class(ref.EnclosingClass)
	}
	if m, ok := w.members[ref.Enclosing]; ok {
		return w.Class(m.Owner)
	}
	return nil, fmt.Errorf("enclosing class of reference at %s: %w", ref.Location, ErrNotFound)
}

// FindReferences implements Index.
func (w *Workspace) FindReferences(ctx context.Context, b Binding) ([]Reference, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	refs := w.refs[b.BindingID()]
	out := make([]Reference, len(refs))
	copy(out, refs)
	return out, nil
}

// FindDefinitions implements Index.
func (w *Workspace) FindDefinitions(ctx context.Context, b Binding) ([]Reference, error) {
	refs, err := w.FindReferences(ctx, b)
	if err != nil {
		return nil, err
	}
	var out []Reference
	for _, r := range refs {
		if r.Roles.Has(RoleDefinition) {
			out = append(out, r)
		}
	}
	return out, nil
}

func cloneClass(c *Class) *Class {
	cp := *c
	cp.Scopes = append([]Scope(nil), c.Scopes...)
	cp.Bases = append([]BaseSpecifier(nil), c.Bases...)
	cp.Labels = append([]Label(nil), c.Labels...)
	cp.Members = make([]*Member, len(c.Members))
	for i, m := range c.Members {
		cp.Members[i] = cloneMember(m)
	}
	return &cp
}

func cloneMember(m *Member) *Member {
	cp := *m
	cp.Signature.Params = append([]Param(nil), m.Signature.Params...)
	cp.Declaration = cloneDecl(m.Declaration)
	cp.Definition = cloneDecl(m.Definition)
	return &cp
}

func cloneDecl(d *Decl) *Decl {
	if d == nil {
		return nil
	}
	cp := *d
	cp.References = append([]Reference(nil), d.References...)
	cp.Comments = append([]Comment(nil), d.Comments...)
	return &cp
}
