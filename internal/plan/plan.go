package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvp-joe/project-relocate/internal/insertion"
	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
	"github.com/mvp-joe/project-relocate/internal/status"
)

var (
	// ErrAlreadyRun is returned when a plan is run a second time.
	ErrAlreadyRun = errors.New("plan already run")

	// ErrNotPossible is returned when a plan's checks report an error.
	ErrNotPossible = errors.New("plan is not possible")
)

// Plan is an ordered sequence of actions, consumed by exactly one Run.
type Plan struct {
	source  model.Source
	oracle  model.Oracle
	actions []Action
	ran     bool
}

// New creates an empty plan.
func New(source model.Source, oracle model.Oracle) *Plan {
	return &Plan{source: source, oracle: oracle}
}

// Add appends actions. Actions of kind None are dropped.
func (p *Plan) Add(actions ...Action) {
	for _, a := range actions {
		if a.Kind != None {
			p.actions = append(p.actions, a)
		}
	}
}

// Actions returns the planned actions in order.
func (p *Plan) Actions() []Action {
	return append([]Action(nil), p.actions...)
}

// Len returns the number of planned actions.
func (p *Plan) Len() int {
	return len(p.actions)
}

// IsPossible runs every action's local feasibility check into st. It never
// stages edits; the returned error is only set on cancellation.
func (p *Plan) IsPossible(ctx context.Context, st *status.Status) error {
	r := insertion.NewResolver(p.source, p.oracle)
	for _, a := range p.actions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.check(a, r, st)
	}
	return nil
}

// Run stages the edits of every action into c. Either all edits are staged or
// none: the plan is checked first and refused with ErrNotPossible on error.
func (p *Plan) Run(ctx context.Context, c *rewrite.Collector) error {
	if p.ran {
		return ErrAlreadyRun
	}
	p.ran = true

	st := status.New()
	if err := p.IsPossible(ctx, st); err != nil {
		return err
	}
	if st.HasError() {
		return fmt.Errorf("%w: %v", ErrNotPossible, st.Err())
	}

	staged := rewrite.NewCollector(c.Name())
	r := insertion.NewResolver(p.source, p.oracle)
	for _, a := range p.actions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := p.apply(a, r, staged); err != nil {
			return fmt.Errorf("failed to apply %s: %w", a, err)
		}
	}
	c.Merge(staged)
	return nil
}

func (p *Plan) check(a Action, r *insertion.Resolver, st *status.Status) {
	m := a.Member
	if m == nil {
		st.Errorf(model.Location{}, "%s has no member", a.Kind)
		return
	}
	switch a.Kind {
	case PushDown, RemoveMethod:
		if m.Declaration == nil && m.Definition == nil {
			st.Errorf(m.Location(), "'%s' has no declaration to remove", m.Display())
		}
		return
	case DeclareVirtual, MethodStub:
		if m.Kind == model.Field {
			st.Errorf(m.Location(), "field '%s' cannot be declared virtual", m.Name)
			return
		}
	}
	if a.Target == nil {
		st.Errorf(m.Location(), "no target class for '%s'", m.Display())
		return
	}
	replacing := a.Kind == DeclareVirtual && a.Source != nil && p.oracle.Equal(a.Source, a.Target)
	if !replacing {
		if existing := a.Target.Declares(m); existing != nil {
			st.Errorf(existing.Location(), "'%s' already exists in '%s'", m.Display(), a.Target.Name)
			return
		}
	}
	for _, kind := range []insertion.Kind{insertion.Declaration, insertion.Definition} {
		if _, err := r.Resolve(p.request(a, kind)); err != nil {
			st.Errorf(m.Location(), "cannot place '%s' in '%s': %v", m.Display(), a.Target.Name, err)
			return
		}
	}
}

func (p *Plan) request(a Action, kind insertion.Kind) insertion.Request {
	return insertion.Request{
		Member:     a.Member,
		Source:     a.Source,
		Target:     a.Target,
		Kind:       kind,
		Visibility: a.Visibility,
		Declared:   a.Member.Declaration != nil,
	}
}

func (p *Plan) apply(a Action, r *insertion.Resolver, c *rewrite.Collector) error {
	switch a.Kind {
	case PullUp, MoveField:
		if err := p.insertMember(a, r, c); err != nil {
			return err
		}
		removeMember(c, a.Member, a.Source)
	case ExistingDefinition:
		return p.insertMember(a, r, c)
	case PushDown, RemoveMethod:
		removeMember(c, a.Member, a.Source)
	case DeclareVirtual:
		if a.Source != nil && p.oracle.Equal(a.Source, a.Target) {
			removeMember(c, a.Member, a.Source)
		}
		pt, err := r.Resolve(p.request(a, insertion.Declaration))
		if err != nil {
			return err
		}
		c.Insert(pt.Unit, pt.Anchor, rewrite.Node{
			Kind:     rewrite.DeclarationNode,
			Name:     pt.Name,
			Text:     rewrite.Declaration(a.Member, rewrite.DeclOptions{Template: pt.Template, Pure: true}),
			Comments: pt.Comments,
		})
	case MethodStub:
		stub := *a.Member
		stub.Declaration = nil
		stub.Definition = nil
		stub.Virtual = true
		stub.Pure = false
		return p.insertMember(Action{Kind: a.Kind, Member: &stub, Source: a.Source, Target: a.Target, Visibility: a.Visibility}, r, c)
	case None:
	default:
		return fmt.Errorf("unknown action kind %d", int(a.Kind))
	}
	return nil
}

// insertMember writes m into the target: fields and bodiless methods as an
// in-class declaration, methods with a body as a definition plus, when the
// definition lands out-of-line, an in-class declaration.
func (p *Plan) insertMember(a Action, r *insertion.Resolver, c *rewrite.Collector) error {
	m := a.Member
	if m.Kind == model.Field {
		pt, err := r.Resolve(p.request(a, insertion.Declaration))
		if err != nil {
			return err
		}
		c.Insert(pt.Unit, pt.Anchor, rewrite.Node{Kind: rewrite.FieldNode, Name: pt.Name, Text: rewrite.FieldDeclaration(m), Comments: pt.Comments})
		return nil
	}

	if m.Definition == nil && a.Kind != MethodStub {
		pt, err := r.Resolve(p.request(a, insertion.Declaration))
		if err != nil {
			return err
		}
		c.Insert(pt.Unit, pt.Anchor, rewrite.Node{
			Kind:     rewrite.DeclarationNode,
			Name:     pt.Name,
			Text:     rewrite.Declaration(m, rewrite.DeclOptions{Template: pt.Template, Virtual: m.Virtual, Pure: m.Pure}),
			Comments: pt.Comments,
		})
		return nil
	}

	def, err := r.Resolve(p.request(a, insertion.Definition))
	if err != nil {
		return err
	}
	body := ""
	if m.Definition != nil {
		body = m.Definition.Body
	}
	if def.InClass {
		var comments []model.Comment
		if m.Declaration != nil {
			comments = append(comments, m.Declaration.Comments...)
		}
		comments = append(comments, def.Comments...)
		c.Insert(def.Unit, def.Anchor, rewrite.Node{
			Kind:     rewrite.DefinitionNode,
			Name:     def.Name,
			Text:     rewrite.Definition(m, rewrite.DefOptions{Template: def.Template, Body: body, InClass: true}),
			Comments: comments,
		})
		return nil
	}

	if def.NeedsDeclaration || m.Declaration != nil {
		decl, err := r.Resolve(p.request(a, insertion.Declaration))
		if err != nil {
			return err
		}
		comments := decl.Comments
		if def.NeedsDeclaration {
			comments = def.DeclarationComments
		}
		c.Insert(decl.Unit, decl.Anchor, rewrite.Node{
			Kind:     rewrite.DeclarationNode,
			Name:     decl.Name,
			Text:     rewrite.Declaration(m, rewrite.DeclOptions{Template: decl.Template, Virtual: m.Virtual}),
			Comments: comments,
		})
	}
	c.Insert(def.Unit, def.Anchor, rewrite.Node{
		Kind:     rewrite.DefinitionNode,
		Name:     def.Name,
		Text:     rewrite.Definition(m, rewrite.DefOptions{Name: def.Name, Body: body}),
		Comments: def.Comments,
	})
	return nil
}

func removeMember(c *rewrite.Collector, m *model.Member, owner *model.Class) {
	name := m.Name
	if owner != nil {
		name = insertion.QualifiedName(owner, m.Name)
	}
	for _, d := range []*model.Decl{m.Declaration, m.Definition} {
		if d != nil {
			c.Remove(d.Unit, d.Location, name)
		}
	}
}
