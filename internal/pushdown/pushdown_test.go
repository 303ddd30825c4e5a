package pushdown

import (
	"context"
	"testing"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
	"github.com/mvp-joe/project-relocate/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Push Down:
// - Prepare fails fatally for classes without subclasses
// - Check fails fatally without a selection
// - Direct subclasses receive a copy by default
// - Subclasses referencing the member are mandatory and receive the copy instead
// - Pushing a field used by a method staying behind is exactly one error naming both
// - Pushing the field together with its user succeeds and moves both
// - Call sites through the source type are errors, through a receiving subclass are not
// - Call sites reaching copies in several subclasses of a diamond are ambiguous
// - Private members used by a pushed body must follow it
// - DeclareVirtual keeps a pure declaration in the source class
// - Per-subclass actions can be overridden, stubs only for methods

func prepare(t *testing.T, src, class string) (*model.Workspace, *Refactoring) {
	t.Helper()
	ws := model.NewTestWorkspace(t, src)
	r := New(ws, ws, model.USROracle{})
	st := status.New()
	require.NoError(t, r.Prepare(context.Background(), ws.ClassNamed(t, class).ID, st))
	require.False(t, st.HasFatal(), st.String())
	return ws, r
}

func selectMember(t *testing.T, ws *model.Workspace, r *Refactoring, name string, kind plan.ActionKind) *model.Member {
	t.Helper()
	m := ws.ClassNamed(t, r.Class().Name).MemberNamed(t, name)
	require.NoError(t, r.Select(context.Background(), m, kind))
	return m
}

func texts(edits []rewrite.Edit) []string {
	var out []string
	for _, e := range edits {
		if e.Kind == rewrite.Insert {
			out = append(out, e.Node.Text)
		}
	}
	return out
}

const fieldModel = `
classes:
  - name: Base
    unit: Base.h
    line: 1
    end: 8
    methods:
      - name: g
        returns: int
        visibility: public
        line: 4
        definition:
          inclass: true
          body: "{ return f; }"
          refs: [{target: "Base::f", line: 4}]
    fields:
      - {name: f, type: int, visibility: private, line: 3}
  - name: Derived
    unit: Derived.h
    line: 10
    end: 12
    bases: [{name: Base, visibility: public}]
`

func TestPrepare_FatalWithoutSubclasses(t *testing.T) {
	t.Parallel()

	ws := model.NewTestWorkspace(t, fieldModel)
	r := New(ws, ws, model.USROracle{})
	st := status.New()
	require.NoError(t, r.Prepare(context.Background(), ws.ClassNamed(t, "Derived").ID, st))
	require.True(t, st.HasFatal())
	assert.Contains(t, st.Entries()[0].Message, "has no subclass")

	_, err := New(ws, ws, model.USROracle{}).Check(context.Background(), status.New())
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestCheck_FatalWithoutSelection(t *testing.T) {
	t.Parallel()

	_, r := prepare(t, fieldModel, "Base")
	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, st.HasFatal())
}

func TestCheck_UnmetDependent(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, fieldModel, "Base")
	f := selectMember(t, ws, r, "f", plan.PushDown)
	e := r.Catalog().Lookup(f)
	assert.Equal(t, plan.ExistingDefinition, e.TargetAction(ws.ClassNamed(t, "Derived")))

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, 1, st.Len(), st.String())
	entry := st.Entries()[0]
	assert.Equal(t, status.Error, entry.Severity)
	assert.Contains(t, entry.Message, "'g()' uses 'f'")
	assert.Contains(t, entry.Message, "'Derived'")

	c := rewrite.NewCollector("push down")
	assert.ErrorIs(t, r.Apply(context.Background(), status.New(), c), plan.ErrNotPossible)
	assert.Zero(t, c.Len())
}

func TestApply_PushesFieldWithItsUser(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, fieldModel, "Base")
	selectMember(t, ws, r, "f", plan.PushDown)
	selectMember(t, ws, r, "g", plan.PushDown)

	st := status.New()
	c := rewrite.NewCollector("push down")
	require.NoError(t, r.Apply(context.Background(), st, c))
	assert.True(t, st.OK(), st.String())

	assert.Equal(t, []string{"int g() { return f; }", "int f;"}, texts(c.Edits("Derived.h")))
	removed := c.Edits("Base.h")
	require.Len(t, removed, 2)
	for _, e := range removed {
		assert.Equal(t, rewrite.Remove, e.Kind)
	}
}

const callSiteModel = `
classes:
  - name: Base
    unit: Base.h
    line: 1
    end: 5
    methods:
      - name: m
        visibility: public
        line: 3
        definition: {inclass: true, body: "{ }"}
      - name: helper
        visibility: private
        line: 4
        definition: {inclass: true, body: "{ }"}
      - name: run
        visibility: public
        line: 5
        definition:
          inclass: true
          body: "{ helper(); }"
          refs: [{target: "Base::helper", line: 5}]
  - name: Mid
    unit: Mid.h
    line: 10
    end: 12
    bases: [{name: Base, visibility: public, line: 10}]
  - name: Leaf
    unit: Leaf.h
    line: 20
    end: 25
    bases: [{name: Mid, visibility: public, line: 20}]
    methods:
      - name: use
        visibility: public
        line: 22
        definition:
          inclass: true
          body: "{ m(); }"
          refs: [{target: "Base::m", line: 22}]
  - name: Other
    unit: Other.h
    line: 30
    end: 32
    bases: [{name: Base, visibility: public, line: 30}]
functions:
  - name: main
    unit: main.cpp
    refs:
      - {target: "Base::m", line: 5, receiver: Base}
      - {target: "Base::m", line: 6, receiver: Leaf}
`

func TestSelect_MandatorySubclasses(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, callSiteModel, "Base")
	assert.Len(t, r.Targets(), 3)

	m := selectMember(t, ws, r, "m", plan.PushDown)
	e := r.Catalog().Lookup(m)

	mandatory, err := r.Mandatory(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ws.ClassNamed(t, "Leaf").ID: true}, mandatory)

	assert.Equal(t, plan.None, e.TargetAction(ws.ClassNamed(t, "Mid")))
	assert.Equal(t, plan.ExistingDefinition, e.TargetAction(ws.ClassNamed(t, "Leaf")))
	assert.Equal(t, plan.None, e.TargetAction(ws.ClassNamed(t, "Other")))

	run := selectMember(t, ws, r, "run", plan.PushDown)
	e = r.Catalog().Lookup(run)
	assert.Equal(t, plan.ExistingDefinition, e.TargetAction(ws.ClassNamed(t, "Mid")))
	assert.Equal(t, plan.None, e.TargetAction(ws.ClassNamed(t, "Leaf")))
	assert.Equal(t, plan.ExistingDefinition, e.TargetAction(ws.ClassNamed(t, "Other")))
}

func TestCheck_CallSites(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, callSiteModel, "Base")
	selectMember(t, ws, r, "m", plan.PushDown)

	st := status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	errs := st.Filter(status.Error)
	require.Len(t, errs, 1, st.String())
	assert.Equal(t, 5, errs[0].Location.Line)
	assert.Contains(t, errs[0].Message, "used through 'Base'")

	var kinds []plan.ActionKind
	for _, a := range p.Actions() {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []plan.ActionKind{plan.PushDown, plan.ExistingDefinition}, kinds)
}

const diamondModel = `
classes:
  - name: Base
    unit: Base.h
    line: 1
    end: 4
    methods:
      - name: f
        visibility: public
        line: 3
        definition: {inclass: true, body: "{ }"}
  - name: Left
    unit: Left.h
    line: 1
    end: 3
    bases: [{name: Base, visibility: public, virtual: true, line: 1}]
  - name: Right
    unit: Right.h
    line: 1
    end: 3
    bases: [{name: Base, visibility: public, virtual: true, line: 1}]
  - name: Bottom
    unit: Bottom.h
    line: 1
    end: 3
    bases:
      - {name: Left, visibility: public, line: 1}
      - {name: Right, visibility: public, line: 1}
functions:
  - name: main
    unit: main.cpp
    refs:
      - {target: "Base::f", line: 7, receiver: Bottom}
`

func TestCheck_CallSitesThroughDiamond(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, diamondModel, "Base")
	f := selectMember(t, ws, r, "f", plan.PushDown)
	e := r.Catalog().Lookup(f)
	require.Equal(t, plan.ExistingDefinition, e.TargetAction(ws.ClassNamed(t, "Left")))
	require.Equal(t, plan.ExistingDefinition, e.TargetAction(ws.ClassNamed(t, "Right")))

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	errs := st.Filter(status.Error)
	require.Len(t, errs, 1, st.String())
	assert.Equal(t, "main.cpp", errs[0].Location.File)
	assert.Equal(t, 7, errs[0].Location.Line)
	assert.Contains(t, errs[0].Message, "ambiguous through 'Bottom'")

	// A copy in Bottom itself hides both inherited ones.
	require.NoError(t, r.SetTargetAction(f, ws.ClassNamed(t, "Bottom"), plan.ExistingDefinition))
	st = status.New()
	_, err = r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, st.HasError(), st.String())
}

func TestCheck_PrivateUses(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, callSiteModel, "Base")
	selectMember(t, ws, r, "run", plan.DeclareVirtual)

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	errs := st.Filter(status.Error)
	require.Len(t, errs, 1, st.String())
	assert.Contains(t, errs[0].Message, "private member 'helper()'")
	assert.Contains(t, errs[0].Message, "'Mid', 'Other'")

	selectMember(t, ws, r, "helper", plan.PushDown)
	st = status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, st.OK(), st.String())

	c := rewrite.NewCollector("push down")
	require.NoError(t, p.Run(context.Background(), c))
	base := c.Edits("Base.h")
	assert.Equal(t, []string{"virtual void run() = 0;"}, texts(base))
	assert.Len(t, base, 3, "run and helper definitions are removed")
	assert.Equal(t, []string{"void helper() { }", "void run() { helper(); }"}, texts(c.Edits("Mid.h")))
}

func TestSetTargetAction(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, fieldModel, "Base")
	g := selectMember(t, ws, r, "g", plan.DeclareVirtual)
	f := ws.ClassNamed(t, "Base").MemberNamed(t, "f")
	derived := ws.ClassNamed(t, "Derived")

	require.NoError(t, r.SetTargetAction(g, derived, plan.MethodStub))
	assert.Error(t, r.SetTargetAction(f, derived, plan.MethodStub))
	assert.Error(t, r.SetTargetAction(g, ws.ClassNamed(t, "Base"), plan.ExistingDefinition))
	assert.Error(t, r.SetTargetAction(g, derived, plan.PullUp))
	assert.Error(t, r.Select(context.Background(), f, plan.DeclareVirtual))

	st := status.New()
	c := rewrite.NewCollector("push down")
	require.NoError(t, r.Apply(context.Background(), st, c))
	assert.Equal(t, []string{"virtual int g() {\n}"}, texts(c.Edits("Derived.h")))
}
