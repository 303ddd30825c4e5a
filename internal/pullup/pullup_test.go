package pullup

import (
	"context"
	"strings"
	"testing"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
	"github.com/mvp-joe/project-relocate/internal/rewrite"
	"github.com/mvp-joe/project-relocate/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Pull Up:
// - Prepare fails fatally for unknown classes and classes without bases
// - Check fails fatally without a target or a selection
// - Diamond inheritance to the target yields a warning, not a fatal
// - Abstract targets downgrade methods to pure virtual with one warning
// - Abstract targets reject fields with one error and no plan entry
// - Allowing abstract targets pulls normally
// - Reduced inheritance visibility yields a warning
// - Unselected dependencies are errors naming both members
// - Uses that lose access after the move are errors
// - Calls through a receiver inheriting the target privately are errors
// - Members already present in the target are errors
// - Inline definitions are split into the target's paired unit
// - Stubs are added level by level below the target, through abstract classes
// - Subclass methods can be removed when a pulled method replaces them
// - Removing a still-used subclass method is an error

func prepare(t *testing.T, src, class, target string, opts ...Option) (*model.Workspace, *Refactoring) {
	t.Helper()
	ws := model.NewTestWorkspace(t, src)
	r := New(ws, ws, model.USROracle{}, opts...)
	st := status.New()
	require.NoError(t, r.Prepare(context.Background(), ws.ClassNamed(t, class).ID, st))
	require.False(t, st.HasFatal(), st.String())
	if target != "" {
		require.NoError(t, r.SetTarget(context.Background(), ws.ClassNamed(t, target)))
	}
	return ws, r
}

func selectMember(t *testing.T, ws *model.Workspace, r *Refactoring, name string, kind plan.ActionKind) {
	t.Helper()
	m := ws.ClassNamed(t, r.Class().Name).MemberNamed(t, name)
	require.NoError(t, r.Select(m, kind, m.Visibility))
}

const diamondModel = `
classes:
  - name: A
    unit: A.h
    end: 5
  - name: B
    unit: B.h
  - name: C
    unit: C.h
    bases: [{name: A, visibility: public}, {name: B, visibility: public}]
  - name: D
    unit: D.h
    bases: [{name: A, visibility: public}]
  - name: E
    unit: E.h
    line: 1
    bases: [{name: C, visibility: public}, {name: D, visibility: public}]
    methods:
      - name: m
        visibility: public
        line: 3
        definition: {inclass: true, body: "{ }"}
`

func TestPrepare_FatalConditions(t *testing.T) {
	t.Parallel()

	ws := model.NewTestWorkspace(t, diamondModel)
	r := New(ws, ws, model.USROracle{})

	st := status.New()
	require.NoError(t, r.Prepare(context.Background(), "c:@S@Missing", st))
	assert.True(t, st.HasFatal())

	st = status.New()
	require.NoError(t, r.Prepare(context.Background(), ws.ClassNamed(t, "A").ID, st))
	require.True(t, st.HasFatal())
	assert.Contains(t, st.Entries()[0].Message, "has no base class")

	_, err := New(ws, ws, model.USROracle{}).Check(context.Background(), status.New())
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestCheck_FatalWithoutTargetOrSelection(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, diamondModel, "E", "")
	assert.Len(t, r.Targets(), 4)

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, st.HasFatal())

	require.NoError(t, r.SetTarget(context.Background(), ws.ClassNamed(t, "A")))
	st = status.New()
	_, err = r.Check(context.Background(), st)
	require.NoError(t, err)
	require.True(t, st.HasFatal())
	assert.Contains(t, st.Entries()[0].Message, "no members")

	assert.Error(t, r.SetTarget(context.Background(), ws.ClassNamed(t, "E")), "the source is not a target")
}

func TestCheck_DiamondWarning(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, diamondModel, "E", "A")
	selectMember(t, ws, r, "m", plan.PullUp)

	st := status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, st.HasFatal())
	assert.False(t, st.HasError())
	require.Equal(t, 1, st.Count(status.Warning), st.String())
	assert.Contains(t, st.Entries()[0].Message, "several non-virtual paths")
	assert.Equal(t, 1, p.Len())
}

const abstractModel = `
classes:
  - name: Z
    unit: Z.h
    line: 1
    end: 6
    labels: [{visibility: public, line: 2}]
    methods:
      - {name: run, visibility: public, pure: true, line: 3}
  - name: Impl
    unit: Impl.h
    line: 10
    end: 20
    bases: [{name: Z, visibility: public}]
    methods:
      - name: run
        visibility: public
        virtual: true
        line: 12
        definition: {inclass: true, body: "{ }"}
      - name: m
        visibility: public
        params: [{type: int, name: a}]
        line: 13
        definition: {inclass: true, body: "{ }"}
    fields:
      - {name: f, type: int, visibility: public, line: 14}
`

func TestCheck_AbstractTargetDowngradesMethods(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, abstractModel, "Impl", "Z")
	selectMember(t, ws, r, "m", plan.PullUp)

	st := status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, st.HasError())
	require.Equal(t, 1, st.Len(), st.String())
	assert.Equal(t, status.Warning, st.Entries()[0].Severity)

	actions := p.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, plan.DeclareVirtual, actions[0].Kind)

	c := rewrite.NewCollector("pull up")
	require.NoError(t, p.Run(context.Background(), c))
	edits := c.Edits("Z.h")
	require.Len(t, edits, 1)
	assert.Equal(t, "virtual void m(int a) = 0;", edits[0].Node.Text)
	assert.Empty(t, c.Edits("Impl.h"))
}

func TestCheck_AbstractTargetRejectsFields(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, abstractModel, "Impl", "Z")
	selectMember(t, ws, r, "f", plan.PullUp)

	st := status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, 1, st.Len(), st.String())
	assert.Equal(t, status.Error, st.Entries()[0].Severity)
	assert.Zero(t, p.Len())

	c := rewrite.NewCollector("pull up")
	assert.ErrorIs(t, r.Apply(context.Background(), status.New(), c), plan.ErrNotPossible)
	assert.Zero(t, c.Len())
}

func TestCheck_AllowPullIntoAbstract(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, abstractModel, "Impl", "Z", WithPullIntoAbstract(true))
	selectMember(t, ws, r, "m", plan.PullUp)
	selectMember(t, ws, r, "f", plan.PullUp)

	st := status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, st.OK(), st.String())

	actions := p.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, plan.PullUp, actions[0].Kind)
	assert.Equal(t, plan.MoveField, actions[1].Kind)
}

func TestCheck_ExistingMemberInTarget(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, abstractModel, "Impl", "Z", WithPullIntoAbstract(true))
	selectMember(t, ws, r, "run", plan.PullUp)

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, 1, st.Count(status.Error), st.String())
	assert.Contains(t, st.Filter(status.Error)[0].Message, "already exists in 'Z'")
}

const dependencyModel = `
units:
  - path: Base.h
    pair: Base.cpp
classes:
  - name: Base
    unit: Base.h
    line: 1
    end: 4
  - name: Derived
    unit: Derived.h
    line: 10
    end: 30
    bases: [{name: Base, visibility: private}]
    methods:
      - name: m
        visibility: public
        params: [{type: int, name: a}]
        line: 12
        definition:
          inclass: true
          body: "{ helper(); }"
          refs: [{target: "Derived::helper", line: 12}]
      - name: helper
        visibility: private
        line: 13
        definition: {inclass: true, body: "{ }"}
      - name: caller
        visibility: public
        line: 14
        definition:
          inclass: true
          body: "{ helper(); }"
          refs: [{target: "Derived::helper", line: 14}]
functions:
  - name: main
    unit: main.cpp
    refs: [{target: "Derived::m", line: 3}]
`

func TestCheck_DependenciesAndVisibility(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, dependencyModel, "Derived", "Base")
	selectMember(t, ws, r, "m", plan.PullUp)

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)

	errs := st.Filter(status.Error)
	require.Len(t, errs, 1, st.String())
	assert.Contains(t, errs[0].Message, "'m(int)' uses 'helper()'")

	warnings := st.Filter(status.Warning)
	require.Len(t, warnings, 1, st.String())
	assert.Contains(t, warnings[0].Message, "cannot be guaranteed")
}

func TestCheck_InaccessibleAfterMove(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, dependencyModel, "Derived", "Base")
	selectMember(t, ws, r, "m", plan.PullUp)
	selectMember(t, ws, r, "helper", plan.PullUp)

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)

	errs := st.Filter(status.Error)
	require.Len(t, errs, 1, st.String())
	assert.Equal(t, 14, errs[0].Location.Line, "caller stays in Derived and loses access to private helper")

	helper := ws.ClassNamed(t, "Derived").MemberNamed(t, "helper")
	require.NoError(t, r.Select(helper, plan.PullUp, model.Protected))
	st = status.New()
	_, err = r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, st.HasError(), st.String())
}

const receiverModel = `
classes:
  - name: Base
    unit: Base.h
    line: 1
    end: 3
  - name: Derived
    unit: Derived.h
    line: 1
    end: 5
    bases: [{name: Base, line: 1}]
    methods:
      - name: m
        visibility: public
        line: 3
        definition: {inclass: true, body: "{ }"}
functions:
  - name: main
    unit: main.cpp
    refs: [{target: "Derived::m", line: 7, receiver: Derived}]
`

func TestCheck_InaccessibleThroughReceiver(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, receiverModel, "Derived", "Base")
	selectMember(t, ws, r, "m", plan.PullUp)

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)

	errs := st.Filter(status.Error)
	require.Len(t, errs, 1, st.String())
	assert.Equal(t, "main.cpp", errs[0].Location.File)
	assert.Equal(t, 7, errs[0].Location.Line)
	assert.Contains(t, errs[0].Message, "used through 'Derived'")
	assert.Contains(t, errs[0].Message, "inherited as private")

	public := strings.Replace(receiverModel, "bases: [{name: Base, line: 1}]", "bases: [{name: Base, visibility: public, line: 1}]", 1)
	ws, r = prepare(t, public, "Derived", "Base")
	selectMember(t, ws, r, "m", plan.PullUp)

	st = status.New()
	_, err = r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, st.HasError(), st.String())
}

func TestApply_SplitsInlineDefinition(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, dependencyModel, "Derived", "Base")
	selectMember(t, ws, r, "m", plan.PullUp)
	helper := ws.ClassNamed(t, "Derived").MemberNamed(t, "helper")
	require.NoError(t, r.Select(helper, plan.PullUp, model.Protected))

	st := status.New()
	c := rewrite.NewCollector("pull up")
	require.NoError(t, r.Apply(context.Background(), st, c))

	var texts []string
	for _, e := range c.Edits("Base.h") {
		texts = append(texts, e.Node.Text)
	}
	assert.Equal(t, []string{"void m(int a);", "void helper();"}, texts)

	texts = nil
	for _, e := range c.Edits("Base.cpp") {
		texts = append(texts, e.Node.Text)
	}
	assert.Equal(t, []string{"void Base::m(int a) { helper(); }", "void Base::helper() { }"}, texts)
	assert.Len(t, c.Edits("Derived.h"), 2)
}

const stubModel = `
units:
  - path: Base.h
    pair: Base.cpp
  - path: Children.h
    pair: Children.cpp
classes:
  - name: Base
    unit: Base.h
    end: 5
  - name: Derived
    unit: Derived.h
    bases: [{name: Base, visibility: public}]
    methods:
      - name: myMethod
        visibility: public
        virtual: true
        params: [{type: int, name: a}]
        definition: {inclass: true, body: "{ }"}
  - name: Child
    unit: Children.h
    line: 10
    end: 12
    bases: [{name: Base, visibility: public}]
    methods:
      - {name: other, visibility: public, pure: true}
  - name: AnotherChild
    unit: Children.h
    line: 20
    end: 25
    bases: [{name: Base, visibility: public}]
    methods:
      - name: myMethod
        visibility: public
        params: [{type: double, name: a}]
        definition: {inclass: true, body: "{ }"}
      - name: obsolete
        visibility: public
        definition: {inclass: true, body: "{ }"}
  - name: ChildOfChild
    unit: Children.h
    line: 30
    end: 35
    bases: [{name: Child, visibility: public}]
    methods:
      - name: other
        visibility: public
        definition: {inclass: true, body: "{ }"}
functions:
  - name: main
    unit: main.cpp
    refs: [{target: "AnotherChild::obsolete", line: 7}]
`

func TestCheck_InsertsStubsLevelByLevel(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, stubModel, "Derived", "Base", WithInsertStubs(true))
	selectMember(t, ws, r, "myMethod", plan.DeclareVirtual)

	st := status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, st.OK(), st.String())

	var stubs []string
	for _, a := range p.Actions() {
		if a.Kind == plan.MethodStub {
			stubs = append(stubs, a.Target.Name)
		}
	}
	assert.Equal(t, []string{"AnotherChild", "ChildOfChild"}, stubs)

	c := rewrite.NewCollector("pull up")
	require.NoError(t, p.Run(context.Background(), c))
	var defs []string
	for _, e := range c.Edits("Children.cpp") {
		defs = append(defs, e.Node.Text)
	}
	assert.Equal(t, []string{"void AnotherChild::myMethod(int a) {\n}", "void ChildOfChild::myMethod(int a) {\n}"}, defs)
	assert.Equal(t, "virtual void myMethod(int a) = 0;", c.Edits("Base.h")[0].Node.Text)
}

func TestToggleRemove(t *testing.T) {
	t.Parallel()

	ws, r := prepare(t, stubModel, "Derived", "Base")
	selectMember(t, ws, r, "myMethod", plan.PullUp)

	another := ws.ClassNamed(t, "AnotherChild")
	assert.Len(t, r.Removals(), 4)
	require.NoError(t, r.ToggleRemove(another.MemberNamed(t, "obsolete")))
	assert.Error(t, r.ToggleRemove(ws.ClassNamed(t, "Derived").MemberNamed(t, "myMethod")))

	st := status.New()
	_, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	errs := st.Filter(status.Error)
	require.Len(t, errs, 1, st.String())
	assert.Contains(t, errs[0].Message, "'obsolete()' is still used")

	require.NoError(t, r.ToggleRemove(another.MemberNamed(t, "obsolete")))
	st = status.New()
	p, err := r.Check(context.Background(), st)
	require.NoError(t, err)
	assert.False(t, st.HasError(), st.String())
	assert.Equal(t, 1, p.Len())
}
