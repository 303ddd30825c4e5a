package insertion

import (
	"testing"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Insertion Point Resolver:
// - Declarations go into the class body after a matching access label
// - A missing label is created once and then reused
// - In-class definitions move to the target's paired source unit and need a declaration
// - In-class definitions stay in-class when the target has no paired unit
// - Out-of-line definitions keep their unit kind relative to the target
// - Out-of-line definitions fall back to the target's primary unit
// - Members without a definition prefer the paired unit
// - Templated members stay in-class and inherit the class template header
// - Out-of-line names are qualified with the full scope chain
// - Comments split between declaration and definition

const resolverModel = `
units:
  - path: Base.h
    pair: Base.cpp
classes:
  - name: Base
    namespace: app
    unit: Base.h
    line: 1
    end: 10
    labels:
      - {visibility: public, line: 2}
  - name: Plain
    unit: Plain.h
    line: 1
    end: 5
  - name: Derived
    unit: Derived.h
    line: 20
    end: 40
    bases: [{name: Base, visibility: public}]
    methods:
      - name: inlined
        visibility: public
        returns: int
        params: [{type: int, name: a}]
        line: 22
        definition:
          inclass: true
          body: "{ return a; }"
          comments:
            - {text: "// doc", position: leading}
            - {text: "// step", position: freestanding, inner: true}
      - name: outOfLine
        visibility: public
        line: 23
        declaration: {comments: [{text: "// decl doc"}]}
        definition: {unit: Derived.cpp, line: 5, body: "{ }"}
      - name: inHeader
        visibility: public
        line: 24
        definition: {unit: Derived.h, line: 45, body: "{ }"}
      - name: abstract
        visibility: protected
        virtual: true
        pure: true
        line: 25
  - name: Holder
    template: "template<typename T>"
    unit: Holder.h
    line: 50
    end: 60
    bases: [{name: Base, visibility: public}]
    methods:
      - name: hold
        params: [{type: T, name: a}]
        line: 52
        definition: {inclass: true, body: "{ }"}
`

func setup(t *testing.T) (*model.Workspace, *Resolver) {
	t.Helper()
	ws := model.NewTestWorkspace(t, resolverModel)
	return ws, NewResolver(ws, model.USROracle{})
}

func TestResolve_DeclarationReusesLabel(t *testing.T) {
	t.Parallel()

	ws, r := setup(t)
	base := ws.ClassNamed(t, "Base")
	m := ws.ClassNamed(t, "Derived").MemberNamed(t, "abstract")

	p, err := r.Resolve(Request{Member: m, Target: base, Kind: Declaration, Visibility: model.Public})
	require.NoError(t, err)
	assert.True(t, p.InClass)
	assert.Equal(t, "Base.h", p.Unit)
	assert.False(t, p.Anchor.NewLabel)
	assert.Equal(t, 2, p.Anchor.After.Line)
	assert.Equal(t, "abstract", p.Name)
}

func TestResolve_DeclarationCreatesLabelOnce(t *testing.T) {
	t.Parallel()

	ws, r := setup(t)
	base := ws.ClassNamed(t, "Base")
	m := ws.ClassNamed(t, "Derived").MemberNamed(t, "abstract")

	first, err := r.Resolve(Request{Member: m, Target: base, Kind: Declaration, Visibility: model.Protected})
	require.NoError(t, err)
	assert.True(t, first.Anchor.NewLabel)
	assert.Equal(t, 10, first.Anchor.After.Line)

	second, err := r.Resolve(Request{Member: m, Target: ws.ClassNamed(t, "Base"), Kind: Declaration, Visibility: model.Protected})
	require.NoError(t, err)
	assert.False(t, second.Anchor.NewLabel, "label created by the first insertion is reused")
}

func TestResolve_InClassDefinitionMovesToPairedUnit(t *testing.T) {
	t.Parallel()

	ws, r := setup(t)
	derived := ws.ClassNamed(t, "Derived")
	m := derived.MemberNamed(t, "inlined")

	p, err := r.Resolve(Request{Member: m, Source: derived, Target: ws.ClassNamed(t, "Base"), Kind: Definition, Visibility: model.Public})
	require.NoError(t, err)
	assert.False(t, p.InClass)
	assert.Equal(t, "Base.cpp", p.Unit)
	assert.Equal(t, "app::Base::inlined", p.Name)
	assert.True(t, p.NeedsDeclaration)
	require.Len(t, p.DeclarationComments, 1)
	assert.Equal(t, "// doc", p.DeclarationComments[0].Text)
	require.Len(t, p.Comments, 1)
	assert.Equal(t, "// step", p.Comments[0].Text)

	p, err = r.Resolve(Request{Member: m, Source: derived, Target: ws.ClassNamed(t, "Base"), Kind: Definition, Declared: true})
	require.NoError(t, err)
	assert.False(t, p.NeedsDeclaration)
}

func TestResolve_InClassDefinitionWithoutPairStaysInClass(t *testing.T) {
	t.Parallel()

	ws, r := setup(t)
	m := ws.ClassNamed(t, "Derived").MemberNamed(t, "inlined")

	p, err := r.Resolve(Request{Member: m, Target: ws.ClassNamed(t, "Plain"), Kind: Definition, Visibility: model.Public})
	require.NoError(t, err)
	assert.True(t, p.InClass)
	assert.Equal(t, "Plain.h", p.Unit)
	assert.Equal(t, "inlined", p.Name)
	assert.False(t, p.NeedsDeclaration)
	assert.Len(t, p.Comments, 2)
}

func TestResolve_OutOfLineDefinitionKeepsUnitKind(t *testing.T) {
	t.Parallel()

	ws, r := setup(t)
	derived := ws.ClassNamed(t, "Derived")
	base := ws.ClassNamed(t, "Base")

	p, err := r.Resolve(Request{Member: derived.MemberNamed(t, "outOfLine"), Target: base, Kind: Definition, Declared: true})
	require.NoError(t, err)
	assert.Equal(t, "Base.cpp", p.Unit)
	assert.False(t, p.InClass)
	assert.False(t, p.NeedsDeclaration)

	p, err = r.Resolve(Request{Member: derived.MemberNamed(t, "inHeader"), Target: base, Kind: Definition, Declared: true})
	require.NoError(t, err)
	assert.Equal(t, "Base.h", p.Unit, "header definitions stay in the target's header")
	assert.Equal(t, "app::Base::inHeader", p.Name)

	p, err = r.Resolve(Request{Member: derived.MemberNamed(t, "outOfLine"), Target: ws.ClassNamed(t, "Plain"), Kind: Definition, Declared: true})
	require.NoError(t, err)
	assert.Equal(t, "Plain.h", p.Unit, "falls back to the primary unit")
	assert.False(t, p.InClass)
	assert.Equal(t, "Plain::outOfLine", p.Name)
}

func TestResolve_NoDefinitionPrefersPairedUnit(t *testing.T) {
	t.Parallel()

	ws, r := setup(t)
	m := ws.ClassNamed(t, "Derived").MemberNamed(t, "abstract")

	p, err := r.Resolve(Request{Member: m, Target: ws.ClassNamed(t, "Base"), Kind: Definition, Declared: true})
	require.NoError(t, err)
	assert.Equal(t, "Base.cpp", p.Unit)

	p, err = r.Resolve(Request{Member: m, Target: ws.ClassNamed(t, "Plain"), Kind: Definition, Visibility: model.Protected})
	require.NoError(t, err)
	assert.True(t, p.InClass)
}

func TestResolve_TemplatesStayInClass(t *testing.T) {
	t.Parallel()

	ws, r := setup(t)
	holder := ws.ClassNamed(t, "Holder")

	p, err := r.Resolve(Request{Member: holder.MemberNamed(t, "hold"), Source: holder, Target: ws.ClassNamed(t, "Base"), Kind: Definition, Visibility: model.Public})
	require.NoError(t, err)
	assert.True(t, p.InClass)
	assert.Equal(t, "template<typename T>", p.Template)
}

func TestQualifiedNameAndTemplates(t *testing.T) {
	t.Parallel()

	c := &model.Class{Name: "Inner", Scopes: []model.Scope{
		{Kind: model.NamespaceScope, Name: "a"},
		{Kind: model.NamespaceScope, Name: "b"},
		{Kind: model.ClassScope, Name: "Outer"},
	}}
	assert.Equal(t, "a::b::Outer::Inner::f", QualifiedName(c, "f"))
	assert.Equal(t, "X::f", QualifiedName(&model.Class{Name: "X"}, "f"))

	assert.Equal(t, "template<typename T, class U>", MergeTemplates("template<typename T>", "template <class U>"))
	assert.Equal(t, "template<typename T>", MergeTemplates("template<typename T>", ""))
	assert.Equal(t, "", MergeTemplates("", ""))
}
