package cli

import (
	"testing"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for member selection:
// - A pattern may carry a visibility suffix; "::" and parameter lists are not suffixes
// - Patterns match the member name or its display form
// - Every pattern must match; constructors and destructors never match
// - Results come back in declaration order without duplicates
// - The target visibility is the suffix, else the configured default, else the member's own
// - Qualified members split at the last "::"

const selectionModel = `
classes:
  - name: Circle
    unit: Circle.h
    line: 1
    end: 10
    methods:
      - {name: Circle, visibility: public, line: 2}
      - {name: getRadius, returns: double, const: true, visibility: public, line: 3}
      - {name: setRadius, params: [{type: double, name: r}], visibility: public, line: 4}
      - {name: draw, visibility: protected, line: 5}
    fields:
      - {name: radius, type: double, visibility: private, line: 7}
`

func TestParseMemberPattern(t *testing.T) {
	t.Parallel()

	p, err := parseMemberPattern("get*:protected")
	require.NoError(t, err)
	assert.True(t, p.hasVis)
	assert.Equal(t, model.Protected, p.visibility)

	p, err = parseMemberPattern("setRadius(double)")
	require.NoError(t, err)
	assert.False(t, p.hasVis)

	p, err = parseMemberPattern("ns::helper")
	require.NoError(t, err)
	assert.False(t, p.hasVis)

	_, err = parseMemberPattern("draw:friend")
	assert.Error(t, err)
}

func TestSelectMembers(t *testing.T) {
	t.Parallel()

	ws := model.NewTestWorkspace(t, selectionModel)
	c := ws.ClassNamed(t, "Circle")

	ms, patterns, err := selectMembers(c, []string{"radius", "*Radius*", "getRadius:public"})
	require.NoError(t, err)
	var names []string
	for _, m := range ms {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"getRadius", "setRadius", "radius"}, names)
	assert.True(t, patterns[c.MemberNamed(t, "getRadius")].hasVis)

	ms, _, err = selectMembers(c, []string{"setRadius(double)"})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "setRadius", ms[0].Name)

	_, _, err = selectMembers(c, []string{"Circle"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, _, err = selectMembers(c, []string{"draw", "missing"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	ms, _, err = selectMembers(c, nil)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestVisibilityFor(t *testing.T) {
	t.Parallel()

	ws := model.NewTestWorkspace(t, selectionModel)
	draw := ws.ClassNamed(t, "Circle").MemberNamed(t, "draw")

	explicit, err := parseMemberPattern("draw:private")
	require.NoError(t, err)
	plain, err := parseMemberPattern("draw")
	require.NoError(t, err)

	assert.Equal(t, model.Private, explicit.visibilityFor(draw, model.Public, true))
	assert.Equal(t, model.Public, plain.visibilityFor(draw, model.Public, true))
	assert.Equal(t, model.Protected, plain.visibilityFor(draw, model.Public, false))
}

func TestParseQualifiedMember(t *testing.T) {
	t.Parallel()

	class, member, err := parseQualifiedMember("geo::Square::draw")
	require.NoError(t, err)
	assert.Equal(t, "geo::Square", class)
	assert.Equal(t, "draw", member)

	for _, bad := range []string{"draw", "::draw", "Square::"} {
		_, _, err := parseQualifiedMember(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTargetOverride(t *testing.T) {
	t.Parallel()

	o, err := parseTargetOverride("Square=stub")
	require.NoError(t, err)
	assert.Equal(t, "Square", o.class)

	for _, bad := range []string{"Square", "=stub", "Square=bogus", "Square=pull-up"} {
		_, err := parseTargetOverride(bad)
		assert.Error(t, err, bad)
	}
}
