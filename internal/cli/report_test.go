package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/mvp-joe/project-relocate/internal/config"
	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for reports:
// - A successful pull up reports its actions and edits as JSON
// - A failed pull up reports its diagnostics, no edits and fails
// - Removals of other subclass methods are matched by class and pattern

const reportModel = `
classes:
  - name: Shape
    unit: Shape.h
    line: 1
    end: 4
    labels: [{visibility: public, line: 2}]
  - name: Circle
    unit: Circle.h
    line: 1
    end: 6
    bases: [{name: Shape, visibility: public}]
    methods:
      - name: area
        returns: double
        visibility: public
        line: 3
        definition: {inclass: true, body: "{ return 3.14 * r * r; }", refs: [{target: "Circle::r", line: 3}]}
    fields:
      - {name: r, type: double, visibility: private, line: 5}
  - name: Square
    unit: Square.h
    line: 1
    end: 4
    bases: [{name: Shape, visibility: public}]
    methods:
      - {name: area, returns: double, visibility: public, line: 3, definition: {inclass: true, body: "{ return 1; }"}}
`

func newTestSession(t *testing.T, src string) *session {
	t.Helper()
	ws := model.NewTestWorkspace(t, src)
	index, err := model.NewCachedIndex(ws, 16)
	require.NoError(t, err)
	return &session{cfg: config.Default(), ws: ws, index: index, oracle: model.USROracle{}}
}

func decodeReport(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestReport_PullUpJSON(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, reportModel)
	var out bytes.Buffer
	opts := &pullUpOptions{target: "Shape", members: []string{"area", "r"}, json: true}
	require.NoError(t, executePullUp(context.Background(), s, "Circle", opts, &out))

	rep := decodeReport(t, out.Bytes())
	assert.Equal(t, "pull up", rep["refactoring"])
	assert.Equal(t, "Circle", rep["class"])
	assert.Equal(t, "Shape", rep["target"])
	assert.Equal(t, true, rep["applied"])
	assert.Empty(t, rep["status"])

	actions := rep["actions"].([]any)
	require.Len(t, actions, 2)
	assert.Equal(t, "pull up", actions[0].(map[string]any)["kind"])
	assert.Equal(t, "move field", actions[1].(map[string]any)["kind"])

	edits := rep["edits"].([]any)
	require.Len(t, edits, 4)
	var units []string
	for _, e := range edits {
		units = append(units, e.(map[string]any)["unit"].(string))
	}
	assert.Equal(t, []string{"Circle.h", "Circle.h", "Shape.h", "Shape.h"}, units)
}

func TestReport_PullUpFailure(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, reportModel)
	var out bytes.Buffer
	opts := &pullUpOptions{target: "Shape", members: []string{"area"}, json: true}
	err := executePullUp(context.Background(), s, "Circle", opts, &out)
	assert.ErrorIs(t, err, errRefactoringFailed)

	rep := decodeReport(t, out.Bytes())
	assert.Equal(t, false, rep["applied"])
	assert.Empty(t, rep["edits"])
	entries := rep["status"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "error", entry["severity"])
	assert.Equal(t, "'area()' uses 'r', which is not pulled up to 'Shape'", entry["message"])
}

func TestPullUp_RemovesOtherSubclassMethods(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, reportModel)
	var out bytes.Buffer
	opts := &pullUpOptions{target: "Shape", members: []string{"area", "r"}, remove: []string{"Square::area"}}
	require.NoError(t, executePullUp(context.Background(), s, "Circle", opts, &out))
	assert.Contains(t, out.String(), "--- Square.h\nremove Square::area at Square.h:3\n")

	opts.remove = []string{"Square::nope"}
	err := executePullUp(context.Background(), s, "Circle", opts, &out)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
