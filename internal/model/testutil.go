package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestWorkspace loads a YAML program model and fails the test on error.
//
// Example:
//
//	ws := model.NewTestWorkspace(t, `
//	classes:
//	  - name: Base
//	    unit: Base.h
//	`)
func NewTestWorkspace(t testing.TB, src string) *Workspace {
	t.Helper()

	ws, err := Load([]byte(src))
	require.NoError(t, err)
	return ws
}

// ClassNamed resolves a fresh view of the class with the given qualified name.
func (w *Workspace) ClassNamed(t testing.TB, name string) *Class {
	t.Helper()

	for _, id := range w.order {
		if c := w.classes[id]; c.QualifiedName() == name || c.Name == name {
			return cloneClass(c)
		}
	}
	require.Failf(t, "class not found", "no class named %s", name)
	return nil
}

// MemberNamed returns the first member of c with the given name.
func (c *Class) MemberNamed(t testing.TB, name string) *Member {
	t.Helper()

	for _, m := range c.Members {
		if m.Name == name {
			return m
		}
	}
	require.Failf(t, "member not found", "class %s has no member %s", c.Name, name)
	return nil
}
