package model

import "context"

// Binding is anything that resolves to a program symbol.
type Binding interface {
	BindingID() string
}

// Symbol is a bare symbol identifier, e.g. the target of a Reference.
type Symbol string

func (s Symbol) BindingID() string { return string(s) }

// Oracle decides symbol identity. Views of the same class or member may be
// resolved independently, so identity must never rely on pointer equality.
type Oracle interface {
	// Equal reports whether a and b denote the same symbol.
	Equal(a, b Binding) bool

	// Key returns a stable string usable as a map key for b's identity.
	Key(b Binding) string
}

// Source navigates the program model. Every call returns a freshly resolved view.
type Source interface {
	// Class resolves a class by symbol identifier.
	Class(id string) (*Class, error)

	// Member resolves a member by symbol identifier.
	Member(id string) (*Member, error)

	// Unit resolves a compilation unit by path.
	Unit(path string) (*Unit, error)

	// EnclosingClass resolves the class whose body or member definition
	// contains the reference.
	EnclosingClass(ref Reference) (*Class, error)
}

// Index answers symbol queries over the whole program.
type Index interface {
	// FindReferences returns every occurrence of b, whatever its role.
	FindReferences(ctx context.Context, b Binding) ([]Reference, error)

	// FindDefinitions returns the occurrences of b that define it.
	FindDefinitions(ctx context.Context, b Binding) ([]Reference, error)
}

// USROracle compares symbols by their unified symbol resolution identifier.
type USROracle struct{}

func (USROracle) Equal(a, b Binding) bool {
	if a == nil || b == nil {
		return false
	}
	return a.BindingID() == b.BindingID()
}

func (USROracle) Key(b Binding) string {
	if b == nil {
		return ""
	}
	return b.BindingID()
}
