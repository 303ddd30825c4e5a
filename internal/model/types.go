package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a class, member or unit cannot be resolved.
var ErrNotFound = errors.New("not found")

// Visibility is a C++ access level. Values are ordered from least to most permissive.
type Visibility int

const (
	Private Visibility = iota
	Protected
	Public
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// Label renders the access label that introduces a section of a class body.
func (v Visibility) Label() string {
	return v.String() + ":"
}

// ParseVisibility parses "public", "protected" or "private" (case-insensitive).
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "protected":
		return Protected, nil
	case "private":
		return Private, nil
	default:
		return Private, fmt.Errorf("unknown visibility %q", s)
	}
}

// MinVisibility returns the less permissive of a and b.
func MinVisibility(a, b Visibility) Visibility {
	if a < b {
		return a
	}
	return b
}

// Location is a position in a compilation unit.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the location names a file.
func (l Location) IsValid() bool {
	return l.File != ""
}

func (l Location) String() string {
	if !l.IsValid() {
		return "-"
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Less orders locations by file, line and column.
func (l Location) Less(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	if l.Line != o.Line {
		return l.Line < o.Line
	}
	return l.Column < o.Column
}

// UnitKind distinguishes declaration-holding from definition-holding units.
type UnitKind int

const (
	Header UnitKind = iota
	SourceFile
)

func (k UnitKind) String() string {
	if k == SourceFile {
		return "source"
	}
	return "header"
}

// Unit is a compilation unit. Pair names the header/source counterpart, if any.
type Unit struct {
	Path string
	Kind UnitKind
	Pair string
}

// ScopeKind is the kind of an enclosing scope.
type ScopeKind int

const (
	NamespaceScope ScopeKind = iota
	ClassScope
)

// Scope is one enclosing namespace or class.
type Scope struct {
	Kind ScopeKind
	Name string
}

// BaseSpecifier is one entry of a class's base-clause.
type BaseSpecifier struct {
	Name       string
	ClassID    string
	Visibility Visibility
	Virtual    bool
	Location   Location
}

// Label is an access label present in a class body.
type Label struct {
	Visibility Visibility
	Location   Location
}

// Class is a view of a class definition.
type Class struct {
	ID       string
	Name     string
	Key      string // "class" or "struct"
	Scopes   []Scope
	Template string
	Unit     string
	Location Location
	End      Location
	Bases    []BaseSpecifier
	Members  []*Member
	Labels   []Label
}

func (c *Class) BindingID() string { return c.ID }

// QualifiedName joins the enclosing scopes and the class name with "::".
func (c *Class) QualifiedName() string {
	parts := make([]string, 0, len(c.Scopes)+1)
	for _, s := range c.Scopes {
		parts = append(parts, s.Name)
	}
	parts = append(parts, c.Name)
	return strings.Join(parts, "::")
}

// DefaultBaseVisibility is the access applied to bases written without a keyword.
func (c *Class) DefaultBaseVisibility() Visibility {
	if c.Key == "struct" {
		return Public
	}
	return Private
}

// IsSpecial reports whether m is a constructor or destructor of c.
func (c *Class) IsSpecial(m *Member) bool {
	return m.Kind == Method && (m.Name == c.Name || m.Name == "~"+c.Name)
}

// Methods returns the declared methods, constructors and destructors excluded.
func (c *Class) Methods() []*Member {
	var out []*Member
	for _, m := range c.Members {
		if m.Kind == Method && !c.IsSpecial(m) {
			out = append(out, m)
		}
	}
	return out
}

// Abstract reports whether the class declares at least one method and every
// declared method is pure virtual.
func (c *Class) Abstract() bool {
	methods := c.Methods()
	if len(methods) == 0 {
		return false
	}
	for _, m := range methods {
		if !m.Pure {
			return false
		}
	}
	return true
}

// Declares returns the member of c that m would collide with: any member with
// the same name when one of the two is a field, or a method with the same name
// and a compatible signature.
func (c *Class) Declares(m *Member) *Member {
	for _, other := range c.Members {
		if other.Name != m.Name {
			continue
		}
		if m.Kind == Field || other.Kind == Field || other.Signature.Compatible(m.Signature) {
			return other
		}
	}
	return nil
}

// MemberKind distinguishes methods from fields.
type MemberKind int

const (
	Method MemberKind = iota
	Field
)

func (k MemberKind) String() string {
	if k == Field {
		return "field"
	}
	return "method"
}

// Param is a method parameter.
type Param struct {
	Type string
	Name string
}

// Signature describes a method for override comparison.
type Signature struct {
	Return   string
	Params   []Param
	Const    bool
	Volatile bool
	VarArgs  bool
}

// Compatible reports whether a method with signature o would override or
// collide with one declared with s.
func (s Signature) Compatible(o Signature) bool {
	if len(s.Params) != len(o.Params) || s.Const != o.Const || s.Volatile != o.Volatile || s.VarArgs != o.VarArgs {
		return false
	}
	for i := range s.Params {
		if normalizeType(s.Params[i].Type) != normalizeType(o.Params[i].Type) {
			return false
		}
	}
	return true
}

// ParamTypes renders the parameter type list, e.g. "int, const char*".
func (s Signature) ParamTypes() string {
	types := make([]string, 0, len(s.Params)+1)
	for _, p := range s.Params {
		types = append(types, p.Type)
	}
	if s.VarArgs {
		types = append(types, "...")
	}
	return strings.Join(types, ", ")
}

func normalizeType(t string) string {
	return strings.Join(strings.Fields(t), " ")
}

// Member is a method or field declared directly in a class.
type Member struct {
	ID          string
	Name        string
	Kind        MemberKind
	Owner       string
	Visibility  Visibility
	Type        string
	Signature   Signature
	Virtual     bool
	Pure        bool
	Static      bool
	Template    string
	Declaration *Decl
	Definition  *Decl
}

func (m *Member) BindingID() string { return m.ID }

// Body returns the node whose references make up the member's implementation:
// the definition of a method, or the declaration (initializer) of a field.
func (m *Member) Body() *Decl {
	if m.Definition != nil {
		return m.Definition
	}
	if m.Kind == Field {
		return m.Declaration
	}
	return nil
}

// Location returns the declaration location, falling back to the definition.
func (m *Member) Location() Location {
	if m.Declaration != nil {
		return m.Declaration.Location
	}
	if m.Definition != nil {
		return m.Definition.Location
	}
	return Location{}
}

// Display renders the member for messages, e.g. "foo(int)" or "count".
func (m *Member) Display() string {
	if m.Kind == Field {
		return m.Name
	}
	s := m.Name + "(" + m.Signature.ParamTypes() + ")"
	if m.Signature.Const {
		s += " const"
	}
	if m.Signature.Volatile {
		s += " volatile"
	}
	return s
}

// Decl is a declaration or definition node of a member or function.
type Decl struct {
	Unit        string
	InClass     bool
	Location    Location
	Body        string
	Initializer string
	References  []Reference
	Comments    []Comment
}

// CommentPosition places a comment relative to the node it is attached to.
type CommentPosition int

const (
	Leading CommentPosition = iota
	Trailing
	Freestanding
)

// Comment is a source comment attached to a node. Inner comments belong to
// nodes nested inside the body.
type Comment struct {
	Text     string
	Position CommentPosition
	Inner    bool
}

// Role is a bit set describing how a reference uses its target.
type Role uint8

const (
	RoleDeclaration Role = 1 << iota
	RoleDefinition
	RoleBaseSpecifier
	RoleReference
)

// Has reports whether all roles in o are set.
func (r Role) Has(o Role) bool {
	return r&o == o
}

func (r Role) String() string {
	var parts []string
	for _, n := range []struct {
		role Role
		name string
	}{
		{RoleDeclaration, "declaration"},
		{RoleDefinition, "definition"},
		{RoleBaseSpecifier, "base"},
		{RoleReference, "reference"},
	} {
		if r.Has(n.role) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Reference is an occurrence of a symbol in the program.
type Reference struct {
	Target         string   `json:"target"`
	Roles          Role     `json:"roles"`
	Location       Location `json:"location"`
	Enclosing      string   `json:"enclosing,omitempty"`
	EnclosingClass string   `json:"enclosing_class,omitempty"`
	Receiver       string   `json:"receiver,omitempty"`
}

// IsUse reports whether the reference is a plain use rather than a
// declaration, definition or base-specifier.
func (r Reference) IsUse() bool {
	return r.Roles&(RoleDeclaration|RoleDefinition|RoleBaseSpecifier) == 0
}

// Function is a free function; its body may reference class members.
type Function struct {
	ID         string
	Name       string
	Definition *Decl
}

func (f *Function) BindingID() string { return f.ID }
