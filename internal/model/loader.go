package model

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML description of a program model.
type File struct {
	Units     []UnitSpec     `yaml:"units"`
	Classes   []ClassSpec    `yaml:"classes"`
	Functions []FunctionSpec `yaml:"functions"`
}

type UnitSpec struct {
	Path string `yaml:"path"`
	Kind string `yaml:"kind"` // "header" or "source"; inferred from the extension when empty
	Pair string `yaml:"pair"`
}

type ClassSpec struct {
	Name      string       `yaml:"name"`
	Key       string       `yaml:"key"`
	Namespace string       `yaml:"namespace"`
	Outer     string       `yaml:"outer"`
	Template  string       `yaml:"template"`
	Unit      string       `yaml:"unit"`
	Line      int          `yaml:"line"`
	End       int          `yaml:"end"`
	Labels    []LabelSpec  `yaml:"labels"`
	Bases     []BaseSpec   `yaml:"bases"`
	Methods   []MethodSpec `yaml:"methods"`
	Fields    []FieldSpec  `yaml:"fields"`
}

type LabelSpec struct {
	Visibility string `yaml:"visibility"`
	Line       int    `yaml:"line"`
}

type BaseSpec struct {
	Name       string `yaml:"name"`
	Visibility string `yaml:"visibility"`
	Virtual    bool   `yaml:"virtual"`
	Line       int    `yaml:"line"`
}

type ParamSpec struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

type MethodSpec struct {
	Name        string      `yaml:"name"`
	Visibility  string      `yaml:"visibility"`
	Returns     string      `yaml:"returns"`
	Params      []ParamSpec `yaml:"params"`
	Const       bool        `yaml:"const"`
	Volatile    bool        `yaml:"volatile"`
	VarArgs     bool        `yaml:"varargs"`
	Virtual     bool        `yaml:"virtual"`
	Pure        bool        `yaml:"pure"`
	Static      bool        `yaml:"static"`
	Template    string      `yaml:"template"`
	Line        int         `yaml:"line"`
	Declaration *DeclSpec   `yaml:"declaration"`
	Definition  *DeclSpec   `yaml:"definition"`
}

type FieldSpec struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	Visibility  string        `yaml:"visibility"`
	Static      bool          `yaml:"static"`
	Line        int           `yaml:"line"`
	Initializer string        `yaml:"initializer"`
	Refs        []RefSpec     `yaml:"refs"`
	Comments    []CommentSpec `yaml:"comments"`
}

type DeclSpec struct {
	Unit     string        `yaml:"unit"`
	Line     int           `yaml:"line"`
	InClass  bool          `yaml:"inclass"`
	Body     string        `yaml:"body"`
	Refs     []RefSpec     `yaml:"refs"`
	Comments []CommentSpec `yaml:"comments"`
}

type RefSpec struct {
	Target   string `yaml:"target"`
	Line     int    `yaml:"line"`
	Column   int    `yaml:"column"`
	Receiver string `yaml:"receiver"`
}

type CommentSpec struct {
	Text     string `yaml:"text"`
	Position string `yaml:"position"`
	Inner    bool   `yaml:"inner"`
}

type FunctionSpec struct {
	Name string    `yaml:"name"`
	Unit string    `yaml:"unit"`
	Line int       `yaml:"line"`
	Body string    `yaml:"body"`
	Refs []RefSpec `yaml:"refs"`
}

// LoadFile reads a YAML program model from path.
func LoadFile(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Load(data)
}

// Load builds a workspace from YAML model data.
func Load(data []byte) (*Workspace, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return f.Build()
}

type builder struct {
	ws      *Workspace
	byName  map[string][]*Class
	members map[string][]*Member
}

// Build resolves names in the model and returns the resulting workspace.
func (f *File) Build() (*Workspace, error) {
	b := &builder{
		ws:      NewWorkspace(),
		byName:  make(map[string][]*Class),
		members: make(map[string][]*Member),
	}
	for _, u := range f.Units {
		if err := b.addUnit(u); err != nil {
			return nil, err
		}
	}

	// Classes are created first so outer scopes and bases can refer forward.
	classes := make([]*Class, len(f.Classes))
	pending := f.Classes
	for i := range pending {
		spec := pending[i]
		if spec.Name == "" {
			return nil, fmt.Errorf("class %d has no name", i)
		}
		c := &Class{
			Name:     spec.Name,
			Key:      spec.Key,
			Template: spec.Template,
			Unit:     spec.Unit,
			Location: Location{File: spec.Unit, Line: spec.Line},
			End:      Location{File: spec.Unit, Line: spec.End},
		}
		if c.Key == "" {
			c.Key = "class"
		}
		for _, ns := range splitScope(spec.Namespace) {
			c.Scopes = append(c.Scopes, Scope{Kind: NamespaceScope, Name: ns})
		}
		classes[i] = c
	}
	for i, spec := range pending {
		if spec.Outer == "" {
			continue
		}
		outer, err := b.findSpec(classes, spec.Outer)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", spec.Name, err)
		}
		scopes := append([]Scope(nil), outer.Scopes...)
		classes[i].Scopes = append(scopes, Scope{Kind: ClassScope, Name: outer.Name})
	}
	for _, c := range classes {
		c.ID = classUSR(c)
		b.byName[c.QualifiedName()] = append(b.byName[c.QualifiedName()], c)
		if c.QualifiedName() != c.Name {
			b.byName[c.Name] = append(b.byName[c.Name], c)
		}
		b.ensureUnit(c.Unit)
	}

	for i, spec := range pending {
		c := classes[i]
		for _, l := range spec.Labels {
			v, err := ParseVisibility(l.Visibility)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", c.Name, err)
			}
			c.Labels = append(c.Labels, Label{Visibility: v, Location: Location{File: c.Unit, Line: l.Line}})
		}
		for _, bs := range spec.Bases {
			base := BaseSpecifier{
				Name:       bs.Name,
				Visibility: c.DefaultBaseVisibility(),
				Virtual:    bs.Virtual,
				Location:   Location{File: c.Unit, Line: bs.Line},
			}
			if base.Location.Line == 0 {
				base.Location.Line = c.Location.Line
			}
			if bs.Visibility != "" {
				v, err := ParseVisibility(bs.Visibility)
				if err != nil {
					return nil, fmt.Errorf("class %s: base %s: %w", c.Name, bs.Name, err)
				}
				base.Visibility = v
			}
			if target, err := b.class(bs.Name); err == nil {
				base.ClassID = target.ID
			} else {
				log.Printf("Warning: class %s: unresolved base %s: %v", c.Name, bs.Name, err)
			}
			c.Bases = append(c.Bases, base)
		}
		for _, ms := range spec.Methods {
			m, err := b.method(c, ms)
			if err != nil {
				return nil, err
			}
			c.Members = append(c.Members, m)
		}
		for _, fs := range spec.Fields {
			m, err := b.field(c, fs)
			if err != nil {
				return nil, err
			}
			c.Members = append(c.Members, m)
		}
		for _, m := range c.Members {
			b.members[c.ID] = append(b.members[c.ID], m)
		}
	}

	// References are resolved once every member exists.
	for i, spec := range pending {
		c := classes[i]
		for j, m := range c.Members {
			var err error
			if j < len(spec.Methods) {
				err = b.resolveMethodRefs(m, spec.Methods[j])
			} else {
				err = b.resolveFieldRefs(m, spec.Fields[j-len(spec.Methods)])
			}
			if err != nil {
				return nil, fmt.Errorf("class %s: member %s: %w", c.Name, m.Name, err)
			}
		}
		if err := b.ws.AddClass(c); err != nil {
			return nil, err
		}
	}

	for _, fs := range f.Functions {
		fn := &Function{
			ID:   "c:@F@" + fs.Name,
			Name: fs.Name,
			Definition: &Decl{
				Unit:     fs.Unit,
				Location: Location{File: fs.Unit, Line: fs.Line},
				Body:     fs.Body,
			},
		}
		b.ensureUnit(fs.Unit)
		refs, err := b.refs(fs.Refs, fs.Unit)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fs.Name, err)
		}
		fn.Definition.References = refs
		b.ws.AddFunction(fn)
	}

	b.ws.Reindex()
	return b.ws, nil
}

func (b *builder) addUnit(u UnitSpec) error {
	if u.Path == "" {
		return fmt.Errorf("unit without path")
	}
	kind := unitKindFor(u.Path)
	switch strings.ToLower(u.Kind) {
	case "":
	case "header":
		kind = Header
	case "source":
		kind = SourceFile
	default:
		return fmt.Errorf("unit %s: unknown kind %q", u.Path, u.Kind)
	}
	if existing, ok := b.ws.units[u.Path]; ok {
		existing.Kind = kind
		if u.Pair != "" {
			existing.Pair = u.Pair
		}
	} else {
		b.ws.AddUnit(&Unit{Path: u.Path, Kind: kind, Pair: u.Pair})
	}
	if u.Pair != "" {
		b.ensureUnit(u.Pair)
		if pair := b.ws.units[u.Pair]; pair.Pair == "" {
			pair.Pair = u.Path
		}
	}
	return nil
}

func (b *builder) ensureUnit(path string) {
	if path == "" {
		return
	}
	if _, ok := b.ws.units[path]; !ok {
		b.ws.AddUnit(&Unit{Path: path, Kind: unitKindFor(path)})
	}
}

func (b *builder) findSpec(classes []*Class, name string) (*Class, error) {
	var found *Class
	for _, c := range classes {
		if c.Name == name || c.QualifiedName() == name {
			if found != nil {
				return nil, fmt.Errorf("ambiguous class %s", name)
			}
			found = c
		}
	}
	if found == nil {
		return nil, fmt.Errorf("class %s: %w", name, ErrNotFound)
	}
	return found, nil
}

func (b *builder) class(name string) (*Class, error) {
	name = strings.TrimPrefix(name, "::")
	cs := b.byName[name]
	switch len(cs) {
	case 0:
		return nil, fmt.Errorf("class %s: %w", name, ErrNotFound)
	case 1:
		return cs[0], nil
	default:
		return nil, fmt.Errorf("ambiguous class %s", name)
	}
}

func (b *builder) method(c *Class, ms MethodSpec) (*Member, error) {
	vis, err := visibilityOr(ms.Visibility, c.defaultMemberVisibility())
	if err != nil {
		return nil, fmt.Errorf("class %s: method %s: %w", c.Name, ms.Name, err)
	}
	m := &Member{
		Name:       ms.Name,
		Kind:       Method,
		Owner:      c.ID,
		Visibility: vis,
		Type:       ms.Returns,
		Virtual:    ms.Virtual || ms.Pure,
		Pure:       ms.Pure,
		Static:     ms.Static,
		Template:   ms.Template,
		Signature: Signature{
			Return:   ms.Returns,
			Const:    ms.Const,
			Volatile: ms.Volatile,
			VarArgs:  ms.VarArgs,
		},
	}
	for _, p := range ms.Params {
		m.Signature.Params = append(m.Signature.Params, Param{Type: p.Type, Name: p.Name})
	}
	m.ID = methodUSR(c, m)
	line := ms.Line
	if line == 0 {
		line = c.Location.Line
	}
	if ms.Definition != nil {
		m.Definition = b.decl(c, ms.Definition, line)
	}
	if ms.Declaration != nil {
		m.Declaration = b.decl(c, ms.Declaration, line)
		m.Declaration.InClass = true
	} else if m.Definition == nil || !m.Definition.InClass {
		m.Declaration = &Decl{Unit: c.Unit, InClass: true, Location: Location{File: c.Unit, Line: line}}
	}
	return m, nil
}

func (b *builder) field(c *Class, fs FieldSpec) (*Member, error) {
	vis, err := visibilityOr(fs.Visibility, c.defaultMemberVisibility())
	if err != nil {
		return nil, fmt.Errorf("class %s: field %s: %w", c.Name, fs.Name, err)
	}
	line := fs.Line
	if line == 0 {
		line = c.Location.Line
	}
	cs, err := comments(fs.Comments)
	if err != nil {
		return nil, fmt.Errorf("class %s: field %s: %w", c.Name, fs.Name, err)
	}
	m := &Member{
		ID:         c.ID + "@FI@" + fs.Name,
		Name:       fs.Name,
		Kind:       Field,
		Owner:      c.ID,
		Visibility: vis,
		Type:       fs.Type,
		Static:     fs.Static,
		Declaration: &Decl{
			Unit:        c.Unit,
			InClass:     true,
			Location:    Location{File: c.Unit, Line: line},
			Initializer: fs.Initializer,
			Comments:    cs,
		},
	}
	return m, nil
}

func (b *builder) decl(c *Class, ds *DeclSpec, line int) *Decl {
	d := &Decl{Unit: ds.Unit, InClass: ds.InClass, Body: ds.Body}
	if d.Unit == "" {
		d.Unit = c.Unit
		d.InClass = true
	}
	b.ensureUnit(d.Unit)
	if ds.Line != 0 {
		line = ds.Line
	}
	d.Location = Location{File: d.Unit, Line: line}
	return d
}

func (b *builder) resolveMethodRefs(m *Member, ms MethodSpec) error {
	for _, pair := range []struct {
		decl *Decl
		spec *DeclSpec
	}{{m.Declaration, ms.Declaration}, {m.Definition, ms.Definition}} {
		if pair.decl == nil || pair.spec == nil {
			continue
		}
		refs, err := b.refs(pair.spec.Refs, pair.decl.Unit)
		if err != nil {
			return err
		}
		pair.decl.References = refs
		cs, err := comments(pair.spec.Comments)
		if err != nil {
			return err
		}
		pair.decl.Comments = cs
	}
	return nil
}

func (b *builder) resolveFieldRefs(m *Member, fs FieldSpec) error {
	refs, err := b.refs(fs.Refs, m.Declaration.Unit)
	if err != nil {
		return err
	}
	m.Declaration.References = refs
	return nil
}

func (b *builder) refs(specs []RefSpec, unit string) ([]Reference, error) {
	var out []Reference
	for _, rs := range specs {
		target, err := b.resolveTarget(rs.Target)
		if err != nil {
			return nil, err
		}
		ref := Reference{
			Target:   target,
			Roles:    RoleReference,
			Location: Location{File: unit, Line: rs.Line, Column: rs.Column},
		}
		if rs.Receiver != "" {
			recv, err := b.class(rs.Receiver)
			if err != nil {
				return nil, fmt.Errorf("receiver: %w", err)
			}
			ref.Receiver = recv.ID
		}
		out = append(out, ref)
	}
	return out, nil
}

// resolveTarget accepts "Class", "Class::member" or "Class::member(types)".
func (b *builder) resolveTarget(target string) (string, error) {
	if c, err := b.class(target); err == nil {
		return c.ID, nil
	}
	params := ""
	hasParams := false
	name := target
	if i := strings.Index(target, "("); i >= 0 {
		hasParams = true
		params = strings.TrimSuffix(target[i+1:], ")")
		name = target[:i]
	}
	i := strings.LastIndex(name, "::")
	if i < 0 {
		return "", fmt.Errorf("unresolved reference %q", target)
	}
	c, err := b.class(name[:i])
	if err != nil {
		return "", fmt.Errorf("reference %q: %w", target, err)
	}
	member := name[i+2:]
	var found []*Member
	for _, m := range b.members[c.ID] {
		if m.Name != member {
			continue
		}
		if hasParams && normalizeType(m.Signature.ParamTypes()) != normalizeType(params) {
			continue
		}
		found = append(found, m)
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("reference %q: %w", target, ErrNotFound)
	case 1:
		return found[0].ID, nil
	default:
		return "", fmt.Errorf("ambiguous reference %q", target)
	}
}

func (c *Class) defaultMemberVisibility() Visibility {
	if c.Key == "struct" {
		return Public
	}
	return Private
}

func visibilityOr(s string, def Visibility) (Visibility, error) {
	if s == "" {
		return def, nil
	}
	return ParseVisibility(s)
}

func comments(specs []CommentSpec) ([]Comment, error) {
	var out []Comment
	for _, cs := range specs {
		c := Comment{Text: cs.Text, Inner: cs.Inner}
		switch strings.ToLower(cs.Position) {
		case "", "leading":
			c.Position = Leading
		case "trailing":
			c.Position = Trailing
		case "freestanding":
			c.Position = Freestanding
		default:
			return nil, fmt.Errorf("unknown comment position %q", cs.Position)
		}
		out = append(out, c)
	}
	return out, nil
}

func splitScope(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "::") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func unitKindFor(path string) UnitKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".cc", ".cpp", ".cxx", ".c++":
		return SourceFile
	default:
		return Header
	}
}

func classUSR(c *Class) string {
	var sb strings.Builder
	sb.WriteString("c:")
	for _, s := range c.Scopes {
		if s.Kind == NamespaceScope {
			sb.WriteString("@N@")
		} else {
			sb.WriteString("@S@")
		}
		sb.WriteString(s.Name)
	}
	if c.Template != "" {
		sb.WriteString("@ST")
	}
	sb.WriteString("@S@")
	sb.WriteString(c.Name)
	return sb.String()
}

func methodUSR(c *Class, m *Member) string {
	id := c.ID + "@F@" + m.Name + "#" + strings.ReplaceAll(m.Signature.ParamTypes(), ", ", "#")
	quals := 0
	if m.Signature.Const {
		quals |= 1
	}
	if m.Signature.Volatile {
		quals |= 4
	}
	if quals != 0 {
		id += "#" + strconv.Itoa(quals)
	}
	return id
}
