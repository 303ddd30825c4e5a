package rewrite

import (
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
)

// DeclOptions controls how a method declaration is printed.
type DeclOptions struct {
	Name     string // defaults to the member name
	Template string
	Virtual  bool
	Pure     bool
}

// Declaration prints an in-class method declaration.
func Declaration(m *model.Member, opts DeclOptions) string {
	var sb strings.Builder
	writeTemplate(&sb, opts.Template)
	if m.Static {
		sb.WriteString("static ")
	}
	if opts.Virtual || opts.Pure {
		sb.WriteString("virtual ")
	}
	writeSignature(&sb, m, nameOr(opts.Name, m.Name))
	if opts.Pure {
		sb.WriteString(" = 0")
	}
	sb.WriteByte(';')
	return sb.String()
}

// DefOptions controls how a method definition is printed.
type DefOptions struct {
	Name     string // defaults to the member name
	Template string
	Body     string // an empty body prints an empty block
	InClass  bool   // in-class definitions repeat static and virtual
}

// Definition prints a method definition.
func Definition(m *model.Member, opts DefOptions) string {
	var sb strings.Builder
	writeTemplate(&sb, opts.Template)
	if opts.InClass {
		if m.Static {
			sb.WriteString("static ")
		}
		if m.Virtual {
			sb.WriteString("virtual ")
		}
	}
	writeSignature(&sb, m, nameOr(opts.Name, m.Name))
	sb.WriteByte(' ')
	body := opts.Body
	if strings.TrimSpace(body) == "" {
		body = "{\n}"
	}
	sb.WriteString(body)
	return sb.String()
}

// FieldDeclaration prints a field declaration.
func FieldDeclaration(m *model.Member) string {
	var sb strings.Builder
	if m.Static {
		sb.WriteString("static ")
	}
	sb.WriteString(m.Type)
	sb.WriteByte(' ')
	sb.WriteString(m.Name)
	if m.Declaration != nil && m.Declaration.Initializer != "" {
		sb.WriteString(" = ")
		sb.WriteString(m.Declaration.Initializer)
	}
	sb.WriteByte(';')
	return sb.String()
}

// Render returns the node text with its comments in place.
func Render(n Node) string {
	var lead, trail, inner []string
	for _, c := range n.Comments {
		switch {
		case c.Inner:
			inner = append(inner, c.Text)
		case c.Position == model.Trailing:
			trail = append(trail, c.Text)
		default:
			lead = append(lead, c.Text)
		}
	}
	text := n.Text
	if len(inner) > 0 {
		if i := strings.Index(text, "{"); i >= 0 {
			text = text[:i+1] + "\n\t" + strings.Join(inner, "\n\t") + text[i+1:]
		}
	}
	var sb strings.Builder
	for _, c := range lead {
		sb.WriteString(c)
		sb.WriteByte('\n')
	}
	sb.WriteString(text)
	for _, c := range trail {
		sb.WriteByte(' ')
		sb.WriteString(c)
	}
	return sb.String()
}

func writeTemplate(sb *strings.Builder, template string) {
	if template == "" {
		return
	}
	sb.WriteString(template)
	sb.WriteByte('\n')
}

func writeSignature(sb *strings.Builder, m *model.Member, name string) {
	ret := m.Signature.Return
	if ret == "" {
		ret = "void"
	}
	sb.WriteString(ret)
	sb.WriteByte(' ')
	sb.WriteString(name)
	sb.WriteByte('(')
	params := make([]string, 0, len(m.Signature.Params)+1)
	for _, p := range m.Signature.Params {
		if p.Name == "" {
			params = append(params, p.Type)
		} else {
			params = append(params, p.Type+" "+p.Name)
		}
	}
	if m.Signature.VarArgs {
		params = append(params, "...")
	}
	sb.WriteString(strings.Join(params, ", "))
	sb.WriteByte(')')
	if m.Signature.Const {
		sb.WriteString(" const")
	}
	if m.Signature.Volatile {
		sb.WriteString(" volatile")
	}
}

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
