package cli

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/mvp-joe/project-relocate/internal/model"
)

// memberPattern is a --member argument: a glob over member names with an
// optional ":visibility" suffix.
type memberPattern struct {
	raw        string
	matcher    glob.Glob
	visibility model.Visibility
	hasVis     bool
}

func parseMemberPattern(arg string) (*memberPattern, error) {
	p := &memberPattern{raw: arg}
	pattern := arg
	if i := strings.LastIndex(arg, ":"); i >= 0 && !strings.Contains(arg[i:], ")") && (i == 0 || arg[i-1] != ':') {
		vis, err := model.ParseVisibility(arg[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid member %q: %w", arg, err)
		}
		pattern = arg[:i]
		p.visibility = vis
		p.hasVis = true
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid member pattern %q: %w", pattern, err)
	}
	p.matcher = g
	return p, nil
}

// match reports whether m's name or its display form with parameter types
// matches the pattern.
func (p *memberPattern) match(m *model.Member) bool {
	return p.matcher.Match(m.Name) || p.matcher.Match(m.Display())
}

// visibilityFor returns the target visibility of m: the explicit suffix,
// else the configured default, else m's own.
func (p *memberPattern) visibilityFor(m *model.Member, def model.Visibility, hasDef bool) model.Visibility {
	switch {
	case p.hasVis:
		return p.visibility
	case hasDef:
		return def
	default:
		return m.Visibility
	}
}

// selectMembers returns the members of c matched by args, in declaration
// order, each with the pattern that selected it. Every pattern must match.
func selectMembers(c *model.Class, args []string) ([]*model.Member, map[*model.Member]*memberPattern, error) {
	var out []*model.Member
	chosen := make(map[*model.Member]*memberPattern)
	for _, arg := range args {
		p, err := parseMemberPattern(arg)
		if err != nil {
			return nil, nil, err
		}
		matched := false
		for _, m := range c.Members {
			if c.IsSpecial(m) || !p.match(m) {
				continue
			}
			matched = true
			if _, ok := chosen[m]; !ok {
				out = append(out, m)
			}
			chosen[m] = p
		}
		if !matched {
			return nil, nil, fmt.Errorf("no member of %s matches %q: %w", c.QualifiedName(), arg, model.ErrNotFound)
		}
	}
	return orderByDeclaration(c, out), chosen, nil
}

func orderByDeclaration(c *model.Class, ms []*model.Member) []*model.Member {
	want := make(map[*model.Member]bool, len(ms))
	for _, m := range ms {
		want[m] = true
	}
	out := make([]*model.Member, 0, len(ms))
	for _, m := range c.Members {
		if want[m] {
			out = append(out, m)
		}
	}
	return out
}

// parseQualifiedMember splits "Class::member" at the last "::".
func parseQualifiedMember(arg string) (class, member string, err error) {
	i := strings.LastIndex(arg, "::")
	if i <= 0 || i+2 >= len(arg) {
		return "", "", fmt.Errorf("invalid member %q: want Class::member", arg)
	}
	return arg[:i], arg[i+2:], nil
}
