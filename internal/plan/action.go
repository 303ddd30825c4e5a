// Package plan turns per-member action selections into a run-once plan of
// atomic relocation actions.
package plan

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/project-relocate/internal/model"
)

// ActionKind is the closed set of atomic relocation actions.
type ActionKind int

const (
	None ActionKind = iota
	PullUp
	PushDown
	DeclareVirtual
	RemoveMethod
	ExistingDefinition
	MethodStub
	MoveField
)

var actionNames = []string{
	None:               "none",
	PullUp:             "pull up",
	PushDown:           "push down",
	DeclareVirtual:     "declare virtual",
	RemoveMethod:       "remove method",
	ExistingDefinition: "existing definition",
	MethodStub:         "method stub",
	MoveField:          "move field",
}

func (k ActionKind) String() string {
	if k >= 0 && int(k) < len(actionNames) {
		return actionNames[k]
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// ParseActionKind accepts the names printed by String, with '-' or '_' in
// place of spaces, plus the short forms "existing", "stub", "virtual" and "remove".
func ParseActionKind(s string) (ActionKind, error) {
	norm := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "existing":
		return ExistingDefinition, nil
	case "stub":
		return MethodStub, nil
	case "virtual":
		return DeclareVirtual, nil
	case "remove":
		return RemoveMethod, nil
	}
	for i, name := range actionNames {
		if name == norm {
			return ActionKind(i), nil
		}
	}
	return None, fmt.Errorf("unknown action %q", s)
}

// Action relocates one member with respect to one class.
//
//	PullUp, MoveField     remove from Source, insert into Target
//	PushDown              remove from Source
//	ExistingDefinition    insert a copy into Target
//	MethodStub            insert an empty override into Target
//	DeclareVirtual        insert a pure virtual declaration into Target,
//	                      replacing the member when Target is Source
//	RemoveMethod          remove from Source
type Action struct {
	Kind       ActionKind
	Member     *model.Member
	Source     *model.Class
	Target     *model.Class
	Visibility model.Visibility
}

func (a Action) String() string {
	var sb strings.Builder
	sb.WriteString(a.Kind.String())
	if a.Member != nil {
		sb.WriteByte(' ')
		sb.WriteString(a.Member.Display())
	}
	if a.Source != nil {
		sb.WriteString(" from ")
		sb.WriteString(a.Source.Name)
	}
	if a.Target != nil {
		sb.WriteString(" to ")
		sb.WriteString(a.Target.Name)
	}
	return sb.String()
}
