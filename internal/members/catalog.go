// Package members enumerates the relocatable members of a class and computes
// the dependencies between them.
package members

import (
	"context"
	"fmt"

	"github.com/mvp-joe/project-relocate/internal/model"
	"github.com/mvp-joe/project-relocate/internal/plan"
)

// Entry pairs a member with the user's selection for it.
type Entry struct {
	Member     *model.Member
	Action     plan.ActionKind
	Visibility model.Visibility

	oracle  model.Oracle
	targets map[string]plan.ActionKind
}

// Selected reports whether an action other than None was chosen.
func (e *Entry) Selected() bool {
	return e.Action != plan.None
}

// TargetAction returns the action chosen for target, None when unset.
func (e *Entry) TargetAction(target model.Binding) plan.ActionKind {
	return e.targets[e.oracle.Key(target)]
}

// SetTargetAction overrides the action for one destination class.
func (e *Entry) SetTargetAction(target model.Binding, kind plan.ActionKind) {
	if e.targets == nil {
		e.targets = make(map[string]plan.ActionKind)
	}
	e.targets[e.oracle.Key(target)] = kind
}

// HasTargetAction reports whether an override was recorded for target.
func (e *Entry) HasTargetAction(target model.Binding) bool {
	_, ok := e.targets[e.oracle.Key(target)]
	return ok
}

// ClearTargetActions drops every per-target override.
func (e *Entry) ClearTargetActions() {
	e.targets = nil
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s [%s, %s]", e.Member.Display(), e.Action, e.Visibility)
}

// Catalog lists the relocatable members of one class.
type Catalog struct {
	Class *model.Class

	oracle     model.Oracle
	entries    []*Entry
	byKey      map[string]*Entry
	closure    map[*Entry][]*Entry
	dependents map[*Entry][]*Entry
}

// NewCatalog wraps every method and field of c, constructors and destructors
// excluded, in an entry with action None.
func NewCatalog(c *model.Class, oracle model.Oracle) *Catalog {
	cat := &Catalog{
		Class:  c,
		oracle: oracle,
		byKey:  make(map[string]*Entry),
	}
	for _, m := range c.Members {
		if c.IsSpecial(m) {
			continue
		}
		e := &Entry{Member: m, Action: plan.None, Visibility: m.Visibility, oracle: oracle}
		cat.entries = append(cat.entries, e)
		cat.byKey[oracle.Key(m)] = e
	}
	cat.Reset()
	return cat
}

// Entries returns every entry in declaration order.
func (c *Catalog) Entries() []*Entry {
	return append([]*Entry(nil), c.entries...)
}

// Lookup returns the entry for member b, or nil.
func (c *Catalog) Lookup(b model.Binding) *Entry {
	return c.byKey[c.oracle.Key(b)]
}

// Selected returns the entries with an action other than None.
func (c *Catalog) Selected() []*Entry {
	var out []*Entry
	for _, e := range c.entries {
		if e.Selected() {
			out = append(out, e)
		}
	}
	return out
}

// Reset invalidates the memoized dependency information.
func (c *Catalog) Reset() {
	c.closure = make(map[*Entry][]*Entry)
	c.dependents = make(map[*Entry][]*Entry)
}

// Dependencies returns the entries e transitively relies on: members of the
// same class referenced from its body or initializer, and theirs in turn.
// e itself is never part of the result.
func (c *Catalog) Dependencies(ctx context.Context, e *Entry) ([]*Entry, error) {
	if deps, ok := c.closure[e]; ok {
		return deps, nil
	}
	seen := map[*Entry]bool{e: true}
	var deps []*Entry
	if err := c.collect(ctx, e, seen, &deps); err != nil {
		return nil, err
	}
	c.closure[e] = deps
	return deps, nil
}

func (c *Catalog) collect(ctx context.Context, e *Entry, seen map[*Entry]bool, deps *[]*Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	body := e.Member.Body()
	if body == nil {
		return nil
	}
	for _, ref := range body.References {
		dep := c.Lookup(model.Symbol(ref.Target))
		if dep == nil || seen[dep] {
			continue
		}
		seen[dep] = true
		*deps = append(*deps, dep)
		if err := c.collect(ctx, dep, seen, deps); err != nil {
			return err
		}
	}
	return nil
}

// Dependents returns the methods of the class whose body references e directly.
func (c *Catalog) Dependents(ctx context.Context, e *Entry) ([]*Entry, error) {
	if deps, ok := c.dependents[e]; ok {
		return deps, nil
	}
	var deps []*Entry
	for _, other := range c.entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if other == e || other.Member.Kind != model.Method {
			continue
		}
		body := other.Member.Body()
		if body == nil {
			continue
		}
		for _, ref := range body.References {
			if c.oracle.Equal(model.Symbol(ref.Target), e.Member) {
				deps = append(deps, other)
				break
			}
		}
	}
	c.dependents[e] = deps
	return deps, nil
}

// ReferencingClasses returns the keys of the classes whose own members
// reference e, found through the index. The catalog's class is excluded.
func (c *Catalog) ReferencingClasses(ctx context.Context, index model.Index, e *Entry) (map[string]bool, error) {
	refs, err := index.FindReferences(ctx, e.Member)
	if err != nil {
		return nil, fmt.Errorf("failed to find references to %s: %w", e.Member.Display(), err)
	}
	out := make(map[string]bool)
	for _, ref := range refs {
		if !ref.IsUse() || ref.EnclosingClass == "" {
			continue
		}
		if c.oracle.Equal(model.Symbol(ref.EnclosingClass), c.Class) {
			continue
		}
		out[c.oracle.Key(model.Symbol(ref.EnclosingClass))] = true
	}
	return out, nil
}
