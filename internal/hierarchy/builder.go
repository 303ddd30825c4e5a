package hierarchy

import (
	"context"
	"fmt"
	"log"

	"github.com/mvp-joe/project-relocate/internal/model"
)

// Builder constructs inheritance graphs over a program model.
type Builder struct {
	source model.Source
	index  model.Index
	oracle model.Oracle
}

// NewBuilder creates a builder. The index is only consulted for descending builds.
func NewBuilder(source model.Source, index model.Index, oracle model.Oracle) *Builder {
	return &Builder{source: source, index: index, oracle: oracle}
}

// Ascending builds the tree of base classes reachable from root by following
// each class's own base-specifiers in declaration order.
func (b *Builder) Ascending(ctx context.Context, root *model.Class) (*Graph, error) {
	g := newGraph(Ascending, root, b.oracle)
	visited := make(map[string]bool)
	if err := b.expandBases(ctx, g, g.Root, visited); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *Builder) expandBases(ctx context.Context, g *Graph, n *Node, visited map[string]bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	key := b.oracle.Key(n.Class)
	if visited[key] {
		return nil
	}
	visited[key] = true

	for i := range n.Class.Bases {
		spec := n.Class.Bases[i]
		if spec.ClassID == "" {
			log.Printf("Warning: base %s of %s is not resolvable, skipping", spec.Name, n.Class.QualifiedName())
			continue
		}
		base, err := b.source.Class(spec.ClassID)
		if err != nil {
			return fmt.Errorf("failed to resolve base %s of %s: %w", spec.Name, n.Class.QualifiedName(), err)
		}
		child := g.addChild(n, base, spec)
		g.link(n.Class, base, spec)
		if err := b.expandBases(ctx, g, child, visited); err != nil {
			return err
		}
	}
	return nil
}

// Descending builds the tree of classes deriving from root. Subclasses are
// discovered through base-specifier references in the index.
func (b *Builder) Descending(ctx context.Context, root *model.Class) (*Graph, error) {
	g := newGraph(Descending, root, b.oracle)
	visited := make(map[string]bool)
	if err := b.expandDerived(ctx, g, g.Root, visited); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *Builder) expandDerived(ctx context.Context, g *Graph, n *Node, visited map[string]bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	key := b.oracle.Key(n.Class)
	if visited[key] {
		return nil
	}
	visited[key] = true

	refs, err := b.index.FindReferences(ctx, n.Class)
	if err != nil {
		return fmt.Errorf("failed to find references to %s: %w", n.Class.QualifiedName(), err)
	}
	for _, ref := range refs {
		if !ref.Roles.Has(model.RoleBaseSpecifier) {
			continue
		}
		derived, err := b.source.EnclosingClass(ref)
		if err != nil {
			return fmt.Errorf("failed to resolve class deriving from %s at %s: %w", n.Class.QualifiedName(), ref.Location, err)
		}
		spec := b.baseSpecifier(derived, n.Class, ref)
		child := g.addChild(n, derived, spec)
		g.link(derived, n.Class, spec)
		if err := b.expandDerived(ctx, g, child, visited); err != nil {
			return err
		}
	}
	return nil
}

// baseSpecifier finds the specifier of derived naming base.
func (b *Builder) baseSpecifier(derived, base *model.Class, ref model.Reference) model.BaseSpecifier {
	for _, spec := range derived.Bases {
		if spec.Location == ref.Location && b.oracle.Equal(model.Symbol(spec.ClassID), base) {
			return spec
		}
	}
	for _, spec := range derived.Bases {
		if b.oracle.Equal(model.Symbol(spec.ClassID), base) {
			return spec
		}
	}
	return model.BaseSpecifier{
		Name:       base.Name,
		ClassID:    base.ID,
		Visibility: derived.DefaultBaseVisibility(),
		Location:   ref.Location,
	}
}
