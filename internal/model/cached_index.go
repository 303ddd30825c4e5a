package model

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedIndex memoizes index queries for the lifetime of one session.
type CachedIndex struct {
	index Index
	refs  *lru.Cache[string, []Reference]
	defs  *lru.Cache[string, []Reference]
}

// NewCachedIndex wraps index with two LRU caches of the given size.
func NewCachedIndex(index Index, size int) (*CachedIndex, error) {
	refs, err := lru.New[string, []Reference](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create reference cache: %w", err)
	}
	defs, err := lru.New[string, []Reference](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create definition cache: %w", err)
	}
	return &CachedIndex{index: index, refs: refs, defs: defs}, nil
}

// FindReferences implements Index.
func (c *CachedIndex) FindReferences(ctx context.Context, b Binding) ([]Reference, error) {
	return c.lookup(ctx, c.refs, b, c.index.FindReferences)
}

// FindDefinitions implements Index.
func (c *CachedIndex) FindDefinitions(ctx context.Context, b Binding) ([]Reference, error) {
	return c.lookup(ctx, c.defs, b, c.index.FindDefinitions)
}

// Purge drops every cached result.
func (c *CachedIndex) Purge() {
	c.refs.Purge()
	c.defs.Purge()
}

func (c *CachedIndex) lookup(ctx context.Context, cache *lru.Cache[string, []Reference], b Binding, find func(context.Context, Binding) ([]Reference, error)) ([]Reference, error) {
	key := b.BindingID()
	if refs, ok := cache.Get(key); ok {
		return refs, nil
	}
	refs, err := find(ctx, b)
	if err != nil {
		return nil, err
	}
	cache.Add(key, refs)
	return refs, nil
}
