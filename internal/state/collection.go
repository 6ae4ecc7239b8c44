package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/madhatter5501/WorkOS/internal/db"
)

// Collection is an ordered list persisted as one JSON array under a key.
type Collection[T any] struct {
	env      Env
	key      string
	defaults func() []T

	mu    sync.RWMutex
	items []T
}

// NewCollection creates a collection. defaults supplies the items used when the
// key is absent or holds corrupt data; it may be nil for an empty default.
func NewCollection[T any](env Env, key string, defaults func() []T) *Collection[T] {
	if defaults == nil {
		defaults = func() []T { return []T{} }
	}
	return &Collection[T]{env: env, key: key, defaults: defaults}
}

// Key returns the store key.
func (c *Collection[T]) Key() string {
	return c.key
}

// Load reads the collection from the store. A missing or corrupt value falls back
// to the defaults, which are then written so other workspaces start from them too.
func (c *Collection[T]) Load(ctx context.Context) error {
	items, err := c.read(ctx)
	fallback := false
	switch {
	case errors.Is(err, db.ErrNotFound):
		fallback = true
	case err != nil:
		var se *StorageError
		if !errors.As(err, &se) {
			return err
		}
		c.env.logger().Error("Discarding corrupt data", "key", c.key, "error", err)
		fallback = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fallback {
		c.items = c.defaults()
		return c.write(ctx)
	}
	c.items = items
	return nil
}

// Reload re-reads the collection after another workspace changed it. Corrupt data
// keeps the current items; a deleted key restores the defaults.
func (c *Collection[T]) Reload(ctx context.Context) error {
	items, err := c.read(ctx)
	switch {
	case errors.Is(err, db.ErrNotFound):
		items = c.defaults()
	case err != nil:
		var se *StorageError
		if errors.As(err, &se) {
			c.env.logger().Error("Ignoring corrupt update", "key", c.key, "error", err)
			return nil
		}
		return err
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the items.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Mutate applies fn to a copy of the items. When fn fails nothing changes.
// Otherwise the result replaces the items, is written to the store, and is
// broadcast. A write failure is returned but the in-memory update stands.
func (c *Collection[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	next, err := fn(slices.Clone(c.items))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if next == nil {
		next = []T{}
	}
	c.items = next
	err = c.write(ctx)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.env.publish(ctx, c.key, false)
	return nil
}

// Replace overwrites every item.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	return c.Mutate(ctx, func([]T) ([]T, error) {
		return slices.Clone(items), nil
	})
}

func (c *Collection[T]) read(ctx context.Context) ([]T, error) {
	data, err := c.env.Store.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read %s: %w", c.key, err)
	}
	items, err := decode[[]T](c.key, data)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// write persists the current items. Callers hold c.mu.
func (c *Collection[T]) write(ctx context.Context) error {
	data, err := json.Marshal(c.items)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", c.key, err)
	}
	if err := c.env.Store.Put(ctx, c.key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", c.key, err)
	}
	return nil
}
