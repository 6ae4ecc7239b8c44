package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/madhatter5501/WorkOS/internal/db"
)

// Value is a single optional document, such as the logged-in session.
type Value[T any] struct {
	env Env
	key string

	mu  sync.RWMutex
	val *T
}

// NewValue creates an unset value.
func NewValue[T any](env Env, key string) *Value[T] {
	return &Value[T]{env: env, key: key}
}

// Key returns the store key.
func (v *Value[T]) Key() string {
	return v.key
}

// Load reads the value. Missing or corrupt data leaves it unset.
func (v *Value[T]) Load(ctx context.Context) error {
	return v.Reload(ctx)
}

// Reload re-reads the value after another workspace changed it.
func (v *Value[T]) Reload(ctx context.Context) error {
	data, err := v.env.Store.Get(ctx, v.key)
	if errors.Is(err, db.ErrNotFound) {
		v.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", v.key, err)
	}

	val, err := decode[T](v.key, data)
	if err != nil {
		v.env.logger().Error("Discarding corrupt data", "key", v.key, "error", err)
		v.set(nil)
		return nil
	}
	v.set(&val)
	return nil
}

// Get returns the value and whether it is set.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.val == nil {
		var zero T
		return zero, false
	}
	return *v.val, true
}

// Set stores val and broadcasts the change.
func (v *Value[T]) Set(ctx context.Context, val T) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", v.key, err)
	}
	v.set(&val)
	if err := v.env.Store.Put(ctx, v.key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", v.key, err)
	}
	v.env.publish(ctx, v.key, false)
	return nil
}

// Clear deletes the value and broadcasts the deletion.
func (v *Value[T]) Clear(ctx context.Context) error {
	v.set(nil)
	if err := v.env.Store.Delete(ctx, v.key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", v.key, err)
	}
	v.env.publish(ctx, v.key, true)
	return nil
}

func (v *Value[T]) set(val *T) {
	v.mu.Lock()
	v.val = val
	v.mu.Unlock()
}
