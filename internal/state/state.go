// Package state mirrors workspace data between memory, the shared store, and
// the broadcast bus. Every mutation is written through to the store and then
// announced, so other workspaces on the same store can re-read it.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/madhatter5501/WorkOS/internal/broadcast"
	"github.com/madhatter5501/WorkOS/internal/db"
)

// StorageError reports persisted data that could not be decoded.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("corrupt data under %s: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Env is what every collection of one workspace shares.
type Env struct {
	Store  db.Store
	Bus    broadcast.Bus
	Origin string // Workspace id stamped on published events
	Logger *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// publish announces a write. A bus failure is logged, never returned: the
// write itself has already succeeded.
func (e Env) publish(ctx context.Context, key string, deleted bool) {
	if e.Bus == nil {
		return
	}
	ev := broadcast.Event{Key: key, Origin: e.Origin, Deleted: deleted, At: time.Now().UTC()}
	if err := e.Bus.Publish(ctx, ev); err != nil {
		e.logger().Warn("Failed to broadcast change", "key", key, "error", err)
	}
}

func decode[T any](key string, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &StorageError{Key: key, Err: err}
	}
	return v, nil
}
