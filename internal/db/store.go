// Package db provides the persistent key/value store that backs a workspace.
// Several workspaces may share one store; each key holds one JSON document.
package db

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when a key has never been written or was deleted.
var ErrNotFound = errors.New("key not found")

// Keys of the persisted workspace collections.
const (
	KeyTasks     = "oracle_tasks"
	KeyMeetings  = "oracle_meetings"
	KeyChat      = "oracle_chat"
	KeyAIHistory = "oracle_ai_history"
	KeySession   = "oracle_session"
	KeyUsers     = "oracle_users"
)

// Keys returns every workspace key.
func Keys() []string {
	return []string{KeyTasks, KeyMeetings, KeyChat, KeyAIHistory, KeySession, KeyUsers}
}

// Store is a string-keyed document store.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value of key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Driver names a Store backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverFile     Driver = "file"
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// Open connects to the store backend named by driver. dsn is a file path for
// sqlite, a directory for file, and a URL for redis and postgres.
func Open(ctx context.Context, driver Driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case DriverSQLite, "":
		s, err = OpenSQLite(dsn)
	case DriverFile:
		s, err = NewFileStore(dsn)
	case DriverRedis:
		s, err = NewRedisStore(ctx, dsn)
	case DriverPostgres:
		s, err = NewPostgresStore(ctx, dsn)
	case DriverMemory:
		s = NewMemoryStore()
	default:
		err = fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
