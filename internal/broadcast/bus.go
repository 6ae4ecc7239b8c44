// Package broadcast carries "this key changed" notifications between workspaces
// that share a store. Events carry no payload; receivers re-read the key.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Event announces a write to a store key.
type Event struct {
	Key     string    `json:"key"`
	Origin  string    `json:"origin"` // Id of the publishing workspace
	Deleted bool      `json:"deleted,omitempty"`
	At      time.Time `json:"at"`
}

// Bus fans events out to every subscriber, including the publisher's own.
type Bus interface {
	Publish(ctx context.Context, e Event) error

	// Subscribe returns a channel of events that is closed when ctx is done or
	// the bus is closed.
	Subscribe(ctx context.Context) (<-chan Event, error)

	Close() error
}

// Driver names a Bus backend.
type Driver string

const (
	DriverLocal    Driver = "local"
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
)

// subscriberBuffer is the per-subscriber queue length. Slow subscribers lose events.
const subscriberBuffer = 64

// Open connects to the bus backend named by driver.
func Open(ctx context.Context, driver Driver, dsn string, logger *slog.Logger) (Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		b   Bus
		err error
	)
	switch driver {
	case DriverLocal, "":
		b = NewLocal(logger)
	case DriverRedis:
		b, err = NewRedisBus(ctx, dsn, logger)
	case DriverPostgres:
		b, err = NewPostgresBus(ctx, dsn, logger)
	default:
		err = fmt.Errorf("unknown bus driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
