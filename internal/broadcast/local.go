package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Local is an in-process Bus for workspaces living in the same process.
type Local struct {
	mu      sync.Mutex
	clients map[chan Event]bool
	closed  bool
	logger  *slog.Logger
}

// NewLocal creates an empty hub.
func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		clients: make(map[chan Event]bool),
		logger:  logger,
	}
}

// Publish delivers e to every subscriber without blocking.
func (l *Local) Publish(ctx context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	for ch := range l.clients {
		select {
		case ch <- e:
		default:
			l.logger.Warn("Dropping event for slow subscriber", "key", e.Key)
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (l *Local) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.clients[ch] = true
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.remove(ch)
	}()
	return ch, nil
}

func (l *Local) remove(ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.clients[ch] {
		delete(l.clients, ch)
		close(ch)
	}
}

// Close closes every subscriber channel.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	for ch := range l.clients {
		delete(l.clients, ch)
		close(ch)
	}
	return nil
}
