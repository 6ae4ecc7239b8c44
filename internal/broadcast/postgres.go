package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresChannel is the LISTEN/NOTIFY channel storage events travel on.
const PostgresChannel = "workos_storage"

// PostgresBus carries events with Postgres LISTEN/NOTIFY.
type PostgresBus struct {
	pool     *pgxpool.Pool
	ownsPool bool
	logger   *slog.Logger

	mu     sync.Mutex
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewPostgresBus connects to databaseURL.
func NewPostgresBus(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresBus, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	b := NewPostgresBusWithPool(pool, logger)
	b.ownsPool = true
	return b, nil
}

// NewPostgresBusWithPool creates a bus on a pool owned by the caller.
func NewPostgresBusWithPool(pool *pgxpool.Pool, logger *slog.Logger) *PostgresBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBus{
		pool:   pool,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (b *PostgresBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := b.pool.Exec(ctx, "SELECT pg_notify($1, $2)", PostgresChannel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", e.Key, err)
	}
	return nil
}

// Subscribe holds one pooled connection in LISTEN mode until ctx is done.
func (b *PostgresBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		b.wg.Done()
		return nil, fmt.Errorf("acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+PostgresChannel); err != nil {
		conn.Release()
		b.wg.Done()
		return nil, fmt.Errorf("listen %s: %w", PostgresChannel, err)
	}

	// The LISTEN session lives and dies with this connection, so it never returns to the pool.
	listener := conn.Hijack()

	listenCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-listenCtx.Done():
		}
	}()

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer b.wg.Done()
		defer close(out)
		defer cancel()
		defer listener.Close(context.Background())

		for {
			n, err := listener.WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					b.logger.Warn("Listener stopped", "error", err)
				}
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(n.Payload), &e); err != nil {
				b.logger.Warn("Ignoring malformed event", "error", err)
				continue
			}
			select {
			case out <- e:
			default:
				b.logger.Warn("Dropping event for slow subscriber", "key", e.Key)
			}
		}
	}()
	return out, nil
}

// Close stops every listener and waits for them to release their connections.
func (b *PostgresBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	if b.ownsPool {
		b.pool.Close()
	}
	return nil
}
