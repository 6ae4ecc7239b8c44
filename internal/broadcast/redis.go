package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChannel is the Pub/Sub channel storage events travel on.
const RedisChannel = "workos:storage"

// RedisBus carries events over Redis Pub/Sub so workspaces in different
// processes sharing a store see each other's writes.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]bool
	closed bool

	// subscribed runs between the Redis subscription and its registration. Tests only.
	subscribed func()
}

// NewRedisBus connects to redisURL.
func NewRedisBus(ctx context.Context, redisURL string, logger *slog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisBusWithClient(client, logger), nil
}

// NewRedisBusWithClient creates a bus from an existing Redis client.
func NewRedisBusWithClient(client *redis.Client, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{
		client: client,
		logger: logger,
		subs:   make(map[*redis.PubSub]bool),
	}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, RedisChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Key, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	sub := b.client.Subscribe(ctx, RedisChannel)
	// Wait for the subscription so no event published after Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", RedisChannel, err)
	}

	if b.subscribed != nil {
		b.subscribed()
	}

	// Close may have run while the subscription was being set up and would not have seen it.
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Close()
		return nil, ErrClosed
	}
	b.subs[sub] = true
	b.mu.Unlock()

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer b.release(sub)

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.logger.Warn("Ignoring malformed event", "error", err)
					continue
				}
				select {
				case out <- e:
				default:
					b.logger.Warn("Dropping event for slow subscriber", "key", e.Key)
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) release(sub *redis.PubSub) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.Close()
}

// Close ends every subscription and the client.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*redis.PubSub, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return b.client.Close()
}
