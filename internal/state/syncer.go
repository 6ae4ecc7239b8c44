package state

import (
	"context"
	"log/slog"

	"github.com/madhatter5501/WorkOS/internal/broadcast"
)

// Reloader is anything the Syncer can refresh from the store.
type Reloader interface {
	Key() string
	Reload(ctx context.Context) error
}

// Syncer applies other workspaces' writes to this one. The last write wins;
// concurrent edits are not merged.
type Syncer struct {
	bus     broadcast.Bus
	origin  string
	logger  *slog.Logger
	targets map[string]Reloader
	applied func(broadcast.Event)
}

// NewSyncer routes events for each target's key to that target.
func NewSyncer(env Env, targets ...Reloader) *Syncer {
	s := &Syncer{
		bus:     env.Bus,
		origin:  env.Origin,
		logger:  env.logger(),
		targets: make(map[string]Reloader, len(targets)),
	}
	for _, t := range targets {
		s.targets[t.Key()] = t
	}
	return s
}

// OnApply registers fn to run after a remote change has been reloaded.
func (s *Syncer) OnApply(fn func(broadcast.Event)) {
	s.applied = fn
}

// Subscribe starts listening. Events published after it returns are delivered
// to the returned run function, which blocks until ctx is done or the bus closes.
func (s *Syncer) Subscribe(ctx context.Context) (run func() error, err error) {
	events, err := s.bus.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	return func() error {
		for e := range events {
			s.Apply(ctx, e)
		}
		return ctx.Err()
	}, nil
}

// Run subscribes and applies events until ctx is done or the bus closes.
func (s *Syncer) Run(ctx context.Context) error {
	run, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}
	return run()
}

// Apply handles one event. Events from this workspace and for unknown keys are ignored.
func (s *Syncer) Apply(ctx context.Context, e broadcast.Event) {
	if e.Origin == s.origin {
		return
	}
	target, ok := s.targets[e.Key]
	if !ok {
		return
	}
	if err := target.Reload(ctx); err != nil {
		s.logger.Warn("Failed to apply remote change", "key", e.Key, "origin", e.Origin, "error", err)
		return
	}
	s.logger.Debug("Applied remote change", "key", e.Key, "origin", e.Origin, "deleted", e.Deleted)
	if s.applied != nil {
		s.applied(e)
	}
}
