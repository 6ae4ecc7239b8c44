package workos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madhatter5501/WorkOS/agents"
	"github.com/madhatter5501/WorkOS/agents/provider"
	"github.com/madhatter5501/WorkOS/internal/auth"
	"github.com/madhatter5501/WorkOS/internal/broadcast"
	"github.com/madhatter5501/WorkOS/internal/db"
	"github.com/madhatter5501/WorkOS/internal/state"
	"github.com/madhatter5501/WorkOS/kanban"
	"github.com/madhatter5501/WorkOS/report"
	"github.com/madhatter5501/WorkOS/strategy"
)

// ErrNotLoggedIn is returned by operations that need a session.
var ErrNotLoggedIn = errors.New("no user is logged in")

// Workspace is one open instance of the team workspace. Several workspaces can
// share a store and a bus; each sees the others' writes after they are announced.
type Workspace struct {
	id     string
	config Config
	logger *slog.Logger

	store     db.Store
	bus       broadcast.Bus
	ownsStore bool

	tasks    *state.Collection[kanban.Task]
	meetings *state.Collection[kanban.Meeting]
	messages *state.Collection[kanban.ChatMessage]
	history  *state.Collection[kanban.AnalysisHistoryItem]
	users    *state.Collection[kanban.User]
	session  *state.Value[kanban.User]

	notices  *kanban.Notices
	board    *kanban.Board
	calendar *kanban.Calendar
	chat     *kanban.Chat
	analyst  *agents.Analyst
	pulse    *report.Pulse
	planner  *strategy.Planner
	auth     *auth.Service
	room     *Room

	syncer     *state.Syncer
	background *Background

	closeOnce sync.Once
}

// Open connects to the configured store and bus and opens a workspace that owns them.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := db.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	bus, err := broadcast.Open(ctx, cfg.Bus.Driver, cfg.Bus.DSN, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open bus: %w", err)
	}

	ws, err := Attach(ctx, cfg, store, bus, logger)
	if err != nil {
		bus.Close()
		store.Close()
		return nil, err
	}
	ws.ownsStore = true
	return ws, nil
}

// Attach opens a workspace on an existing store and bus. Close leaves them open.
func Attach(ctx context.Context, cfg Config, store db.Store, bus broadcast.Bus, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()[:8]
	logger = logger.With("workspace", id)

	seed, err := kanban.LoadSeed(time.Now())
	if err != nil {
		return nil, err
	}

	env := state.Env{Store: store, Bus: bus, Origin: id, Logger: logger}
	ws := &Workspace{
		id:       id,
		config:   cfg,
		logger:   logger,
		store:    store,
		bus:      bus,
		tasks:    state.NewCollection(env, db.KeyTasks, func() []kanban.Task { return kanban.MustSeed(time.Now()).Tasks }),
		meetings: state.NewCollection(env, db.KeyMeetings, func() []kanban.Meeting { return kanban.MustSeed(time.Now()).Meetings }),
		messages: state.NewCollection(env, db.KeyChat, func() []kanban.ChatMessage { return kanban.MustSeed(time.Now()).Chat }),
		history:  state.NewCollection[kanban.AnalysisHistoryItem](env, db.KeyAIHistory, nil),
		users:    state.NewCollection[kanban.User](env, db.KeyUsers, nil),
		session:  state.NewValue[kanban.User](env, db.KeySession),
		notices:  kanban.NewNotices(cfg.NoticeTTL),
	}

	for _, d := range ws.documents() {
		if err := d.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", d.Key(), err)
		}
	}

	ws.board = kanban.NewBoard(ws.tasks, ws.notices, logger)
	ws.calendar = kanban.NewCalendar(ws.tasks, ws.meetings, logger)
	ws.chat = kanban.NewChat(ws.messages, logger)

	gemini := provider.NewGoogleProvider(provider.GoogleConfig{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
	})
	ws.analyst, err = agents.NewAnalyst(gemini, cfg.AI.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyst: %w", err)
	}
	if !ws.analyst.Available() {
		logger.Warn("No AI key configured, reports are disabled and scores fall back")
	}
	ws.pulse = report.NewPulse(ws.analyst, ws.tasks, ws.history, logger)
	ws.planner = strategy.NewPlanner(ws.tasks, ws.analyst, logger)
	if cfg.EvaluateInterval > 0 {
		ws.planner.Interval = cfg.EvaluateInterval
	}

	ws.auth, err = auth.NewService(seed.Users, seed.Passwords, ws.users, ws.session, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	ws.room = NewRoom(seed.Users, logger)

	ws.syncer = state.NewSyncer(env, ws.reloaders()...)
	ws.background = NewBackground(logger)
	if cfg.DemoRoom {
		ws.background.Register(JobSpeaker, cfg.SpeakerInterval, ws.room.Rotate)
	}
	ws.background.Register(JobResync, cfg.ResyncInterval, ws.Reload)

	logger.Info("Workspace opened",
		"tasks", ws.tasks.Len(),
		"meetings", ws.meetings.Len(),
		"messages", ws.messages.Len(),
		"ai", ws.analyst.Available())
	return ws, nil
}

// Run applies other workspaces' changes and runs background jobs until ctx is done.
func (w *Workspace) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	run, err := w.syncer.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.background.Run(ctx)
	}()

	err = run()
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Reload re-reads every collection and the session from the store.
func (w *Workspace) Reload(ctx context.Context) error {
	var errs []error
	for _, r := range w.documents() {
		if err := r.Reload(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the store and bus when the workspace opened them.
func (w *Workspace) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.logger.Info("Workspace closing")
		if !w.ownsStore {
			return
		}
		err = errors.Join(w.bus.Close(), w.store.Close())
	})
	return err
}

// document is a persisted piece of workspace state.
type document interface {
	state.Reloader
	Load(ctx context.Context) error
}

func (w *Workspace) documents() []document {
	return []document{w.tasks, w.meetings, w.messages, w.history, w.users, w.session}
}

func (w *Workspace) reloaders() []state.Reloader {
	docs := w.documents()
	rs := make([]state.Reloader, len(docs))
	for i, d := range docs {
		rs[i] = d
	}
	return rs
}

// ID returns the workspace id stamped on its broadcast events.
func (w *Workspace) ID() string { return w.id }

// Config returns the configuration the workspace was opened with.
func (w *Workspace) Config() Config { return w.config }

// Bus returns the change bus.
func (w *Workspace) Bus() broadcast.Bus { return w.bus }

func (w *Workspace) Board() *kanban.Board       { return w.board }
func (w *Workspace) Calendar() *kanban.Calendar { return w.calendar }
func (w *Workspace) Chat() *kanban.Chat         { return w.chat }
func (w *Workspace) Notices() *kanban.Notices   { return w.notices }
func (w *Workspace) Pulse() *report.Pulse       { return w.pulse }
func (w *Workspace) Planner() *strategy.Planner { return w.planner }
func (w *Workspace) Analyst() *agents.Analyst   { return w.analyst }
func (w *Workspace) Auth() *auth.Service        { return w.auth }
func (w *Workspace) Room() *Room                { return w.room }
func (w *Workspace) Background() *Background    { return w.background }

// CurrentUser returns the logged-in user or ErrNotLoggedIn.
func (w *Workspace) CurrentUser() (kanban.User, error) {
	u, ok := w.auth.Current()
	if !ok {
		return kanban.User{}, ErrNotLoggedIn
	}
	return u, nil
}

// Dashboard summarizes the logged-in user's work.
func (w *Workspace) Dashboard() (kanban.Summary, error) {
	u, err := w.CurrentUser()
	if err != nil {
		return kanban.Summary{}, err
	}
	return kanban.Summarize(u, w.tasks.Snapshot(), w.meetings.Snapshot(), time.Now()), nil
}
