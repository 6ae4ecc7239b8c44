package workos

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/madhatter5501/WorkOS/internal/broadcast"
	"github.com/madhatter5501/WorkOS/internal/db"
	"github.com/madhatter5501/WorkOS/kanban"
	"github.com/madhatter5501/WorkOS/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Store = StoreConfig{Driver: db.DriverMemory}
	cfg.DemoRoom = false
	cfg.ResyncInterval = 0
	cfg.EvaluateInterval = time.Millisecond
	cfg.AI.APIKey = ""
	return cfg
}

func attach(t *testing.T, cfg Config, store db.Store, bus broadcast.Bus) *Workspace {
	t.Helper()
	ws, err := Attach(context.Background(), cfg, store, bus, testLogger())
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOpenSeedsStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store = StoreConfig{Driver: db.DriverSQLite, DSN: t.TempDir() + "/workos.db"}

	ws, err := Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := len(ws.Board().Tasks()); got != 4 {
		t.Errorf("expected 4 seed tasks, got %d", got)
	}
	if got := len(ws.Calendar().Meetings()); got != 2 {
		t.Errorf("expected 2 seed meetings, got %d", got)
	}
	if _, err := ws.CurrentUser(); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("expected ErrNotLoggedIn, got %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening sees the persisted data, not a fresh seed.
	ws, err = Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer ws.Close()
	if got := len(ws.Board().Tasks()); got != 4 {
		t.Errorf("expected 4 tasks after reopen, got %d", got)
	}
}

func TestWorkspacesShareChanges(t *testing.T) {
	store := db.NewMemoryStore()
	bus := broadcast.NewLocal(testLogger())
	defer bus.Close()

	a := attach(t, testConfig(), store, bus)
	b := attach(t, testConfig(), store, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run returned %v", err)
		}
	}()

	// Give b time to subscribe before a writes.
	time.Sleep(20 * time.Millisecond)

	admin, err := a.Auth().Login(context.Background(), "kiki@oracle.team", "oracle")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	eventually(t, "shared session", func() bool {
		u, err := b.CurrentUser()
		return err == nil && u.ID == admin.ID
	})

	alice, _ := a.Auth().UserByID("u3")
	task, err := a.Board().CreateTask(context.Background(), admin, kanban.TaskInput{
		Title:    "Maquette onboarding",
		Assignee: &alice,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	eventually(t, "task in second workspace", func() bool {
		_, ok := b.Board().Task(task.ID)
		return ok
	})

	if err := a.Auth().Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	eventually(t, "logout in second workspace", func() bool {
		_, err := b.CurrentUser()
		return errors.Is(err, ErrNotLoggedIn)
	})
}

func TestDashboard(t *testing.T) {
	ws := attach(t, testConfig(), db.NewMemoryStore(), broadcast.NewLocal(testLogger()))
	if _, err := ws.Dashboard(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if _, err := ws.Auth().Login(context.Background(), "alice@oracle.team", "oracle"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	summary, err := ws.Dashboard()
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if summary.User.ID != "u3" || summary.Total == 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestReportAndStrategyWithGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		text := `{\"impactScore\": 85, \"effortScore\": 3, \"strategicTheme\": \"Croissance\", \"aiRationale\": \"Fort levier.\"}`
		body := `{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]},"finishReason":"STOP"}]}`
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.AI.APIKey = "secret"
	cfg.AI.BaseURL = server.URL
	ws := attach(t, cfg, db.NewMemoryStore(), broadcast.NewLocal(testLogger()))

	admin, err := ws.Auth().Login(context.Background(), "kiki@oracle.team", "oracle")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	n, err := ws.Planner().EvaluateAll(context.Background(), admin)
	if err != nil {
		t.Fatalf("EvaluateAll failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected every seed task to be scored, got %d", n)
	}
	if got := ws.Planner().View(strategy.FilterHighImpact); len(got) != 4 {
		t.Errorf("expected 4 high impact tasks, got %d", len(got))
	}
	if ws.Analyst().Usage().TotalRequests == 0 {
		t.Error("expected usage to be tracked")
	}
}

func TestReportWithoutKey(t *testing.T) {
	ws := attach(t, testConfig(), db.NewMemoryStore(), broadcast.NewLocal(testLogger()))
	if _, err := ws.Pulse().Generate(context.Background()); err == nil {
		t.Fatal("expected a configuration error without an API key")
	}
	if ws.Pulse().State().Error == "" {
		t.Error("the error should be shown in the report state")
	}
}

func TestStrategyWithoutKeyLeavesTasksUnscored(t *testing.T) {
	ws := attach(t, testConfig(), db.NewMemoryStore(), broadcast.NewLocal(testLogger()))
	admin, err := ws.Auth().Login(context.Background(), "kiki@oracle.team", "oracle")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for range 2 {
		n, err := ws.Planner().EvaluateAll(context.Background(), admin)
		if !errors.Is(err, strategy.ErrUnavailable) || n != 0 {
			t.Fatalf("expected ErrUnavailable, got n=%d err=%v", n, err)
		}
	}
	for _, task := range ws.Board().Tasks() {
		if task.ImpactScore != nil {
			t.Errorf("task %s must stay unscored, got impact %v", task.ID, *task.ImpactScore)
		}
	}
}
