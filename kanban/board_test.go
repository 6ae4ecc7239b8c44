package kanban

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"
)

// memList is an in-memory List used by the controller tests.
type memList[T any] struct {
	mu      sync.Mutex
	items   []T
	saves   int
	saveErr error
}

func newMemList[T any](items ...T) *memList[T] {
	return &memList[T]{items: items}
}

func (l *memList[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

func (l *memList[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, err := fn(slices.Clone(l.items))
	if err != nil {
		return err
	}
	l.items = next
	l.saves++
	return l.saveErr
}

var (
	admin   = User{ID: "u1", Name: "Kiki", SystemRole: RoleAdmin}
	member  = User{ID: "u2", Name: "Stéphane", SystemRole: RoleMember, Sector: SectorDev}
	visitor = User{ID: "u4", Name: "Bob", SystemRole: RoleVisitor}
	alice   = User{ID: "u3", Name: "Alice", SystemRole: RoleMember, Sector: SectorDesign, PasswordHash: "secret"}
)

var fixedNow = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.Local)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBoard(tasks ...Task) (*Board, *memList[Task], *Notices) {
	list := newMemList(tasks...)
	notices := NewNotices(time.Minute)
	b := NewBoard(list, notices, testLogger())
	b.SetClock(func() time.Time { return fixedNow })
	return b, list, notices
}

func sampleTask() Task {
	return Task{
		ID:       "t1",
		Title:    "Maquette",
		Assignee: alice.Public(),
		Deadline: "2026-10-20",
		Status:   StatusTodo,
		Sector:   SectorDesign,
		History:  []TaskActivity{{ID: "h1", UserID: "u1", Type: ActivityCreation, Content: "Tâche créée"}},
	}
}

func TestCreateTask(t *testing.T) {
	b, list, notices := newTestBoard()
	ctx := context.Background()

	task, err := b.CreateTask(ctx, member, TaskInput{Title: "API", Assignee: &alice})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.Status != StatusTodo {
		t.Errorf("expected status %q, got %q", StatusTodo, task.Status)
	}
	if task.Sector != SectorDev {
		t.Errorf("expected actor sector %q, got %q", SectorDev, task.Sector)
	}
	if task.Deadline != "2026-10-19" {
		t.Errorf("expected deadline today, got %q", task.Deadline)
	}
	if task.Assignee.PasswordHash != "" {
		t.Error("assignee snapshot must not carry credentials")
	}
	if len(task.History) != 1 || task.History[0].Type != ActivityCreation || task.History[0].Content != "Tâche créée" {
		t.Errorf("expected single creation activity, got %+v", task.History)
	}
	if task.History[0].UserID != member.ID {
		t.Errorf("expected activity by %s, got %s", member.ID, task.History[0].UserID)
	}
	if got := list.Snapshot(); len(got) != 1 || got[0].ID != task.ID {
		t.Errorf("expected task to be stored, got %+v", got)
	}
	if n, ok := notices.Current(); !ok || n.Message != "Nouvelle tâche créée" {
		t.Errorf("expected creation notice, got %+v", n)
	}
}

func TestCreateTaskRejectsVisitor(t *testing.T) {
	b, list, notices := newTestBoard()

	_, err := b.CreateTask(context.Background(), visitor, TaskInput{Title: "API", Assignee: &alice})
	if !IsPermission(err) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if list.saves != 0 {
		t.Error("rejected create must not touch the list")
	}
	if n, ok := notices.Current(); !ok || n.Level != NoticeWarning {
		t.Errorf("expected warning notice, got %+v", n)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	tests := []struct {
		name  string
		input TaskInput
		field string
	}{
		{"missing title", TaskInput{Title: "  ", Assignee: &alice}, "title"},
		{"missing assignee", TaskInput{Title: "API"}, "assignee"},
		{"unknown status", TaskInput{Title: "API", Assignee: &alice, Status: "Bloqué"}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, list, _ := newTestBoard()
			_, err := b.CreateTask(context.Background(), admin, tt.input)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
			if list.saves != 0 {
				t.Error("invalid create must not touch the list")
			}
		})
	}
}

func TestDefaultSector(t *testing.T) {
	tests := []struct {
		name  string
		actor User
		view  Sector
		want  Sector
	}{
		{"actor sector wins", member, SectorMarketing, SectorDev},
		{"view sector", admin, SectorMarketing, SectorMarketing},
		{"general view", admin, SectorGeneral, SectorDev},
		{"no view", admin, "", SectorDev},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultSector(tt.actor, tt.view); got != tt.want {
				t.Errorf("DefaultSector() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMoveTask(t *testing.T) {
	b, _, _ := newTestBoard(sampleTask())

	moved, err := b.MoveTask(context.Background(), member, "t1", StatusInProgress)
	if err != nil {
		t.Fatalf("MoveTask failed: %v", err)
	}
	if moved.Status != StatusInProgress {
		t.Errorf("expected %q, got %q", StatusInProgress, moved.Status)
	}
	last, _ := moved.LastActivity()
	if last.Type != ActivityStatusChange || last.Content != "Passé en En cours" {
		t.Errorf("unexpected activity %+v", last)
	}
	if len(moved.History) != 2 {
		t.Errorf("expected 2 activities, got %d", len(moved.History))
	}
}

func TestMoveTaskVisitorIsReadOnly(t *testing.T) {
	b, list, notices := newTestBoard(sampleTask())

	_, err := b.MoveTask(context.Background(), visitor, "t1", StatusDone)
	if !IsPermission(err) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if got := list.Snapshot()[0]; got.Status != StatusTodo || len(got.History) != 1 {
		t.Errorf("task must be unchanged, got %+v", got)
	}
	n, _ := notices.Current()
	if n.Message != "Mode lecture seule : modification interdite." {
		t.Errorf("unexpected notice %q", n.Message)
	}
}

func TestMoveTaskUnknown(t *testing.T) {
	b, _, _ := newTestBoard(sampleTask())
	if _, err := b.MoveTask(context.Background(), admin, "nope", StatusDone); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestEditTask(t *testing.T) {
	str := func(s string) *string { return &s }
	done := StatusDone

	tests := []struct {
		name     string
		patch    TaskPatch
		contents []string
	}{
		{"no change", TaskPatch{Title: str("Maquette")}, nil},
		{"title", TaskPatch{Title: str("Maquette v2")}, []string{"Détails modifiés"}},
		{"description", TaskPatch{Description: str("plus de flou")}, []string{"Détails modifiés"}},
		{"deadline only", TaskPatch{Deadline: str("2026-11-01")}, nil},
		{"reassign", TaskPatch{Assignee: &member}, []string{"Réassigné à Stéphane"}},
		{
			"all groups in order",
			TaskPatch{Status: &done, Title: str("Final"), Assignee: &admin},
			[]string{"Passé en Terminé", "Détails modifiés", "Réassigné à Kiki"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, notices := newTestBoard(sampleTask())
			edited, err := b.EditTask(context.Background(), member, "t1", tt.patch)
			if err != nil {
				t.Fatalf("EditTask failed: %v", err)
			}

			added := edited.History[1:]
			if len(added) != len(tt.contents) {
				t.Fatalf("expected %d activities, got %+v", len(tt.contents), added)
			}
			for i, want := range tt.contents {
				if added[i].Content != want {
					t.Errorf("activity %d = %q, want %q", i, added[i].Content, want)
				}
			}
			if n, _ := notices.Current(); n.Message != "Modifications enregistrées" {
				t.Errorf("unexpected notice %q", n.Message)
			}
		})
	}
}

func TestTaskLifecycleHistory(t *testing.T) {
	b, _, _ := newTestBoard()
	ctx := context.Background()
	bob := visitor.Public()

	task, err := b.CreateTask(ctx, member, TaskInput{Title: "Spec API", Assignee: &bob, Sector: SectorDev})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := b.MoveTask(ctx, member, task.ID, StatusInProgress); err != nil {
		t.Fatalf("MoveTask failed: %v", err)
	}
	desc := "Endpoints REST"
	final, err := b.EditTask(ctx, member, task.ID, TaskPatch{Description: &desc})
	if err != nil {
		t.Fatalf("EditTask failed: %v", err)
	}

	var types []ActivityType
	for _, a := range final.History {
		types = append(types, a.Type)
	}
	want := []ActivityType{ActivityCreation, ActivityStatusChange, ActivityEdit}
	if !slices.Equal(types, want) {
		t.Errorf("history = %v, want %v", types, want)
	}
	if final.Status != StatusInProgress {
		t.Errorf("expected %q, got %q", StatusInProgress, final.Status)
	}
}

func TestEditTaskKeepsUnpatchedFields(t *testing.T) {
	b, _, _ := newTestBoard(sampleTask())
	deadline := "2026-12-24"

	edited, err := b.EditTask(context.Background(), admin, "t1", TaskPatch{Deadline: &deadline})
	if err != nil {
		t.Fatalf("EditTask failed: %v", err)
	}
	if edited.Deadline != deadline {
		t.Errorf("expected deadline %q, got %q", deadline, edited.Deadline)
	}
	if edited.Title != "Maquette" || edited.Assignee.ID != alice.ID || edited.Status != StatusTodo {
		t.Errorf("unpatched fields changed: %+v", edited)
	}
}

func TestEditTaskRejectsEmptyTitle(t *testing.T) {
	b, list, _ := newTestBoard(sampleTask())
	empty := ""
	if _, err := b.EditTask(context.Background(), admin, "t1", TaskPatch{Title: &empty}); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if list.saves != 0 {
		t.Error("invalid edit must not touch the list")
	}
}

func TestDeleteTask(t *testing.T) {
	tests := []struct {
		name    string
		actor   User
		allowed bool
	}{
		{"admin", admin, true},
		{"member", member, false},
		{"visitor", visitor, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, list, _ := newTestBoard(sampleTask(), FallbackScore.Apply(Task{ID: "t2", Title: "Audit"}))
			before, _ := json.Marshal(list.Snapshot())
			err := b.DeleteTask(context.Background(), tt.actor, "t1")
			if tt.allowed {
				if err != nil {
					t.Fatalf("DeleteTask failed: %v", err)
				}
				for _, task := range list.Snapshot() {
					if task.ID == "t1" {
						t.Error("expected task to be removed")
					}
				}
				return
			}
			if !IsPermission(err) {
				t.Fatalf("expected PermissionError, got %v", err)
			}
			after, _ := json.Marshal(list.Snapshot())
			if !bytes.Equal(before, after) {
				t.Errorf("rejected delete changed the collection:\nbefore %s\nafter  %s", before, after)
			}
		})
	}
}

func TestAddComment(t *testing.T) {
	b, _, _ := newTestBoard(sampleTask())

	got, err := b.AddComment(context.Background(), member, "t1", "  prêt pour revue ")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	last, _ := got.LastActivity()
	if last.Type != ActivityComment || last.Content != "prêt pour revue" {
		t.Errorf("unexpected activity %+v", last)
	}

	if _, err := b.AddComment(context.Background(), visitor, "t1", "hello"); !IsPermission(err) {
		t.Errorf("expected PermissionError for visitor, got %v", err)
	}
}

func TestNotify(t *testing.T) {
	b, list, _ := newTestBoard(sampleTask())

	n, err := b.Notify(visitor, "t1")
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n.Message != "Notification envoyée à @Alice" {
		t.Errorf("unexpected notice %q", n.Message)
	}
	if list.saves != 0 {
		t.Error("notify must not mutate tasks")
	}
}

func TestColumns(t *testing.T) {
	dev := sampleTask()
	dev.ID, dev.Sector, dev.Status = "t2", SectorDev, StatusReview
	b, _, _ := newTestBoard(sampleTask(), dev)

	cols := b.Columns(SectorGeneral)
	if len(cols) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(cols))
	}
	for i, status := range Columns() {
		if cols[i].Status != status {
			t.Errorf("column %d = %q, want %q", i, cols[i].Status, status)
		}
	}
	if len(cols[0].Tasks) != 1 || len(cols[2].Tasks) != 1 {
		t.Errorf("unexpected grouping: %+v", cols)
	}

	if got := b.View(SectorDev); len(got) != 1 || got[0].ID != "t2" {
		t.Errorf("expected only the dev task, got %+v", got)
	}
}

func TestPermissionsMatrix(t *testing.T) {
	tests := []struct {
		role UserRole
		want Permissions
	}{
		{RoleAdmin, Permissions{Create: true, Edit: true, Delete: true}},
		{RoleMember, Permissions{Create: true, Edit: true}},
		{RoleVisitor, Permissions{}},
		{"Intrus", Permissions{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := PermissionsFor(User{SystemRole: tt.role}); got != tt.want {
				t.Errorf("PermissionsFor(%s) = %+v, want %+v", tt.role, got, tt.want)
			}
		})
	}
}
