package kanban

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notice texts shown by the board.
const (
	noticeReadOnly = "Mode lecture seule : modification interdite."
	noticeCreated  = "Nouvelle tâche créée"
	noticeSaved    = "Modifications enregistrées"
	noticeDeleted  = "Tâche supprimée avec succès"
	noticeDenied   = "Action non autorisée pour votre rôle."
)

// Board is the task board controller. It owns every mutation of the task list,
// gates each one on the acting user's role, and appends the audit trail.
type Board struct {
	tasks   List[Task]
	notices *Notices
	logger  *slog.Logger
	now     func() time.Time
}

// NewBoard creates a board over the given task list.
func NewBoard(tasks List[Task], notices *Notices, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		tasks:   tasks,
		notices: notices,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for deadlines and activity timestamps.
func (b *Board) SetClock(now func() time.Time) {
	b.now = now
}

// TaskInput is the "new task" form.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Sector      Sector     `json:"sector,omitempty"`
	Status      TaskStatus `json:"status,omitempty"`
	Deadline    string     `json:"deadline,omitempty"`
	Assignee    *User      `json:"assignee,omitempty"`

	// View is the board sector the form was opened from; it seeds the default sector.
	View Sector `json:"view,omitempty"`
}

// TaskPatch is a merge-patch for EditTask: nil fields keep their current value.
type TaskPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Assignee    *User       `json:"assignee,omitempty"`
	Deadline    *string     `json:"deadline,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
}

// DefaultSector picks the sector of a new task: the user's own sector, else the
// board's current sector, else development when the board is unfiltered.
func DefaultSector(actor User, view Sector) Sector {
	if actor.Sector != "" && actor.Sector != SectorGeneral {
		return actor.Sector
	}
	if view == "" || view == SectorGeneral {
		return SectorDev
	}
	return view
}

// Permissions returns what actor may do on the board.
func (b *Board) Permissions(actor User) Permissions {
	return PermissionsFor(actor)
}

// Task returns a task by id.
func (b *Board) Task(id string) (Task, bool) {
	tasks := b.tasks.Snapshot()
	if i := indexOf(tasks, id, taskID); i >= 0 {
		return tasks[i], true
	}
	return Task{}, false
}

// Tasks returns every task in collection order.
func (b *Board) Tasks() []Task {
	return b.tasks.Snapshot()
}

// View returns the tasks visible when the board is filtered on sector.
func (b *Board) View(sector Sector) []Task {
	return FilterBySector(b.tasks.Snapshot(), sector)
}

// Column is one status lane of the board.
type Column struct {
	Status TaskStatus `json:"status"`
	Tasks  []Task     `json:"tasks"`
}

// Columns groups the visible tasks into one lane per status, in status order.
func (b *Board) Columns(sector Sector) []Column {
	visible := b.View(sector)
	cols := make([]Column, 0, len(Columns()))
	for _, status := range Columns() {
		col := Column{Status: status, Tasks: []Task{}}
		for _, t := range visible {
			if t.Status == status {
				col.Tasks = append(col.Tasks, t)
			}
		}
		cols = append(cols, col)
	}
	return cols
}

// FilterBySector keeps tasks of the given sector; the general sector keeps everything.
func FilterBySector(tasks []Task, sector Sector) []Task {
	if sector == "" || sector == SectorGeneral {
		return tasks
	}
	var result []Task
	for _, t := range tasks {
		if t.Sector == sector {
			result = append(result, t)
		}
	}
	return result
}

// CreateTask adds a task with a single creation activity.
func (b *Board) CreateTask(ctx context.Context, actor User, in TaskInput) (Task, error) {
	if err := b.require(actor, CapCreate, noticeDenied); err != nil {
		return Task{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return Task{}, required("title")
	}
	if in.Assignee == nil || in.Assignee.ID == "" {
		return Task{}, required("assignee")
	}

	status := in.Status
	if status == "" {
		status = StatusTodo
	}
	if !status.Valid() {
		return Task{}, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	sector := in.Sector
	if sector == "" {
		sector = DefaultSector(actor, in.View)
	}
	now := b.now()
	deadline := in.Deadline
	if deadline == "" {
		deadline = now.Format(DateLayout)
	}

	task := Task{
		ID:          newID("t"),
		Title:       in.Title,
		Description: in.Description,
		Sector:      sector,
		Status:      status,
		Deadline:    deadline,
		Assignee:    in.Assignee.Public(),
		History: []TaskActivity{
			b.activity(actor, ActivityCreation, "Tâche créée", now),
		},
	}

	err := b.tasks.Mutate(ctx, func(tasks []Task) ([]Task, error) {
		return append(tasks, task), nil
	})
	if err != nil {
		return Task{}, fmt.Errorf("failed to save new task: %w", err)
	}

	b.logger.Info("Task created", "id", task.ID, "title", task.Title, "by", actor.ID)
	b.notices.Post(NoticeInfo, noticeCreated)
	return task, nil
}

// MoveTask changes a task's status, as a drag between columns does.
func (b *Board) MoveTask(ctx context.Context, actor User, id string, status TaskStatus) (Task, error) {
	if err := b.require(actor, CapEdit, noticeReadOnly); err != nil {
		return Task{}, err
	}
	if !status.Valid() {
		return Task{}, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	now := b.now()
	var moved Task
	err := b.tasks.Mutate(ctx, func(tasks []Task) ([]Task, error) {
		i := indexOf(tasks, id, taskID)
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		t := tasks[i]
		t.Status = status
		t = t.withActivity(b.activity(actor, ActivityStatusChange, statusContent(status), now))
		tasks[i] = t
		moved = t
		return tasks, nil
	})
	if err != nil {
		return Task{}, err
	}

	b.logger.Info("Task moved", "id", id, "status", status, "by", actor.ID)
	return moved, nil
}

// EditTask merges patch into a task and appends one activity per changed group:
// status, then title/description, then assignee.
func (b *Board) EditTask(ctx context.Context, actor User, id string, patch TaskPatch) (Task, error) {
	if err := b.require(actor, CapEdit, noticeReadOnly); err != nil {
		return Task{}, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return Task{}, required("title")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return Task{}, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *patch.Status)}
	}
	if patch.Assignee != nil && patch.Assignee.ID == "" {
		return Task{}, required("assignee")
	}

	now := b.now()
	var edited Task
	err := b.tasks.Mutate(ctx, func(tasks []Task) ([]Task, error) {
		i := indexOf(tasks, id, taskID)
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		prev := tasks[i]
		next := prev

		if patch.Title != nil {
			next.Title = *patch.Title
		}
		if patch.Description != nil {
			next.Description = *patch.Description
		}
		if patch.Assignee != nil {
			next.Assignee = patch.Assignee.Public()
		}
		if patch.Deadline != nil {
			next.Deadline = *patch.Deadline
		}
		if patch.Status != nil {
			next.Status = *patch.Status
		}

		if next.Status != prev.Status {
			next = next.withActivity(b.activity(actor, ActivityStatusChange, statusContent(next.Status), now))
		}
		if next.Title != prev.Title || next.Description != prev.Description {
			next = next.withActivity(b.activity(actor, ActivityEdit, "Détails modifiés", now))
		}
		if next.Assignee.ID != prev.Assignee.ID {
			next = next.withActivity(b.activity(actor, ActivityEdit, "Réassigné à "+next.Assignee.Name, now))
		}

		tasks[i] = next
		edited = next
		return tasks, nil
	})
	if err != nil {
		return Task{}, err
	}

	b.logger.Info("Task edited", "id", id, "by", actor.ID)
	b.notices.Post(NoticeInfo, noticeSaved)
	return edited, nil
}

// AddComment appends a comment activity to a task.
func (b *Board) AddComment(ctx context.Context, actor User, id, text string) (Task, error) {
	if err := b.require(actor, CapEdit, noticeReadOnly); err != nil {
		return Task{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Task{}, required("comment")
	}

	now := b.now()
	var commented Task
	err := b.tasks.Mutate(ctx, func(tasks []Task) ([]Task, error) {
		i := indexOf(tasks, id, taskID)
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		tasks[i] = tasks[i].withActivity(b.activity(actor, ActivityComment, text, now))
		commented = tasks[i]
		return tasks, nil
	})
	if err != nil {
		return Task{}, err
	}
	return commented, nil
}

// DeleteTask removes a task and its whole history. There is no undo.
func (b *Board) DeleteTask(ctx context.Context, actor User, id string) error {
	if err := b.require(actor, CapDelete, noticeDenied); err != nil {
		return err
	}

	err := b.tasks.Mutate(ctx, func(tasks []Task) ([]Task, error) {
		i := indexOf(tasks, id, taskID)
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		return append(tasks[:i:i], tasks[i+1:]...), nil
	})
	if err != nil {
		return err
	}

	b.logger.Info("Task deleted", "id", id, "by", actor.ID)
	b.notices.Post(NoticeInfo, noticeDeleted)
	return nil
}

// Notify acknowledges a nudge to the task's assignee. Nothing is delivered or stored.
func (b *Board) Notify(actor User, id string) (Notice, error) {
	t, ok := b.Task(id)
	if !ok {
		return Notice{}, ErrTaskNotFound
	}
	msg := fmt.Sprintf("Notification envoyée à @%s", t.Assignee.Name)
	b.notices.Post(NoticeInfo, msg)
	b.logger.Debug("Assignee notified", "task", id, "assignee", t.Assignee.ID, "by", actor.ID)
	n, _ := b.notices.Current()
	return n, nil
}

// require rejects the call with a notice when actor lacks capability c.
func (b *Board) require(actor User, c Capability, notice string) error {
	if Can(actor.SystemRole, c) {
		return nil
	}
	b.notices.Post(NoticeWarning, notice)
	b.logger.Warn("Permission denied", "user", actor.ID, "role", actor.SystemRole, "capability", c)
	return &PermissionError{Role: actor.SystemRole, Capability: c}
}

func (b *Board) activity(actor User, kind ActivityType, content string, at time.Time) TaskActivity {
	return TaskActivity{
		ID:        newID("h"),
		UserID:    actor.ID,
		Type:      kind,
		Content:   content,
		Timestamp: at.Format(time.RFC3339),
	}
}

func statusContent(s TaskStatus) string {
	return "Passé en " + string(s)
}

// DateLayout is the calendar date format used by deadlines and meetings.
const DateLayout = "2006-01-02"

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
