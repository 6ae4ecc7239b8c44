// Package strategy scores tasks for business impact and effort with the AI and
// ranks them for the strategy view.
package strategy

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/madhatter5501/WorkOS/kanban"
)

// DefaultInterval is the pause between two calls of EvaluateAll.
const DefaultInterval = 500 * time.Millisecond

// HighImpactThreshold is the minimum impact score of the high-impact filter.
const HighImpactThreshold = 80

var (
	// ErrPending is returned when a task is already being scored.
	ErrPending = errors.New("task evaluation already in progress")

	// ErrUnavailable is returned when no AI credential is configured. Tasks are
	// left unscored so a later run, with a key, still picks them up.
	ErrUnavailable = errors.New("clé API (GOOGLE_API_KEY ou API_KEY) manquante")
)

// Evaluator scores a single task. Scoring never fails once a credential is
// configured; call or parse problems yield kanban.FallbackScore.
type Evaluator interface {
	Available() bool
	EvaluateTaskStrategy(ctx context.Context, title, description string) kanban.Score
}

// Filter selects the tasks shown by View.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterActive     Filter = "active"      // To do or in progress
	FilterHighImpact Filter = "high_impact" // Impact of at least HighImpactThreshold
)

// Planner runs strategy scoring over the board's tasks.
type Planner struct {
	tasks     kanban.List[kanban.Task]
	evaluator Evaluator
	logger    *slog.Logger

	// Interval is the pause between calls of EvaluateAll.
	Interval time.Duration

	mu      sync.Mutex
	pending map[string]bool
}

// NewPlanner creates a planner over the shared task list.
func NewPlanner(tasks kanban.List[kanban.Task], evaluator Evaluator, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		tasks:     tasks,
		evaluator: evaluator,
		logger:    logger,
		Interval:  DefaultInterval,
		pending:   make(map[string]bool),
	}
}

// Pending returns the ids of tasks currently being scored.
func (p *Planner) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsPending reports whether task id is being scored.
func (p *Planner) IsPending(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[id]
}

// EvaluateOne scores a task and merges the four score fields into it, leaving
// every other field as it is at merge time.
func (p *Planner) EvaluateOne(ctx context.Context, actor kanban.User, id string) (kanban.Task, error) {
	if !kanban.Can(actor.SystemRole, kanban.CapEdit) {
		return kanban.Task{}, &kanban.PermissionError{Role: actor.SystemRole, Capability: kanban.CapEdit}
	}
	if !p.evaluator.Available() {
		return kanban.Task{}, ErrUnavailable
	}

	task, ok := p.find(id)
	if !ok {
		return kanban.Task{}, kanban.ErrTaskNotFound
	}
	if !p.begin(id) {
		return kanban.Task{}, ErrPending
	}
	defer p.end(id)

	score := p.evaluator.EvaluateTaskStrategy(ctx, task.Title, task.Description)

	var scored kanban.Task
	err := p.tasks.Mutate(ctx, func(tasks []kanban.Task) ([]kanban.Task, error) {
		for i := range tasks {
			if tasks[i].ID == id {
				tasks[i] = score.Apply(tasks[i])
				scored = tasks[i]
				return tasks, nil
			}
		}
		// Deleted while the AI was working
		return nil, kanban.ErrTaskNotFound
	})
	if err != nil {
		return kanban.Task{}, err
	}

	p.logger.Info("Task evaluated", "id", id, "impact", score.ImpactScore, "effort", score.EffortScore, "theme", score.StrategicTheme)
	return scored, nil
}

// EvaluateAll scores, one after the other, every task without a non-zero impact
// score, pausing Interval between calls. It stops early when ctx is done and
// returns how many tasks were scored.
func (p *Planner) EvaluateAll(ctx context.Context, actor kanban.User) (int, error) {
	if !kanban.Can(actor.SystemRole, kanban.CapEdit) {
		return 0, &kanban.PermissionError{Role: actor.SystemRole, Capability: kanban.CapEdit}
	}
	if !p.evaluator.Available() {
		return 0, ErrUnavailable
	}

	var todo []string
	for _, t := range p.tasks.Snapshot() {
		if !t.Scored() {
			todo = append(todo, t.ID)
		}
	}
	p.logger.Info("Evaluating unscored tasks", "count", len(todo))

	done := 0
	for i, id := range todo {
		if i > 0 && p.Interval > 0 {
			timer := time.NewTimer(p.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return done, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return done, err
		}

		_, err := p.EvaluateOne(ctx, actor, id)
		switch {
		case err == nil:
			done++
		case errors.Is(err, kanban.ErrTaskNotFound), errors.Is(err, ErrPending):
			p.logger.Debug("Skipping task", "id", id, "reason", err)
		default:
			return done, err
		}
	}
	return done, nil
}

// View returns the tasks matching filter, highest impact first. Unscored tasks
// count as zero.
func (p *Planner) View(filter Filter) []kanban.Task {
	var result []kanban.Task
	for _, t := range p.tasks.Snapshot() {
		switch filter {
		case FilterActive:
			if t.Status != kanban.StatusTodo && t.Status != kanban.StatusInProgress {
				continue
			}
		case FilterHighImpact:
			if t.Impact() < HighImpactThreshold {
				continue
			}
		}
		result = append(result, t)
	}
	slices.SortStableFunc(result, func(a, b kanban.Task) int {
		return cmp.Compare(b.Impact(), a.Impact())
	})
	return result
}

func (p *Planner) find(id string) (kanban.Task, bool) {
	for _, t := range p.tasks.Snapshot() {
		if t.ID == id {
			return t, true
		}
	}
	return kanban.Task{}, false
}

func (p *Planner) begin(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[id] {
		return false
	}
	p.pending[id] = true
	return true
}

func (p *Planner) end(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, id)
}
