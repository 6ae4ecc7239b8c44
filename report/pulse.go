// Package report runs the on-demand AI project report and keeps its history.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/madhatter5501/WorkOS/kanban"
)

var (
	// ErrBusy is returned when a report is requested while one is already running.
	ErrBusy = errors.New("a report is already being generated")

	// ErrNoReport is returned by Select for an index outside the history.
	ErrNoReport = errors.New("no such report")
)

// Analyzer produces a project report from tasks.
type Analyzer interface {
	AnalyzeProjectProgress(ctx context.Context, tasks []kanban.Task) (kanban.AIAnalysisResult, error)
}

// TaskSource supplies the tasks a report covers.
type TaskSource interface {
	Snapshot() []kanban.Task
}

// State is what the report panel shows.
type State struct {
	Loading bool                         `json:"loading"`
	Current *kanban.AIAnalysisResult     `json:"current,omitempty"`
	Error   string                       `json:"error,omitempty"`
	History []kanban.AnalysisHistoryItem `json:"history"`
}

// Pulse generates reports one at a time. The shown report and the last error are
// local to this workspace; the history is shared through the store.
type Pulse struct {
	analyzer Analyzer
	tasks    TaskSource
	history  kanban.List[kanban.AnalysisHistoryItem]
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	loading bool
	current *kanban.AIAnalysisResult
	lastErr error
}

// NewPulse creates a report runner.
func NewPulse(analyzer Analyzer, tasks TaskSource, history kanban.List[kanban.AnalysisHistoryItem], logger *slog.Logger) *Pulse {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pulse{
		analyzer: analyzer,
		tasks:    tasks,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source used to date reports.
func (p *Pulse) SetClock(now func() time.Time) {
	p.now = now
}

// Generate runs a report over every task. A call made while another is running
// returns ErrBusy at once. On success the report becomes current and is
// prepended to the history; on failure the error is kept for display.
func (p *Pulse) Generate(ctx context.Context) (kanban.AIAnalysisResult, error) {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return kanban.AIAnalysisResult{}, ErrBusy
	}
	p.loading = true
	p.lastErr = nil
	p.mu.Unlock()

	tasks := p.tasks.Snapshot()
	result, err := p.analyzer.AnalyzeProjectProgress(ctx, tasks)

	p.mu.Lock()
	p.loading = false
	if err != nil {
		p.lastErr = err
		p.mu.Unlock()
		return kanban.AIAnalysisResult{}, err
	}
	p.current = &result
	p.mu.Unlock()

	item := kanban.AnalysisHistoryItem{AIAnalysisResult: result, Date: p.now().UTC().Format(time.RFC3339)}
	err = p.history.Mutate(ctx, func(items []kanban.AnalysisHistoryItem) ([]kanban.AnalysisHistoryItem, error) {
		return append([]kanban.AnalysisHistoryItem{item}, items...), nil
	})
	if err != nil {
		p.logger.Warn("Failed to save report history", "error", err)
	}

	p.logger.Info("Report generated", "tasks", len(tasks), "kpis", len(result.KPIs))
	return result, nil
}

// Retry re-issues Generate after a failure.
func (p *Pulse) Retry(ctx context.Context) (kanban.AIAnalysisResult, error) {
	return p.Generate(ctx)
}

// Select shows history entry i without calling the AI or reordering the history.
func (p *Pulse) Select(i int) (kanban.AnalysisHistoryItem, error) {
	history := p.history.Snapshot()
	if i < 0 || i >= len(history) {
		return kanban.AnalysisHistoryItem{}, fmt.Errorf("%w: %d", ErrNoReport, i)
	}
	item := history[i]

	p.mu.Lock()
	result := item.AIAnalysisResult
	p.current = &result
	p.lastErr = nil
	p.mu.Unlock()
	return item, nil
}

// State returns a copy of the panel state.
func (p *Pulse) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := State{Loading: p.loading, History: p.history.Snapshot()}
	if p.current != nil {
		current := *p.current
		s.Current = &current
	}
	if p.lastErr != nil {
		s.Error = p.lastErr.Error()
	}
	return s
}

// Err returns the error of the last failed generation, if it is still shown.
func (p *Pulse) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
