package workos

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// JobName identifies a periodic background job.
type JobName string

const (
	JobSpeaker JobName = "speaker" // Demo room speaker rotation
	JobResync  JobName = "resync"  // Full reload from the store
)

// JobStatus is the current state of a background job.
type JobStatus struct {
	Name            JobName   `json:"name"`
	Status          string    `json:"status"` // "Idle", "Running", "Error", "Stopped"
	CurrentActivity string    `json:"currentActivity"`
	LastActiveAt    time.Time `json:"lastActiveAt"`
	CycleCount      int       `json:"cycleCount"`
}

// Background runs periodic jobs until its context ends.
type Background struct {
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[JobName]*backgroundJob
}

type backgroundJob struct {
	name     JobName
	interval time.Duration
	runFunc  func(context.Context) error

	mu     sync.RWMutex
	status JobStatus
}

// NewBackground creates an empty job manager.
func NewBackground(logger *slog.Logger) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	return &Background{
		logger: logger,
		jobs:   make(map[JobName]*backgroundJob),
	}
}

// Register adds a job. Jobs with a non-positive interval are skipped.
func (b *Background) Register(name JobName, interval time.Duration, runFunc func(context.Context) error) {
	if interval <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[name] = &backgroundJob{
		name:     name,
		interval: interval,
		runFunc:  runFunc,
		status: JobStatus{
			Name:            name,
			Status:          "Idle",
			CurrentActivity: "Waiting to start",
			LastActiveAt:    time.Now(),
		},
	}
}

// Run starts every job and blocks until ctx is done and all jobs have stopped.
func (b *Background) Run(ctx context.Context) {
	b.mu.RLock()
	jobs := make([]*backgroundJob, 0, len(b.jobs))
	for _, job := range b.jobs {
		jobs = append(jobs, job)
	}
	b.mu.RUnlock()

	b.logger.Info("Starting background jobs", "count", len(jobs))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.runLoop(ctx, job)
		}()
	}
	wg.Wait()
}

// Statuses returns the status of every job, sorted by name.
func (b *Background) Statuses() []JobStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(b.jobs))
	for _, job := range b.jobs {
		job.mu.RLock()
		statuses = append(statuses, job.status)
		job.mu.RUnlock()
	}
	slices.SortFunc(statuses, func(a, b JobStatus) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return statuses
}

func (b *Background) runLoop(ctx context.Context, job *backgroundJob) {
	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			job.update("Stopped", "Context cancelled")
			return
		case <-ticker.C:
			b.runCycle(ctx, job)
		}
	}
}

func (b *Background) runCycle(ctx context.Context, job *backgroundJob) {
	job.update("Running", "Starting cycle")

	if err := job.runFunc(ctx); err != nil {
		b.logger.Error("Background job failed", "job", job.name, "error", err)
		job.update("Error", err.Error())
		return
	}

	job.mu.Lock()
	job.status.CycleCount++
	job.mu.Unlock()

	job.update("Idle", "Waiting for next cycle")
}

func (j *backgroundJob) update(status, activity string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.Status = status
	j.status.CurrentActivity = activity
	j.status.LastActiveAt = time.Now()
}
