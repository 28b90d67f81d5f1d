// Package background runs the periodic housekeeping jobs.
package background

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job removes expired state and reports how many entries it removed.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// CleanupObserver is told how much each job removed.
type CleanupObserver interface {
	CleanupRemoved(job string, n int64)
}

// CleanupManager runs every registered job on a cron schedule.
type CleanupManager struct {
	jobs     []Job
	schedule string
	timeout  time.Duration
	observer CleanupObserver
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewCleanupManager creates a cleanup manager. schedule accepts the six-field form with
// seconds; a five-field expression runs at second zero.
func NewCleanupManager(schedule string, observer CleanupObserver, logger *slog.Logger, jobs ...Job) *CleanupManager {
	if schedule == "" {
		schedule = "0 */15 * * * *"
	}
	if len(strings.Fields(schedule)) == 5 {
		schedule = "0 " + schedule
	}
	return &CleanupManager{
		jobs:     jobs,
		schedule: schedule,
		timeout:  30 * time.Second,
		observer: observer,
		logger:   logger,
	}
}

// Start schedules the jobs and runs them once immediately.
func (cm *CleanupManager) Start(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.running {
		return nil
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cm.schedule, func() { cm.RunOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	cm.running = true

	cm.logger.Info("cleanup manager started",
		slog.String("schedule", cm.schedule),
		slog.Int("jobs", len(cm.jobs)),
	)
	go cm.RunOnce(ctx)
	return nil
}

// RunOnce runs every job in order. A failing job does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	for _, job := range cm.jobs {
		if ctx.Err() != nil {
			return
		}
		cm.run(ctx, job)
	}
}

func (cm *CleanupManager) run(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, cm.timeout)
	defer cancel()

	removed, err := job.Run(jobCtx)
	if err != nil {
		cm.logger.Error("cleanup job failed", slog.String("job", job.Name), slog.Any("error", err))
		return
	}
	if cm.observer != nil {
		cm.observer.CleanupRemoved(job.Name, removed)
	}
	if removed > 0 {
		cm.logger.Info("cleanup job completed", slog.String("job", job.Name), slog.Int64("rows_deleted", removed))
	}
}

// Stop stops the schedule and waits for a running pass to finish.
func (cm *CleanupManager) Stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if !cm.running {
		return
	}
	<-cm.cron.Stop().Done()
	cm.running = false
	cm.logger.Info("cleanup manager stopped")
}

// CountJob adapts an in-memory sweep that reports an int.
func CountJob(name string, sweep func() int) Job {
	return Job{Name: name, Run: func(context.Context) (int64, error) {
		return int64(sweep()), nil
	}}
}
