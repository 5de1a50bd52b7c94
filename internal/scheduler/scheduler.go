// Package scheduler runs the periodic cache sweep and warm jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = 10 * time.Minute

// Job is one scheduled task.
type Job func(ctx context.Context) error

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
}

type entry struct {
	id       cron.EntryID
	schedule string
}

// Scheduler wraps a cron runner with named jobs.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]entry
}

// New creates a scheduler. Each run of a job gets timeout (10m if <= 0).
// Overlapping runs of the same job are skipped.
func New(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		jobs:    make(map[string]entry),
	}
}

// AddJob schedules job under name. schedule is a standard five-field cron
// spec or a descriptor such as "@every 5m".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(schedule, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs[name] = entry{id: id, schedule: schedule}
	slog.Info("scheduler job added", slog.String("job", name), slog.String("schedule", schedule))
	return nil
}

// AddSweepJob drops expired cache entries on schedule. sweep returns the
// number of entries removed.
func (s *Scheduler) AddSweepJob(schedule string, sweep func() int) error {
	return s.AddJob("sweep", schedule, func(context.Context) error {
		if n := sweep(); n > 0 {
			slog.Debug("cache sweep", slog.Int("removed", n))
		}
		return nil
	})
}

// AddWarmJob refreshes the configured topics on schedule.
func (s *Scheduler) AddWarmJob(schedule string, warm Job) error {
	return s.AddJob("warm", schedule, warm)
}

// Start runs jobs in the background and logs when each will first fire.
func (s *Scheduler) Start() {
	slog.Info("scheduler starting")
	s.cron.Start()
	for _, j := range s.ListJobs() {
		slog.Info("scheduler job next run",
			slog.String("job", j.Name),
			slog.String("schedule", j.Schedule),
			slog.Time("next", j.NextRun))
	}
}

// Stop halts scheduling. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	slog.Info("scheduler stopping")
	return s.cron.Stop()
}

// RunNow executes job immediately with the job timeout.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slog.Info("running job now", slog.String("job", name))
	return job(ctx)
}

// ListJobs returns the scheduled jobs ordered by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: e.schedule,
			NextRun:  ce.Next,
			LastRun:  ce.Prev,
		})
	}
	slices.SortFunc(infos, func(a, b JobInfo) int { return strings.Compare(a.Name, b.Name) })
	return infos
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		slog.Warn("scheduler job failed", slog.String("job", name), slog.Any("error", err))
		return
	}
	slog.Debug("scheduler job completed", slog.String("job", name), slog.Duration("took", time.Since(start)))
}
