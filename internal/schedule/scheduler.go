// Package schedule runs syncs periodically and reloads the configuration
// when its file changes.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

// SyncFunc performs one sync with cfg.
type SyncFunc func(ctx context.Context, cfg *config.Config) error

// Scheduler wraps a gocron scheduler running a single periodic sync job.
type Scheduler struct {
	scheduler gocron.Scheduler
	syncFn    SyncFunc
	logger    *slog.Logger

	mu       sync.RWMutex
	cfg      *config.Config
	job      gocron.Job
	ctx      context.Context
	interval time.Duration
}

// New creates a scheduler for cfg. The job is created by Start.
func New(cfg *config.Config, fn SyncFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, syncFn: fn, logger: logger, cfg: cfg}, nil
}

// Config returns the configuration the next run will use.
func (s *Scheduler) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Start schedules the sync job, running it immediately, then every
// schedule.interval. Runs never overlap: a tick falling during a run is
// skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.interval = s.cfg.Schedule.Interval
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.run),
		gocron.WithName("docs2static-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic sync job: %w", err)
	}
	s.job = job
	s.logger.Info("Starting scheduler", slog.Duration("interval", s.interval))
	s.scheduler.Start()
	return nil
}

// Reload swaps the configuration used by later runs and reschedules the job
// when the interval changed.
func (s *Scheduler) Reload(cfg *config.Config) error {
	s.mu.Lock()
	s.cfg = cfg
	job, unchanged := s.job, cfg.Schedule.Interval == s.interval
	s.mu.Unlock()
	if job == nil || unchanged {
		s.logger.Info("Configuration reloaded")
		return nil
	}

	// The scheduler lock is released first: Update must not wait on a run
	// blocked reading the configuration.
	updated, err := s.scheduler.Update(job.ID(),
		gocron.DurationJob(cfg.Schedule.Interval),
		gocron.NewTask(s.run),
		gocron.WithName("docs2static-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule sync job: %w", err)
	}
	s.mu.Lock()
	s.job = updated
	s.interval = cfg.Schedule.Interval
	s.mu.Unlock()
	s.logger.Info("Configuration reloaded, sync rescheduled", slog.Duration("interval", cfg.Schedule.Interval))
	return nil
}

// Stop shuts the scheduler down, waiting for a running sync to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run() {
	s.mu.RLock()
	ctx, cfg := s.ctx, s.cfg
	s.mu.RUnlock()
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	s.logger.Info("Executing scheduled sync")
	if err := s.syncFn(ctx, cfg); err != nil {
		s.logger.Error("Scheduled sync failed", logfields.Error(err),
			logfields.DurationMS(float64(time.Since(started).Milliseconds())))
		return
	}
	s.logger.Info("Scheduled sync finished", logfields.DurationMS(float64(time.Since(started).Milliseconds())))
}
