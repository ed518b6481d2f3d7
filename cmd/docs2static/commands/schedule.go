package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/schedule"
)

// ScheduleCmd implements the 'schedule' command.
type ScheduleCmd struct {
	Every time.Duration `short:"e" help:"Interval between syncs (default from config schedule.interval)"`
	Refs  []string      `arg:"" optional:"" name:"ref" help:"Document URLs or bare ids (default from config)"`
}

func (s *ScheduleCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	s.apply(cfg)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunSchedule(ctx, cfg, root.Config, s.Refs, s.Every, g.logger())
}

func (s *ScheduleCmd) apply(cfg *config.Config) {
	if s.Every > 0 {
		cfg.Schedule.Interval = s.Every
	}
}

// RunSchedule syncs every interval until ctx is done. Changes to the
// configuration file are picked up without restarting; a command line
// interval keeps precedence over the reloaded one.
func RunSchedule(ctx context.Context, cfg *config.Config, configPath string, refs []string, every time.Duration, logger *slog.Logger) error {
	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", cfg.Schedule.Interval)
	}
	sched, err := schedule.New(cfg, func(ctx context.Context, cfg *config.Config) error {
		_, err := RunSync(ctx, cfg, SyncOptions{Refs: refs}, Deps{Logger: logger})
		return err
	}, logger)
	if err != nil {
		return err
	}

	watcher, err := schedule.NewConfigWatcher(configPath, func(next *config.Config) error {
		if every > 0 {
			next.Schedule.Interval = every
		}
		return sched.Reload(next)
	}, logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("Configuration reload disabled", logfields.Error(err))
	}
	defer func() { _ = watcher.Stop() }()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	logger.Info("Scheduler started, waiting for shutdown signal...")
	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping scheduler...")
	if err := sched.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	logger.Info("Scheduler stopped")
	return nil
}
