package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

// ReloadFunc applies a freshly loaded configuration.
type ReloadFunc func(cfg *config.Config) error

// ConfigWatcher reloads the configuration file when it changes. Bursts of
// events (editors often write, rename and chmod in a row) collapse into one
// reload after the debounce delay.
type ConfigWatcher struct {
	path     string
	apply    ReloadFunc
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

// NewConfigWatcher creates a watcher for path.
func NewConfigWatcher(path string, apply ReloadFunc, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &ConfigWatcher{
		path:     abs,
		apply:    apply,
		logger:   logger,
		fsw:      fsw,
		debounce: 2 * time.Second,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file, so replacing the file is
// seen as well as writing it.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.path)
	if err := cw.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	cw.logger.Info("Watching configuration file", logfields.Path(cw.path))
	go cw.loop(ctx)
	return nil
}

// Stop releases the watcher. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.done)
		err = cw.fsw.Close()
	})
	return err
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	name := filepath.Base(cw.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.done:
			return
		case ev, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				cw.logger.Warn("Configuration file removed, keeping current settings", logfields.Path(ev.Name))
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			cw.logger.Debug("Configuration change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				timer.Reset(cw.debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			if err := cw.reload(); err != nil {
				cw.logger.Error("Configuration reload failed, keeping current settings", logfields.Error(err))
			}
		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Configuration watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reload() error {
	cfg, err := config.Load(cw.path)
	if err != nil {
		return err
	}
	cw.logger.Info("Configuration reloaded", logfields.Path(cw.path))
	return cw.apply(cfg)
}
