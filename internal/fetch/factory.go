package fetch

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docs2static/internal/config"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/metrics"
	"git.home.luguber.info/inful/docs2static/internal/retry"
)

// NewFromConfig builds the Client a sync run uses. When noCache is set the
// persistent cache is emptied before the run so every document is
// downloaded again. The returned close function releases the cache.
func NewFromConfig(ctx context.Context, cfg *config.Config, noCache bool, rec metrics.Recorder, logger *slog.Logger) (*Client, func() error, error) {
	opts := Options{
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Throttle:  cfg.API.Throttle,
		Retry:     retry.FromConfig(cfg.Retry),
		Bypass:    cfg.Cache.Refresh,
		Recorder:  rec,
		Logger:    logger,
	}
	closeFn := func() error { return nil }
	if cfg.Cache.Disabled {
		return NewClient(opts), closeFn, nil
	}

	cache, err := NewSQLiteCache(cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, nil, derrors.WrapError(err, derrors.CategoryCache, "failed to open response cache").
			WithContext("path", cfg.Cache.Path).
			Build()
	}
	if noCache {
		if err := cache.Clear(ctx); err != nil {
			_ = cache.Close()
			return nil, nil, derrors.WrapError(err, derrors.CategoryCache, "failed to clear response cache").Build()
		}
		if logger != nil {
			logger.Info("Response cache cleared", "path", cfg.Cache.Path)
		}
	}
	opts.Cache = cache
	return NewClient(opts), cache.Close, nil
}
