package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/fetch"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

// CacheCmd groups response cache commands.
type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Drop every cached response"`
}

// CacheClearCmd implements 'cache clear'.
type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return ClearCache(context.Background(), cfg, g.logger())
}

// ClearCache empties the response cache configured in cfg.
func ClearCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Cache.Disabled {
		logger.Info("Response cache disabled, nothing to clear")
		return nil
	}
	cache, err := fetch.NewSQLiteCache(cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryCache, "failed to open response cache").
			WithContext("path", cfg.Cache.Path).
			Build()
	}
	defer func() { _ = cache.Close() }()
	if err := cache.Clear(ctx); err != nil {
		return derrors.WrapError(err, derrors.CategoryCache, "failed to clear response cache").Build()
	}
	logger.Info("Response cache cleared", logfields.Path(cfg.Cache.Path))
	return nil
}
