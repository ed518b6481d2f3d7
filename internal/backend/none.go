package backend

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

// None mirrors documents without any generator.
type None struct {
	Logger *slog.Logger
}

func (None) Name() string                          { return "none" }
func (None) RequiresMarkdown() bool                { return false }
func (None) FrontmatterMarkdown() bool             { return false }
func (None) SectionMarkdownFile() string           { return "" }
func (None) Configure(context.Context, Site) error { return nil }
func (None) Build(context.Context, string) error   { return nil }
func (None) OutputDir(baseDir string) string       { return baseDir }

// Deploy is a no-op: there is nothing rendered to publish.
func (n None) Deploy(_ context.Context, _, repo string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Deployment requested without a site backend, nothing to publish",
		logfields.Backend("none"), logfields.URL(repo))
	return nil
}
