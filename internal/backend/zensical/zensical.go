// Package zensical configures, builds and publishes Zensical sites.
package zensical

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"git.home.luguber.info/inful/docs2static/internal/backend"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

const (
	// ConfigFile is the project file patched by Configure.
	ConfigFile = "zensical.toml"
	// SiteDir is where `zensical build` renders the site.
	SiteDir = "site"

	defaultDescription = "Documentation générée"
	defaultAuthor      = "Docs2Static"
	copyrightFallback  = "The authors"
)

// Backend drives the zensical command line.
type Backend struct {
	command   []string
	runner    backend.Runner
	publisher backend.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Zensical backend invoking command (e.g. uv run zensical).
func New(command []string, runner backend.Runner, publisher backend.Publisher, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if len(command) == 0 {
		command = []string{"uv", "run", "zensical"}
	}
	return &Backend{command: command, runner: runner, publisher: publisher, logger: logger, now: time.Now}
}

func (b *Backend) Name() string { return "zensical" }

func (b *Backend) RequiresMarkdown() bool { return true }

func (b *Backend) FrontmatterMarkdown() bool { return false }

func (b *Backend) SectionMarkdownFile() string { return "" }

// OutputDir implements backend.Backend.
func (b *Backend) OutputDir(baseDir string) string { return filepath.Join(baseDir, SiteDir) }

// SettingsFor derives the zensical.toml values of site.
func SettingsFor(site backend.Site, year int) Settings {
	s := Settings{
		SiteName:    site.SiteName(),
		Description: site.Description(),
		Author:      site.Author(),
		DocsDir:     path.Clean(site.RootDir),
		RepoURL:     site.ContentURL,
		Logo:        site.LogoFile,
	}
	if s.Description == "" {
		s.Description = defaultDescription
	}
	if s.Author == "" {
		s.Author = defaultAuthor
	}
	holder := site.Author()
	if holder == "" {
		holder = copyrightFallback
	}
	s.Copyright = fmt.Sprintf("Copyright &copy; %d %s", year, holder)
	if license := site.License(); license != "" {
		s.Copyright += " - " + license
	}
	return s
}

// Configure scaffolds the project when zensical.toml is missing, then patches
// it with the site settings.
func (b *Backend) Configure(ctx context.Context, site backend.Site) error {
	file := filepath.Join(site.BaseDir, ConfigFile)
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		if err := b.scaffold(ctx, site.BaseDir); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(file) // #nosec G304 -- project file under the output directory
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryBackend, "zensical project not initialized").
			WithContext("path", file).
			Build()
	}
	patched := Patch(string(data), SettingsFor(site, b.now().Year()))
	var parsed map[string]any
	if err := toml.Unmarshal([]byte(patched), &parsed); err != nil {
		return derrors.WrapError(err, derrors.CategoryBackend, "patched zensical.toml is not valid TOML").
			WithContext("path", file).
			Build()
	}
	if patched == string(data) {
		b.logger.Debug("Zensical configuration already up to date", logfields.Path(file))
		return nil
	}
	if err := os.WriteFile(file, []byte(patched), 0o644); err != nil { // #nosec G306 -- project file must stay readable
		return derrors.WrapError(err, derrors.CategoryFileSystem, "write zensical.toml failed").
			WithContext("path", file).
			Build()
	}
	b.logger.Info("Zensical configured", logfields.Path(file), logfields.Title(site.SiteName()))
	return nil
}

// scaffold runs `zensical new` and removes the sample docs directory it
// creates, the mirrored tree being the documentation source.
func (b *Backend) scaffold(ctx context.Context, dir string) error {
	b.logger.Info("Initializing Zensical project", logfields.Path(dir))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "create project directory failed").
			WithContext("path", dir).
			Build()
	}
	argv := append(append([]string(nil), b.command...), "new", dir)
	if err := b.runner.Run(ctx, "", argv...); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(dir, "docs")); err != nil {
		b.logger.Warn("Failed to remove sample docs directory", logfields.Path(dir), logfields.Error(err))
	}
	return nil
}

// Build runs `zensical build` in baseDir.
func (b *Backend) Build(ctx context.Context, baseDir string) error {
	started := time.Now()
	argv := append(append([]string(nil), b.command...), "build")
	if err := b.runner.Run(ctx, baseDir, argv...); err != nil {
		return err
	}
	if _, err := os.Stat(b.OutputDir(baseDir)); err != nil {
		return derrors.BackendError("zensical build produced no site directory").
			WithContext("path", b.OutputDir(baseDir)).
			Build()
	}
	b.logger.Info("Zensical build finished", logfields.Backend(b.Name()),
		logfields.DurationMS(float64(time.Since(started).Milliseconds())))
	return nil
}

// Deploy publishes the rendered site to repo.
func (b *Backend) Deploy(ctx context.Context, baseDir, repo string) error {
	_, err := b.publisher.Publish(ctx, b.OutputDir(baseDir), repo)
	return err
}
