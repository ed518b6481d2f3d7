package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docs2static/internal/backend"
	"git.home.luguber.info/inful/docs2static/internal/backend/hugo"
	"git.home.luguber.info/inful/docs2static/internal/backend/zensical"
	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/deploy"
	"git.home.luguber.info/inful/docs2static/internal/docref"
	"git.home.luguber.info/inful/docs2static/internal/events"
	"git.home.luguber.info/inful/docs2static/internal/fetch"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/metrics"
	"git.home.luguber.info/inful/docs2static/internal/processor"
	"git.home.luguber.info/inful/docs2static/internal/storage"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct {
	Refs    []string `arg:"" optional:"" name:"ref" help:"Document URLs (…/docs/<id>/) or bare document ids"`
	Format  string   `short:"f" help:"Download format: html, markdown or both (default from config)"`
	NoCache bool     `name:"no-cache" help:"Empty the response cache and download everything again"`
	Refresh bool     `help:"Ignore cached responses for this run while still refreshing the cache"`
	Backend string   `short:"b" help:"Site backend: none, zensical or hugo (default from config)"`
	Deploy  bool     `short:"d" help:"Build and deploy the already mirrored output instead of downloading"`
	Output  string   `short:"o" help:"Output directory (default from config)"`
}

func (s *SyncCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if err := s.apply(cfg); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	_, err = RunSync(ctx, cfg, SyncOptions{Refs: s.Refs, NoCache: s.NoCache, Deploy: s.Deploy}, Deps{Logger: g.logger()})
	return err
}

// apply layers the command line flags over cfg.
func (s *SyncCmd) apply(cfg *config.Config) error {
	if s.Format != "" {
		cfg.Output.Format = config.ContentFormat(s.Format)
	}
	if s.Backend != "" {
		cfg.Backend.Type = s.Backend
	}
	if s.Output != "" {
		cfg.Output.Directory = s.Output
	}
	if s.Refresh {
		cfg.Cache.Refresh = true
	}
	return cfg.Validate()
}

// SyncOptions select what one sync does.
type SyncOptions struct {
	Refs    []string
	NoCache bool
	// Deploy reuses the mirrored output, then builds and publishes it.
	Deploy bool
}

// Deps are the collaborators of a sync. Zero values select the real ones.
type Deps struct {
	Runner    backend.Runner
	Publisher backend.Publisher
	Events    events.Publisher
	Logger    *slog.Logger
}

// Report summarizes a sync.
type Report struct {
	RunID   string
	Roots   []processor.Root
	Backend string
	// PagesURL is set after a successful deployment.
	PagesURL string
}

// RunSync mirrors the references (or reuses the output in deploy mode) and
// hands the first root to the configured backend.
func RunSync(ctx context.Context, cfg *config.Config, opts SyncOptions, deps Deps) (*Report, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := &pagesRecorder{Publisher: deps.Publisher}
	if pub.Publisher == nil {
		pub.Publisher = deploy.New(deploy.Options{
			Branch:      cfg.Backend.Branch,
			AuthorName:  cfg.Backend.AuthorName,
			AuthorEmail: cfg.Backend.AuthorEmail,
			SSHKeyPath:  cfg.Backend.SSHKeyPath,
		}, logger)
	}
	be, err := NewBackend(cfg, deps.Runner, pub, logger)
	if err != nil {
		return nil, err
	}

	format := cfg.Output.Format
	if be.RequiresMarkdown() && !format.WantsMarkdown() {
		logger.Warn("Backend reads Markdown only, overriding format",
			logfields.Backend(be.Name()), logfields.Format(string(format)))
		format = config.FormatMarkdown
	}

	rec, flush := newRecorder(cfg, logger)
	defer flush()

	store, err := storage.NewFSStore(cfg.Output.Directory)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to prepare output directory").
			WithContext("path", cfg.Output.Directory).
			Build()
	}

	report := &Report{Backend: be.Name()}
	if opts.Deploy {
		report.Roots, err = processor.Reuse(ctx, store, logger)
		if err != nil {
			return nil, err
		}
	} else {
		refs, err := ParseReferences(cfg, opts.Refs, logger)
		if err != nil {
			return nil, err
		}
		client, closeCache, err := fetch.NewFromConfig(ctx, cfg, opts.NoCache, rec, logger)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := closeCache(); err != nil {
				logger.Warn("Failed to close response cache", logfields.Error(err))
			}
		}()

		ev := deps.Events
		if ev == nil {
			ev = newEventPublisher(cfg, logger)
			defer func() { _ = ev.Close() }()
		}

		proc := processor.New(client, store, rec, ev, logger, processor.Options{
			Format:              format,
			FrontmatterMarkdown: be.FrontmatterMarkdown(),
			SectionMarkdownFile: be.SectionMarkdownFile(),
			PathSegmentLength:   cfg.API.PathSegmentLength,
		})
		report.RunID = proc.RunID()
		result, err := proc.Run(ctx, refs)
		if err != nil {
			return nil, err
		}
		report.Roots = result.Roots
	}

	if err := runBackend(ctx, be, cfg, report.Roots, opts.Deploy, logger); err != nil {
		return report, err
	}
	report.PagesURL = pub.url
	return report, nil
}

// runBackend configures the backend from the first root; in deploy mode the
// site is then built and published.
func runBackend(ctx context.Context, be backend.Backend, cfg *config.Config, roots []processor.Root, deployMode bool, logger *slog.Logger) error {
	if be.Name() == "none" {
		if deployMode {
			return be.Deploy(ctx, cfg.Output.Directory, cfg.Backend.GitHubRepo)
		}
		return nil
	}
	if len(roots) == 0 {
		logger.Warn("Nothing mirrored, backend not configured", logfields.Backend(be.Name()))
		return nil
	}
	if len(roots) > 1 {
		logger.Warn("Several roots mirrored, the site is configured from the first one",
			logfields.Backend(be.Name()), logfields.Count(len(roots)), logfields.Path(roots[0].Dir))
	}
	first := roots[0]
	site := backend.Site{
		BaseDir:    cfg.Output.Directory,
		RootDir:    first.Dir,
		Metadata:   first.Metadata,
		Title:      first.Title,
		ContentURL: first.ContentURL,
		Tree:       first.Tree,
		LogoFile:   first.LogoFile(),
	}
	if err := be.Configure(ctx, site); err != nil {
		return err
	}
	if !deployMode {
		return nil
	}
	if err := be.Build(ctx, cfg.Output.Directory); err != nil {
		return err
	}
	return be.Deploy(ctx, cfg.Output.Directory, cfg.Backend.GitHubRepo)
}

// NewBackend selects the site backend named by backend.type.
func NewBackend(cfg *config.Config, runner backend.Runner, pub backend.Publisher, logger *slog.Logger) (backend.Backend, error) {
	if runner == nil {
		runner = backend.ExecRunner{Logger: logger}
	}
	switch cfg.Backend.Type {
	case "", config.BackendNone:
		return backend.None{Logger: logger}, nil
	case config.BackendZensical:
		return zensical.New(cfg.Backend.Zensical, runner, pub, logger), nil
	case config.BackendHugo:
		return hugo.New(cfg.Backend.Hugo, runner, pub, logger), nil
	default:
		return nil, derrors.ValidationError("unsupported backend").WithContext("value", cfg.Backend.Type).Build()
	}
}

// ParseReferences resolves refs, falling back to the configured references
// and then to DefaultReference. Unrecognized references are logged and
// skipped; it fails only when none is usable.
func ParseReferences(cfg *config.Config, refs []string, logger *slog.Logger) ([]docref.Reference, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(refs) == 0 {
		refs = cfg.References
	}
	if len(refs) == 0 {
		logger.Info("No reference given, mirroring the example document", logfields.URL(DefaultReference))
		refs = []string{DefaultReference}
	}
	resolver := docref.NewResolver(cfg.API.DefaultBase)
	var (
		out     []docref.Reference
		lastErr error
	)
	for _, raw := range refs {
		ref, err := resolver.Parse(raw)
		if err != nil {
			logger.Error("Skipping reference", slog.String("ref", raw), logfields.Error(err))
			lastErr = err
			continue
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

// newRecorder returns a Prometheus recorder flushed to metrics.textfile when
// one is configured.
func newRecorder(cfg *config.Config, logger *slog.Logger) (metrics.Recorder, func()) {
	if cfg.Metrics.Textfile == "" {
		return metrics.NoopRecorder{}, func() {}
	}
	rec := metrics.NewPrometheusRecorder(nil)
	return rec, func() {
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("Failed to write metrics textfile", logfields.Path(cfg.Metrics.Textfile), logfields.Error(err))
		}
	}
}

// newEventPublisher connects to NATS when events.nats_url is set. An
// unreachable server only disables events.
func newEventPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.Events.NATSURL == "" {
		return events.Noop{}
	}
	pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
	if err != nil {
		logger.Warn("Event publishing disabled", logfields.URL(cfg.Events.NATSURL), logfields.Error(err))
		return events.Noop{}
	}
	return pub
}

// pagesRecorder keeps the URL returned by the wrapped publisher.
type pagesRecorder struct {
	backend.Publisher
	url string
}

func (p *pagesRecorder) Publish(ctx context.Context, dir, repo string) (string, error) {
	url, err := p.Publisher.Publish(ctx, dir, repo)
	if err == nil {
		p.url = url
	}
	return url, err
}
