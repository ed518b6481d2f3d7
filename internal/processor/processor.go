// Package processor mirrors Docs document trees into the output store.
//
// Every node goes through the same states: its content is fetched in the
// requested formats, the author metadata block is extracted and merged, draft
// documents are dropped, the node is routed to a directory, its remote assets
// are localized and the files are persisted before the children are visited.
// A failing node abandons its own subtree only.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docs2static/internal/assets"
	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/docref"
	"git.home.luguber.info/inful/docs2static/internal/docsapi"
	"git.home.luguber.info/inful/docs2static/internal/events"
	"git.home.luguber.info/inful/docs2static/internal/fetch"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/manifest"
	"git.home.luguber.info/inful/docs2static/internal/metadata"
	"git.home.luguber.info/inful/docs2static/internal/metrics"
	"git.home.luguber.info/inful/docs2static/internal/storage"
	"git.home.luguber.info/inful/docs2static/internal/tree"
)

const (
	statusPersisted = events.StatusPersisted
	statusUnchanged = events.StatusUnchanged
	statusSkipped   = events.StatusSkipped
	statusFailed    = events.StatusFailed
)

// Options tune a Processor.
type Options struct {
	// Format selects the bodies mirrored for every document.
	Format config.ContentFormat
	// FrontmatterMarkdown makes index.md carry the metadata as a YAML block.
	FrontmatterMarkdown bool
	// SectionMarkdownFile names the Markdown page of documents that have
	// children. Empty keeps MarkdownFile everywhere.
	SectionMarkdownFile string
	// PathSegmentLength is the width of one level in bulk listing paths.
	PathSegmentLength int
	// RunID identifies the run in logs, events and the manifest. Generated
	// when empty.
	RunID string
	// Now is the clock used for lastmod stamps.
	Now func() time.Time
}

// Root is the outcome of one mirrored traversal root, as consumed by site
// backends.
type Root struct {
	Reference  docref.Reference
	Title      string
	ContentURL string
	Dir        string
	// Metadata is the merged root metadata including transient keys such as
	// logo_file.
	Metadata metadata.Metadata
	Tree     *tree.Node
}

// LogoFile returns the root's first localized asset, if any.
func (r Root) LogoFile() string {
	return r.Metadata.String(metadata.KeyLogoFile)
}

// Result summarizes a run.
type Result struct {
	RunID  string
	Roots  []Root
	Counts manifest.Counts
}

// Processor drives the mirroring of one or more references.
type Processor struct {
	fetcher   fetch.Fetcher
	store     storage.Store
	localizer *assets.Localizer
	recorder  metrics.Recorder
	publisher events.Publisher
	logger    *slog.Logger
	opts      Options
}

// New returns a Processor writing into store.
func New(f fetch.Fetcher, store storage.Store, rec metrics.Recorder, pub events.Publisher, logger *slog.Logger, opts Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Format == "" {
		opts.Format = config.FormatBoth
	}
	if opts.PathSegmentLength <= 0 {
		opts.PathSegmentLength = 7
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rec = metrics.OrNoop(rec)
	return &Processor{
		fetcher:   f,
		store:     store,
		localizer: assets.NewLocalizer(f, store, rec, logger),
		recorder:  rec,
		publisher: events.OrNoop(pub),
		logger:    logger.With(logfields.RunID(opts.RunID)),
		opts:      opts,
	}
}

// RunID returns the identifier of the run.
func (p *Processor) RunID() string { return p.opts.RunID }

// Run mirrors every reference. A failing root is logged and skipped; Run only
// fails when no root could be mirrored at all. The run manifest is written
// at the store root.
func (p *Processor) Run(ctx context.Context, refs []docref.Reference) (*Result, error) {
	started := time.Now()
	t := NewTraversal(p.opts.RunID)
	mf := manifest.New(p.opts.RunID, string(p.opts.Format), started)
	result := &Result{RunID: p.opts.RunID}

	var firstErr error
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		root, err := p.SyncRoot(ctx, t, ref)
		if err != nil {
			p.logger.Error("Failed to mirror root document",
				logfields.DocID(ref.ID), logfields.URL(ref.ContentURL()), logfields.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if root == nil {
			continue
		}
		result.Roots = append(result.Roots, *root)
		mf.Roots = append(mf.Roots, manifest.Root{
			ID:         ref.ID,
			Base:       ref.Base,
			Title:      root.Title,
			Dir:        root.Dir,
			ContentURL: root.ContentURL,
			LogoFile:   root.LogoFile(),
			Metadata:   root.Metadata.Finalize(root.Title, root.Tree.Order),
		})
	}

	result.Counts = t.Counts()
	mf.Counts = result.Counts
	mf.Finish(time.Since(started))
	p.recorder.ObserveRunDuration(time.Since(started))
	p.recorder.IncRunOutcome(mf.Status)

	if len(mf.Roots) > 0 {
		if err := mf.Save(ctx, p.store); err != nil {
			p.logger.Warn("Failed to write run manifest", logfields.Error(err))
		}
	}
	if err := p.publisher.Publish(ctx, events.RunSummary(p.opts.RunID, mf.Status, mf.Counts, time.Since(started))); err != nil {
		p.logger.Warn("Failed to publish run summary", logfields.Error(err))
	}
	p.logger.Info("Sync finished",
		slog.String("status", mf.Status),
		slog.String("inputs", mf.Hash()[:12]),
		logfields.Count(mf.Counts.Persisted+mf.Counts.Unchanged),
		slog.Int("skipped", mf.Counts.Skipped),
		slog.Int("failed", mf.Counts.Failed),
		logfields.DurationMS(float64(time.Since(started).Milliseconds())))

	if len(result.Roots) == 0 && firstErr != nil {
		return result, firstErr
	}
	return result, nil
}

// SyncRoot mirrors the tree below ref. It returns nil without error when the
// root is a draft or was already mirrored during this traversal.
func (p *Processor) SyncRoot(ctx context.Context, t *Traversal, ref docref.Reference) (*Root, error) {
	api := docsapi.NewClient(p.fetcher, ref.Base, p.logger)
	w := &walker{Processor: p, t: t, api: api, resolver: tree.NewResolver(api, p.opts.PathSegmentLength, p.logger)}

	node := &tree.Node{ID: ref.ID}
	w.root = node
	doc, err := w.process(ctx, node, "", 0)
	if err != nil {
		w.report(ctx, node, "", statusFailed, err.Error())
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	// The root's children were resolved by process once the root was known
	// to be kept.
	if err := w.descend(ctx, node, doc.dir); err != nil {
		return nil, err
	}

	return &Root{
		Reference:  ref,
		Title:      doc.title,
		ContentURL: ref.ContentURL(),
		Dir:        doc.dir,
		Metadata:   doc.meta,
		Tree:       node,
	}, nil
}

func wrapNodeError(err error, stage, id string) error {
	if _, ok := derrors.AsClassified(err); ok {
		return err
	}
	return derrors.WrapError(err, derrors.CategoryRuntime, stage+" failed").
		WithContext("doc_id", id).
		Build()
}
