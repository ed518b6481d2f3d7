package processor

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/docs2static/internal/assets"
	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/docsapi"
	"git.home.luguber.info/inful/docs2static/internal/events"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/frontmatter"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/metadata"
	"git.home.luguber.info/inful/docs2static/internal/metrics"
	"git.home.luguber.info/inful/docs2static/internal/slug"
	"git.home.luguber.info/inful/docs2static/internal/storage"
	"git.home.luguber.info/inful/docs2static/internal/tree"
)

// Output file names inside every document directory.
const (
	HTMLFile     = "index.html"
	MarkdownFile = "index.md"
	MetadataFile = "metadata.json"
)

// walker processes the nodes of one root, bound to the root's instance.
type walker struct {
	*Processor
	t        *Traversal
	api      *docsapi.Client
	resolver *tree.Resolver

	// root is the traversal root; its children are resolved once it is kept.
	root *tree.Node
}

// document is what a persisted node hands to its children.
type document struct {
	title string
	dir   string
	meta  metadata.Metadata
}

type content struct {
	title    string
	html     string
	markdown string
}

// process runs one node from fetch to persist. A nil document without error
// means the node was dropped (draft, or already mirrored in this run).
func (w *walker) process(ctx context.Context, node *tree.Node, parentDir string, order int) (*document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !w.t.Claim(node.ID) {
		w.logger.Debug("Document already mirrored in this run", logfields.DocID(node.ID))
		return nil, nil
	}
	started := time.Now()
	defer func() { w.recorder.ObserveStageDuration("document", time.Since(started)) }()

	c, err := w.fetch(ctx, node.ID)
	if err != nil {
		return nil, wrapNodeError(err, "fetch", node.ID)
	}
	if strings.TrimSpace(c.title) != "" {
		node.Title = c.title
	}
	title := node.DisplayTitle()
	log := w.logger.With(logfields.DocID(node.ID), logfields.Title(title))

	htmlFields, htmlBody := frontmatter.HTMLExtractor{}.Extract(c.html)
	htmlBody = rewriteAccordions(htmlBody)
	mdFields, mdBody := frontmatter.MarkdownExtractor{}.Extract(c.markdown)
	meta := metadata.Merge(htmlFields, mdFields)

	if w.opts.Format.WantsMarkdown() && strings.TrimSpace(mdBody) == "" && strings.TrimSpace(htmlBody) != "" {
		converted, err := markdownFromHTML(htmlBody)
		if err != nil {
			log.Warn("Failed to derive Markdown from HTML", logfields.Error(err))
		} else {
			log.Debug("Markdown derived from HTML")
			mdBody = converted
		}
	}
	if meta.String(metadata.KeyImage) == "" {
		if img := assets.LeadingImage(htmlBody); img != "" {
			meta[metadata.KeyImage] = img
		}
	}

	if meta.IsDraft() {
		log.Info("Skipping draft document")
		w.report(ctx, node, "", statusSkipped, "draft")
		return nil, nil
	}

	if node == w.root {
		if err := w.resolveChildren(ctx, node); err != nil {
			return nil, err
		}
	}

	dir := w.route(node, meta, parentDir)

	session := w.localizer.NewSession(node.ID, dir)
	if w.opts.Format.WantsHTML() {
		htmlBody = session.Localize(ctx, htmlBody, config.FormatHTML)
	}
	if w.opts.Format.WantsMarkdown() {
		mdBody = session.Localize(ctx, mdBody, config.FormatMarkdown)
	}
	if img := meta.String(metadata.KeyImage); img != "" {
		if name, ok := session.LocalizeURL(ctx, img); ok {
			meta[metadata.KeyImage] = name
		}
	}
	if logo := session.Logo(); logo != "" {
		meta[metadata.KeyLogoFile] = logo
	}

	node.Order = order
	node.Slug = path.Base(dir)
	changed, err := w.persist(ctx, dir, w.markdownName(node), title, order, meta, htmlBody, mdBody)
	if err != nil {
		return nil, err
	}

	status := statusPersisted
	if !changed {
		status = statusUnchanged
	}
	w.report(ctx, node, dir, status, "")
	log.Info("Document mirrored", logfields.Path(dir), logfields.Order(order), slog.String("status", status))
	return &document{title: title, dir: dir, meta: meta}, nil
}

// descend processes the children of node below dir. Orders are assigned
// over the retained siblings only; node.Children is replaced by them.
func (w *walker) descend(ctx context.Context, node *tree.Node, dir string) error {
	kept := make([]*tree.Node, 0, len(node.Children))
	order := 0
	for _, child := range node.Children {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := w.process(ctx, child, dir, order)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("Failed to mirror document, skipping its subtree",
				logfields.DocID(child.ID), logfields.Title(child.DisplayTitle()), logfields.Error(err))
			w.report(ctx, child, "", statusFailed, err.Error())
			continue
		}
		if doc == nil {
			continue
		}
		order++
		if err := w.descend(ctx, child, doc.dir); err != nil {
			return err
		}
		kept = append(kept, child)
	}
	node.Children = kept
	return nil
}

// resolveChildren attaches the descendant tree of node. A failed resolution
// leaves the node without children.
func (w *walker) resolveChildren(ctx context.Context, node *tree.Node) error {
	children, err := w.resolver.Resolve(ctx, node.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("Failed to resolve document tree, mirroring the root only",
			logfields.DocID(node.ID), logfields.Error(err))
	}
	node.Children = children
	return nil
}

// markdownName is the Markdown page of node: the section page when the
// node has children and the backend distinguishes sections.
func (w *walker) markdownName(node *tree.Node) string {
	if w.opts.SectionMarkdownFile != "" && len(node.Children) > 0 {
		return w.opts.SectionMarkdownFile
	}
	return MarkdownFile
}

// fetch downloads the requested representations. When Markdown is requested
// alone and comes back empty, HTML is fetched as a conversion source.
func (w *walker) fetch(ctx context.Context, id string) (content, error) {
	var c content
	if w.opts.Format.WantsHTML() {
		r, err := w.api.FetchContent(ctx, id, config.FormatHTML)
		if err != nil {
			return c, err
		}
		c.title, c.html = r.Title, r.Content
	}
	if !w.opts.Format.WantsMarkdown() {
		return c, nil
	}
	r, err := w.api.FetchContent(ctx, id, config.FormatMarkdown)
	if err != nil {
		return c, err
	}
	if c.title == "" {
		c.title = r.Title
	}
	c.markdown = r.Content
	if strings.TrimSpace(c.markdown) == "" && !w.opts.Format.WantsHTML() {
		h, err := w.api.FetchContent(ctx, id, config.FormatHTML)
		if err != nil {
			w.logger.Debug("No HTML to derive Markdown from", logfields.DocID(id), logfields.Error(err))
			return c, nil
		}
		c.html = h.Content
	}
	return c, nil
}

// route picks the node directory: the `path` metadata override when it is
// a usable relative path, the slugified title otherwise.
func (w *walker) route(node *tree.Node, meta metadata.Metadata, parentDir string) string {
	name := ""
	if override := meta.String(metadata.KeyPath); override != "" {
		cleaned, err := storage.Clean(strings.TrimLeft(override, "/"))
		if err == nil && cleaned != "." {
			name = cleaned
		} else {
			w.logger.Warn("Ignoring unusable path override",
				logfields.DocID(node.ID), logfields.Path(override))
		}
	}
	if name == "" {
		name = slug.Make(node.DisplayTitle())
	}
	return path.Join(parentDir, name)
}

// persist writes the bodies and metadata.json of a node. It reports whether
// any of those files changed.
func (w *walker) persist(ctx context.Context, dir, mdName, title string, order int, meta metadata.Metadata, htmlBody, mdBody string) (bool, error) {
	final := meta.Finalize(title, order)
	type file struct {
		name string
		data []byte
	}
	var files []file
	if w.opts.Format.WantsHTML() {
		files = append(files, file{HTMLFile, []byte(htmlBody)})
	}
	if w.opts.Format.WantsMarkdown() {
		md, err := w.renderMarkdown(ctx, path.Join(dir, mdName), title, final, mdBody)
		if err != nil {
			return false, derrors.WrapError(err, derrors.CategoryInternal, "render markdown failed").
				WithContext("path", dir).
				Build()
		}
		files = append(files, file{mdName, md})
	}
	js, err := final.Marshal()
	if err != nil {
		return false, derrors.WrapError(err, derrors.CategoryInternal, "encode metadata failed").
			WithContext("path", dir).
			Build()
	}
	files = append(files, file{MetadataFile, js})

	changed := false
	for _, f := range files {
		p := path.Join(dir, f.name)
		written, err := w.store.WriteFile(ctx, p, f.data)
		if err != nil {
			return false, derrors.WrapError(err, derrors.CategoryFileSystem, "write failed").
				WithContext("path", p).
				Build()
		}
		changed = changed || written
	}

	// A document that gained or lost children switches page name; the other
	// one must not linger.
	if w.opts.Format.WantsMarkdown() && w.opts.SectionMarkdownFile != "" {
		stale := MarkdownFile
		if mdName == MarkdownFile {
			stale = w.opts.SectionMarkdownFile
		}
		if err := w.store.Delete(ctx, path.Join(dir, stale)); err != nil {
			return false, derrors.WrapError(err, derrors.CategoryFileSystem, "remove stale page failed").
				WithContext("path", path.Join(dir, stale)).
				Build()
		}
	}
	return changed, nil
}

// renderMarkdown returns the Markdown page stored at p. With frontmatter
// enabled the lastmod stamp of the existing page is kept when the content is
// unchanged.
func (w *walker) renderMarkdown(ctx context.Context, p, title string, final metadata.Metadata, body string) ([]byte, error) {
	if !w.opts.FrontmatterMarkdown {
		return []byte(body), nil
	}
	var previous *frontmatter.Document
	if data, err := w.store.ReadFile(ctx, p); err == nil {
		if doc, err := frontmatter.Parse(data); err == nil {
			previous = &doc
		}
	}
	doc, err := frontmatter.Render(map[string]any(final), title, body, previous, w.opts.Now())
	if err != nil {
		return nil, err
	}
	return doc.Bytes()
}

// report records the outcome of a node in the tallies, metrics and events.
func (w *walker) report(ctx context.Context, node *tree.Node, dir, status, reason string) {
	w.t.tally(status)
	switch status {
	case statusSkipped:
		w.recorder.IncNodeResult(metrics.ResultSkipped)
	case statusFailed:
		w.recorder.IncNodeResult(metrics.ResultFailed)
	default:
		w.recorder.IncNodeResult(metrics.ResultSuccess)
	}
	ev := events.Event{
		Type:      events.TypeDocument,
		RunID:     w.t.RunID,
		DocID:     node.ID,
		Title:     node.DisplayTitle(),
		Path:      dir,
		Status:    status,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		w.logger.Warn("Failed to publish document event", logfields.DocID(node.ID), logfields.Error(err))
	}
}
