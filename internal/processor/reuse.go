package processor

import (
	"context"
	"log/slog"
	"path"
	"sort"

	"git.home.luguber.info/inful/docs2static/internal/docref"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/manifest"
	"git.home.luguber.info/inful/docs2static/internal/metadata"
	"git.home.luguber.info/inful/docs2static/internal/storage"
	"git.home.luguber.info/inful/docs2static/internal/tree"
)

// Reuse rebuilds the roots of a previous run from store without any remote
// call. The run manifest is authoritative; without one, every top-level
// directory holding a metadata.json is taken as a root.
func Reuse(ctx context.Context, store storage.Store, logger *slog.Logger) ([]Root, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var roots []Root
	mf, err := manifest.Load(ctx, store)
	switch {
	case err == nil:
		for _, entry := range mf.Roots {
			node, err := LoadTree(ctx, store, entry.Dir)
			if err != nil {
				logger.Warn("Mirrored root missing from output, skipping",
					logfields.DocID(entry.ID), logfields.Path(entry.Dir), logfields.Error(err))
				continue
			}
			meta := metadata.Metadata(entry.Metadata).Clone()
			if entry.LogoFile != "" {
				meta[metadata.KeyLogoFile] = entry.LogoFile
			}
			node.ID = entry.ID
			roots = append(roots, Root{
				Reference:  docref.Reference{Base: entry.Base, ID: entry.ID},
				Title:      entry.Title,
				ContentURL: entry.ContentURL,
				Dir:        entry.Dir,
				Metadata:   meta,
				Tree:       node,
			})
		}
	case storage.IsNotFound(err):
		logger.Debug("No run manifest, scanning output for mirrored roots", logfields.Path(store.Root()))
		dirs, err := store.ListDirs(ctx, ".")
		if err != nil && !storage.IsNotFound(err) {
			return nil, err
		}
		for _, dir := range dirs {
			node, err := LoadTree(ctx, store, dir)
			if err != nil {
				continue
			}
			meta, _ := readMetadata(ctx, store, dir)
			roots = append(roots, Root{Title: node.Title, Dir: dir, Metadata: meta, Tree: node})
		}
	default:
		return nil, err
	}

	if len(roots) == 0 {
		return nil, derrors.NewError(derrors.CategoryNotFound, "no mirrored documents to reuse").
			WithContext("root", store.Root()).
			Build()
	}
	logger.Info("Reusing mirrored output", logfields.Count(len(roots)), logfields.Path(store.Root()))
	return roots, nil
}

// LoadTree reads the mirrored tree rooted at dir back from store. Children
// are the subdirectories holding a metadata.json, sorted by their order.
func LoadTree(ctx context.Context, store storage.Store, dir string) (*tree.Node, error) {
	meta, err := readMetadata(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	node := &tree.Node{
		Title: meta.String(metadata.KeyTitle),
		Path:  dir,
		Order: meta.Order(),
		Slug:  path.Base(dir),
	}

	subdirs, err := store.ListDirs(ctx, dir)
	if err != nil && !storage.IsNotFound(err) {
		return nil, err
	}
	for _, sub := range subdirs {
		child, err := LoadTree(ctx, store, path.Join(dir, sub))
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Slug < b.Slug
	})
	return node, nil
}

func readMetadata(ctx context.Context, store storage.Store, dir string) (metadata.Metadata, error) {
	data, err := store.ReadFile(ctx, path.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	meta, err := metadata.Unmarshal(data)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "invalid metadata.json").
			WithContext("path", dir).
			Build()
	}
	return meta, nil
}
