// Package backend defines how a mirrored tree is handed to a static site
// generator and published.
package backend

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/docs2static/internal/metadata"
	"git.home.luguber.info/inful/docs2static/internal/tree"
)

// Site is what a backend needs to configure a project for one mirrored root.
type Site struct {
	// BaseDir is the project directory, also the mirror output root.
	BaseDir string
	// RootDir is the mirrored root directory, relative to BaseDir.
	RootDir    string
	Metadata   metadata.Metadata
	Title      string
	ContentURL string
	Tree       *tree.Node
	LogoFile   string
}

// ContentPath returns the absolute directory holding the root's pages.
func (s Site) ContentPath() string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(s.RootDir))
}

// Backend configures, builds and deploys a site.
type Backend interface {
	Name() string
	// RequiresMarkdown reports whether the generator only reads Markdown.
	RequiresMarkdown() bool
	// FrontmatterMarkdown reports whether index.md must carry a YAML block.
	FrontmatterMarkdown() bool
	// SectionMarkdownFile names the page of documents with children, or ""
	// when every document uses index.md.
	SectionMarkdownFile() string
	Configure(ctx context.Context, site Site) error
	Build(ctx context.Context, baseDir string) error
	// OutputDir is where Build leaves the rendered site.
	OutputDir(baseDir string) string
	Deploy(ctx context.Context, baseDir, repo string) error
}

// Publisher pushes a rendered directory to a remote repository.
type Publisher interface {
	Publish(ctx context.Context, dir, repo string) (string, error)
}

// SiteName is the site title: explicit metadata first, then the root title.
func (s Site) SiteName() string {
	if v := s.Metadata.First("site_name", "title"); v != "" {
		return v
	}
	return s.Title
}

// Description returns the site description from metadata.
func (s Site) Description() string {
	return s.Metadata.First("site_description", "summary", "description")
}

// Author returns the site author from metadata.
func (s Site) Author() string {
	return s.Metadata.First("site_author", "auteur·ice", "author")
}

// License returns the content license from metadata.
func (s Site) License() string {
	return s.Metadata.First("licence", "license")
}
