// Package hugo configures, builds and publishes Hugo sites.
package hugo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docs2static/internal/backend"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

const (
	// ConfigFile is the project file patched by Configure.
	ConfigFile = "hugo.yaml"
	// PublicDir is where hugo renders the site.
	PublicDir = "public"
	// SectionFile is the branch bundle page of a document with children.
	SectionFile = "_index.md"
)

// Values are the settings Configure writes; empty values are left alone.
type Values struct {
	Title       string
	Description string
	Author      string
	ContentDir  string
}

// Backend drives the hugo binary.
type Backend struct {
	command   []string
	runner    backend.Runner
	publisher backend.Publisher
	logger    *slog.Logger
}

// New returns a Hugo backend invoking command.
func New(command []string, runner backend.Runner, publisher backend.Publisher, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if len(command) == 0 {
		command = []string{"hugo"}
	}
	return &Backend{command: command, runner: runner, publisher: publisher, logger: logger}
}

func (b *Backend) Name() string { return "hugo" }

func (b *Backend) RequiresMarkdown() bool { return true }

// FrontmatterMarkdown is true: Hugo reads page titles and params from the
// YAML block.
func (b *Backend) FrontmatterMarkdown() bool { return true }

// SectionMarkdownFile makes documents with children branch bundles, so their
// descendants stay pages instead of bundle resources.
func (b *Backend) SectionMarkdownFile() string { return SectionFile }

// OutputDir implements backend.Backend.
func (b *Backend) OutputDir(baseDir string) string { return filepath.Join(baseDir, PublicDir) }

// ValuesFor derives the hugo.yaml values of site.
func ValuesFor(site backend.Site) Values {
	return Values{
		Title:       site.SiteName(),
		Description: site.Description(),
		Author:      site.Author(),
		ContentDir:  path.Clean(site.RootDir),
	}
}

// Configure creates or patches hugo.yaml in the project directory.
func (b *Backend) Configure(_ context.Context, site backend.Site) error {
	file := filepath.Join(site.BaseDir, ConfigFile)
	data, err := os.ReadFile(file) // #nosec G304 -- project file under the output directory
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "read hugo.yaml failed").
			WithContext("path", file).
			Build()
	}
	patched, err := Patch(data, ValuesFor(site))
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryBackend, "invalid hugo.yaml").
			WithContext("path", file).
			Build()
	}
	if bytes.Equal(patched, data) {
		b.logger.Debug("Hugo configuration already up to date", logfields.Path(file))
		return nil
	}
	if err := os.MkdirAll(site.BaseDir, 0o750); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "create project directory failed").Build()
	}
	if err := os.WriteFile(file, patched, 0o644); err != nil { // #nosec G306 -- project file must stay readable
		return derrors.WrapError(err, derrors.CategoryFileSystem, "write hugo.yaml failed").
			WithContext("path", file).
			Build()
	}
	b.logger.Info("Hugo configured", logfields.Path(file), logfields.Title(site.SiteName()))
	return nil
}

// Patch sets the Values in a hugo.yaml document, keeping every other key
// and the comments.
func Patch(data []byte, v Values) ([]byte, error) {
	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level of %s must be a mapping", ConfigFile)
	}

	setScalar(root, "title", v.Title)
	setScalar(root, "contentDir", v.ContentDir)
	if v.Description != "" || v.Author != "" {
		params := mapping(root, "params")
		setScalar(params, "description", v.Description)
		setScalar(params, "author", v.Author)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lookup(m *yaml.Node, key string) (int, bool) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i + 1, true
		}
	}
	return 0, false
}

func setScalar(m *yaml.Node, key, value string) {
	if value == "" {
		return
	}
	node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
	if i, ok := lookup(m, key); ok {
		old := m.Content[i]
		node.HeadComment, node.LineComment, node.FootComment = old.HeadComment, old.LineComment, old.FootComment
		m.Content[i] = node
		return
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, node)
}

// mapping returns the mapping stored under key, creating or replacing a
// non-mapping value.
func mapping(m *yaml.Node, key string) *yaml.Node {
	if i, ok := lookup(m, key); ok {
		if m.Content[i].Kind == yaml.MappingNode {
			return m.Content[i]
		}
		m.Content[i] = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		return m.Content[i]
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, child)
	return child
}

// Build runs hugo in baseDir.
func (b *Backend) Build(ctx context.Context, baseDir string) error {
	started := time.Now()
	if err := b.runner.Run(ctx, baseDir, b.command...); err != nil {
		return err
	}
	if _, err := os.Stat(b.OutputDir(baseDir)); err != nil {
		return derrors.BackendError("hugo build produced no public directory").
			WithContext("path", b.OutputDir(baseDir)).
			Build()
	}
	b.logger.Info("Hugo build finished", logfields.Backend(b.Name()),
		logfields.DurationMS(float64(time.Since(started).Milliseconds())))
	return nil
}

// Deploy publishes the rendered site to repo.
func (b *Backend) Deploy(ctx context.Context, baseDir, repo string) error {
	_, err := b.publisher.Publish(ctx, b.OutputDir(baseDir), repo)
	return err
}
