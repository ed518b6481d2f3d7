package hugo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docs2static/internal/backend"
	"git.home.luguber.info/inful/docs2static/internal/metadata"
)

const existing = `# Site configuration
baseURL: https://example.org/
title: Old # set by docs2static
params:
  theme: dark
`

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, yaml.Unmarshal(data, &out))
	return out
}

func TestPatchKeepsUnrelatedKeysAndComments(t *testing.T) {
	out, err := Patch([]byte(existing), Values{Title: "Mon site", Description: "Un site", Author: "Camille", ContentDir: "accueil"})
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "# Site configuration")
	assert.Contains(t, text, "# set by docs2static")

	doc := decode(t, out)
	assert.Equal(t, "https://example.org/", doc["baseURL"])
	assert.Equal(t, "Mon site", doc["title"])
	assert.Equal(t, "accueil", doc["contentDir"])
	params := doc["params"].(map[string]any)
	assert.Equal(t, "dark", params["theme"])
	assert.Equal(t, "Un site", params["description"])
	assert.Equal(t, "Camille", params["author"])

	again, err := Patch(out, Values{Title: "Mon site", Description: "Un site", Author: "Camille", ContentDir: "accueil"})
	require.NoError(t, err)
	assert.Equal(t, string(out), string(again))
}

func TestPatchEmptyDocument(t *testing.T) {
	out, err := Patch(nil, Values{Title: "Site", ContentDir: "site"})
	require.NoError(t, err)
	doc := decode(t, out)
	assert.Equal(t, map[string]any{"title": "Site", "contentDir": "site"}, doc)
}

func TestPatchQuotesAmbiguousScalars(t *testing.T) {
	out, err := Patch(nil, Values{Title: "yes", ContentDir: "2024"})
	require.NoError(t, err)
	doc := decode(t, out)
	assert.Equal(t, "yes", doc["title"])
	assert.Equal(t, "2024", doc["contentDir"])
}

func TestPatchRejectsNonMapping(t *testing.T) {
	_, err := Patch([]byte("- a\n- b\n"), Values{Title: "x"})
	require.Error(t, err)
}

func TestConfigureWritesHugoYAML(t *testing.T) {
	dir := t.TempDir()
	b := New(nil, &backend.RecordingRunner{}, nil, nil)
	site := backend.Site{
		BaseDir:  dir,
		RootDir:  "accueil",
		Title:    "Accueil",
		Metadata: metadata.Metadata{"description": "Un site", "author": "Camille"},
	}
	require.NoError(t, b.Configure(context.Background(), site))

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	doc := decode(t, data)
	assert.Equal(t, "Accueil", doc["title"])
	assert.Equal(t, "accueil", doc["contentDir"])
	assert.Equal(t, "Camille", doc["params"].(map[string]any)["author"])

	info, err := os.Stat(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	require.NoError(t, b.Configure(context.Background(), site))
	info2, err := os.Stat(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime(), "unchanged configuration is not rewritten")
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	runner := &backend.RecordingRunner{Hook: func(d string, _ []string) error {
		return os.MkdirAll(filepath.Join(d, PublicDir), 0o750)
	}}
	b := New(nil, runner, nil, nil)
	require.NoError(t, b.Build(context.Background(), dir))
	assert.Equal(t, []string{"hugo"}, runner.Calls[0].Argv)
	assert.Equal(t, filepath.Join(dir, PublicDir), b.OutputDir(dir))
	assert.True(t, b.RequiresMarkdown())
	assert.True(t, b.FrontmatterMarkdown())
	assert.Equal(t, "_index.md", b.SectionMarkdownFile())

	require.Error(t, New(nil, &backend.RecordingRunner{}, nil, nil).Build(context.Background(), t.TempDir()))
}
