package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docs2static/internal/backend"
	"git.home.luguber.info/inful/docs2static/internal/backend/hugo"
	"git.home.luguber.info/inful/docs2static/internal/backend/zensical"
	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/docref"
	"git.home.luguber.info/inful/docs2static/internal/events"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/testdocs"
)

func newSite(t *testing.T) *testdocs.Server {
	t.Helper()
	srv := testdocs.NewServer()
	t.Cleanup(srv.Close)
	srv.AddRoot(testdocs.Document{
		ID:       "root",
		Title:    "Accueil",
		HTML:     "<p>Bienvenue</p>",
		Markdown: "---\nsite_author: Camille\n---\nBienvenue\n",
	}).
		AddChild("root", testdocs.Document{ID: "a", Title: "Guide", HTML: "<p>Guide</p>", Markdown: "Guide\n"}).
		AddChild("root", testdocs.Document{ID: "d", Title: "Secret", HTML: "<p>s</p>", Markdown: "---\ndraft: oui\n---\ns\n"})
	return srv
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	cfg.Cache.Disabled = true
	cfg.API.Throttle = 0
	cfg.Backend.Type = "none"
	cfg.Backend.GitHubRepo = ""
	cfg.Events.NATSURL = ""
	cfg.Metrics.Textfile = ""
	return cfg
}

type fakePublisher struct {
	dir, repo string
	calls     int
}

func (f *fakePublisher) Publish(_ context.Context, dir, repo string) (string, error) {
	f.dir, f.repo = dir, repo
	f.calls++
	return "https://o.github.io/r/", nil
}

func TestParseReferences(t *testing.T) {
	cfg := config.Default()

	refs, err := ParseReferences(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []docref.Reference{{Base: "https://notes.liiib.re", ID: "fa5583b2-37fc-4016-998f-f5237fd41642"}}, refs)

	cfg.References = []string{"https://docs.example/docs/abc/"}
	refs, err = ParseReferences(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", refs[0].ID)

	refs, err = ParseReferences(cfg, []string{"not a ref", "https://x.example/docs/z/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []docref.Reference{{Base: "https://x.example", ID: "z"}}, refs)

	_, err = ParseReferences(cfg, []string{"nope"}, nil)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryReference))
}

func TestNewBackend(t *testing.T) {
	cfg := config.Default()
	for typ, want := range map[string]string{"": "none", "none": "none", "zensical": "zensical", "hugo": "hugo"} {
		cfg.Backend.Type = typ
		be, err := NewBackend(cfg, &backend.RecordingRunner{}, &fakePublisher{}, nil)
		require.NoError(t, err)
		assert.Equal(t, want, be.Name())
	}
	cfg.Backend.Type = "jekyll"
	_, err := NewBackend(cfg, nil, nil, nil)
	require.Error(t, err)
}

func TestSyncApplyFlags(t *testing.T) {
	cfg := config.Default()
	cmd := &SyncCmd{Format: "md", Backend: "hugo", Output: "out", Refresh: true}
	require.NoError(t, cmd.apply(cfg))
	assert.True(t, cfg.Cache.Refresh)
	assert.Equal(t, config.FormatMarkdown, cfg.Output.Format)
	assert.Equal(t, "hugo", cfg.Backend.Type)
	assert.Equal(t, "out", cfg.Output.Directory)

	require.Error(t, (&SyncCmd{Format: "pdf"}).apply(config.Default()))
}

func TestRunSyncMirrorsWithoutBackend(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "docs2static.prom")
	mem := &events.Memory{}

	report, err := RunSync(context.Background(), cfg,
		SyncOptions{Refs: []string{srv.URL + "/docs/root/"}}, Deps{Events: mem})
	require.NoError(t, err)

	require.Len(t, report.Roots, 1)
	assert.Equal(t, "none", report.Backend)
	assert.NotEmpty(t, report.RunID)
	assert.FileExists(t, filepath.Join(cfg.Output.Directory, "accueil", "index.html"))
	assert.FileExists(t, filepath.Join(cfg.Output.Directory, "accueil", "guide", "index.md"))
	assert.NoDirExists(t, filepath.Join(cfg.Output.Directory, "accueil", "secret"))
	assert.ElementsMatch(t, []string{"d"}, mem.ByStatus(events.StatusSkipped))
	assert.FileExists(t, cfg.Metrics.Textfile)
}

func TestRunSyncHugoForcesMarkdownAndConfigures(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t)
	cfg.Backend.Type = "hugo"
	cfg.Output.Format = config.FormatHTML
	runner := &backend.RecordingRunner{}

	_, err := RunSync(context.Background(), cfg,
		SyncOptions{Refs: []string{srv.URL + "/docs/root/"}}, Deps{Runner: runner, Publisher: &fakePublisher{}, Events: events.Noop{}})
	require.NoError(t, err)

	root := filepath.Join(cfg.Output.Directory, "accueil")
	assert.FileExists(t, filepath.Join(root, "_index.md"), "documents with children are branch bundles")
	assert.NoFileExists(t, filepath.Join(root, "index.md"))
	assert.FileExists(t, filepath.Join(root, "guide", "index.md"))
	assert.NoFileExists(t, filepath.Join(root, "guide", "_index.md"))
	assert.NoFileExists(t, filepath.Join(root, "index.html"))
	assert.Empty(t, runner.Calls, "no build outside deploy mode")

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, hugo.ConfigFile))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "Accueil", doc["title"])
	assert.Equal(t, "accueil", doc["contentDir"])
}

func TestRunSyncDeployReusesOutput(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t)
	cfg.Output.Format = config.FormatMarkdown
	_, err := RunSync(context.Background(), cfg,
		SyncOptions{Refs: []string{srv.URL + "/docs/root/"}}, Deps{Events: events.Noop{}})
	require.NoError(t, err)
	srv.Close()

	cfg.Backend.Type = "zensical"
	cfg.Backend.GitHubRepo = "https://github.com/o/r"
	runner := &backend.RecordingRunner{Hook: func(dir string, argv []string) error {
		switch argv[len(argv)-2] {
		case "new":
			return os.WriteFile(filepath.Join(argv[len(argv)-1], zensical.ConfigFile), []byte("[project]\n"), 0o600)
		}
		if argv[len(argv)-1] == "build" {
			return os.MkdirAll(filepath.Join(dir, zensical.SiteDir), 0o750)
		}
		return nil
	}}
	pub := &fakePublisher{}

	report, err := RunSync(context.Background(), cfg, SyncOptions{Deploy: true}, Deps{Runner: runner, Publisher: pub})
	require.NoError(t, err)

	require.Len(t, report.Roots, 1)
	assert.Equal(t, "accueil", report.Roots[0].Dir)
	assert.Equal(t, "https://o.github.io/r/", report.PagesURL)
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, filepath.Join(cfg.Output.Directory, zensical.SiteDir), pub.dir)
	assert.Equal(t, "https://github.com/o/r", pub.repo)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, zensical.ConfigFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `site_name = "Accueil"`)
	assert.Contains(t, string(data), `site_author = "Camille"`)
	assert.Contains(t, string(data), `docs_dir = "accueil"`)
}

func TestRunSyncDeployWithoutOutputFails(t *testing.T) {
	cfg := testConfig(t)
	_, err := RunSync(context.Background(), cfg, SyncOptions{Deploy: true}, Deps{})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
}

func TestClearCache(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, ClearCache(context.Background(), cfg, slogDiscard()))
	assert.FileExists(t, cfg.Cache.Path)

	cfg.Cache.Disabled = true
	require.NoError(t, ClearCache(context.Background(), cfg, slogDiscard()))
}

func TestRunScheduleSyncsUntilCanceled(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t)
	cfg.Schedule.Interval = time.Hour
	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunSchedule(ctx, cfg, configPath, []string{srv.URL + "/docs/root/"}, 0, slogDiscard())
	}()

	index := filepath.Join(cfg.Output.Directory, "accueil", "index.md")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Output.Directory, ".docs2static-manifest.json"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
	assert.FileExists(t, index)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunScheduleRejectsZeroInterval(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Interval = 0
	require.Error(t, RunSchedule(context.Background(), cfg, "x.yaml", nil, 0, slogDiscard()))
}
