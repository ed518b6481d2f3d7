package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/metadata"
)

func TestSiteAccessors(t *testing.T) {
	s := Site{
		BaseDir: "/out",
		RootDir: "accueil",
		Title:   "Accueil",
		Metadata: metadata.Metadata{
			"summary":    "Résumé",
			"auteur·ice": "Camille",
			"licence":    "CC-BY",
		},
	}
	assert.Equal(t, "Accueil", s.SiteName())
	assert.Equal(t, "Résumé", s.Description())
	assert.Equal(t, "Camille", s.Author())
	assert.Equal(t, "CC-BY", s.License())
	assert.Equal(t, filepath.Join("/out", "accueil"), s.ContentPath())

	s.Metadata["site_name"] = "Mon site"
	assert.Equal(t, "Mon site", s.SiteName())
}

func TestNoneBackend(t *testing.T) {
	var b Backend = None{}
	assert.Equal(t, "none", b.Name())
	assert.False(t, b.RequiresMarkdown())
	assert.Empty(t, b.SectionMarkdownFile())
	assert.NoError(t, b.Configure(context.Background(), Site{}))
	assert.NoError(t, b.Build(context.Background(), "/out"))
	assert.Equal(t, "/out", b.OutputDir("/out"))
	assert.NoError(t, b.Deploy(context.Background(), "/out", "git@github.com:o/r.git"))
}

func TestExecRunner(t *testing.T) {
	r := ExecRunner{}
	err := r.Run(context.Background(), t.TempDir())
	require.Error(t, err)

	err = r.Run(context.Background(), t.TempDir(), "docs2static-no-such-binary")
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryBackend))
}

func TestRecordingRunner(t *testing.T) {
	boom := errors.New("boom")
	r := &RecordingRunner{Hook: func(_ string, argv []string) error {
		if argv[0] == "fail" {
			return boom
		}
		return nil
	}}
	require.NoError(t, r.Run(context.Background(), "/a", "ok", "x"))
	require.ErrorIs(t, r.Run(context.Background(), "/b", "fail"), boom)
	require.Len(t, r.Calls, 2)
	assert.Equal(t, Call{Dir: "/a", Argv: []string{"ok", "x"}}, r.Calls[0])
}
