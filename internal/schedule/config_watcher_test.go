package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docs2static/internal/config"
)

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs2static.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  directory: first\n"), 0o600))

	reloaded := make(chan *config.Config, 4)
	cw, err := NewConfigWatcher(path, func(cfg *config.Config) error {
		reloaded <- cfg
		return nil
	}, nil)
	require.NoError(t, err)
	cw.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer func() { _ = cw.Stop() }()

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("output:\n  directory: second\n"), 0o600))

	select {
	case cfg := <-reloaded:
		require.Equal(t, "second", cfg.Output.Directory)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs2static.yaml")
	cw, err := NewConfigWatcher(path, func(*config.Config) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, cw.Stop())
	require.NoError(t, cw.Stop())
}

func TestConfigWatcherIgnoresInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs2static.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  directory: first\n"), 0o600))

	reloaded := make(chan *config.Config, 4)
	cw, err := NewConfigWatcher(path, func(cfg *config.Config) error {
		reloaded <- cfg
		return nil
	}, nil)
	require.NoError(t, err)
	cw.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer func() { _ = cw.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("backend:\n  type: jekyll\n"), 0o600))
	select {
	case <-reloaded:
		t.Fatal("invalid configuration must not be applied")
	case <-time.After(300 * time.Millisecond):
	}
}
