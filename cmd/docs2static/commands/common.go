// Package commands implements the docs2static command line.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docs2static/internal/config"
)

// DefaultReference is mirrored when neither the command line nor the
// configuration names a document.
const DefaultReference = "https://notes.liiib.re/docs/fa5583b2-37fc-4016-998f-f5237fd41642/"

// Global is passed to every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docs2static.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Sync     SyncCmd     `cmd:"" default:"withargs" help:"Mirror documents and optionally build and deploy a site"`
	Schedule ScheduleCmd `cmd:"" help:"Run sync periodically, reloading the configuration when it changes"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Cache    CacheCmd    `cmd:"" help:"Manage the response cache"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// loadConfig reads the configuration file named by the global flag.
func loadConfig(root *CLI) (*config.Config, error) {
	return config.Load(root.Config)
}
