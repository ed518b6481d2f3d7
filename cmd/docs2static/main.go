package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docs2static/cmd/docs2static/commands"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("docs2static"),
		kong.Description("Mirror Docs document trees into static HTML/Markdown sites."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)
	// AfterApply has installed the logger by now.
	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
