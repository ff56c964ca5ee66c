package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/feeder/cmd/feeder/commands"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("feeder"),
		kong.Description("Closed-loop weight-based pet feeder"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
