// Command accounttx runs account mutations through the two-phase-commit
// coordinator against a SQL user directory.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("accounttx"),
		kong.Description("Two-phase-commit account coordinator."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	parser.FatalIfErrorf(run(ctx, parser, &cli, os.Stdout))
}
