package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Serve    ServeCmd         `cmd:"" help:"Run the blackjack HTTP and WebSocket server"`
	Play     PlayCmd          `cmd:"" help:"Play blackjack in the terminal"`
	Simulate SimulateCmd      `cmd:"" help:"Play automated rounds and report statistics"`
	Ledger   LedgerCmd        `cmd:"" help:"Serve a ledger over NATS"`
	History  HistoryCmd       `cmd:"" help:"Show archived rounds"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blackjack"),
		kong.Description("Blackjack rules engine, game server and tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
