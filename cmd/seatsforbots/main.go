package main

import (
	"github.com/alecthomas/kong"
)

// version is set at build time via ldflags
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version information"`

	Serve    ServeCmd    `cmd:"" help:"Run the match server"`
	Bot      BotCmd      `cmd:"" help:"Run a built-in strategy bot against a server"`
	Simulate SimulateCmd `cmd:"" help:"Evaluate a strategy over many offline games"`
	Replay   ReplayCmd   `cmd:"" help:"Pretty-print a recorded match"`
	Spawn    SpawnCmd    `cmd:"" help:"Start a server and a field of bots in one process"`
	Watch    WatchCmd    `cmd:"" help:"Watch a live match in the terminal"`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("seatsforbots"),
		kong.Description("Airline seat-selling match server for bot-vs-bot play"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{"version": version},
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
