package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Serve    ServeCmd         `cmd:"" help:"Serve the browser game over HTTP and websockets"`
	Play     PlayCmd          `cmd:"" help:"Play in the terminal"`
	Simulate SimulateCmd      `cmd:"" help:"Play many rounds headless with a fixed policy"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blackjack"),
		kong.Description("Single-player blackjack against an automated dealer"),
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
