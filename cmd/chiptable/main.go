package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Run the REST and WebSocket server"`
	Create  CreateCmd        `cmd:"" help:"Create a table with yourself as host"`
	Join    JoinCmd          `cmd:"" help:"Take a seat at a table"`
	Leave   LeaveCmd         `cmd:"" help:"Leave a table"`
	Start   StartCmd         `cmd:"" help:"Post blinds and start a round"`
	Dealer  DealerCmd        `cmd:"" help:"Move the dealer button"`
	Act     ActCmd           `cmd:"" help:"Fold, call or raise"`
	End     EndCmd           `cmd:"" help:"Award the pot and end the round"`
	Chips   ChipsCmd         `cmd:"" help:"Set a player's stack"`
	Blinds  BlindsCmd        `cmd:"" help:"Set the blinds"`
	Seats   SeatsCmd         `cmd:"" help:"Reorder the seats"`
	Active  ActiveCmd        `cmd:"" help:"Mark a player present or away"`
	Show    ShowCmd          `cmd:"" help:"Show a table"`
	Watch   WatchCmd         `cmd:"" help:"Follow a table as it changes"`
}

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("chiptable"),
		kong.Description("Shared poker chip table with optimistic concurrency"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
