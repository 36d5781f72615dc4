package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lox/chiptable/internal/display"
	"github.com/lox/chiptable/internal/game"
)

// printTable writes the rendered table to stdout
func printTable(table game.Table) {
	fmt.Fprintln(os.Stdout, display.Render(table))
}

// withService runs fn against a persistent store and prints the table it
// returns
func withService(g *Globals, fn func(ctx context.Context, e *env) (game.Table, error)) error {
	ctx := context.Background()
	e, err := g.openShared(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	table, err := fn(ctx, e)
	if err != nil {
		return err
	}
	printTable(table)
	return nil
}

type CreateCmd struct {
	Name       string `arg:"" help:"Your display name"`
	TableID    string `name:"table-id" help:"Table id (generated if empty)"`
	SmallBlind int    `default:"1" help:"Small blind"`
	BigBlind   int    `default:"2" help:"Big blind"`
	BuyIn      int    `default:"200" help:"Starting chips"`
}

func (c *CreateCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		table, playerID, err := e.service.CreateTable(ctx, c.TableID, c.Name, c.SmallBlind, c.BigBlind, c.BuyIn)
		if err == nil {
			fmt.Printf("table id: %s\nplayer id: %s\n", table.ID, playerID)
		}
		return table, err
	})
}

type JoinCmd struct {
	Table string `arg:"" help:"Table id"`
	Name  string `arg:"" help:"Your display name"`
	BuyIn int    `default:"200" help:"Starting chips"`
}

func (c *JoinCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		table, playerID, err := e.service.JoinTable(ctx, c.Table, c.Name, c.BuyIn)
		if err == nil {
			fmt.Printf("player id: %s\n", playerID)
		}
		return table, err
	})
}

type LeaveCmd struct {
	Table  string `arg:"" help:"Table id"`
	Player string `arg:"" help:"Player id"`
}

func (c *LeaveCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.LeaveTable(ctx, c.Table, c.Player)
	})
}

type StartCmd struct {
	Table string `arg:"" help:"Table id"`
}

func (c *StartCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.StartRound(ctx, c.Table)
	})
}

type DealerCmd struct {
	Table string `arg:"" help:"Table id"`
}

func (c *DealerCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.MoveDealer(ctx, c.Table)
	})
}

type ActCmd struct {
	Table  string `arg:"" help:"Table id"`
	Player string `arg:"" help:"Player id"`
	Action string `arg:"" enum:"fold,call,check,raise" help:"fold, call, check or raise"`
	Amount int    `arg:"" optional:"" help:"Raise increment over the current bet"`
}

func (c *ActCmd) Run(g *Globals) error {
	action, err := game.ParseAction(c.Action)
	if err != nil {
		return err
	}
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		table, res, err := e.service.PlayerAction(ctx, c.Table, c.Player, action, c.Amount)
		if err != nil {
			return table, err
		}
		switch {
		case !res.Applied:
			fmt.Println("not your turn, nothing changed")
		case res.ShowdownPending:
			fmt.Println("betting is over, end the round to award the pot")
		case res.StageAdvanced:
			fmt.Printf("betting moves to the %s\n", res.Stage)
		}
		return table, nil
	})
}

type EndCmd struct {
	Table  string `arg:"" help:"Table id"`
	Winner string `arg:"" help:"Winning player id"`
}

func (c *EndCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.EndRound(ctx, c.Table, c.Winner)
	})
}

type ChipsCmd struct {
	Table  string `arg:"" help:"Table id"`
	Player string `arg:"" help:"Player id"`
	Chips  int    `arg:"" help:"New stack"`
}

func (c *ChipsCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.UpdatePlayerChips(ctx, c.Table, c.Player, c.Chips)
	})
}

type BlindsCmd struct {
	Table      string `arg:"" help:"Table id"`
	SmallBlind int    `arg:"" help:"Small blind"`
	BigBlind   int    `arg:"" help:"Big blind"`
}

func (c *BlindsCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.UpdateBlinds(ctx, c.Table, c.SmallBlind, c.BigBlind)
	})
}

type SeatsCmd struct {
	Table   string   `arg:"" help:"Table id"`
	Players []string `arg:"" help:"Player ids in their new seat order"`
}

func (c *SeatsCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.UpdatePlayerPositions(ctx, c.Table, c.Players)
	})
}

type ActiveCmd struct {
	Table  string `arg:"" help:"Table id"`
	Player string `arg:"" help:"Player id"`
	State  string `arg:"" enum:"on,off" help:"on or off"`
}

func (c *ActiveCmd) Run(g *Globals) error {
	return withService(g, func(ctx context.Context, e *env) (game.Table, error) {
		return e.service.SetPlayerActive(ctx, c.Table, c.Player, c.State == "on")
	})
}
