package main

import (
	"context"
	"fmt"

	"github.com/lox/chiptable/cmd/chiptable/shared"
	"github.com/lox/chiptable/internal/display"
)

type ShowCmd struct {
	Table string `arg:"" help:"Table id"`
	Raw   bool   `help:"Dump the stored document instead of rendering it"`
}

func (c *ShowCmd) Run(g *Globals) error {
	ctx := context.Background()
	e, err := g.openShared(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	table, err := e.service.GetTable(ctx, c.Table)
	if err != nil {
		return err
	}
	if c.Raw {
		fmt.Println(display.Dump(table))
		return nil
	}
	printTable(table)
	return nil
}

// WatchCmd prints the table every time it changes until interrupted
type WatchCmd struct {
	Table string `arg:"" help:"Table id"`
}

func (c *WatchCmd) Run(g *Globals) error {
	e, err := g.openShared(context.Background())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx := shared.SetupSignalHandler(e.logger)
	tables, err := e.service.Subscribe(ctx, c.Table)
	if err != nil {
		return err
	}

	renderer := display.NewRenderer()
	for table := range tables {
		fmt.Println(renderer.Render(table))
		fmt.Println()
	}
	return nil
}
