package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/chiptable/cmd/chiptable/shared"
	"github.com/lox/chiptable/internal/game"
	"github.com/lox/chiptable/internal/server"
)

// ServeCmd runs the HTTP server
type ServeCmd struct {
	Addr string `short:"a" help:"Server address to bind to (overrides config)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx := context.Background()
	e, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	addr := e.config.GetServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	e.logger.Info("Starting chiptable server",
		"addr", addr,
		"store", e.config.Store.Driver,
		"tables", len(e.config.Tables))

	if err := createConfiguredTables(ctx, e); err != nil {
		return err
	}

	srv := server.NewServer(addr, e.service, e.logger, e.clock)
	return srv.Run(shared.SetupSignalHandler(e.logger))
}

// createConfiguredTables creates the tables listed in the config file. A
// table that already exists in a persistent store is left as it is.
func createConfiguredTables(ctx context.Context, e *env) error {
	for _, tc := range e.config.Tables {
		table, hostID, err := e.service.CreateTable(ctx, tc.Name, tc.Host, tc.SmallBlind, tc.BigBlind, tc.BuyIn)
		var perr game.PreconditionError
		if errors.As(err, &perr) {
			e.logger.Info("Table already exists", "table", tc.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", tc.Name, err)
		}
		e.logger.Info("Created table",
			"table", table.ID,
			"host", tc.Host,
			"hostId", hostID,
			"stakes", fmt.Sprintf("%d/%d", tc.SmallBlind, tc.BigBlind))
	}
	return nil
}
