package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/chiptable/cmd/chiptable/shared"
	"github.com/lox/chiptable/internal/server"
	"github.com/lox/chiptable/internal/store"
)

// Globals are flags shared by every command. Store flags override the
// config file.
type Globals struct {
	Config   string `short:"c" default:"chiptable.hcl" env:"CHIPTABLE_CONFIG" help:"Path to HCL configuration file"`
	LogLevel string `short:"l" env:"CHIPTABLE_LOG_LEVEL" help:"Log level (overrides config)"`

	Driver    string `env:"CHIPTABLE_STORE_DRIVER" help:"Store driver: memory, file, sqlite, postgres or redis"`
	StorePath string `env:"CHIPTABLE_STORE_PATH" help:"Directory for the file driver, database for sqlite"`
	DSN       string `env:"CHIPTABLE_DSN" help:"Postgres connection string"`
	RedisAddr string `env:"CHIPTABLE_REDIS_ADDR" help:"Redis address"`
}

// env is everything a command needs to run table operations
type env struct {
	config  *server.ServerConfig
	logger  *log.Logger
	clock   quartz.Clock
	store   store.Store
	service *server.GameService
}

func (e *env) Close() error {
	return e.store.Close()
}

func (g *Globals) loadConfig() (*server.ServerConfig, error) {
	cfg, err := server.LoadServerConfig(g.Config)
	if err != nil {
		return nil, err
	}

	if g.LogLevel != "" {
		cfg.Server.LogLevel = g.LogLevel
	}
	if g.Driver != "" && g.Driver != cfg.Store.Driver {
		cfg.Store.Driver = g.Driver
		cfg.Store.Path = server.DefaultStorePath(g.Driver)
	}
	if g.StorePath != "" {
		cfg.Store.Path = g.StorePath
	}
	if g.DSN != "" {
		cfg.Store.DSN = g.DSN
	}
	if g.RedisAddr != "" {
		cfg.Store.RedisAddr = g.RedisAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// open loads configuration and connects to the store
func (g *Globals) open(ctx context.Context) (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := shared.SetupLogger(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}

	clock := quartz.NewReal()
	st, err := store.Open(ctx, cfg.StoreConfig(), store.WithLogger(logger), store.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	return &env{
		config:  cfg,
		logger:  logger,
		clock:   clock,
		store:   st,
		service: server.NewGameService(st, logger, clock, cfg.ServiceOptions()),
	}, nil
}

// openShared is open for commands that exit after one operation, where a
// memory store would be thrown away
func (g *Globals) openShared(ctx context.Context) (*env, error) {
	e, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	if e.config.Store.Driver == "memory" {
		_ = e.Close()
		return nil, fmt.Errorf("the memory store does not outlive this command, pick another driver with --driver")
	}
	return e, nil
}
