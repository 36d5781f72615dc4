// Package store persists table documents and fans out their changes.
//
// A document is the JSON encoding of a table. Every committed write bumps the
// document's "version" field, and writes are conditional on the version the
// writer last read, which lets many independent writers share one table
// without a lock. Subscribers receive the current snapshot followed by newer
// ones; a slow subscriber only ever sees the latest.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

var (
	ErrNotFound        = errors.New("table not found")
	ErrExists          = errors.New("table already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidPath     = errors.New("invalid update path")
	ErrClosed          = errors.New("store closed")
)

// Snapshot is a committed version of a table document
type Snapshot struct {
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Decode unmarshals the snapshot document into v
func (s Snapshot) Decode(v any) error {
	return json.Unmarshal(s.Data, v)
}

// Updates maps document paths to their new values. Path segments are joined
// with "/" and numeric segments index into arrays, e.g. "players/2/chips".
type Updates map[string]any

// Store is an external document store shared by every writer of a table
type Store interface {
	// Create stores a new document at version 1
	Create(ctx context.Context, id string, doc []byte) (Snapshot, error)

	// Get returns the latest committed snapshot
	Get(ctx context.Context, id string) (Snapshot, error)

	// Update applies all updates and bumps the version in one step, provided
	// the stored version still equals version
	Update(ctx context.Context, id string, version int64, updates Updates) (Snapshot, error)

	// Subscribe delivers the current snapshot and then later commits until
	// ctx is done, when the channel is closed
	Subscribe(ctx context.Context, id string) (<-chan Snapshot, error)

	Close() error
}

// Drivers lists the supported store drivers
var Drivers = []string{"memory", "file", "sqlite", "postgres", "redis"}

// Config selects and configures a driver
type Config struct {
	Driver    string
	Path      string // file directory or sqlite database
	DSN       string // postgres
	RedisAddr string
	RedisDB   int

	// How often file and sqlite subscribers check for writes made by other
	// processes
	PollInterval time.Duration
}

// Option configures optional store dependencies
type Option func(*options)

type options struct {
	logger *log.Logger
	clock  quartz.Clock
}

// WithLogger sets the logger used by background goroutines
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock used for polling
func WithClock(clock quartz.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: log.Default(),
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.WithPrefix("store")
	return o
}

const defaultPollInterval = 500 * time.Millisecond

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path, cfg.PollInterval, opts...)
	case "sqlite":
		return NewSQLite(ctx, cfg.Path, cfg.PollInterval, opts...)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN, opts...)
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB, opts...)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
