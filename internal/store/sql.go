package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	sqlite dialect = iota
	postgres
)

func (d dialect) String() string {
	if d == postgres {
		return "postgres"
	}
	return "sqlite"
}

// Channel used for LISTEN/NOTIFY on postgres
const notifyChannel = "chiptable_updates"

const sqlSchema = `
CREATE TABLE IF NOT EXISTS chip_tables (
    id TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    doc TEXT NOT NULL,
    updated_at BIGINT NOT NULL
)`

// SQL stores documents in a relational database, one row per table. The
// version column makes the conditional write a single UPDATE.
type SQL struct {
	db      *sql.DB
	dialect dialect
	every   time.Duration
	clock   quartz.Clock
	logger  *log.Logger
	hub     *hub

	listener  *pq.Listener
	done      chan struct{}
	closeOnce sync.Once
}

var _ Store = (*SQL)(nil)

// NewSQLite opens (or creates) a sqlite database at path
func NewSQLite(ctx context.Context, path string, pollInterval time.Duration, opts ...Option) (*SQL, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return newSQL(ctx, db, sqlite, pollInterval, opts)
}

// NewPostgres connects to postgres and listens for commits made by other
// processes
func NewPostgres(ctx context.Context, dsn string, opts ...Option) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s, err := newSQL(ctx, db, postgres, 0, opts)
	if err != nil {
		return nil, err
	}

	s.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("Listener event", "event", ev, "error", err)
		}
	})
	if err := s.listener.Listen(notifyChannel); err != nil {
		_ = s.listener.Close()
		_ = db.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	go s.listen()

	return s, nil
}

func newSQL(ctx context.Context, db *sql.DB, d dialect, every time.Duration, opts []Option) (*SQL, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	o := buildOptions(opts)
	return &SQL{
		db:      db,
		dialect: d,
		every:   every,
		clock:   o.clock,
		logger:  o.logger.With("driver", d.String()),
		hub:     newHub(),
		done:    make(chan struct{}),
	}, nil
}

// rebind rewrites ? placeholders for the postgres driver
func (s *SQL) rebind(query string) string {
	if s.dialect != postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) Create(ctx context.Context, id string, doc []byte) (Snapshot, error) {
	data, err := initDocument(id, doc)
	if err != nil {
		return Snapshot{}, err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO chip_tables (id, version, doc, updated_at)
VALUES (?, 1, ?, ?)`), id, string(data), s.clock.Now().UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return Snapshot{}, ErrExists
		}
		return Snapshot{}, fmt.Errorf("insert table: %w", err)
	}

	snap := Snapshot{ID: id, Version: 1, Data: data}
	s.hub.publish(snap)
	return snap, nil
}

func (s *SQL) Get(ctx context.Context, id string) (Snapshot, error) {
	var (
		version int64
		doc     string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT version, doc FROM chip_tables WHERE id = ?`), id).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("select table: %w", err)
	}
	return Snapshot{ID: id, Version: version, Data: []byte(doc)}, nil
}

func (s *SQL) Update(ctx context.Context, id string, version int64, updates Updates) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		current int64
		doc     string
	)
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT version, doc FROM chip_tables WHERE id = ?`), id).Scan(&current, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("select table: %w", err)
	}
	if current != version {
		return Snapshot{}, ErrVersionConflict
	}

	next, err := applyUpdates([]byte(doc), version, updates)
	if err != nil {
		return Snapshot{}, err
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
UPDATE chip_tables SET version = ?, doc = ?, updated_at = ?
WHERE id = ? AND version = ?`), version+1, string(next), s.clock.Now().UnixMilli(), id, version)
	if err != nil {
		return Snapshot{}, fmt.Errorf("update table: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Snapshot{}, err
	} else if n == 0 {
		return Snapshot{}, ErrVersionConflict
	}

	if s.dialect == postgres {
		// Delivered to listeners on commit
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, id); err != nil {
			return Snapshot{}, fmt.Errorf("notify: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{ID: id, Version: version + 1, Data: next}
	s.hub.publish(snap)
	return snap, nil
}

func (s *SQL) Subscribe(ctx context.Context, id string) (<-chan Snapshot, error) {
	sub, err := s.hub.subscribe(ctx, id, s.Get)
	if err != nil {
		return nil, err
	}
	if s.dialect == sqlite {
		go s.hub.poll(ctx, id, s.clock, s.every, s.Get, s.logger)
	}
	return sub.ch, nil
}

// listen turns postgres notifications into published snapshots
func (s *SQL) listen() {
	ping := s.clock.NewTicker(90*time.Second, "store", "listener")
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			return

		case n := <-s.listener.Notify:
			// A nil notification follows a reconnect
			if n == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			snap, err := s.Get(ctx, n.Extra)
			cancel()
			if err != nil {
				s.logger.Warn("Failed to load notified table", "table", n.Extra, "error", err)
				continue
			}
			s.hub.publish(snap)

		case <-ping.C:
			go func() { _ = s.listener.Ping() }()
		}
	}
}

func (s *SQL) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.hub.close()
		err = s.db.Close()
	})
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
