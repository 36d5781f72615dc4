package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/chiptable/internal/game"
	"github.com/lox/chiptable/internal/gameid"
	"github.com/lox/chiptable/internal/store"
)

// ErrConflict is returned when a write kept losing to concurrent writers
var ErrConflict = errors.New("table is being updated concurrently, try again")

// ServiceOptions tunes the retry loop
type ServiceOptions struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// GameService runs table operations against the shared store. Every
// operation reads the latest snapshot, computes the next table with a pure
// transition and writes back only the changed paths, conditional on the
// version it read. A lost race is retried from a fresh read.
type GameService struct {
	store   store.Store
	logger  *log.Logger
	clock   quartz.Clock
	ids     *gameid.Generator
	options ServiceOptions
}

// NewGameService creates a new game service
func NewGameService(st store.Store, logger *log.Logger, clock quartz.Clock, opts ServiceOptions) *GameService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &GameService{
		store:   st,
		logger:  logger.WithPrefix("game-service"),
		clock:   clock,
		ids:     gameid.NewGenerator(nil),
		options: opts,
	}
}

// CreateTable creates a table with hostName in the first seat and returns it
// with the host's player id. An empty tableID generates one.
func (gs *GameService) CreateTable(ctx context.Context, tableID, hostName string, smallBlind, bigBlind, buyIn int) (game.Table, string, error) {
	if tableID == "" {
		tableID = gs.ids.TableID()
	}
	playerID := gs.ids.PlayerID()

	table, err := game.NewTable(tableID, playerID, hostName, smallBlind, bigBlind, buyIn)
	if err != nil {
		return game.Table{}, "", err
	}
	table.UpdatedAt = gs.clock.Now().UnixMilli()

	doc, err := json.Marshal(table)
	if err != nil {
		return game.Table{}, "", fmt.Errorf("encode table: %w", err)
	}
	snap, err := gs.store.Create(ctx, tableID, doc)
	if errors.Is(err, store.ErrExists) {
		return game.Table{}, "", game.PreconditionError(fmt.Sprintf("table %s already exists", tableID))
	}
	if err != nil {
		return game.Table{}, "", fmt.Errorf("create table: %w", err)
	}

	created, err := decodeTable(snap)
	if err != nil {
		return game.Table{}, "", err
	}
	gs.logger.Info("Table created", "table", tableID, "host", hostName, "blinds", fmt.Sprintf("%d/%d", smallBlind, bigBlind))
	return created, playerID, nil
}

// GetTable returns the latest snapshot of a table
func (gs *GameService) GetTable(ctx context.Context, tableID string) (game.Table, error) {
	if err := requireID("table id", tableID); err != nil {
		return game.Table{}, err
	}
	snap, err := gs.store.Get(ctx, tableID)
	if err != nil {
		return game.Table{}, storeError(err)
	}
	return decodeTable(snap)
}

// JoinTable seats name at the table, or returns the seat they already hold
func (gs *GameService) JoinTable(ctx context.Context, tableID, name string, buyIn int) (game.Table, string, error) {
	var playerID string
	candidate := gs.ids.PlayerID()

	table, err := gs.mutate(ctx, tableID, "join", func(t game.Table) (game.Table, error) {
		next, id, err := t.Join(candidate, name, buyIn)
		playerID = id
		return next, err
	})
	if err != nil {
		return table, "", err
	}
	gs.logger.Info("Player joined", "table", tableID, "player", playerID, "name", strings.TrimSpace(name))
	return table, playerID, nil
}

// LeaveTable deactivates a seat, folding it first if a round is running
func (gs *GameService) LeaveTable(ctx context.Context, tableID, playerID string) (game.Table, error) {
	if err := requireID("player id", playerID); err != nil {
		return game.Table{}, err
	}
	return gs.mutate(ctx, tableID, "leave", func(t game.Table) (game.Table, error) {
		return t.Leave(playerID)
	})
}

// StartRound posts blinds and opens pre-flop betting
func (gs *GameService) StartRound(ctx context.Context, tableID string) (game.Table, error) {
	return gs.mutate(ctx, tableID, "start", func(t game.Table) (game.Table, error) {
		return t.StartRound()
	})
}

// MoveDealer passes the button to the next active seat
func (gs *GameService) MoveDealer(ctx context.Context, tableID string) (game.Table, error) {
	return gs.mutate(ctx, tableID, "dealer", func(t game.Table) (game.Table, error) {
		return t.MoveDealer()
	})
}

// PlayerAction applies a fold, call or raise. An out-of-turn action leaves
// the table untouched and reports Applied=false.
func (gs *GameService) PlayerAction(ctx context.Context, tableID, playerID string, action game.Action, raiseAmount int) (game.Table, game.ActionResult, error) {
	if err := requireID("player id", playerID); err != nil {
		return game.Table{}, game.ActionResult{}, err
	}

	var result game.ActionResult
	table, err := gs.mutate(ctx, tableID, "action", func(t game.Table) (game.Table, error) {
		next, res, err := t.Act(playerID, action, raiseAmount)
		result = res
		return next, err
	})
	if err != nil {
		return table, game.ActionResult{}, err
	}

	if !result.Applied {
		gs.logger.Debug("Ignored stale action", "table", tableID, "player", playerID, "action", action)
	} else if result.StageAdvanced {
		gs.logger.Info("Stage advanced", "table", tableID, "stage", result.Stage)
	}
	return table, result, nil
}

// EndRound awards the pot to winnerID and resets the round
func (gs *GameService) EndRound(ctx context.Context, tableID, winnerID string) (game.Table, error) {
	if err := requireID("winner id", winnerID); err != nil {
		return game.Table{}, err
	}
	table, err := gs.mutate(ctx, tableID, "end", func(t game.Table) (game.Table, error) {
		return t.EndRound(winnerID)
	})
	if err == nil {
		gs.logger.Info("Round ended", "table", tableID, "winner", winnerID)
	}
	return table, err
}

// UpdatePlayerChips overwrites a player's stack
func (gs *GameService) UpdatePlayerChips(ctx context.Context, tableID, playerID string, chips int) (game.Table, error) {
	if err := requireID("player id", playerID); err != nil {
		return game.Table{}, err
	}
	return gs.mutate(ctx, tableID, "chips", func(t game.Table) (game.Table, error) {
		return t.SetChips(playerID, chips)
	})
}

// UpdateBlinds overwrites the blind sizes
func (gs *GameService) UpdateBlinds(ctx context.Context, tableID string, smallBlind, bigBlind int) (game.Table, error) {
	return gs.mutate(ctx, tableID, "blinds", func(t game.Table) (game.Table, error) {
		return t.SetBlinds(smallBlind, bigBlind)
	})
}

// UpdatePlayerPositions reorders the seats to follow playerIDs
func (gs *GameService) UpdatePlayerPositions(ctx context.Context, tableID string, playerIDs []string) (game.Table, error) {
	return gs.mutate(ctx, tableID, "positions", func(t game.Table) (game.Table, error) {
		return t.Reorder(playerIDs)
	})
}

// SetPlayerActive overwrites a player's active flag
func (gs *GameService) SetPlayerActive(ctx context.Context, tableID, playerID string, active bool) (game.Table, error) {
	if err := requireID("player id", playerID); err != nil {
		return game.Table{}, err
	}
	return gs.mutate(ctx, tableID, "active", func(t game.Table) (game.Table, error) {
		return t.SetActive(playerID, active)
	})
}

// Subscribe streams the table, starting with its current state, until ctx
// is done. Intermediate states may be skipped when the reader falls behind.
func (gs *GameService) Subscribe(ctx context.Context, tableID string) (<-chan game.Table, error) {
	if err := requireID("table id", tableID); err != nil {
		return nil, err
	}
	snaps, err := gs.store.Subscribe(ctx, tableID)
	if err != nil {
		return nil, storeError(err)
	}

	out := make(chan game.Table)
	go func() {
		defer close(out)
		for snap := range snaps {
			table, err := decodeTable(snap)
			if err != nil {
				gs.logger.Error("Dropping undecodable snapshot", "table", tableID, "version", snap.Version, "error", err)
				continue
			}
			select {
			case out <- table:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type transition func(game.Table) (game.Table, error)

// mutate runs fn against the latest snapshot and writes the difference back.
// A transition error aborts without writing. An empty difference, such as a
// stale action, is not written at all.
func (gs *GameService) mutate(ctx context.Context, tableID, op string, fn transition) (game.Table, error) {
	if err := requireID("table id", tableID); err != nil {
		return game.Table{}, err
	}
	logger := gs.logger.With("table", tableID, "op", op)

	for attempt := 1; ; attempt++ {
		snap, err := gs.store.Get(ctx, tableID)
		if err != nil {
			return game.Table{}, storeError(err)
		}
		current, err := decodeTable(snap)
		if err != nil {
			return game.Table{}, err
		}

		next, err := fn(current)
		if err != nil {
			return current, err
		}

		updates := game.Diff(current, next)
		if len(updates) == 0 {
			return current, nil
		}
		updates["updatedAt"] = gs.clock.Now().UnixMilli()

		committed, err := gs.store.Update(ctx, tableID, snap.Version, store.Updates(updates))
		if err == nil {
			logger.Debug("Committed", "version", committed.Version, "paths", len(updates))
			return decodeTable(committed)
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return current, storeError(err)
		}

		if attempt >= gs.options.MaxAttempts {
			logger.Warn("Giving up after version conflicts", "attempts", attempt)
			return current, ErrConflict
		}
		logger.Debug("Version conflict, retrying", "attempt", attempt, "version", snap.Version)
		if err := gs.backoff(ctx, attempt); err != nil {
			return current, err
		}
	}
}

// backoff waits a little longer after every lost race
func (gs *GameService) backoff(ctx context.Context, attempt int) error {
	if gs.options.RetryBackoff <= 0 {
		return ctx.Err()
	}
	timer := gs.clock.NewTimer(gs.options.RetryBackoff*time.Duration(attempt), "service", "backoff")
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decodeTable(snap store.Snapshot) (game.Table, error) {
	var t game.Table
	if err := snap.Decode(&t); err != nil {
		return game.Table{}, fmt.Errorf("decode table %s: %w", snap.ID, err)
	}
	t.Version = snap.Version
	return t, nil
}

// storeError maps store errors onto the game error taxonomy
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return game.ErrTableNotFound
	case errors.Is(err, store.ErrVersionConflict):
		return ErrConflict
	default:
		return fmt.Errorf("store: %w", err)
	}
}

func requireID(what, id string) error {
	if strings.TrimSpace(id) == "" {
		return game.ValidationError(what + " is required")
	}
	return nil
}
