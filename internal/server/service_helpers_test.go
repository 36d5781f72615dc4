package server

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/chiptable/internal/game"
	"github.com/lox/chiptable/internal/store"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestService(t *testing.T, st store.Store) *GameService {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewGameService(st, testLogger(), quartz.NewReal(), ServiceOptions{MaxAttempts: 3})
}

// seatedTable creates a 1/2 table hosted by Alice and joined by Bob and Carol
func seatedTable(t *testing.T, gs *GameService) (game.Table, []string) {
	t.Helper()
	ctx := context.Background()

	table, host, err := gs.CreateTable(ctx, "t1", "Alice", 1, 2, 100)
	require.NoError(t, err)
	ids := []string{host}
	for _, name := range []string{"Bob", "Carol"} {
		var id string
		table, id, err = gs.JoinTable(ctx, "t1", name, 100)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return table, ids
}

// racingStore loses the first n conditional writes as if another writer
// had committed first
type racingStore struct {
	store.Store
	lose    int64
	updates atomic.Int64
}

func (r *racingStore) Update(ctx context.Context, id string, version int64, updates store.Updates) (store.Snapshot, error) {
	if r.updates.Add(1) <= r.lose {
		return store.Snapshot{}, store.ErrVersionConflict
	}
	return r.Store.Update(ctx, id, version, updates)
}
