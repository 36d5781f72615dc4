package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTableOption configures test table creation
type TestTableOption func(*testTableBuilder)

type testTableBuilder struct {
	smallBlind int
	bigBlind   int
	chips      int
	players    []string
}

func WithBlinds(small, big int) TestTableOption {
	return func(b *testTableBuilder) {
		b.smallBlind = small
		b.bigBlind = big
	}
}

func WithChips(chips int) TestTableOption {
	return func(b *testTableBuilder) { b.chips = chips }
}

func WithPlayers(names ...string) TestTableOption {
	return func(b *testTableBuilder) { b.players = names }
}

// NewTestTable creates a table with players P0..P2 holding 100 chips each at
// 1/2 blinds. Player ids are "p0", "p1", ... and the dealer is seat 0.
func NewTestTable(t *testing.T, opts ...TestTableOption) Table {
	t.Helper()

	b := &testTableBuilder{
		smallBlind: 1,
		bigBlind:   2,
		chips:      100,
		players:    []string{"P0", "P1", "P2"},
	}
	for _, opt := range opts {
		opt(b)
	}

	table, err := NewTable("t1", "p0", b.players[0], b.smallBlind, b.bigBlind, b.chips)
	require.NoError(t, err)
	for i, name := range b.players[1:] {
		table, _, err = table.Join(fmt.Sprintf("p%d", i+1), name, b.chips)
		require.NoError(t, err)
	}
	return table
}

// mustAct applies an action that is expected to be accepted
func mustAct(t *testing.T, table Table, playerID string, action Action, amount int) (Table, ActionResult) {
	t.Helper()
	next, res, err := table.Act(playerID, action, amount)
	require.NoError(t, err)
	require.True(t, res.Applied, "%s %s was not applied", playerID, action)
	return next, res
}

func mustStart(t *testing.T, table Table) Table {
	t.Helper()
	next, err := table.StartRound()
	require.NoError(t, err)
	return next
}
