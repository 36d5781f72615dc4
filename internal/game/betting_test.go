package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{in: "fold", want: Fold},
		{in: " CALL ", want: Call},
		{in: "check", want: Call},
		{in: "raise", want: Raise},
		{in: "allin", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if tt.wantErr {
			var verr ValidationError
			assert.ErrorAs(t, err, &verr, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestActOutOfTurnIsIgnored(t *testing.T) {
	table := mustStart(t, NewTestTable(t))
	require.Equal(t, 0, table.CurrentTurn)

	for _, action := range []Action{Fold, Call, Raise} {
		for _, id := range []string{"p1", "p2", "nobody"} {
			next, res, err := table.Act(id, action, 10)
			require.NoError(t, err)
			assert.False(t, res.Applied)
			assert.Equal(t, table, next, "%s %s must not change the table", id, action)
		}
	}
}

func TestActIgnoredWithoutRound(t *testing.T) {
	table := NewTestTable(t)
	table.CurrentTurn = 0 // a stale pointer alone does not allow betting

	next, res, err := table.Act("p0", Call, 0)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, table, next)
}

func TestActInactiveSeatIsIgnored(t *testing.T) {
	table := mustStart(t, NewTestTable(t))
	table.Players[0].Active = false

	next, res, err := table.Act("p0", Call, 0)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, table, next)
}

func TestFold(t *testing.T) {
	table := mustStart(t, NewTestTable(t))

	next, res := mustAct(t, table, "p0", Fold, 0)
	assert.True(t, next.Players[0].Folded)
	assert.Equal(t, table.Pot, next.Pot)
	assert.Equal(t, table.Players[0].Chips, next.Players[0].Chips)
	assert.Equal(t, 1, next.CurrentTurn)
	assert.False(t, res.StageAdvanced)
	assert.False(t, table.Players[0].Folded, "receiver unchanged")
}

func TestCallAndCheck(t *testing.T) {
	table := mustStart(t, NewTestTable(t))

	next, _ := mustAct(t, table, "p0", Call, 0)
	assert.Equal(t, 98, next.Players[0].Chips)
	assert.Equal(t, 2, next.Players[0].CurrentBet)
	assert.Equal(t, 5, next.Pot)

	next, _ = mustAct(t, next, "p1", Call, 0)
	next, _ = mustAct(t, next, "p2", Call, 0)
	require.Equal(t, Flop, next.RoundStage)

	// Checking on the flop moves nothing but the turn
	before := next
	next, _ = mustAct(t, next, "p1", Call, 0)
	assert.Equal(t, before.Pot, next.Pot)
	assert.Equal(t, before.Players[1].Chips, next.Players[1].Chips)
	assert.Equal(t, 2, next.CurrentTurn)
}

func TestRaiseUsesIncrement(t *testing.T) {
	table := mustStart(t, NewTestTable(t))

	next, _ := mustAct(t, table, "p0", Raise, 4)
	p := next.Players[0]
	assert.Equal(t, 6, p.CurrentBet, "new total is table bet plus increment")
	assert.Equal(t, 94, p.Chips)
	assert.Equal(t, 6, next.CurrentBet)
	assert.Equal(t, 9, next.Pot)
	assert.Equal(t, 0, next.LastToAct, "raiser closes the action")
	assert.Equal(t, 1, next.CurrentTurn)

	// The small blind re-raises with chips already in front of them
	next, _ = mustAct(t, next, "p1", Raise, 4)
	p = next.Players[1]
	assert.Equal(t, 10, p.CurrentBet)
	assert.Equal(t, 90, p.Chips)
	assert.Equal(t, 18, next.Pot)
	assert.Equal(t, 1, next.LastToAct)
}

func TestRaiseValidation(t *testing.T) {
	table := mustStart(t, NewTestTable(t))

	t.Run("non-positive increment", func(t *testing.T) {
		next, res, err := table.Act("p0", Raise, 0)
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.False(t, res.Applied)
		assert.Equal(t, table, next)
	})

	t.Run("below minimum", func(t *testing.T) {
		next, _, err := table.Act("p0", Raise, 1)
		require.ErrorIs(t, err, ErrRaiseTooSmall)
		assert.Equal(t, table, next)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, _, err := table.Act("p0", Action("bet"), 0)
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestInsufficientChipsRejected(t *testing.T) {
	table := mustStart(t, NewTestTable(t))
	table.Players[0].Chips = 1

	next, res, err := table.Act("p0", Call, 0)
	require.ErrorIs(t, err, ErrInsufficientChips)
	var perr PreconditionError
	require.ErrorAs(t, err, &perr)
	assert.False(t, res.Applied)
	assert.Equal(t, table, next)
	assert.Equal(t, 1, next.Players[0].Chips, "chips never go negative")

	table.Players[0].Chips = 5
	_, _, err = table.Act("p0", Raise, 4)
	require.ErrorIs(t, err, ErrInsufficientChips)

	// Exactly enough is fine
	table.Players[0].Chips = 6
	next, _ = mustAct(t, table, "p0", Raise, 4)
	assert.Equal(t, 0, next.Players[0].Chips)
}

func TestMinRaise(t *testing.T) {
	tests := []struct {
		name       string
		currentBet int
		bets       []int
		want       int
	}{
		{name: "no bet yet", currentBet: 0, bets: []int{0, 0, 0}, want: 2},
		{name: "single bet is the opening bet", currentBet: 8, bets: []int{8, 0, 0}, want: 2},
		{name: "blinds posted", currentBet: 2, bets: []int{0, 1, 2}, want: 2},
		{name: "last raise size", currentBet: 12, bets: []int{12, 2, 0}, want: 10},
		{name: "raise smaller than big blind is floored", currentBet: 3, bets: []int{3, 2, 2}, want: 2},
		{name: "only the top two bets matter", currentBet: 30, bets: []int{30, 20, 4}, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTestTable(t)
			table.CurrentBet = tt.currentBet
			for i, bet := range tt.bets {
				table.Players[i].CurrentBet = bet
			}
			assert.Equal(t, tt.want, table.MinRaise())
		})
	}
}

func TestMinRaiseIgnoresInactiveSeats(t *testing.T) {
	table := NewTestTable(t)
	table.CurrentBet = 20
	table.Players[0].CurrentBet = 20
	table.Players[1].CurrentBet = 2
	table.Players[1].Active = false

	assert.Equal(t, 2, table.MinRaise())
}

func TestMinRaiseIsBigBlindWhenNoBet(t *testing.T) {
	// Whatever the seat bets say, an unopened street starts at one big blind
	table := NewTestTable(t, WithBlinds(5, 10))
	table.Players[0].CurrentBet = 50
	table.Players[1].CurrentBet = 7
	assert.Equal(t, 10, table.MinRaise())
}
