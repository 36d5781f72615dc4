package game

import (
	"fmt"
	"slices"
)

// MaxSeats is the number of seats at a table, counting seats of players who left.
const MaxSeats = 10

// Stage represents the current betting stage of a round
type Stage string

const (
	NoStage Stage = ""
	PreFlop Stage = "PRE_FLOP"
	Flop    Stage = "FLOP"
	Turn    Stage = "TURN"
	River   Stage = "RIVER"
)

// String returns the string representation of a stage
func (s Stage) String() string {
	switch s {
	case PreFlop:
		return "Pre-flop"
	case Flop:
		return "Flop"
	case Turn:
		return "Turn"
	case River:
		return "River"
	case NoStage:
		return "None"
	default:
		return "Unknown"
	}
}

// Next returns the stage that follows s. River is terminal.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case PreFlop:
		return Flop, true
	case Flop:
		return Turn, true
	case Turn:
		return River, true
	default:
		return s, false
	}
}

// Table is the persisted aggregate shared by every participant. All
// transitions are value methods returning a new Table; the receiver is never
// modified.
type Table struct {
	ID        string `json:"id"`
	Version   int64  `json:"version"`
	UpdatedAt int64  `json:"updatedAt"`

	SmallBlind int `json:"smallBlind"`
	BigBlind   int `json:"bigBlind"`
	Pot        int `json:"pot"`

	// Seat order; index is the seat number
	Players []Player `json:"players"`

	DealerPosition int   `json:"dealerPosition"`
	CurrentTurn    int   `json:"currentTurn"` // -1 when nobody may act
	CurrentBet     int   `json:"currentBet"`
	RoundActive    bool  `json:"roundActive"`
	RoundStage     Stage `json:"roundStage"`
	LastToAct      int   `json:"lastToAct"` // Seat that closes the current betting stage
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	t.Players = slices.Clone(t.Players)
	return t
}

// IndexOf returns the seat index of the player with the given id, or -1.
func (t Table) IndexOf(playerID string) int {
	for i, p := range t.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Player returns the seat with the given id.
func (t Table) Player(playerID string) (Player, bool) {
	idx := t.IndexOf(playerID)
	if idx < 0 {
		return Player{}, false
	}
	return t.Players[idx], true
}

// CurrentPlayer returns the seat whose turn it is
func (t Table) CurrentPlayer() (Player, bool) {
	if !t.validIndex(t.CurrentTurn) {
		return Player{}, false
	}
	return t.Players[t.CurrentTurn], true
}

// ShowdownPending reports a round whose betting is over and which waits for
// EndRound to award the pot.
func (t Table) ShowdownPending() bool {
	return t.RoundActive && t.CurrentTurn == -1
}

func (t Table) validIndex(i int) bool {
	return i >= 0 && i < len(t.Players)
}

func (t Table) liveCount() int {
	n := 0
	for _, p := range t.Players {
		if p.live() {
			n++
		}
	}
	return n
}

// String returns a one-line summary of the table state
func (t Table) String() string {
	action := "None"
	if p, ok := t.CurrentPlayer(); ok {
		action = p.Name
	}
	return fmt.Sprintf("%s - %s - Pot: $%d - Bet: $%d - Action on: %s",
		t.ID, t.RoundStage, t.Pot, t.CurrentBet, action)
}
