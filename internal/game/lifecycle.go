package game

import (
	"fmt"
	"strings"
)

// NewTable creates a table with its first seated player and no active round.
func NewTable(id, playerID, name string, smallBlind, bigBlind, buyIn int) (Table, error) {
	if id == "" {
		return Table{}, invalidf("table id is required")
	}
	if err := validateBlinds(smallBlind, bigBlind); err != nil {
		return Table{}, err
	}
	host, err := newPlayer(playerID, name, buyIn)
	if err != nil {
		return Table{}, err
	}

	return Table{
		ID:             id,
		SmallBlind:     smallBlind,
		BigBlind:       bigBlind,
		Players:        []Player{host},
		DealerPosition: 0,
		CurrentTurn:    -1,
		LastToAct:      -1,
	}, nil
}

func newPlayer(id, name string, buyIn int) (Player, error) {
	name = strings.TrimSpace(name)
	switch {
	case id == "":
		return Player{}, invalidf("player id is required")
	case name == "":
		return Player{}, invalidf("player name is required")
	case buyIn < 0:
		return Player{}, invalidf("buy-in cannot be negative, got %d", buyIn)
	}
	return Player{ID: id, Name: name, Chips: buyIn, Active: true}, nil
}

func validateBlinds(smallBlind, bigBlind int) error {
	if smallBlind <= 0 || bigBlind <= 0 {
		return invalidf("blinds must be positive, got %d/%d", smallBlind, bigBlind)
	}
	if smallBlind > bigBlind {
		return invalidf("small blind %d exceeds big blind %d", smallBlind, bigBlind)
	}
	return nil
}

// Join seats a player and returns the id of the seat they occupy. Identity is
// the display name: a name already seated returns that seat unchanged, and a
// name matching a player who left reactivates their seat with its old stack.
// Otherwise a new seat is appended under playerID. Anyone seated while a round
// is running sits that round out.
func (t Table) Join(playerID, name string, buyIn int) (Table, string, error) {
	p, err := newPlayer(playerID, name, buyIn)
	if err != nil {
		return t, "", err
	}

	for i, seated := range t.Players {
		if seated.Name != p.Name {
			continue
		}
		if seated.Active {
			return t, seated.ID, nil
		}
		next := t.Clone()
		next.Players[i].Active = true
		next.Players[i].Folded = next.RoundActive
		next.Players[i].CurrentBet = 0
		return next, seated.ID, nil
	}

	if len(t.Players) >= MaxSeats {
		return t, "", ErrTableFull
	}
	if t.IndexOf(playerID) >= 0 {
		return t, "", invalidf("duplicate player id %q", playerID)
	}

	next := t.Clone()
	p.Folded = next.RoundActive
	next.Players = append(next.Players, p)
	return next, p.ID, nil
}

// Leave marks a player as gone. Mid-round they fold first, passing the turn on
// if it was theirs. Seats of departed players move to the end of the table.
func (t Table) Leave(playerID string) (Table, error) {
	idx := t.IndexOf(playerID)
	if idx < 0 {
		return t, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	return t.withdraw(idx).reseat(), nil
}

// withdraw deactivates the seat at idx. A live seat folds, and leaving on
// your turn counts as your action.
func (t Table) withdraw(idx int) Table {
	next := t.Clone()
	p := &next.Players[idx]
	heldTurn := false
	if next.RoundActive && p.Active && !p.Folded {
		p.Folded = true
		if next.CurrentTurn == idx {
			heldTurn = true
			next.CurrentTurn = next.NextActivePlayer(idx)
		}
	}
	p.Active = false

	if next.RoundActive && (heldTurn || next.liveCount() <= 1) {
		next, _ = next.settle()
	}
	return next
}

// StartRound posts the blinds and opens pre-flop betting. The dealer is
// resolved among active seats, the next two active seats post the small and
// big blind, and the seat after the big blind acts first.
func (t Table) StartRound() (Table, error) {
	if t.RoundActive {
		return t, ErrRoundInProgress
	}
	if len(t.activeOrder()) < 2 {
		return t, ErrNotEnoughPlayers
	}

	dealer, sb, bb, _ := t.blindSeats()
	if t.Players[sb].Chips < t.SmallBlind {
		return t, fmt.Errorf("%w: %s cannot post the small blind", ErrInsufficientChips, t.Players[sb].Name)
	}
	if t.Players[bb].Chips < t.BigBlind {
		return t, fmt.Errorf("%w: %s cannot post the big blind", ErrInsufficientChips, t.Players[bb].Name)
	}

	next := t.Clone()
	for i := range next.Players {
		next.Players[i].CurrentBet = 0
		if next.Players[i].Active {
			next.Players[i].Folded = false
		}
	}

	next.Players[sb].Chips -= next.SmallBlind
	next.Players[sb].CurrentBet = next.SmallBlind
	next.Players[bb].Chips -= next.BigBlind
	next.Players[bb].CurrentBet = next.BigBlind

	next.Pot = next.SmallBlind + next.BigBlind
	next.CurrentBet = next.BigBlind
	next.RoundActive = true
	next.RoundStage = PreFlop
	next.DealerPosition = dealer
	next.LastToAct = bb
	next.CurrentTurn = next.NextActivePlayer(bb)
	return next, nil
}

// MoveDealer passes the dealer button to the next active seat. The button is
// fixed while a round is running, so this returns ErrRoundInProgress then.
func (t Table) MoveDealer() (Table, error) {
	if t.RoundActive {
		return t, ErrRoundInProgress
	}
	order := t.activeOrder()
	if len(order) == 0 {
		return t, ErrNotEnoughPlayers
	}
	next := t.Clone()
	next.DealerPosition = order[(t.dealerOrderPosition(order)+1)%len(order)]
	return next, nil
}

// EndRound awards the whole pot to winnerID, resets the round and rotates the
// dealer for the next hand. It fails with ErrNoRoundInProgress once the round
// has already ended, so a repeated submission does not move the button again.
func (t Table) EndRound(winnerID string) (Table, error) {
	idx := t.IndexOf(winnerID)
	if idx < 0 {
		return t, fmt.Errorf("%w: %s", ErrPlayerNotFound, winnerID)
	}
	if !t.RoundActive {
		return t, ErrNoRoundInProgress
	}

	next := t.Clone()
	next.Players[idx].Chips += next.Pot
	next.Pot = 0
	next.CurrentBet = 0
	next.RoundActive = false
	next.RoundStage = NoStage
	next.CurrentTurn = -1
	next.LastToAct = -1
	for i := range next.Players {
		next.Players[i].CurrentBet = 0
		next.Players[i].Folded = false
	}

	if order := next.activeOrder(); len(order) > 0 {
		next.DealerPosition = order[(next.dealerOrderPosition(order)+1)%len(order)]
	}
	return next, nil
}

// SetChips overwrites a player's stack.
func (t Table) SetChips(playerID string, chips int) (Table, error) {
	if chips < 0 {
		return t, invalidf("chips cannot be negative, got %d", chips)
	}
	idx := t.IndexOf(playerID)
	if idx < 0 {
		return t, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	next := t.Clone()
	next.Players[idx].Chips = chips
	return next, nil
}

// SetBlinds overwrites the blind sizes. They apply from the next posting.
func (t Table) SetBlinds(smallBlind, bigBlind int) (Table, error) {
	if err := validateBlinds(smallBlind, bigBlind); err != nil {
		return t, err
	}
	t.SmallBlind = smallBlind
	t.BigBlind = bigBlind
	return t.Clone(), nil
}

// Reorder rebuilds the seat order from playerIDs. Unknown and repeated ids are
// ignored; seats not named keep their relative order after the named ones.
// Dealer, turn and closing pointers follow their players.
func (t Table) Reorder(playerIDs []string) (Table, error) {
	placed := make([]bool, len(t.Players))
	perm := make([]int, 0, len(t.Players))
	for _, id := range playerIDs {
		idx := t.IndexOf(id)
		if idx < 0 || placed[idx] {
			continue
		}
		placed[idx] = true
		perm = append(perm, idx)
	}
	for idx := range t.Players {
		if !placed[idx] {
			perm = append(perm, idx)
		}
	}
	return t.permute(perm), nil
}

// SetActive marks a player as present or away without moving their seat.
// Going away mid-round folds the player like Leave does, and coming back
// mid-round sits the rest of that round out like Join does.
func (t Table) SetActive(playerID string, active bool) (Table, error) {
	idx := t.IndexOf(playerID)
	if idx < 0 {
		return t, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if t.Players[idx].Active == active {
		return t, nil
	}
	if !active {
		return t.withdraw(idx), nil
	}

	next := t.Clone()
	next.Players[idx].Active = true
	if next.RoundActive {
		next.Players[idx].Folded = true
		next.Players[idx].CurrentBet = 0
	}
	return next, nil
}
