package game

// Player is a seat at the table. Seats are never removed; a player who leaves
// keeps the seat record with Active set to false.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Chips      int    `json:"chips"`
	Folded     bool   `json:"folded"`
	CurrentBet int    `json:"currentBet"` // Committed in the current betting stage
	Active     bool   `json:"active"`
}

// live reports whether the seat is still contesting the current round
func (p Player) live() bool {
	return p.Active && !p.Folded
}

// toCall returns the chips p must add to match bet.
func (p Player) toCall(bet int) int {
	return max(bet-p.CurrentBet, 0)
}
