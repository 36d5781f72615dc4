package game

// IsComplete reports whether the current betting stage is finished: at most one
// live player remains, or every live bet matches the table bet and the action
// has come back around to the seat after the closing player.
func (t Table) IsComplete() bool {
	if t.liveCount() <= 1 {
		return true
	}

	for _, p := range t.Players {
		if p.live() && p.CurrentBet != t.CurrentBet {
			return false
		}
	}

	// The closing player folded or left, so matched bets are enough
	if !t.validIndex(t.LastToAct) || !t.Players[t.LastToAct].live() {
		return true
	}

	return t.CurrentTurn == t.NextActivePlayer(t.LastToAct)
}

// AdvanceStage moves the round to the next street: bets are reset (the pot
// already holds them), the dealer closes the street and the first active seat
// after the dealer acts. River is terminal; a table with no active seats is
// returned unchanged.
func (t Table) AdvanceStage() Table {
	order := t.activeOrder()
	if len(order) == 0 {
		return t
	}
	stage, ok := t.RoundStage.Next()
	if !ok {
		return t
	}

	next := t.Clone()
	next.RoundStage = stage
	next.CurrentBet = 0
	for i := range next.Players {
		if next.Players[i].Active {
			next.Players[i].CurrentBet = 0
		}
	}

	dealer := order[next.dealerOrderPosition(order)]
	next.LastToAct = next.closingSeat()
	next.CurrentTurn = next.NextActivePlayer(dealer)
	return next
}

// settle runs the completion detector after a seat has acted. A finished
// stage advances while more than one player is live and the river has not
// been played; otherwise betting stops and the round waits for EndRound.
func (t Table) settle() (Table, bool) {
	if !t.RoundActive || t.CurrentTurn == -1 || !t.IsComplete() {
		return t, false
	}
	if t.liveCount() > 1 && t.RoundStage != River {
		return t.AdvanceStage(), true
	}
	t.CurrentTurn = -1
	return t, false
}
