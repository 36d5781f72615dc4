package game

import "slices"

// ActiveSeat pairs a seated, active player with its seat index
type ActiveSeat struct {
	Index  int
	Player Player
}

// ActivePlayers returns the players who have not left the table, in seat order.
// Folded players are included.
func (t Table) ActivePlayers() []ActiveSeat {
	seats := make([]ActiveSeat, 0, len(t.Players))
	for i, p := range t.Players {
		if p.Active {
			seats = append(seats, ActiveSeat{Index: i, Player: p})
		}
	}
	return seats
}

// activeOrder returns the seat indices of active players in seat order. All
// rotation math happens in this index space and converts back to seat
// indices for storage.
func (t Table) activeOrder() []int {
	order := make([]int, 0, len(t.Players))
	for i, p := range t.Players {
		if p.Active {
			order = append(order, i)
		}
	}
	return order
}

// NextActivePlayer finds the next active, unfolded seat after from, wrapping
// around the table. When from is not an active seat the scan starts at the
// first active seat. After one full lap without finding an unfolded seat it
// returns wherever the scan stopped; -1 is returned only when nobody is active.
func (t Table) NextActivePlayer(from int) int {
	order := t.activeOrder()
	n := len(order)
	if n == 0 {
		return -1
	}

	// -1 when from is not active, which makes the scan begin at order[0]
	pos := slices.Index(order, from)
	next := (pos + 1) % n
	for attempts := 0; t.Players[order[next]].Folded && attempts < n; attempts++ {
		next = (next + 1) % n
	}
	return order[next]
}

// dealerOrderPosition returns the dealer's position in active order, falling
// back to the first active seat when the dealer seat is no longer active.
func (t Table) dealerOrderPosition(order []int) int {
	if pos := slices.Index(order, t.DealerPosition); pos >= 0 {
		return pos
	}
	return 0
}

// blindSeats resolves the dealer, small blind and big blind seats. Heads-up the
// dealer also posts the big blind.
func (t Table) blindSeats() (dealer, sb, bb int, ok bool) {
	order := t.activeOrder()
	n := len(order)
	if n == 0 {
		return -1, -1, -1, false
	}
	d := t.dealerOrderPosition(order)
	return order[d], order[(d+1)%n], order[(d+2)%n], true
}

// closingSeat returns the seat that closes a post-flop street: the dealer, or
// when the dealer has folded, the nearest live seat before the dealer.
func (t Table) closingSeat() int {
	order := t.activeOrder()
	n := len(order)
	if n == 0 {
		return -1
	}
	d := t.dealerOrderPosition(order)
	for i := 0; i < n; i++ {
		seat := order[(d-i+n)%n]
		if !t.Players[seat].Folded {
			return seat
		}
	}
	return order[d]
}

// reseat moves players who left to the end of the seat list, keeping relative
// order inside both groups.
func (t Table) reseat() Table {
	perm := make([]int, 0, len(t.Players))
	for i, p := range t.Players {
		if p.Active {
			perm = append(perm, i)
		}
	}
	for i, p := range t.Players {
		if !p.Active {
			perm = append(perm, i)
		}
	}
	return t.permute(perm)
}

// permute rebuilds the seat list so that new seat i holds old seat perm[i],
// and remaps every seat pointer. Seats missing from perm are dropped.
func (t Table) permute(perm []int) Table {
	oldToNew := make(map[int]int, len(perm))
	players := make([]Player, 0, len(perm))
	for newIdx, oldIdx := range perm {
		oldToNew[oldIdx] = newIdx
		players = append(players, t.Players[oldIdx])
	}

	remap := func(seat int) int {
		if idx, ok := oldToNew[seat]; ok {
			return idx
		}
		return seat
	}

	t.Players = players
	t.DealerPosition = remap(t.DealerPosition)
	t.CurrentTurn = remap(t.CurrentTurn)
	t.LastToAct = remap(t.LastToAct)
	return t
}
