package game

import "strconv"

// Diff returns the set of document paths that changed between two snapshots of
// the same table, mapped to their new values. Per-seat fields are addressed as
// "players/<seat>/<field>" while the seating is unchanged; a join, leave or
// reorder replaces "players" as a whole. The version is owned by the store and
// never appears in the result.
func Diff(before, after Table) map[string]any {
	updates := make(map[string]any)
	set := func(path string, old, cur any) {
		if old != cur {
			updates[path] = cur
		}
	}

	set("updatedAt", before.UpdatedAt, after.UpdatedAt)
	set("smallBlind", before.SmallBlind, after.SmallBlind)
	set("bigBlind", before.BigBlind, after.BigBlind)
	set("pot", before.Pot, after.Pot)
	set("dealerPosition", before.DealerPosition, after.DealerPosition)
	set("currentTurn", before.CurrentTurn, after.CurrentTurn)
	set("currentBet", before.CurrentBet, after.CurrentBet)
	set("roundActive", before.RoundActive, after.RoundActive)
	set("roundStage", before.RoundStage, after.RoundStage)
	set("lastToAct", before.LastToAct, after.LastToAct)

	if !sameSeating(before.Players, after.Players) {
		updates["players"] = after.Players
		return updates
	}

	for i, cur := range after.Players {
		old := before.Players[i]
		prefix := "players/" + strconv.Itoa(i) + "/"
		set(prefix+"name", old.Name, cur.Name)
		set(prefix+"chips", old.Chips, cur.Chips)
		set(prefix+"folded", old.Folded, cur.Folded)
		set(prefix+"currentBet", old.CurrentBet, cur.CurrentBet)
		set(prefix+"active", old.Active, cur.Active)
	}
	return updates
}

func sameSeating(a, b []Player) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
