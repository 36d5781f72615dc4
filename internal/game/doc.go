// Package game implements the betting-round state machine of a shared poker
// table.
//
// The main type is Table, the aggregate persisted by the store: blinds, pot,
// the ordered seats and the dealer, turn and closing pointers. Table is a value
// type. Every transition is a method that returns a new Table and leaves its
// receiver untouched, so callers can compute an update from a snapshot they
// just read and write it back conditionally.
//
// # Basic Usage
//
//	t, _ := game.NewTable("t1", "p0", "Alice", 1, 2, 100)
//	t, _, _ = t.Join("p1", "Bob", 100)
//	t, _, _ = t.Join("p2", "Carol", 100)
//	t, _ = t.StartRound()
//	t, res, _ := t.Act("p0", game.Call, 0)
//	if res.StageAdvanced {
//	    // a new street began
//	}
//	t, _ = t.EndRound("p1")
//
// # Architecture
//
// Responsibilities are split across files:
//   - rotation.go: active-seat ordering, next-to-act lookup, blind positions, reseating
//   - betting.go: fold, call and raise, minimum raise
//   - round.go: completion detection and stage advancement
//   - lifecycle.go: table creation, joining, leaving, round start and end, edits
//   - diff.go: minimal path updates between two snapshots
//
// No cards are modelled. The winner of a round is decided outside the table
// and passed to EndRound.
package game
