package game

import (
	"fmt"
	"slices"
	"strings"
)

// Action represents a player action
type Action string

const (
	Fold  Action = "fold"
	Call  Action = "call" // A call of zero is a check
	Raise Action = "raise"
)

// ParseAction converts a wire string into an Action
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Fold, Call, Raise:
		return a, nil
	case "check":
		return Call, nil
	default:
		return "", invalidf("unknown action %q", s)
	}
}

// ActionResult describes what a betting action did to the table
type ActionResult struct {
	Applied         bool  `json:"applied"`         // False when the actor was not allowed to act
	StageAdvanced   bool  `json:"stageAdvanced"`   // The action closed the stage and the next one began
	Stage           Stage `json:"stage"`           // Stage after the action
	ShowdownPending bool  `json:"showdownPending"` // Betting is over, waiting for EndRound
}

// Act applies a fold, call or raise for playerID and evaluates round
// completion in the same step. raiseAmount is the increment over the table's
// current bet, not the new total.
//
// An actor who is unknown, inactive or out of turn is ignored: the table is
// returned unchanged with Applied set to false and a nil error, so duplicate or
// late submissions are harmless.
func (t Table) Act(playerID string, action Action, raiseAmount int) (Table, ActionResult, error) {
	unchanged := ActionResult{Stage: t.RoundStage, ShowdownPending: t.ShowdownPending()}

	switch action {
	case Fold, Call:
	case Raise:
		if raiseAmount <= 0 {
			return t, unchanged, invalidf("raise amount must be positive, got %d", raiseAmount)
		}
	default:
		return t, unchanged, invalidf("unknown action %q", action)
	}

	seat := t.IndexOf(playerID)
	if seat < 0 || !t.RoundActive || seat != t.CurrentTurn || !t.Players[seat].Active {
		return t, unchanged, nil
	}

	next := t.Clone()
	p := &next.Players[seat]

	switch action {
	case Fold:
		p.Folded = true

	case Call:
		amount := p.toCall(next.CurrentBet)
		if amount > p.Chips {
			return t, unchanged, fmt.Errorf("%w: call needs %d, %s has %d", ErrInsufficientChips, amount, p.Name, p.Chips)
		}
		p.Chips -= amount
		p.CurrentBet = next.CurrentBet
		next.Pot += amount

	case Raise:
		if minRaise := t.MinRaise(); raiseAmount < minRaise {
			return t, unchanged, fmt.Errorf("%w: raise of %d is below minimum %d", ErrRaiseTooSmall, raiseAmount, minRaise)
		}
		total := next.CurrentBet + raiseAmount
		amount := total - p.CurrentBet
		if amount > p.Chips {
			return t, unchanged, fmt.Errorf("%w: raise needs %d, %s has %d", ErrInsufficientChips, amount, p.Name, p.Chips)
		}
		p.Chips -= amount
		p.CurrentBet = total
		next.Pot += amount
		next.CurrentBet = total
		next.LastToAct = seat // Reopens betting for everyone else
	}

	next.CurrentTurn = next.NextActivePlayer(seat)

	next, advanced := next.settle()
	return next, ActionResult{
		Applied:         true,
		StageAdvanced:   advanced,
		Stage:           next.RoundStage,
		ShowdownPending: next.ShowdownPending(),
	}, nil
}

// MinRaise returns the smallest raise increment allowed: the size of the last
// raise on this street, never less than one big blind.
func (t Table) MinRaise() int {
	if t.CurrentBet == 0 {
		return t.BigBlind
	}

	bets := make([]int, 0, len(t.Players))
	for _, p := range t.Players {
		if p.Active && p.CurrentBet > 0 {
			bets = append(bets, p.CurrentBet)
		}
	}
	if len(bets) < 2 {
		return t.BigBlind
	}

	slices.Sort(bets)
	slices.Reverse(bets)
	return max(t.BigBlind, bets[0]-bets[1])
}
