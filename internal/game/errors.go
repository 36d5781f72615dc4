package game

import "fmt"

// ValidationError reports malformed input: missing or negative values, bad
// identifiers. It is returned before anything is computed.
type ValidationError string

func (e ValidationError) Error() string { return "invalid input: " + string(e) }

func invalidf(format string, args ...any) error {
	return ValidationError(fmt.Sprintf(format, args...))
}

// PreconditionError reports an operation that is well formed but cannot be
// applied to the current table state. The table is left unchanged.
type PreconditionError string

func (e PreconditionError) Error() string { return string(e) }

var (
	ErrTableNotFound     = PreconditionError("table not found")
	ErrPlayerNotFound    = PreconditionError("player not found")
	ErrTableFull         = PreconditionError("table is full")
	ErrNotEnoughPlayers  = PreconditionError("not enough active players")
	ErrRoundInProgress   = PreconditionError("round already in progress")
	ErrNoRoundInProgress = PreconditionError("no round in progress")
	ErrInsufficientChips = PreconditionError("insufficient chips")
	ErrRaiseTooSmall     = PreconditionError("raise below minimum")
)
