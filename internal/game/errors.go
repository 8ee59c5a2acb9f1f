package game

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalAction is returned when the round is in the wrong phase, the
	// targeted hand is not active, or the action is not legal for the hand.
	ErrIllegalAction = errors.New("game: illegal action")

	// ErrRoundNotFound indicates an unknown or expired round id.
	ErrRoundNotFound = errors.New("game: round not found")

	// ErrRoundAlreadySettled is returned for any action on a settled round.
	ErrRoundAlreadySettled = errors.New("game: round already settled")

	// ErrInsufficientBalance is returned before any mutation when a bet,
	// double, split or insurance cannot be covered.
	ErrInsufficientBalance = errors.New("game: insufficient balance")

	// ErrShoeExhausted signals an invariant violation: the shoe ran out of
	// cards mid-round.
	ErrShoeExhausted = errors.New("game: shoe exhausted")

	// ErrInvalidBet rejects non-positive bets.
	ErrInvalidBet = errors.New("game: invalid bet")

	// ErrRoundInProgress is returned when an account already has an
	// unsettled round.
	ErrRoundInProgress = errors.New("game: round in progress")
)

// Stable machine-readable error codes
const (
	CodeIllegalAction       = "illegal_action"
	CodeRoundNotFound       = "round_not_found"
	CodeRoundAlreadySettled = "round_already_settled"
	CodeInsufficientBalance = "insufficient_balance"
	CodeShoeExhausted       = "shoe_exhausted"
	CodeInvalidBet          = "invalid_bet"
	CodeRoundInProgress     = "round_in_progress"
	CodeInternal            = "internal_error"
)

// Code maps an error to its stable code. Unknown errors map to CodeInternal.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrIllegalAction):
		return CodeIllegalAction
	case errors.Is(err, ErrRoundNotFound):
		return CodeRoundNotFound
	case errors.Is(err, ErrRoundAlreadySettled):
		return CodeRoundAlreadySettled
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrShoeExhausted):
		return CodeShoeExhausted
	case errors.Is(err, ErrInvalidBet):
		return CodeInvalidBet
	case errors.Is(err, ErrRoundInProgress):
		return CodeRoundInProgress
	default:
		return CodeInternal
	}
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalAction, fmt.Sprintf(format, args...))
}

func unmarshalEnum(b []byte, names []string, dst *uint8, kind string) error {
	for i, n := range names {
		if n == string(b) {
			*dst = uint8(i)
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", kind, b)
}
