package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Ratio is a payout ratio expressed as Num:Den, e.g. 3:2.
type Ratio struct {
	Num int64
	Den int64
}

// ParseRatio parses "3:2" or "6:5".
func ParseRatio(s string) (Ratio, error) {
	num, den, ok := strings.Cut(s, ":")
	if !ok {
		return Ratio{}, fmt.Errorf("ratio %q: expected N:D", s)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("ratio %q: %w", s, err)
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("ratio %q: %w", s, err)
	}
	r := Ratio{Num: n, Den: d}
	if n <= 0 || d <= 0 {
		return Ratio{}, fmt.Errorf("ratio %q: terms must be positive", s)
	}
	return r, nil
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.Num, r.Den)
}

// Of applies the ratio to amount, rounding down.
func (r Ratio) Of(amount int64) int64 {
	return amount * r.Num / r.Den
}

// Rules is the house rule set a round is played under.
type Rules struct {
	// Decks is the number of 52-card decks in the shoe
	Decks int
	// BlackjackPayout is the net win ratio for a natural
	BlackjackPayout Ratio
	// DealerHitsSoft17 makes the dealer draw on soft 17
	DealerHitsSoft17 bool
	// MaxSplits caps the number of splits per round (hands = MaxSplits+1)
	MaxSplits int
	// DoubleAfterSplit allows doubling a two-card hand created by a split
	DoubleAfterSplit bool
	// Surrender enables late surrender on the original two-card hand
	Surrender bool
}

// DefaultRules returns the standard casino rule set: one deck, 3:2
// Blackjack, dealer hits soft 17, double on any first two cards including
// after a split, up to three splits, no surrender.
func DefaultRules() Rules {
	return Rules{
		Decks:            1,
		BlackjackPayout:  Ratio{Num: 3, Den: 2},
		DealerHitsSoft17: true,
		MaxSplits:        3,
		DoubleAfterSplit: true,
		Surrender:        false,
	}
}

// Validate checks the rule set for impossible values
func (r Rules) Validate() error {
	if r.Decks < 1 || r.Decks > 8 {
		return fmt.Errorf("decks must be between 1 and 8, got %d", r.Decks)
	}
	if r.BlackjackPayout.Num <= 0 || r.BlackjackPayout.Den <= 0 {
		return errors.New("blackjack payout must be a positive ratio")
	}
	if r.MaxSplits < 0 || r.MaxSplits > 3 {
		return fmt.Errorf("max splits must be between 0 and 3, got %d", r.MaxSplits)
	}
	return nil
}
