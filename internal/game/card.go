package game

import (
	"fmt"
	"strings"
)

// Suit represents a card suit. It never affects scoring.
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var suitNames = [...]string{"spades", "hearts", "diamonds", "clubs"}

// String returns the wire name of the suit ("spades", "hearts", ...)
func (s Suit) String() string {
	if int(s) < len(suitNames) {
		return suitNames[s]
	}
	return "?"
}

// Symbol returns the unicode pip for the suit
func (s Suit) Symbol() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// IsRed returns true for hearts and diamonds
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank from Ace (1) to King (13)
type Rank uint8

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// String returns the boundary encoding of the rank: A, 2..10, J, Q, K
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	}
	if r >= Two && r <= Ten {
		return fmt.Sprintf("%d", int(r))
	}
	return "?"
}

// Value is the blackjack value of the rank with an Ace counted as 11.
func (r Rank) Value() int {
	switch {
	case r == Ace:
		return 11
	case r >= Ten:
		return 10
	default:
		return int(r)
	}
}

// Card is an immutable playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns a compact form such as "A♠" or "10♥"
func (c Card) String() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// Value returns the blackjack value of the card (Ace = 11)
func (c Card) Value() int {
	return c.Rank.Value()
}

// ParseRank parses A, 2..10, T, J, Q, K (case-insensitive)
func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(s) {
	case "A":
		return Ace, nil
	case "T", "10":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	}
	if len(s) == 1 && s[0] >= '2' && s[0] <= '9' {
		return Rank(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid rank %q", s)
}

// ParseSuit parses a suit letter (s, h, d, c) or its full name.
func ParseSuit(s string) (Suit, error) {
	switch strings.ToLower(s) {
	case "s", "spades":
		return Spades, nil
	case "h", "hearts":
		return Hearts, nil
	case "d", "diamonds":
		return Diamonds, nil
	case "c", "clubs":
		return Clubs, nil
	}
	return 0, fmt.Errorf("invalid suit %q", s)
}

// ParseCard parses strings like "As", "10h", "Td" or "Kc".
func ParseCard(s string) (Card, error) {
	if len(s) < 2 || len(s) > 3 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	rank, err := ParseRank(s[:len(s)-1])
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", s, err)
	}
	suit, err := ParseSuit(s[len(s)-1:])
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", s, err)
	}
	return NewCard(rank, suit), nil
}

// MustParseCards parses each string with ParseCard and panics on failure.
// Intended for fixtures and stacked shoes.
func MustParseCards(ss ...string) []Card {
	cards := make([]Card, len(ss))
	for i, s := range ss {
		c, err := ParseCard(s)
		if err != nil {
			panic(err)
		}
		cards[i] = c
	}
	return cards
}
