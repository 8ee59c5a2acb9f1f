package game

import (
	rand "math/rand/v2"
)

// Shoe holds the ordered cards for one round. Cards are dealt from the front
// and never returned.
type Shoe struct {
	cards []Card
	next  int
}

// NewShoe builds 52*decks cards and shuffles them with an unbiased
// Fisher-Yates pass driven by rng.
func NewShoe(rng *rand.Rand, decks int) *Shoe {
	if rng == nil {
		panic("rng is required for shoe creation")
	}
	if decks < 1 {
		decks = 1
	}

	cards := make([]Card, 0, 52*decks)
	for range decks {
		for suit := Spades; suit <= Clubs; suit++ {
			for rank := Ace; rank <= King; rank++ {
				cards = append(cards, NewCard(rank, suit))
			}
		}
	}

	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}

	return &Shoe{cards: cards}
}

// NewStackedShoe returns a shoe that deals exactly the given cards in order.
// Used for deterministic tests and replays.
func NewStackedShoe(cards ...Card) *Shoe {
	return &Shoe{cards: append([]Card(nil), cards...)}
}

// Draw removes and returns the top card.
func (s *Shoe) Draw() (Card, error) {
	if s.next >= len(s.cards) {
		return Card{}, ErrShoeExhausted
	}
	c := s.cards[s.next]
	s.next++
	return c, nil
}

// Remaining returns the number of undealt cards
func (s *Shoe) Remaining() int {
	return len(s.cards) - s.next
}

// Size returns the number of cards the shoe was built with
func (s *Shoe) Size() int {
	return len(s.cards)
}
