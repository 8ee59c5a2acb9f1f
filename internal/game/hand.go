package game

// Score is the derived value of a set of cards.
type Score struct {
	Value int
	Soft  bool // at least one Ace still counted as 11
}

// Bust reports whether the value exceeds 21
func (s Score) Bust() bool {
	return s.Value > 21
}

// ScoreCards computes the best blackjack total for cards. Aces start at 11 and
// are reduced to 1, one at a time, while the total exceeds 21. The result is
// independent of card order.
func ScoreCards(cards []Card) Score {
	value, soft := 0, 0
	for _, c := range cards {
		value += c.Value()
		if c.Rank == Ace {
			soft++
		}
	}
	for value > 21 && soft > 0 {
		value -= 10
		soft--
	}
	return Score{Value: value, Soft: soft > 0}
}

// Hand is an append-only sequence of cards. Its score is recomputed on every
// read.
type Hand struct {
	Cards []Card
}

func (h *Hand) add(c Card) {
	h.Cards = append(h.Cards, c)
}

// Score returns the current score of the hand
func (h *Hand) Score() Score {
	return ScoreCards(h.Cards)
}

// Value returns the best total
func (h *Hand) Value() int {
	return h.Score().Value
}

// IsSoft reports whether an Ace is counted as 11
func (h *Hand) IsSoft() bool {
	return h.Score().Soft
}

// IsBust reports whether the hand is over 21
func (h *Hand) IsBust() bool {
	return h.Score().Bust()
}

// IsBlackjack reports a two-card 21. Whether it counts as a natural depends
// on the hand's history; see PlayerHand.IsNatural.
func (h *Hand) IsBlackjack() bool {
	return len(h.Cards) == 2 && h.Value() == 21
}

// HandStatus is the lifecycle state of a player hand.
type HandStatus uint8

const (
	HandActive HandStatus = iota
	HandStood
	HandBust
	HandDoubledStood
	HandSurrendered
)

var handStatusNames = [...]string{"ACTIVE", "STOOD", "BUST", "DOUBLED_STOOD", "SURRENDERED"}

func (s HandStatus) String() string {
	if int(s) < len(handStatusNames) {
		return handStatusNames[s]
	}
	return "UNKNOWN"
}

func (s HandStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *HandStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, handStatusNames[:], (*uint8)(s), "hand status")
}

// PlayerHand is one of the player's hands for a round with its own bet.
type PlayerHand struct {
	Hand
	Bet    int64
	Status HandStatus

	// FromSplit marks hands created by a split; they can never be a natural.
	FromSplit bool
	// SplitAces marks hands created by splitting Aces; they receive one card only.
	SplitAces bool
	Doubled   bool
}

// IsNatural reports a Blackjack on the original, unsplit hand
func (p *PlayerHand) IsNatural() bool {
	return !p.FromSplit && p.IsBlackjack()
}

// isPair reports two cards of equal blackjack value
func (p *PlayerHand) isPair() bool {
	return len(p.Cards) == 2 && p.Cards[0].Value() == p.Cards[1].Value()
}

// DealerHand is the dealer's hand. The second card is the hole card and stays
// hidden until Revealed.
type DealerHand struct {
	Hand
	Revealed bool
}

// Upcard returns the first dealt card
func (d *DealerHand) Upcard() (Card, bool) {
	if len(d.Cards) == 0 {
		return Card{}, false
	}
	return d.Cards[0], true
}
