package game

// CardView is the boundary encoding of a card. A hidden card carries only
// Hidden=true and never a fabricated rank or suit.
type CardView struct {
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
	Value  int    `json:"value,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// HiddenCard is the placeholder for the unrevealed hole card
var HiddenCard = CardView{Hidden: true}

// ViewOf encodes a card for the boundary
func ViewOf(c Card) CardView {
	return CardView{Rank: c.Rank.String(), Suit: c.Suit.String(), Value: c.Value()}
}

// Card decodes a visible CardView back to a Card.
func (v CardView) Card() (Card, error) {
	rank, err := ParseRank(v.Rank)
	if err != nil {
		return Card{}, err
	}
	suit, err := ParseSuit(v.Suit)
	if err != nil {
		return Card{}, err
	}
	return NewCard(rank, suit), nil
}

// HandView is the read-only projection of a player hand
type HandView struct {
	Index        int        `json:"index"`
	Cards        []CardView `json:"cards"`
	Bet          int64      `json:"bet"`
	Status       HandStatus `json:"status"`
	Score        int        `json:"score"`
	Soft         bool       `json:"soft"`
	Blackjack    bool       `json:"blackjack"`
	CanDouble    bool       `json:"canDouble"`
	CanSplit     bool       `json:"canSplit"`
	CanSurrender bool       `json:"canSurrender"`
}

// DealerView is the read-only projection of the dealer hand. Score counts
// only visible cards until the hole card is revealed.
type DealerView struct {
	Cards    []CardView `json:"cards"`
	Score    int        `json:"score"`
	Soft     bool       `json:"soft"`
	Revealed bool       `json:"revealed"`
}

// Snapshot is the read-only projection of a round returned by every action.
type Snapshot struct {
	ID               string         `json:"id"`
	Phase            Phase          `json:"phase"`
	Dealer           DealerView     `json:"dealer"`
	Hands            []HandView     `json:"hands"`
	CurrentHandIndex int            `json:"currentHandIndex"`
	Insurance        InsuranceState `json:"insurance"`
	InsuranceBet     int64          `json:"insuranceBet"`
	CanInsure        bool           `json:"canInsure"`
	TotalStake       int64          `json:"totalStake"`

	// Set once the round is settled
	Winnings   map[int]int64 `json:"winnings,omitempty"`
	Settlement *Settlement   `json:"settlement,omitempty"`
}

// Snapshot projects the round. CurrentHandIndex is -1 unless the round is
// waiting on a player decision.
func (r *Round) Snapshot() Snapshot {
	s := Snapshot{
		ID:               r.id,
		Phase:            r.phase,
		Dealer:           r.dealerView(),
		Hands:            make([]HandView, len(r.hands)),
		CurrentHandIndex: -1,
		Insurance:        r.insurance,
		InsuranceBet:     r.insuranceBet,
		TotalStake:       r.totalStake,
	}

	if r.phase == PhaseAwaitingPlayerAction {
		s.CurrentHandIndex = r.current
	}
	if r.phase == PhaseAwaitingInsurance {
		amount := r.insuranceAmount()
		s.CanInsure = amount > 0 && amount <= r.available()
	}

	for i, h := range r.hands {
		score := h.Score()
		cards := make([]CardView, len(h.Cards))
		for j, c := range h.Cards {
			cards[j] = ViewOf(c)
		}
		hv := HandView{
			Index:     i,
			Cards:     cards,
			Bet:       h.Bet,
			Status:    h.Status,
			Score:     score.Value,
			Soft:      score.Soft,
			Blackjack: h.IsNatural(),
		}
		if s.CurrentHandIndex == i {
			hv.CanDouble = r.canDouble(h) && h.Bet <= r.available()
			hv.CanSplit = r.canSplit(h) && h.Bet <= r.available()
			hv.CanSurrender = r.canSurrender(h)
		}
		s.Hands[i] = hv
	}

	if r.settlement != nil {
		settlement := *r.settlement
		s.Settlement = &settlement
		s.Winnings = settlement.Winnings()
	}
	return s
}

func (r *Round) dealerView() DealerView {
	if r.dealer.Revealed {
		cards := make([]CardView, len(r.dealer.Cards))
		for i, c := range r.dealer.Cards {
			cards[i] = ViewOf(c)
		}
		score := r.dealer.Score()
		return DealerView{Cards: cards, Score: score.Value, Soft: score.Soft, Revealed: true}
	}

	dv := DealerView{}
	for i, c := range r.dealer.Cards {
		if i > 0 {
			dv.Cards = append(dv.Cards, HiddenCard)
			continue
		}
		dv.Cards = append(dv.Cards, ViewOf(c))
		dv.Score = c.Value()
		dv.Soft = c.Rank == Ace
	}
	return dv
}

// Done reports whether the projected round is settled or aborted
func (s Snapshot) Done() bool {
	return s.Phase == PhaseSettled || s.Phase == PhaseAborted
}
