package game

// Outcome classifies how a player hand finished against the dealer.
type Outcome uint8

const (
	OutcomeLose Outcome = iota
	OutcomePush
	OutcomeWin
	OutcomeBlackjack
	OutcomeSurrender
)

var outcomeNames = [...]string{"LOSE", "PUSH", "WIN", "BLACKJACK", "SURRENDER"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "UNKNOWN"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, outcomeNames[:], (*uint8)(o), "outcome")
}

// HandResult is the settlement line for one player hand. Payout is the gross
// amount returned to the player, stake included.
type HandResult struct {
	Index   int     `json:"index"`
	Bet     int64   `json:"bet"`
	Payout  int64   `json:"payout"`
	Outcome Outcome `json:"outcome"`
}

// Settlement is the once-only result of a round.
type Settlement struct {
	Hands           []HandResult `json:"hands"`
	InsuranceBet    int64        `json:"insuranceBet"`
	InsurancePayout int64        `json:"insurancePayout"`
	// Payout is the sum of all hand payouts and the insurance payout
	Payout     int64 `json:"payout"`
	TotalStake int64 `json:"totalStake"`
	// Delta is Payout - TotalStake, the amount the player's balance changes
	// by over the whole round.
	Delta int64 `json:"delta"`
}

// Winnings returns payout per hand index
func (s Settlement) Winnings() map[int]int64 {
	w := make(map[int]int64, len(s.Hands))
	for _, h := range s.Hands {
		w[h.Index] = h.Payout
	}
	return w
}

// Settle compares each player hand with the final dealer hand. It is pure;
// Round calls it exactly once.
func Settle(rules Rules, dealer *Hand, hands []*PlayerHand, insurance InsuranceState, insuranceBet, totalStake int64) Settlement {
	dealerScore := dealer.Score()
	dealerNatural := dealer.IsBlackjack()

	s := Settlement{
		Hands:        make([]HandResult, len(hands)),
		InsuranceBet: insuranceBet,
		TotalStake:   totalStake,
	}

	for i, h := range hands {
		res := HandResult{Index: i, Bet: h.Bet}
		score := h.Score()

		switch {
		case h.Status == HandSurrendered:
			res.Outcome, res.Payout = OutcomeSurrender, h.Bet/2
		case score.Bust():
			res.Outcome = OutcomeLose
		case h.IsNatural() && dealerNatural:
			res.Outcome, res.Payout = OutcomePush, h.Bet
		case h.IsNatural():
			res.Outcome, res.Payout = OutcomeBlackjack, h.Bet+rules.BlackjackPayout.Of(h.Bet)
		case dealerScore.Bust(), score.Value > dealerScore.Value:
			res.Outcome, res.Payout = OutcomeWin, 2*h.Bet
		case score.Value == dealerScore.Value:
			res.Outcome, res.Payout = OutcomePush, h.Bet
		default:
			res.Outcome = OutcomeLose
		}

		s.Hands[i] = res
		s.Payout += res.Payout
	}

	if insurance == InsuranceAccepted && dealerNatural {
		s.InsurancePayout = 3 * insuranceBet
	}
	s.Payout += s.InsurancePayout
	s.Delta = s.Payout - s.TotalStake
	return s
}
