package game

import "testing"

func playerHand(bet int64, cards ...string) *PlayerHand {
	return &PlayerHand{Hand: Hand{Cards: MustParseCards(cards...)}, Bet: bet, Status: HandStood}
}

func TestSettleOutcomes(t *testing.T) {
	t.Parallel()
	rules := DefaultRules()
	tests := []struct {
		name    string
		dealer  []string
		player  []string
		outcome Outcome
		payout  int64
	}{
		{"natural beats three-card 21", []string{"7s", "7h", "7d"}, []string{"As", "Kh"}, OutcomeBlackjack, 250},
		{"three-card 21 pushes dealer natural", []string{"As", "Kh"}, []string{"7s", "7h", "7d"}, OutcomePush, 100},
		{"dealer natural beats 20", []string{"As", "Kh"}, []string{"Ts", "Qh"}, OutcomeLose, 0},
		{"naturals push", []string{"As", "Kh"}, []string{"Ad", "Qc"}, OutcomePush, 100},
		{"player bust loses to dealer bust", []string{"Ts", "6h", "9d"}, []string{"Ks", "5h", "8c"}, OutcomeLose, 0},
		{"dealer bust", []string{"Ts", "6h", "9d"}, []string{"Ks", "2h"}, OutcomeWin, 200},
		{"higher total wins", []string{"Ts", "8h"}, []string{"Ks", "9h"}, OutcomeWin, 200},
		{"lower total loses", []string{"Ts", "9h"}, []string{"Ks", "8h"}, OutcomeLose, 0},
		{"equal total pushes", []string{"Ts", "9h"}, []string{"Ks", "5h", "4c"}, OutcomePush, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dealer := &Hand{Cards: MustParseCards(tt.dealer...)}
			s := Settle(rules, dealer, []*PlayerHand{playerHand(100, tt.player...)}, InsuranceNone, 0, 100)
			if s.Hands[0].Outcome != tt.outcome || s.Hands[0].Payout != tt.payout {
				t.Errorf("got %s/%d, want %s/%d", s.Hands[0].Outcome, s.Hands[0].Payout, tt.outcome, tt.payout)
			}
			if s.Delta != s.Payout-s.TotalStake {
				t.Errorf("delta %d != payout %d - stake %d", s.Delta, s.Payout, s.TotalStake)
			}
		})
	}
}

func TestBlackjackPayoutRounding(t *testing.T) {
	t.Parallel()
	dealer := &Hand{Cards: MustParseCards("Ts", "8h")}

	s := Settle(DefaultRules(), dealer, []*PlayerHand{playerHand(5, "As", "Kh")}, InsuranceNone, 0, 5)
	if s.Payout != 12 {
		t.Errorf("3:2 on 5 = %d, want 12", s.Payout)
	}

	sixFive := DefaultRules()
	sixFive.BlackjackPayout = Ratio{Num: 6, Den: 5}
	s = Settle(sixFive, dealer, []*PlayerHand{playerHand(10, "As", "Kh")}, InsuranceNone, 0, 10)
	if s.Payout != 22 {
		t.Errorf("6:5 on 10 = %d, want 22", s.Payout)
	}
}

func TestSplitTwentyOneIsNotNatural(t *testing.T) {
	t.Parallel()
	dealer := &Hand{Cards: MustParseCards("Ts", "9h", "2c")}
	h := playerHand(100, "As", "Kh")
	h.FromSplit = true
	s := Settle(DefaultRules(), dealer, []*PlayerHand{h}, InsuranceNone, 0, 100)
	if s.Hands[0].Outcome != OutcomePush {
		t.Errorf("split A-K vs 21 = %s, want PUSH", s.Hands[0].Outcome)
	}
}

func TestParseRatio(t *testing.T) {
	t.Parallel()
	r, err := ParseRatio("3:2")
	if err != nil || r != (Ratio{3, 2}) {
		t.Fatalf("ParseRatio(3:2) = %v, %v", r, err)
	}
	if r.String() != "3:2" || r.Of(100) != 150 || r.Of(15) != 22 {
		t.Errorf("ratio math wrong: %s %d %d", r, r.Of(100), r.Of(15))
	}
	for _, bad := range []string{"3", "0:2", "3:0", "a:b", "-1:2"} {
		if _, err := ParseRatio(bad); err == nil {
			t.Errorf("ParseRatio(%q) should fail", bad)
		}
	}
}
