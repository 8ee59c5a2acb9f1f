package statistics

import (
	"math"
	"testing"

	"github.com/lox/blackjack/internal/game"
)

func TestStatisticsEmpty(t *testing.T) {
	t.Parallel()
	stats := &Statistics{}

	for name, v := range map[string]float64{
		"mean":      stats.Mean(),
		"variance":  stats.Variance(),
		"stddev":    stats.StdDev(),
		"stderr":    stats.StdError(),
		"median":    stats.Median(),
		"houseEdge": stats.HouseEdge(),
	} {
		if v != 0 {
			t.Errorf("%s of empty stats = %f", name, v)
		}
	}
	if err := stats.Validate(); err == nil {
		t.Error("empty stats should not validate")
	}
}

func TestStatisticsAdd(t *testing.T) {
	t.Parallel()
	stats := &Statistics{}
	stats.Add(RoundResult{Bet: 100, Stake: 100, Delta: 150, Hands: []game.Outcome{game.OutcomeBlackjack}})
	stats.Add(RoundResult{Bet: 100, Stake: 200, Delta: -200, Hands: []game.Outcome{game.OutcomeLose, game.OutcomeLose}, Splits: 1, Busts: 1})
	stats.Add(RoundResult{Bet: 100, Stake: 100, Delta: 0, Hands: []game.Outcome{game.OutcomePush}})
	stats.Add(RoundResult{Aborted: true})

	if stats.Rounds != 3 || stats.Hands != 4 || stats.Aborted != 1 {
		t.Fatalf("rounds=%d hands=%d aborted=%d", stats.Rounds, stats.Hands, stats.Aborted)
	}
	if stats.Blackjacks != 1 || stats.Wins != 1 || stats.Losses != 2 || stats.Pushes != 1 {
		t.Errorf("outcomes: %+v", stats)
	}
	if got := stats.Mean(); math.Abs(got-(-0.5/3)) > 1e-9 {
		t.Errorf("mean = %f", got)
	}
	if got := stats.HouseEdge(); math.Abs(got-(50.0/300)) > 1e-9 {
		t.Errorf("house edge = %f", got)
	}
	if stats.Median() != 0 {
		t.Errorf("median = %f", stats.Median())
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestStatisticsMerge(t *testing.T) {
	t.Parallel()
	a, b, all := &Statistics{}, &Statistics{}, &Statistics{}
	results := []RoundResult{
		{Bet: 10, Stake: 10, Delta: 10, Hands: []game.Outcome{game.OutcomeWin}},
		{Bet: 10, Stake: 20, Delta: 20, Hands: []game.Outcome{game.OutcomeWin}, Doubled: 1},
		{Bet: 10, Stake: 10, Delta: -5, Hands: []game.Outcome{game.OutcomeSurrender}},
		{Bet: 10, Stake: 15, Delta: -15, Hands: []game.Outcome{game.OutcomeLose}, Insured: true},
	}
	for i, r := range results {
		all.Add(r)
		if i%2 == 0 {
			a.Add(r)
		} else {
			b.Add(r)
		}
	}
	a.Merge(b)

	if a.Rounds != all.Rounds || a.TotalDelta != all.TotalDelta || a.Doubles != 1 || a.InsuranceTaken != 1 {
		t.Errorf("merged = %+v", a)
	}
	if math.Abs(a.Variance()-all.Variance()) > 1e-9 {
		t.Errorf("variance %f != %f", a.Variance(), all.Variance())
	}
	lo, hi := a.ConfidenceInterval95()
	if !(lo < a.Mean() && a.Mean() < hi) {
		t.Errorf("CI [%f, %f] excludes mean %f", lo, hi, a.Mean())
	}
}

func TestFromSettlement(t *testing.T) {
	t.Parallel()
	shoe := game.NewStackedShoe(game.MustParseCards("8s", "Th", "8d", "9c", "Ks", "2s", "9h")...)
	r, err := game.NewRound("s", 100, 1000, game.WithShoe(shoe))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Split(); err != nil {
		t.Fatal(err)
	}
	if err := r.Stand(); err != nil { // 8,K
		t.Fatal(err)
	}
	if err := r.Double(); err != nil { // 8,2,9 = 19 doubled
		t.Fatal(err)
	}

	res := FromSettlement(r.Snapshot(), 100, 9)
	if res.Splits != 1 || res.Doubled != 1 || res.Stake != 300 || len(res.Hands) != 2 {
		t.Fatalf("result = %+v", res)
	}
	// 18 loses to 19, doubled 19 pushes.
	if res.Hands[0] != game.OutcomeLose || res.Hands[1] != game.OutcomePush || res.Delta != -100 {
		t.Errorf("result = %+v", res)
	}
}
