// Package statistics aggregates simulated blackjack rounds.
package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/blackjack/internal/game"
)

// RoundResult is the outcome of one round from the player's side
type RoundResult struct {
	Bet     int64 // initial bet
	Stake   int64 // everything committed, doubles/splits/insurance included
	Delta   int64 // payout - stake
	Seed    int64 // shoe seed for replay
	Hands   []game.Outcome
	Busts   int
	Doubled int
	Splits  int
	Insured bool
	// InsuranceWon is set when the dealer had Blackjack under insurance
	InsuranceWon bool
	Aborted      bool
}

// NetUnits is the result in units of the initial bet
func (r RoundResult) NetUnits() float64 {
	if r.Bet == 0 {
		return 0
	}
	return float64(r.Delta) / float64(r.Bet)
}

// FromSettlement builds a RoundResult from a settled round snapshot.
func FromSettlement(snap game.Snapshot, bet, seed int64) RoundResult {
	res := RoundResult{Bet: bet, Seed: seed, Stake: snap.TotalStake}
	if snap.Phase == game.PhaseAborted || snap.Settlement == nil {
		res.Aborted = true
		return res
	}
	s := snap.Settlement
	res.Delta = s.Delta
	res.Insured = s.InsuranceBet > 0
	res.InsuranceWon = s.InsurancePayout > 0
	res.Splits = len(snap.Hands) - 1
	for i, h := range s.Hands {
		res.Hands = append(res.Hands, h.Outcome)
		if snap.Hands[i].Status == game.HandBust {
			res.Busts++
		}
		if h.Bet > bet && !snap.Hands[i].Blackjack {
			res.Doubled++
		}
	}
	return res
}

// Statistics tracks simulation results. Net values are in initial-bet units.
type Statistics struct {
	Rounds  int
	SumNet  float64
	SumNet2 float64   // Sum of squares for variance calculation
	Values  []float64 // Store all values for median/percentile calculation

	Hands      int
	Wins       int
	Losses     int
	Pushes     int
	Blackjacks int
	Surrenders int
	Busts      int
	Doubles    int
	Splits     int

	InsuranceTaken int
	InsuranceWon   int
	Aborted        int

	TotalBet   int64
	TotalStake int64
	TotalDelta int64
}

// Mean returns the mean result per round in initial-bet units
func (s *Statistics) Mean() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.SumNet / float64(s.Rounds)
}

// Variance returns the sample variance of all results
func (s *Statistics) Variance() float64 {
	if s.Rounds < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumNet2 - float64(s.Rounds)*mean*mean) / float64(s.Rounds-1)
}

// StdDev returns the sample standard deviation of all results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Rounds))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// HouseEdge is the house's expected win per unit of initial bet
func (s *Statistics) HouseEdge() float64 {
	if s.TotalBet == 0 {
		return 0
	}
	return -float64(s.TotalDelta) / float64(s.TotalBet)
}

// Add incorporates one round
func (s *Statistics) Add(r RoundResult) {
	if r.Aborted {
		s.Aborted++
		return
	}
	net := r.NetUnits()
	s.Rounds++
	s.SumNet += net
	s.SumNet2 += net * net
	s.Values = append(s.Values, net)

	s.TotalBet += r.Bet
	s.TotalStake += r.Stake
	s.TotalDelta += r.Delta

	for _, o := range r.Hands {
		s.Hands++
		switch o {
		case game.OutcomeWin:
			s.Wins++
		case game.OutcomeBlackjack:
			s.Wins++
			s.Blackjacks++
		case game.OutcomePush:
			s.Pushes++
		case game.OutcomeSurrender:
			s.Surrenders++
		default:
			s.Losses++
		}
	}
	s.Busts += r.Busts
	s.Doubles += r.Doubled
	s.Splits += r.Splits
	if r.Insured {
		s.InsuranceTaken++
	}
	if r.InsuranceWon {
		s.InsuranceWon++
	}
}

// Merge folds other into s. Used to combine per-worker statistics.
func (s *Statistics) Merge(other *Statistics) {
	s.Rounds += other.Rounds
	s.SumNet += other.SumNet
	s.SumNet2 += other.SumNet2
	s.Values = append(s.Values, other.Values...)
	s.Hands += other.Hands
	s.Wins += other.Wins
	s.Losses += other.Losses
	s.Pushes += other.Pushes
	s.Blackjacks += other.Blackjacks
	s.Surrenders += other.Surrenders
	s.Busts += other.Busts
	s.Doubles += other.Doubles
	s.Splits += other.Splits
	s.InsuranceTaken += other.InsuranceTaken
	s.InsuranceWon += other.InsuranceWon
	s.Aborted += other.Aborted
	s.TotalBet += other.TotalBet
	s.TotalStake += other.TotalStake
	s.TotalDelta += other.TotalDelta
}

// Median returns the median value of all results
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the value at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Validate checks the aggregates for internal consistency
func (s *Statistics) Validate() error {
	if s.Rounds <= 0 {
		return fmt.Errorf("invalid rounds count: %d", s.Rounds)
	}
	if len(s.Values) != s.Rounds {
		return fmt.Errorf("values array length (%d) does not match rounds count (%d)", len(s.Values), s.Rounds)
	}
	if got := s.Wins + s.Losses + s.Pushes + s.Surrenders; got != s.Hands {
		return fmt.Errorf("outcomes (%d) do not add up to hands (%d)", got, s.Hands)
	}
	if s.Hands < s.Rounds {
		return fmt.Errorf("hands (%d) fewer than rounds (%d)", s.Hands, s.Rounds)
	}
	if s.TotalStake < s.TotalBet {
		return fmt.Errorf("stake (%d) below initial bets (%d)", s.TotalStake, s.TotalBet)
	}
	return nil
}
