package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/ledger"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/session"
	"github.com/lox/blackjack/internal/statistics"
	"github.com/lox/blackjack/internal/strategy"
)

// SimulateCmd plays automated rounds through the session service
type SimulateCmd struct {
	Rounds    int    `default:"100000" help:"Number of rounds to simulate"`
	Workers   int    `default:"0" help:"Parallel workers (0 = number of CPUs)"`
	Strategy  string `default:"basic" enum:"basic,dealer" help:"Player strategy: basic, dealer"`
	Bet       int64  `default:"10" help:"Initial bet per round"`
	Seed      int64  `default:"0" help:"RNG seed (0 for random)"`
	Decks     int    `default:"6" help:"Decks in the shoe"`
	Payout    string `default:"3:2" help:"Blackjack payout ratio"`
	H17       bool   `default:"true" negatable:"" help:"Dealer hits soft 17"`
	DAS       bool   `name:"das" default:"true" negatable:"" help:"Double after split"`
	MaxSplits int    `default:"3" help:"Maximum splits per round"`
	Surrender bool   `help:"Allow late surrender"`
	Verbose   bool   `help:"Verbose logging"`
}

var (
	reportHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15"))

	reportLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12"))

	reportGoodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	reportBadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

func (c *SimulateCmd) rules() (game.Rules, error) {
	payout, err := game.ParseRatio(c.Payout)
	if err != nil {
		return game.Rules{}, err
	}
	rules := game.Rules{
		Decks:            c.Decks,
		BlackjackPayout:  payout,
		DealerHitsSoft17: c.H17,
		MaxSplits:        c.MaxSplits,
		DoubleAfterSplit: c.DAS,
		Surrender:        c.Surrender,
	}
	return rules, rules.Validate()
}

func (c *SimulateCmd) Run() error {
	rules, err := c.rules()
	if err != nil {
		return err
	}
	strat, ok := strategy.ByName(c.Strategy)
	if !ok {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if c.Rounds <= 0 || c.Bet <= 0 {
		return fmt.Errorf("rounds and bet must be positive")
	}
	if c.Seed == 0 {
		c.Seed = randutil.NewSeed()
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, c.Rounds)

	level := "warn"
	if c.Verbose {
		level = "debug"
	}
	logger, err := setupLogger(os.Stderr, level, false)
	if err != nil {
		return err
	}

	fmt.Printf("Starting simulation: %d rounds, %s strategy, %d workers (seed: %d)\n",
		c.Rounds, c.Strategy, workers, c.Seed)

	start := time.Now()
	results := make([]*statistics.Statistics, workers)
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		rounds := c.Rounds / workers
		if w < c.Rounds%workers {
			rounds++
		}
		first := int64(w) * int64(c.Rounds/workers+1)
		g.Go(func() error {
			stats, err := simulateWorker(ctx, rules, strat, c.Bet, c.Seed+first, rounds)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			results[w] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var total statistics.Statistics
	for _, s := range results {
		total.Merge(s)
	}
	if err := total.Validate(); err != nil {
		logger.Warn("Statistics inconsistent", "error", err)
	}
	printReport(os.Stdout, &total, rules, c.Strategy, time.Since(start))
	return nil
}

// simulateWorker plays rounds sequentially against its own service and
// ledger. Round i is dealt from a fresh shoe seeded with seed+i so any
// round can be replayed.
func simulateWorker(ctx context.Context, rules game.Rules, strat strategy.Strategy, bet, seed int64, rounds int) (*statistics.Statistics, error) {
	var roundSeed int64
	shoe := func(string) *game.Shoe {
		return game.NewShoe(randutil.New(roundSeed), rules.Decks)
	}

	// Deep enough that a losing streak never runs the account dry
	bank := ledger.NewMemory(bet*int64(rounds)*8, ledger.WithJournalLimit(64))
	svc, err := session.NewService(session.Config{Rules: rules}, bank,
		session.WithShoeSource(shoe),
		session.WithLogger(discardLogger()),
	)
	if err != nil {
		return nil, err
	}

	stats := &statistics.Statistics{}
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		roundSeed = seed + int64(i)

		snap, err := svc.Open(ctx, "sim", bet)
		if err != nil && !snap.Done() {
			return nil, err
		}
		for !snap.Done() {
			action := strat.Decide(snap)
			snap, err = svc.Act(ctx, snap.ID, action)
			if err != nil && !snap.Done() {
				return nil, fmt.Errorf("round %d (seed %d): %s: %w", i, roundSeed, action, err)
			}
		}
		stats.Add(statistics.FromSettlement(snap, bet, roundSeed))
	}
	return stats, nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

func printReport(w io.Writer, s *statistics.Statistics, rules game.Rules, strategyName string, elapsed time.Duration) {
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-22s %s\n", reportLabelStyle.Render(label), value)
	}
	pct := func(n, of int) string {
		if of == 0 {
			return "0"
		}
		return fmt.Sprintf("%d (%.2f%%)", n, 100*float64(n)/float64(of))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, reportHeaderStyle.Render("Rules"))
	row("decks", fmt.Sprint(rules.Decks))
	row("blackjack pays", rules.BlackjackPayout.String())
	row("dealer soft 17", map[bool]string{true: "hits", false: "stands"}[rules.DealerHitsSoft17])
	row("max splits", fmt.Sprint(rules.MaxSplits))
	row("double after split", fmt.Sprint(rules.DoubleAfterSplit))
	row("surrender", fmt.Sprint(rules.Surrender))
	row("strategy", strategyName)

	fmt.Fprintln(w)
	fmt.Fprintln(w, reportHeaderStyle.Render("Results"))
	row("rounds", fmt.Sprintf("%d in %s (%.0f/s)", s.Rounds, elapsed.Round(time.Millisecond), float64(s.Rounds)/elapsed.Seconds()))
	row("hands", fmt.Sprint(s.Hands))
	row("wins", pct(s.Wins, s.Hands))
	row("losses", pct(s.Losses, s.Hands))
	row("pushes", pct(s.Pushes, s.Hands))
	row("blackjacks", pct(s.Blackjacks, s.Hands))
	row("busts", pct(s.Busts, s.Hands))
	row("surrenders", pct(s.Surrenders, s.Hands))
	row("doubles", pct(s.Doubles, s.Hands))
	row("splits", pct(s.Splits, s.Rounds))
	row("insurance", fmt.Sprintf("%d taken, %d won", s.InsuranceTaken, s.InsuranceWon))
	if s.Aborted > 0 {
		row("aborted", reportBadStyle.Render(fmt.Sprint(s.Aborted)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, reportHeaderStyle.Render("Return per round (initial bets)"))
	lo, hi := s.ConfidenceInterval95()
	row("mean", fmt.Sprintf("%+.4f ± %.4f", s.Mean(), s.StdError()))
	row("95% CI", fmt.Sprintf("[%+.4f, %+.4f]", lo, hi))
	row("std dev", fmt.Sprintf("%.4f", s.StdDev()))
	row("median", fmt.Sprintf("%+.2f", s.Median()))

	edge := s.HouseEdge()
	style := reportGoodStyle
	if edge > 0 {
		style = reportBadStyle
	}
	row("house edge", style.Render(fmt.Sprintf("%.3f%%", 100*edge)))
	row("net", fmt.Sprintf("%+d on %d staked", s.TotalDelta, s.TotalStake))
}
