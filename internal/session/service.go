// Package session runs blackjack rounds for accounts: it owns the round
// store, moves money through the ledger around every engine commit, archives
// settled rounds and expires idle ones.
package session

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/gameid"
	"github.com/lox/blackjack/internal/history"
	"github.com/lox/blackjack/internal/ledger"
	"github.com/lox/blackjack/internal/randutil"
)

// ErrPayoutPending is returned by End while a settled round's credit has
// not reached the ledger. The round is kept so Sweep can retry it.
var ErrPayoutPending = errors.New("session: payout pending")

// Config holds the table rules and expiry windows
type Config struct {
	Rules game.Rules
	// TTL is how long an unsettled round may sit idle before every active
	// hand is stood for the player.
	TTL time.Duration
	// Retention is how long a settled round stays readable.
	Retention time.Duration
	// SweepInterval is how often expiry runs
	SweepInterval time.Duration
	// Seed for shoe shuffles. Zero picks a random seed.
	Seed int64
}

// DefaultConfig returns DefaultRules with a 30 minute idle ttl
func DefaultConfig() Config {
	return Config{
		Rules:         game.DefaultRules(),
		TTL:           30 * time.Minute,
		Retention:     10 * time.Minute,
		SweepInterval: 30 * time.Second,
	}
}

// Recorder archives settled rounds
type Recorder interface {
	Record(history.Record)
}

// EventType classifies an Event
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventSettled  EventType = "settled"
)

// Event is published after every change to a round
type Event struct {
	Type     EventType
	Account  string
	Snapshot game.Snapshot
	// Origin is the tag of the caller whose request caused the change,
	// empty for expiry.
	Origin string
}

type originKey struct{}

// WithOrigin tags ctx so events caused by calls made with it carry origin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the tag set by WithOrigin
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// Option configures a Service
type Option func(*Service)

// WithClock sets the clock used for expiry and timestamps
func WithClock(c quartz.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecorder archives every settled round
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithIDGenerator overrides round id generation
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithShoeSource deals every round from the shoe fn returns. Used for
// replays and tests.
func WithShoeSource(fn func(roundID string) *game.Shoe) Option {
	return func(s *Service) { s.shoeSource = fn }
}

// Service is the action API over the round store.
type Service struct {
	cfg      Config
	ledger   ledger.Ledger
	store    *Store
	clock    quartz.Clock
	logger   *log.Logger
	recorder Recorder

	newID      func() string
	shoeSource func(roundID string) *game.Shoe

	rngMu sync.Mutex
	rng   *rand.Rand

	subsMu  sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// NewService creates a service settling against l
func NewService(cfg Config, l ledger.Ledger, opts ...Option) (*Service, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = randutil.NewSeed()
	}

	s := &Service{
		cfg:    cfg,
		ledger: l,
		store:  NewStore(),
		clock:  quartz.NewReal(),
		logger: log.Default(),
		newID:  gameid.Generate,
		rng:    randutil.New(seed),
		subs:   make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("session")
	return s, nil
}

// Store exposes the round store
func (s *Service) Store() *Store { return s.store }

// Rules returns the table rules
func (s *Service) Rules() game.Rules { return s.cfg.Rules }

// Subscribe registers fn for every round event. The returned func
// unsubscribes. fn runs while the round is locked and must not call back
// into the service for the same round.
func (s *Service) Subscribe(fn func(Event)) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Service) publish(ctx context.Context, ev Event) {
	ev.Origin = OriginFrom(ctx)
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, fn := range s.subs {
		fn(ev)
	}
}

func (s *Service) shoe(id string) *game.Shoe {
	if s.shoeSource != nil {
		return s.shoeSource(id)
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return game.NewShoe(s.rng, s.cfg.Rules.Decks)
}

func ledgerError(err error) error {
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return fmt.Errorf("%w: %v", game.ErrInsufficientBalance, err)
	}
	return fmt.Errorf("session: ledger: %w", err)
}

// Open debits bet from account and deals a new round. A natural against a
// non-Ace upcard comes back already settled.
func (s *Service) Open(ctx context.Context, account string, bet int64) (game.Snapshot, error) {
	if account == "" {
		return game.Snapshot{}, fmt.Errorf("%w: account is required", game.ErrInvalidBet)
	}
	if bet <= 0 {
		return game.Snapshot{}, fmt.Errorf("%w: bet must be positive, got %d", game.ErrInvalidBet, bet)
	}
	if err := s.store.reserve(account); err != nil {
		return game.Snapshot{}, err
	}

	id := s.newID()
	after, err := s.ledger.Debit(ctx, account, bet, "bet "+id)
	if err != nil {
		s.store.release(account, "")
		return game.Snapshot{}, ledgerError(err)
	}

	round, err := game.NewRound(id, bet, after+bet, game.WithRules(s.cfg.Rules), game.WithShoe(s.shoe(id)))
	if round == nil {
		s.store.release(account, "")
		s.refund(ctx, account, id, bet)
		return game.Snapshot{}, err
	}

	e := &entry{id: id, account: account, round: round, updated: s.clock.Now()}
	e.mu.Lock()
	defer e.mu.Unlock()
	s.store.put(e)

	s.logger.Info("Round opened", "round", id, "account", account, "bet", bet)
	s.publish(ctx, Event{Type: EventSnapshot, Account: account, Snapshot: round.Snapshot()})
	if round.Done() {
		s.finish(ctx, e)
	}
	return round.Snapshot(), err
}

// refund credits back an amount whose round never started
func (s *Service) refund(ctx context.Context, account, id string, amount int64) {
	if _, err := s.ledger.Credit(ctx, account, amount, "refund "+id); err != nil {
		s.logger.Error("Refund failed", "round", id, "account", account, "amount", amount, "error", err)
	}
}

// locked runs fn with the round's lock held
func (s *Service) locked(id string, fn func(e *entry) error) error {
	e, err := s.store.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("%w: %s", game.ErrRoundNotFound, id)
	}
	return fn(e)
}

// Act applies action to round id. The returned snapshot reflects the round
// after the call, also when err is non-nil.
func (s *Service) Act(ctx context.Context, id string, action game.Action) (game.Snapshot, error) {
	var snap game.Snapshot
	err := s.locked(id, func(e *entry) error {
		r := e.round
		defer func() { snap = r.Snapshot() }()

		cost, err := r.Cost(action)
		if err != nil {
			return err
		}
		if cost > 0 {
			if _, err := s.ledger.Debit(ctx, e.account, cost, action.String()+" "+id); err != nil {
				return ledgerError(err)
			}
		}

		applyErr := r.Apply(action)
		e.updated = s.clock.Now()
		if applyErr != nil && !r.Done() && cost > 0 {
			s.refund(ctx, e.account, id, cost)
		}

		s.logger.Debug("Action applied", "round", id, "action", action, "phase", r.Phase(), "cost", cost)
		s.publish(ctx, Event{Type: EventSnapshot, Account: e.account, Snapshot: r.Snapshot()})
		if r.Done() {
			s.finish(ctx, e)
		}
		return applyErr
	})
	return snap, err
}

// Hit draws a card onto the active hand
func (s *Service) Hit(ctx context.Context, id string) (game.Snapshot, error) {
	return s.Act(ctx, id, game.ActionHit)
}

// Stand finishes the active hand
func (s *Service) Stand(ctx context.Context, id string) (game.Snapshot, error) {
	return s.Act(ctx, id, game.ActionStand)
}

// Double doubles the active hand's bet and draws one card
func (s *Service) Double(ctx context.Context, id string) (game.Snapshot, error) {
	return s.Act(ctx, id, game.ActionDouble)
}

// Split splits the active pair
func (s *Service) Split(ctx context.Context, id string) (game.Snapshot, error) {
	return s.Act(ctx, id, game.ActionSplit)
}

// Surrender forfeits half the bet of the original hand
func (s *Service) Surrender(ctx context.Context, id string) (game.Snapshot, error) {
	return s.Act(ctx, id, game.ActionSurrender)
}

// Insurance accepts or declines the insurance offer
func (s *Service) Insurance(ctx context.Context, id string, accept bool) (game.Snapshot, error) {
	if accept {
		return s.Act(ctx, id, game.ActionInsure)
	}
	return s.Act(ctx, id, game.ActionDeclineInsurance)
}

// Snapshot returns the current projection of round id
func (s *Service) Snapshot(id string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := s.locked(id, func(e *entry) error {
		snap = e.round.Snapshot()
		return nil
	})
	return snap, err
}

// Account returns the account that owns round id
func (s *Service) Account(id string) (string, error) {
	var account string
	err := s.locked(id, func(e *entry) error {
		account = e.account
		return nil
	})
	return account, err
}

// Balance returns the ledger balance of account
func (s *Service) Balance(ctx context.Context, account string) (int64, error) {
	bal, err := s.ledger.Balance(ctx, account)
	if err != nil {
		return 0, ledgerError(err)
	}
	return bal, nil
}

// End discards round id. An unsettled round is concluded first so its stake
// is settled; the final snapshot is returned. A round whose credit is still
// owed stays in the store and End fails with ErrPayoutPending.
func (s *Service) End(ctx context.Context, id string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := s.locked(id, func(e *entry) error {
		if err := s.conclude(ctx, e, "ended"); err != nil {
			return err
		}
		snap = e.round.Snapshot()
		s.payOwed(ctx, e)
		if e.owed > 0 {
			return fmt.Errorf("%w: %d owed to %s on %s", ErrPayoutPending, e.owed, e.account, id)
		}
		e.removed = true
		s.store.remove(id)
		s.logger.Debug("Round ended", "round", id)
		return nil
	})
	return snap, err
}

// conclude stands every active hand of an unsettled round and settles it
func (s *Service) conclude(ctx context.Context, e *entry, reason string) error {
	if e.round.Done() {
		return nil
	}
	err := e.round.Conclude()
	e.updated = s.clock.Now()
	s.logger.Info("Round concluded", "round", e.id, "reason", reason, "phase", e.round.Phase())
	if e.round.Done() {
		s.finish(ctx, e)
		return nil
	}
	return err
}

// finish moves money for a terminal round exactly once, archives it,
// notifies subscribers and frees the account.
func (s *Service) finish(ctx context.Context, e *entry) {
	if e.finished {
		return
	}
	e.finished = true
	e.settledAt = s.clock.Now()
	r := e.round

	settlement, settled := r.Settlement()
	switch {
	case settled:
		e.owed = settlement.Payout
		s.logger.Info("Round settled", "round", e.id, "account", e.account,
			"stake", settlement.TotalStake, "payout", settlement.Payout, "delta", settlement.Delta)
	default:
		e.owed = r.TotalStake()
		s.logger.Error("Shoe exhausted, round aborted and stake refunded",
			"round", e.id, "account", e.account, "refund", e.owed)
	}
	s.payOwed(ctx, e)

	if s.recorder != nil {
		s.recorder.Record(history.Record{
			RoundID:  e.id,
			Account:  e.account,
			Time:     e.settledAt,
			Phase:    r.Phase(),
			Stake:    r.TotalStake(),
			Payout:   settlement.Payout,
			Delta:    settlement.Delta,
			Snapshot: r.Snapshot(),
		})
	}

	s.store.release(e.account, e.id)
	s.publish(ctx, Event{Type: EventSettled, Account: e.account, Snapshot: r.Snapshot()})
}

func (s *Service) payOwed(ctx context.Context, e *entry) {
	if e.owed <= 0 {
		return
	}
	memo := "payout " + e.id
	if e.round.Phase() == game.PhaseAborted {
		memo = "refund " + e.id
	}
	if _, err := s.ledger.Credit(ctx, e.account, e.owed, memo); err != nil {
		s.logger.Error("Ledger credit failed, will retry", "round", e.id, "account", e.account, "amount", e.owed, "error", err)
		return
	}
	e.owed = 0
}

// Start runs expiry every SweepInterval until ctx is done.
func (s *Service) Start(ctx context.Context) quartz.Waiter {
	return s.clock.TickerFunc(ctx, s.cfg.SweepInterval, func() error {
		s.Sweep(ctx)
		return nil
	}, "session", "sweep")
}

// Sweep concludes rounds idle for TTL, retries unpaid credits and drops
// rounds settled more than Retention ago.
func (s *Service) Sweep(ctx context.Context) {
	now := s.clock.Now()
	for _, e := range s.store.entries() {
		e.mu.Lock()
		switch {
		case e.removed:
		case !e.round.Done() && now.Sub(e.updated) >= s.cfg.TTL:
			if err := s.conclude(ctx, e, "expired"); err != nil {
				s.logger.Error("Failed to conclude expired round", "round", e.id, "error", err)
			}
		case e.finished && e.owed > 0:
			s.payOwed(ctx, e)
		case e.finished && now.Sub(e.settledAt) >= s.cfg.Retention:
			e.removed = true
			s.store.remove(e.id)
			s.logger.Debug("Round dropped", "round", e.id)
		}
		e.mu.Unlock()
	}
}
