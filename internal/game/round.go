package game

import (
	"fmt"
	rand "math/rand/v2"
	"strings"
)

// Phase is the state of a round.
type Phase uint8

const (
	PhaseDealing Phase = iota
	PhaseAwaitingInsurance
	PhaseAwaitingPlayerAction
	PhaseDealerTurn
	PhaseSettled
	// PhaseAborted is terminal and only reached when the shoe runs out while
	// the dealer plays. The stake is refunded by the caller.
	PhaseAborted
)

var phaseNames = [...]string{
	"DEALING", "AWAITING_INSURANCE", "AWAITING_PLAYER_ACTION", "DEALER_TURN", "SETTLED", "ABORTED",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "UNKNOWN"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, phaseNames[:], (*uint8)(p), "phase")
}

// InsuranceState tracks the insurance side bet.
type InsuranceState uint8

const (
	InsuranceNone InsuranceState = iota
	InsuranceOffered
	InsuranceAccepted
	InsuranceDeclined
)

var insuranceNames = [...]string{"NONE", "OFFERED", "ACCEPTED", "DECLINED"}

func (s InsuranceState) String() string {
	if int(s) < len(insuranceNames) {
		return insuranceNames[s]
	}
	return "UNKNOWN"
}

func (s InsuranceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *InsuranceState) UnmarshalText(b []byte) error {
	return unmarshalEnum(b, insuranceNames[:], (*uint8)(s), "insurance state")
}

// Action is a player decision.
type Action uint8

const (
	ActionHit Action = iota + 1
	ActionStand
	ActionDouble
	ActionSplit
	ActionSurrender
	ActionInsure
	ActionDeclineInsurance
)

var actionNames = map[Action]string{
	ActionHit:              "hit",
	ActionStand:            "stand",
	ActionDouble:           "double",
	ActionSplit:            "split",
	ActionSurrender:        "surrender",
	ActionInsure:           "insure",
	ActionDeclineInsurance: "decline_insurance",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// ParseAction parses an action name as produced by Action.String.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, n := range actionNames {
		if n == s {
			return a, nil
		}
	}
	return 0, illegal("unknown action %q", s)
}

// Round is the state machine for one round of blackjack: one shoe, one
// dealer hand and the player's hands. Hands live in an arena addressed by
// stable index; a split reuses the current slot and appends the second hand.
//
// A Round is not safe for concurrent use. Callers serialise access per round.
type Round struct {
	id    string
	rules Rules
	shoe  *Shoe

	dealer  DealerHand
	hands   []*PlayerHand
	current int

	insurance    InsuranceState
	insuranceBet int64

	phase      Phase
	splits     int
	balance    int64 // player funds at open, before the initial bet
	totalStake int64

	settlement *Settlement
}

// Option configures a Round during creation.
type Option func(*roundConfig)

type roundConfig struct {
	rules Rules
	shoe  *Shoe
	rng   *rand.Rand
}

// WithRules sets the rule set. Default is DefaultRules().
func WithRules(r Rules) Option {
	return func(c *roundConfig) {
		c.rules = r
	}
}

// WithShoe deals from a specific shoe instead of building a shuffled one.
func WithShoe(s *Shoe) Option {
	return func(c *roundConfig) {
		c.shoe = s
	}
}

// WithRand sets the generator used to shuffle a fresh shoe.
func WithRand(rng *rand.Rand) Option {
	return func(c *roundConfig) {
		c.rng = rng
	}
}

// NewRound opens a round: validates the bet against balance (the player's
// funds before the bet), deals two cards each and moves to the first phase
// that needs input. A player natural against a non-Ace upcard settles
// immediately.
func NewRound(id string, bet, balance int64, opts ...Option) (*Round, error) {
	cfg := &roundConfig{rules: DefaultRules()}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	if bet <= 0 {
		return nil, fmt.Errorf("%w: bet must be positive, got %d", ErrInvalidBet, bet)
	}
	if bet > balance {
		return nil, fmt.Errorf("%w: bet %d exceeds balance %d", ErrInsufficientBalance, bet, balance)
	}

	shoe := cfg.shoe
	if shoe == nil {
		if cfg.rng == nil {
			panic("rng or shoe is required for round creation")
		}
		shoe = NewShoe(cfg.rng, cfg.rules.Decks)
	}
	if shoe.Remaining() < 4 {
		return nil, fmt.Errorf("%w: %d cards left for the deal", ErrShoeExhausted, shoe.Remaining())
	}

	r := &Round{
		id:         id,
		rules:      cfg.rules,
		shoe:       shoe,
		hands:      []*PlayerHand{{Bet: bet}},
		phase:      PhaseDealing,
		balance:    balance,
		totalStake: bet,
	}
	r.deal()

	if up, _ := r.dealer.Upcard(); up.Rank == Ace {
		r.insurance = InsuranceOffered
		r.phase = PhaseAwaitingInsurance
		return r, nil
	}
	if err := r.beginPlay(); err != nil {
		return r, err
	}
	return r, nil
}

// deal gives player, dealer, player, dealer. Remaining was checked.
func (r *Round) deal() {
	player := r.hands[0]
	for range 2 {
		c, _ := r.shoe.Draw()
		player.add(c)
		c, _ = r.shoe.Draw()
		r.dealer.add(c)
	}
}

// beginPlay starts player decisions, or resolves a natural straight away.
func (r *Round) beginPlay() error {
	if first := r.hands[0]; first.IsNatural() {
		first.Status = HandStood
		return r.playDealer()
	}
	r.current = 0
	r.phase = PhaseAwaitingPlayerAction
	return nil
}

// ID returns the round id
func (r *Round) ID() string { return r.id }

// Phase returns the current phase
func (r *Round) Phase() Phase { return r.phase }

// Rules returns the rule set the round is played under
func (r *Round) Rules() Rules { return r.rules }

// TotalStake returns every amount the player has committed so far
func (r *Round) TotalStake() int64 { return r.totalStake }

// Done reports whether the round reached a terminal phase
func (r *Round) Done() bool {
	return r.phase == PhaseSettled || r.phase == PhaseAborted
}

// Settlement returns the settlement once the round is settled
func (r *Round) Settlement() (Settlement, bool) {
	if r.settlement == nil {
		return Settlement{}, false
	}
	return *r.settlement, true
}

// CardsInPlay counts the cards held by the shoe and every hand. It is
// constant for the life of the round.
func (r *Round) CardsInPlay() int {
	n := r.shoe.Remaining() + len(r.dealer.Cards)
	for _, h := range r.hands {
		n += len(h.Cards)
	}
	return n
}

func (r *Round) available() int64 {
	return r.balance - r.totalStake
}

func (r *Round) insuranceAmount() int64 {
	return r.hands[0].Bet / 2
}

func (r *Round) canDouble(h *PlayerHand) bool {
	return h.Status == HandActive &&
		len(h.Cards) == 2 &&
		!h.SplitAces &&
		(!h.FromSplit || r.rules.DoubleAfterSplit)
}

func (r *Round) canSplit(h *PlayerHand) bool {
	return h.Status == HandActive &&
		h.isPair() &&
		!h.SplitAces &&
		r.splits < r.rules.MaxSplits
}

func (r *Round) canSurrender(h *PlayerHand) bool {
	return r.rules.Surrender &&
		h.Status == HandActive &&
		len(r.hands) == 1 &&
		len(h.Cards) == 2 &&
		!h.FromSplit
}

// Cost validates action against the current state without mutating it and
// returns the additional stake the action commits. It returns the same error
// Apply would.
func (r *Round) Cost(a Action) (int64, error) {
	switch r.phase {
	case PhaseSettled:
		return 0, ErrRoundAlreadySettled
	case PhaseAborted:
		return 0, illegal("round %s was aborted", r.id)
	}

	switch a {
	case ActionInsure, ActionDeclineInsurance:
		if r.phase != PhaseAwaitingInsurance || r.insurance != InsuranceOffered {
			return 0, illegal("insurance is not on offer")
		}
		if a == ActionDeclineInsurance {
			return 0, nil
		}
		amount := r.insuranceAmount()
		if amount <= 0 {
			return 0, illegal("bet %d is too small to insure", r.hands[0].Bet)
		}
		if amount > r.available() {
			return 0, fmt.Errorf("%w: insurance needs %d, %d available", ErrInsufficientBalance, amount, r.available())
		}
		return amount, nil
	}

	if r.phase != PhaseAwaitingPlayerAction {
		return 0, illegal("cannot %s during %s", a, r.phase)
	}
	h := r.hands[r.current]
	if h.Status != HandActive {
		return 0, illegal("hand %d is %s", r.current, h.Status)
	}

	switch a {
	case ActionHit:
		if r.shoe.Remaining() < 1 {
			return 0, ErrShoeExhausted
		}
		return 0, nil
	case ActionStand:
		return 0, nil
	case ActionDouble:
		if !r.canDouble(h) {
			return 0, illegal("hand %d cannot double", r.current)
		}
		if h.Bet > r.available() {
			return 0, fmt.Errorf("%w: double needs %d, %d available", ErrInsufficientBalance, h.Bet, r.available())
		}
		if r.shoe.Remaining() < 1 {
			return 0, ErrShoeExhausted
		}
		return h.Bet, nil
	case ActionSplit:
		if !r.canSplit(h) {
			return 0, illegal("hand %d cannot split", r.current)
		}
		if h.Bet > r.available() {
			return 0, fmt.Errorf("%w: split needs %d, %d available", ErrInsufficientBalance, h.Bet, r.available())
		}
		if r.shoe.Remaining() < 2 {
			return 0, ErrShoeExhausted
		}
		return h.Bet, nil
	case ActionSurrender:
		if !r.canSurrender(h) {
			return 0, illegal("surrender is not available")
		}
		return 0, nil
	default:
		return 0, illegal("unknown action %d", a)
	}
}

// Apply performs action. Validation happens first; a validation error leaves
// the round untouched. The action's cost joins the stake only once its cards
// are drawn. ErrShoeExhausted from the dealer's draw aborts the round.
func (r *Round) Apply(a Action) error {
	cost, err := r.Cost(a)
	if err != nil {
		return err
	}

	switch a {
	case ActionInsure:
		return r.insure(cost)
	case ActionDeclineInsurance:
		r.insurance = InsuranceDeclined
		return r.beginPlay()
	case ActionHit:
		return r.hit()
	case ActionStand:
		r.hands[r.current].Status = HandStood
		return r.advance()
	case ActionDouble:
		return r.double(cost)
	case ActionSplit:
		return r.split(cost)
	case ActionSurrender:
		r.hands[r.current].Status = HandSurrendered
		return r.advance()
	}
	return nil
}

// Hit draws one card onto the active hand.
func (r *Round) Hit() error { return r.Apply(ActionHit) }

// Stand finishes the active hand.
func (r *Round) Stand() error { return r.Apply(ActionStand) }

// Double doubles the active hand's bet and draws exactly one card.
func (r *Round) Double() error { return r.Apply(ActionDouble) }

// Split splits the active pair into two hands.
func (r *Round) Split() error { return r.Apply(ActionSplit) }

// Surrender gives up the original hand for half the bet.
func (r *Round) Surrender() error { return r.Apply(ActionSurrender) }

// Insurance accepts or declines the insurance offer.
func (r *Round) Insurance(accept bool) error {
	if accept {
		return r.Apply(ActionInsure)
	}
	return r.Apply(ActionDeclineInsurance)
}

func (r *Round) insure(amount int64) error {
	r.totalStake += amount
	r.insurance = InsuranceAccepted
	r.insuranceBet = amount

	// Peek at the hole card.
	if r.dealer.IsBlackjack() {
		if first := r.hands[0]; first.Status == HandActive {
			first.Status = HandStood
		}
		return r.playDealer()
	}
	return r.beginPlay()
}

func (r *Round) hit() error {
	h := r.hands[r.current]
	c, err := r.shoe.Draw()
	if err != nil {
		return err
	}
	h.add(c)
	if h.IsBust() {
		h.Status = HandBust
		return r.advance()
	}
	return nil
}

func (r *Round) double(cost int64) error {
	h := r.hands[r.current]
	c, err := r.shoe.Draw()
	if err != nil {
		return err
	}
	r.totalStake += cost
	h.Bet += cost
	h.Doubled = true
	h.add(c)
	if h.IsBust() {
		h.Status = HandBust
	} else {
		h.Status = HandDoubledStood
	}
	return r.advance()
}

func (r *Round) split(cost int64) error {
	h := r.hands[r.current]
	aces := h.Cards[0].Rank == Ace

	first := &PlayerHand{Bet: h.Bet, FromSplit: true, SplitAces: aces}
	second := &PlayerHand{Bet: h.Bet, FromSplit: true, SplitAces: aces}
	first.add(h.Cards[0])
	second.add(h.Cards[1])

	for _, nh := range []*PlayerHand{first, second} {
		c, err := r.shoe.Draw()
		if err != nil {
			return err
		}
		nh.add(c)
		if aces {
			nh.Status = HandStood
		}
	}

	r.totalStake += cost
	r.hands[r.current] = first
	r.hands = append(r.hands, second)
	r.splits++

	if aces {
		return r.advance()
	}
	return nil
}

// advance moves the pointer forward to the next active hand, or hands over
// to the dealer when none remain. Hands before the pointer are finished.
func (r *Round) advance() error {
	for i := r.current; i < len(r.hands); i++ {
		if r.hands[i].Status == HandActive {
			r.current = i
			return nil
		}
	}
	return r.playDealer()
}

// playDealer reveals the hole card and draws by rule. The loop depends only
// on the dealer's own cards.
func (r *Round) playDealer() error {
	r.phase = PhaseDealerTurn
	r.dealer.Revealed = true

	for {
		s := r.dealer.Score()
		if s.Value > 17 || (s.Value == 17 && !(s.Soft && r.rules.DealerHitsSoft17)) {
			break
		}
		c, err := r.shoe.Draw()
		if err != nil {
			r.phase = PhaseAborted
			return err
		}
		r.dealer.add(c)
	}

	r.settle()
	return nil
}

func (r *Round) settle() {
	if r.settlement != nil {
		return
	}
	s := Settle(r.rules, &r.dealer.Hand, r.hands, r.insurance, r.insuranceBet, r.totalStake)
	r.settlement = &s
	r.phase = PhaseSettled
}

// Conclude finishes the round without further input: a pending insurance
// offer is declined and every active hand stands. Used when a session
// expires so the stake is always settled.
func (r *Round) Conclude() error {
	if r.Done() {
		return nil
	}
	if r.phase == PhaseAwaitingInsurance {
		if err := r.Apply(ActionDeclineInsurance); err != nil {
			return err
		}
	}
	for r.phase == PhaseAwaitingPlayerAction {
		if err := r.Apply(ActionStand); err != nil {
			return err
		}
	}
	return nil
}
