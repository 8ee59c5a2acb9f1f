package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/lox/blackjack/internal/game"
)

// entry is one round plus its bookkeeping. mu serialises every operation on
// the round.
type entry struct {
	mu      sync.Mutex
	id      string
	account string
	round   *game.Round

	updated   time.Time
	settledAt time.Time
	finished  bool
	removed   bool

	// owed is a payout or refund the ledger has not accepted yet
	owed int64
}

// Store maps round ids to rounds and enforces one unsettled round per
// account.
type Store struct {
	mu     sync.Mutex
	rounds map[string]*entry
	active map[string]string // account -> round id, "" while opening
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		rounds: make(map[string]*entry),
		active: make(map[string]string),
	}
}

// reserve claims the account for a new round
func (s *Store) reserve(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.active[account]; ok {
		if id == "" {
			return fmt.Errorf("%w: %s is opening a round", game.ErrRoundInProgress, account)
		}
		return fmt.Errorf("%w: %s is playing %s", game.ErrRoundInProgress, account, id)
	}
	s.active[account] = ""
	return nil
}

// put stores a round for an account reserved with reserve
func (s *Store) put(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[e.id] = e
	s.active[e.account] = e.id
}

// release frees the account once its round is finished
func (s *Store) release(account, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.active[account]; ok && cur == id {
		delete(s.active, account)
	}
}

func (s *Store) get(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rounds[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrRoundNotFound, id)
	}
	return e, nil
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rounds, id)
}

// ActiveRound returns the unsettled round id of account, if any
func (s *Store) ActiveRound(account string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[account]
	return id, ok && id != ""
}

// Len returns the number of stored rounds, settled ones included
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rounds)
}

func (s *Store) entries() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entry, 0, len(s.rounds))
	for _, e := range s.rounds {
		out = append(out, e)
	}
	return out
}
