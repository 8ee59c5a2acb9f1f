// Package ledger holds player balances in integer minor units. The session
// service debits stakes before the engine commits them and credits payouts
// at settlement.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
)

var (
	// ErrInsufficientFunds is returned by Debit when the balance cannot cover
	// the amount. The balance is unchanged.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrInvalidAccount rejects empty account names.
	ErrInvalidAccount = errors.New("ledger: invalid account")
)

// Ledger is the balance store a session settles against.
type Ledger interface {
	Balance(ctx context.Context, account string) (int64, error)
	// Debit removes amount and returns the new balance.
	Debit(ctx context.Context, account string, amount int64, memo string) (int64, error)
	// Credit adds amount and returns the new balance.
	Credit(ctx context.Context, account string, amount int64, memo string) (int64, error)
}

// Entry is one journal line. Amount is negative for debits.
type Entry struct {
	Account string    `json:"account"`
	Amount  int64     `json:"amount"`
	Balance int64     `json:"balance"`
	Memo    string    `json:"memo,omitempty"`
	Time    time.Time `json:"time"`
}

// Option configures a Memory ledger
type Option func(*Memory)

// WithClock sets the clock used for journal timestamps
func WithClock(c quartz.Clock) Option {
	return func(m *Memory) {
		m.clock = c
	}
}

// WithJournalLimit caps the in-memory journal. Zero keeps every entry.
func WithJournalLimit(n int) Option {
	return func(m *Memory) {
		m.journalLimit = n
	}
}

// Memory is an in-process ledger. Unknown accounts start at the opening
// balance.
type Memory struct {
	mu           sync.Mutex
	opening      int64
	balances     map[string]int64
	journal      []Entry
	journalLimit int
	clock        quartz.Clock
}

var _ Ledger = (*Memory)(nil)

// NewMemory creates an empty ledger
func NewMemory(opening int64, opts ...Option) *Memory {
	m := &Memory{
		opening:  opening,
		balances: make(map[string]int64),
		clock:    quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) balanceLocked(account string) int64 {
	if b, ok := m.balances[account]; ok {
		return b
	}
	return m.opening
}

func (m *Memory) record(account string, amount, balance int64, memo string) {
	m.journal = append(m.journal, Entry{
		Account: account,
		Amount:  amount,
		Balance: balance,
		Memo:    memo,
		Time:    m.clock.Now(),
	})
	if m.journalLimit > 0 && len(m.journal) > m.journalLimit {
		m.journal = append(m.journal[:0], m.journal[len(m.journal)-m.journalLimit:]...)
	}
}

func checkArgs(account string, amount int64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return nil
}

// Balance returns the current balance of account
func (m *Memory) Balance(_ context.Context, account string) (int64, error) {
	if account == "" {
		return 0, ErrInvalidAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(account), nil
}

// Debit removes amount from account
func (m *Memory) Debit(_ context.Context, account string, amount int64, memo string) (int64, error) {
	if err := checkArgs(account, amount); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balanceLocked(account)
	if amount > bal {
		return bal, fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, account, bal, amount)
	}
	bal -= amount
	m.balances[account] = bal
	m.record(account, -amount, bal, memo)
	return bal, nil
}

// Credit adds amount to account
func (m *Memory) Credit(_ context.Context, account string, amount int64, memo string) (int64, error) {
	if err := checkArgs(account, amount); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balanceLocked(account) + amount
	m.balances[account] = bal
	m.record(account, amount, bal, memo)
	return bal, nil
}

// Set overwrites the balance of account without a journal entry. Used to
// seed accounts.
func (m *Memory) Set(account string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = balance
}

// Accounts returns a copy of every known balance
func (m *Memory) Accounts() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.balances))
	for k, v := range m.balances {
		out[k] = v
	}
	return out
}

// Journal returns the entries for account, oldest first. An empty account
// returns every entry.
func (m *Memory) Journal(account string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.journal {
		if account == "" || e.Account == account {
			out = append(out, e)
		}
	}
	return out
}

// Names returns the known account names, sorted
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.balances))
	for k := range m.balances {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
