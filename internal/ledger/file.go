package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/lox/blackjack/internal/fileutil"
)

type fileState struct {
	Opening  int64            `json:"opening"`
	Balances map[string]int64 `json:"balances"`
}

// File is a Memory ledger persisted to a JSON file after every change. The
// file is replaced atomically so a crash never leaves a partial write.
type File struct {
	mu   sync.Mutex
	path string
	mem  *Memory
}

var _ Ledger = (*File)(nil)

// OpenFile loads path, or starts empty with the given opening balance when
// the file does not exist yet.
func OpenFile(path string, opening int64, opts ...Option) (*File, error) {
	state := fileState{Opening: opening}
	if _, err := fileutil.LoadJSON(path, &state); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	mem := NewMemory(state.Opening, opts...)
	for account, bal := range state.Balances {
		mem.Set(account, bal)
	}
	return &File{path: path, mem: mem}, nil
}

// Path returns the backing file
func (f *File) Path() string { return f.path }

// Memory exposes the in-process view, e.g. for journal reads
func (f *File) Memory() *Memory { return f.mem }

func (f *File) save() error {
	state := fileState{Opening: f.mem.opening, Balances: f.mem.Accounts()}
	if err := fileutil.SaveJSON(f.path, state); err != nil {
		return fmt.Errorf("ledger: persist %s: %w", f.path, err)
	}
	return nil
}

// Balance returns the current balance of account
func (f *File) Balance(ctx context.Context, account string) (int64, error) {
	return f.mem.Balance(ctx, account)
}

// Debit removes amount and persists. A failed write restores the balance.
func (f *File) Debit(ctx context.Context, account string, amount int64, memo string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bal, err := f.mem.Debit(ctx, account, amount, memo)
	if err != nil {
		return bal, err
	}
	if err := f.save(); err != nil {
		f.mem.Set(account, bal+amount)
		return bal + amount, err
	}
	return bal, nil
}

// Credit adds amount and persists. A failed write restores the balance.
func (f *File) Credit(ctx context.Context, account string, amount int64, memo string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bal, err := f.mem.Credit(ctx, account, amount, memo)
	if err != nil {
		return bal, err
	}
	if err := f.save(); err != nil {
		f.mem.Set(account, bal-amount)
		return bal - amount, err
	}
	return bal, nil
}

// Set overwrites a balance and persists it
func (f *File) Set(account string, balance int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem.Set(account, balance)
	return f.save()
}
