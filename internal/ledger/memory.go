package ledger

import (
	"context"
	"sync"

	"SASVerify/internal/address"
)

// Memory is an Accessor over a fixed set of accounts held in process.
// It backs snapshot-file verification and tests.
type Memory struct {
	mu       sync.RWMutex
	accounts map[address.Pubkey]*Account
}

// NewMemory creates a ledger holding accounts.
func NewMemory(accounts ...*Account) *Memory {
	m := &Memory{accounts: make(map[address.Pubkey]*Account, len(accounts))}
	for _, a := range accounts {
		m.Put(a)
	}
	return m
}

// Put stores a copy of a, replacing any account at the same address.
func (m *Memory) Put(a *Account) {
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)

	m.mu.Lock()
	m.accounts[a.Address] = &cp
	m.mu.Unlock()
}

// Delete removes the account at addr.
func (m *Memory) Delete(addr address.Pubkey) {
	m.mu.Lock()
	delete(m.accounts, addr)
	m.mu.Unlock()
}

// Len returns the number of accounts held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}

// GetAccount returns a copy of the account at addr.
func (m *Memory) GetAccount(ctx context.Context, addr address.Pubkey) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	a, ok := m.accounts[addr]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	cp := *a
	cp.Data = append([]byte(nil), a.Data...)

	return &cp, nil
}

// GetMultipleAccounts returns accounts in request order, nil where missing.
func (m *Memory) GetMultipleAccounts(ctx context.Context, addrs []address.Pubkey) ([]*Account, error) {
	out := make([]*Account, len(addrs))

	for i, a := range addrs {
		account, err := m.GetAccount(ctx, a)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i] = account
	}

	return out, nil
}
