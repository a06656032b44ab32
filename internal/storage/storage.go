// Package storage keeps a pinned copy of ledger accounts in Pebble so
// verifications can be replayed offline against a fixed ledger state.
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"SASVerify/internal/address"
	"SASVerify/internal/borsh"
	"SASVerify/internal/ledger"
)

// Key prefixes.
var (
	prefixAccount = []byte("a:")
	keySlot       = []byte("m:slot")
)

// Store is an account store backed by Pebble. It implements ledger.Accessor.
type Store struct {
	db *pebble.DB // db is the underlying Pebble database
}

// Open opens or creates a store at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(16 << 20), // 16 MB cache
		MemTableSize: 8 << 20,                   // 8 MB memtable
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAccount implements ledger.Accessor.
func (s *Store) GetAccount(ctx context.Context, addr address.Pubkey) (*ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get(accountKey(addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read account %s:\n%w", addr, err)
	}
	defer closer.Close()

	// decodeAccount copies out of value, which is invalid after Close.
	account, err := decodeAccount(addr, value)
	if err != nil {
		return nil, fmt.Errorf("stored account %s:\n%w", addr, err)
	}

	return account, nil
}

// PutAccounts atomically writes accounts and the slot they were read at.
func (s *Store) PutAccounts(slot uint64, accounts []*ledger.Account) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, a := range accounts {
		if err := batch.Set(accountKey(a.Address), encodeAccount(a), nil); err != nil {
			return fmt.Errorf("stage account %s:\n%w", a.Address, err)
		}
	}

	var slotBuf [8]byte
	binary.BigEndian.PutUint64(slotBuf[:], slot)
	if err := batch.Set(keySlot, slotBuf[:], nil); err != nil {
		return fmt.Errorf("stage slot:\n%w", err)
	}

	return batch.Commit(pebble.Sync)
}

// DeleteAccount removes one account.
func (s *Store) DeleteAccount(addr address.Pubkey) error {
	return s.db.Delete(accountKey(addr), pebble.Sync)
}

// Slot returns the slot recorded by the last PutAccounts, or 0.
func (s *Store) Slot() (uint64, error) {
	value, closer, err := s.db.Get(keySlot)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(value) != 8 {
		return 0, fmt.Errorf("corrupt slot record: %d bytes", len(value))
	}

	return binary.BigEndian.Uint64(value), nil
}

// Accounts calls fn for each stored account in address order.
// If fn returns an error, iteration stops and the error is returned.
func (s *Store) Accounts(fn func(*ledger.Account) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixAccount,
		UpperBound: prefixUpperBound(prefixAccount),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		addr, err := address.PubkeyFromBytes(iter.Key()[len(prefixAccount):])
		if err != nil {
			return fmt.Errorf("corrupt account key:\n%w", err)
		}

		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		account, err := decodeAccount(addr, value)
		if err != nil {
			return fmt.Errorf("stored account %s:\n%w", addr, err)
		}

		if err := fn(account); err != nil {
			return err
		}
	}

	return iter.Error()
}

// accountKey returns the storage key for an address.
func accountKey(addr address.Pubkey) []byte {
	key := make([]byte, 0, len(prefixAccount)+address.PubkeySize)
	key = append(key, prefixAccount...)
	return append(key, addr[:]...)
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}

	return nil
}

// encodeAccount serializes an account value.
// Format: owner (32) + lamports u64 + executable bool + rent_epoch u64 + Vec<u8> data
func encodeAccount(a *ledger.Account) []byte {
	w := borsh.NewWriter(32 + 8 + 1 + 8 + 4 + len(a.Data))
	w.Key(a.Owner)
	w.U64(a.Lamports)
	w.Bool(a.Executable)
	w.U64(a.RentEpoch)
	w.ByteVec(a.Data)
	return w.Bytes()
}

// decodeAccount parses a value written by encodeAccount.
func decodeAccount(addr address.Pubkey, value []byte) (*ledger.Account, error) {
	r := borsh.NewReader(value)

	a := &ledger.Account{
		Address:    addr,
		Owner:      r.Key(),
		Lamports:   r.U64(),
		Executable: r.Bool(),
		RentEpoch:  r.U64(),
		Data:       r.Bytes(),
	}

	if err := r.Finish(); err != nil {
		return nil, err
	}

	return a, nil
}
