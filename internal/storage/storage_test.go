package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
)

// newTestStore creates a store in a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func testAccount(b byte) *ledger.Account {
	return &ledger.Account{
		Address:   address.Pubkey{b},
		Owner:     address.SASProgram,
		Lamports:  uint64(b) * 1000,
		RentEpoch: 18446744073709551615,
		Data:      []byte{2, b, b, b},
	}
}

func TestPutAndGetAccount(t *testing.T) {
	s := newTestStore(t)
	want := testAccount(1)

	if err := s.PutAccounts(99, []*ledger.Account{want}); err != nil {
		t.Fatalf("PutAccounts failed: %v", err)
	}

	got, err := s.GetAccount(context.Background(), want.Address)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}

	if got.Owner != want.Owner || got.Lamports != want.Lamports || got.RentEpoch != want.RentEpoch {
		t.Errorf("GetAccount returned %+v, want %+v", got, want)
	}

	if !bytes.Equal(got.Data, want.Data) {
		t.Errorf("data = %x, want %x", got.Data, want.Data)
	}

	slot, err := s.Slot()
	if err != nil || slot != 99 {
		t.Errorf("Slot = %d, %v", slot, err)
	}
}

func TestGetMissingAccount(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAccount(context.Background(), address.Pubkey{7})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	s := newTestStore(t)
	a := testAccount(1)

	if err := s.PutAccounts(1, []*ledger.Account{a}); err != nil {
		t.Fatalf("PutAccounts failed: %v", err)
	}

	if err := s.DeleteAccount(a.Address); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if _, err := s.GetAccount(context.Background(), a.Address); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("account still present: %v", err)
	}
}

func TestAccountsIteratesInOrder(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutAccounts(5, []*ledger.Account{testAccount(3), testAccount(1), testAccount(2)}); err != nil {
		t.Fatalf("PutAccounts failed: %v", err)
	}

	var seen []byte
	err := s.Accounts(func(a *ledger.Account) error {
		seen = append(seen, a.Address[0])
		return nil
	})
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}

	if !bytes.Equal(seen, []byte{1, 2, 3}) {
		t.Errorf("iteration order = %v", seen)
	}
}

func TestAccountsStopsOnError(t *testing.T) {
	s := newTestStore(t)
	s.PutAccounts(5, []*ledger.Account{testAccount(1), testAccount(2)})

	stop := errors.New("stop")
	calls := 0

	err := s.Accounts(func(*ledger.Account) error {
		calls++
		return stop
	})

	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestFetchThroughStore(t *testing.T) {
	s := newTestStore(t)
	a := testAccount(4)
	a.Data = []byte{9} // not an attestation

	s.PutAccounts(1, []*ledger.Account{a})

	if _, err := ledger.FetchAttestation(context.Background(), s, a.Address); !errors.Is(err, ledger.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte("a:"), []byte("a;")},
		{[]byte{0x01, 0xFF}, []byte{0x02, 0x00}},
		{[]byte{0xFF, 0xFF}, nil},
	}

	for _, tt := range tests {
		if got := prefixUpperBound(tt.prefix); !bytes.Equal(got, tt.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", tt.prefix, got, tt.want)
		}
	}
}
