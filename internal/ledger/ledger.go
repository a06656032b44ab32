// Package ledger defines how the verifier reads account state and decodes it
// into attestation program entities.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"SASVerify/internal/address"
	"SASVerify/internal/sas"
	"SASVerify/internal/token"
)

var (
	// ErrNotFound is returned when the address holds no account.
	ErrNotFound = errors.New("account not found")

	// ErrDecode is returned when account bytes do not match the expected structure.
	ErrDecode = errors.New("account decode failed")
)

// Account is raw account state as stored on the ledger.
type Account struct {
	Address    address.Pubkey // Address is the account address
	Owner      address.Pubkey // Owner is the owning program
	Lamports   uint64         // Lamports is the balance
	Executable bool           // Executable marks program accounts
	RentEpoch  uint64         // RentEpoch is the next rent collection epoch
	Data       []byte         // Data is the raw account data
}

// Accessor reads a single account.
// Implementations return ErrNotFound for empty addresses and never retry.
type Accessor interface {
	GetAccount(ctx context.Context, addr address.Pubkey) (*Account, error)
}

// MultiAccessor reads several accounts in one round trip.
// Missing accounts are nil entries in the result.
type MultiAccessor interface {
	Accessor
	GetMultipleAccounts(ctx context.Context, addrs []address.Pubkey) ([]*Account, error)
}

// GetAccounts reads addrs through a MultiAccessor when available,
// otherwise one by one. Missing accounts are nil entries.
func GetAccounts(ctx context.Context, acc Accessor, addrs []address.Pubkey) ([]*Account, error) {
	if m, ok := acc.(MultiAccessor); ok {
		return m.GetMultipleAccounts(ctx, addrs)
	}

	out := make([]*Account, len(addrs))
	for i, a := range addrs {
		account, err := acc.GetAccount(ctx, a)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get account %s:\n%w", a, err)
		}
		out[i] = account
	}

	return out, nil
}

// FetchCredential reads and decodes a credential account.
func FetchCredential(ctx context.Context, acc Accessor, addr address.Pubkey) (*sas.Credential, error) {
	data, err := fetchOwned(ctx, acc, addr, address.SASProgram)
	if err != nil {
		return nil, err
	}

	c, err := sas.DecodeCredential(data)
	if err != nil {
		return nil, decodeError(addr, err)
	}

	return c, nil
}

// FetchSchema reads and decodes a schema account.
func FetchSchema(ctx context.Context, acc Accessor, addr address.Pubkey) (*sas.Schema, error) {
	data, err := fetchOwned(ctx, acc, addr, address.SASProgram)
	if err != nil {
		return nil, err
	}

	s, err := sas.DecodeSchema(data)
	if err != nil {
		return nil, decodeError(addr, err)
	}

	return s, nil
}

// FetchAttestation reads and decodes an attestation account.
func FetchAttestation(ctx context.Context, acc Accessor, addr address.Pubkey) (*sas.Attestation, error) {
	data, err := fetchOwned(ctx, acc, addr, address.SASProgram)
	if err != nil {
		return nil, err
	}

	a, err := sas.DecodeAttestation(data)
	if err != nil {
		return nil, decodeError(addr, err)
	}

	return a, nil
}

// FetchMint reads and parses a Token-2022 mint.
func FetchMint(ctx context.Context, acc Accessor, addr address.Pubkey) (*token.Mint, error) {
	data, err := fetchOwned(ctx, acc, addr, address.Token2022Program)
	if err != nil {
		return nil, err
	}

	m, err := token.ParseMint(data)
	if err != nil {
		return nil, decodeError(addr, err)
	}

	return m, nil
}

// fetchOwned reads an account and checks its owning program.
func fetchOwned(ctx context.Context, acc Accessor, addr, owner address.Pubkey) ([]byte, error) {
	account, err := acc.GetAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get account %s:\n%w", addr, err)
	}

	if account.Owner != owner {
		return nil, fmt.Errorf("%w: %s owned by %s, want %s", ErrDecode, addr, account.Owner, owner)
	}

	return account.Data, nil
}

// decodeError tags a parse failure with ErrDecode, keeping the cause.
func decodeError(addr address.Pubkey, err error) error {
	return fmt.Errorf("%w: %s:\n%w", ErrDecode, addr, err)
}
