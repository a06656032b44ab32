package address

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length of a ledger address in bytes.
const PubkeySize = 32

// Pubkey is a 32-byte ledger address, printed in base58.
type Pubkey [PubkeySize]byte

// Well-known program and sysvar addresses.
var (
	SASProgram             = MustParse("22zoJMtdu4tQc2PzL74ZUT7FrwgB1Udec8DdW4yw4BdG")
	Token2022Program       = MustParse("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenProgram = MustParse("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	SystemProgram          = Pubkey{}
	ClockSysvar            = MustParse("SysvarC1ock11111111111111111111111111111111")
	SysvarProgram          = MustParse("Sysvar1111111111111111111111111111111111111")
)

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey

	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode base58 %q:\n%w", s, err)
	}

	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("invalid address %q: %d bytes, want %d", s, len(raw), PubkeySize)
	}

	copy(pk[:], raw)

	return pk, nil
}

// MustParse is ParsePubkey for constants; it panics on error.
func MustParse(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies a 32-byte slice into a Pubkey.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("invalid address length: %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the raw address.
func (p Pubkey) Bytes() []byte {
	b := make([]byte, PubkeySize)
	copy(b, p[:])
	return b
}

// Short returns an abbreviated form for logs.
func (p Pubkey) Short() string {
	s := p.String()
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// IsZero reports whether p is the all-zero address.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// MarshalText encodes the address as base58.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a base58 address.
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
