// Package genesis builds attestation program ledger state from scratch:
// credentials, schemas, attestations, their token mints and the clock
// sysvar. The result seeds snapshot files, local servers and tests.
package genesis

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/sas"
	"SASVerify/internal/token"
)

// Rent-exempt style balances written into generated accounts.
const (
	defaultLamports = 1_461_600
	clockLamports   = 1_169_280

	// rentExempt is the rent epoch the ledger reports for rent-exempt accounts.
	rentExempt = ^uint64(0)

	// clockSize is the length of the clock sysvar.
	clockSize = 40
)

// Ledger accumulates generated accounts.
type Ledger struct {
	accounts map[address.Pubkey]*ledger.Account // accounts holds every generated account
	slot     uint64                             // slot is recorded in the clock and snapshots
}

// New creates an empty ledger at slot.
func New(slot uint64) *Ledger {
	return &Ledger{
		accounts: make(map[address.Pubkey]*ledger.Account),
		slot:     slot,
	}
}

// Slot returns the ledger slot.
func (l *Ledger) Slot() uint64 {
	return l.slot
}

// Put stores an account, replacing any previous one at its address.
func (l *Ledger) Put(a *ledger.Account) {
	l.accounts[a.Address] = a
}

// Accounts returns every account sorted by address.
func (l *Ledger) Accounts() []*ledger.Account {
	out := make([]*ledger.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})

	return out
}

// Memory returns an accessor over the generated accounts.
func (l *Ledger) Memory() *ledger.Memory {
	return ledger.NewMemory(l.Accounts()...)
}

// AddCredential creates a credential owned by authority.
func (l *Ledger) AddCredential(authority address.Pubkey, name string, signers ...address.Pubkey) (address.Pubkey, error) {
	addr, err := address.DeriveCredential(authority, name)
	if err != nil {
		return address.Pubkey{}, err
	}

	c := &sas.Credential{
		Authority:         authority,
		Name:              name,
		AuthorizedSigners: signers,
	}

	l.putProgram(addr, address.SASProgram, c.Encode())

	return addr, nil
}

// AddSchema creates a schema under credential. The schema's Credential
// field is overwritten with credential.
func (l *Ledger) AddSchema(credential address.Pubkey, s sas.Schema) (address.Pubkey, error) {
	if len(s.FieldNames) != len(s.Layout) {
		return address.Pubkey{}, fmt.Errorf("schema %q has %d names for %d fields", s.Name, len(s.FieldNames), len(s.Layout))
	}

	addr, err := address.DeriveSchema(credential, s.Name, s.Version)
	if err != nil {
		return address.Pubkey{}, err
	}

	s.Credential = credential
	l.putProgram(addr, address.SASProgram, s.Encode())

	return addr, nil
}

// SetSchemaPaused flips the pause flag of an existing schema.
func (l *Ledger) SetSchemaPaused(schema address.Pubkey, paused bool) error {
	s, err := l.schema(schema)
	if err != nil {
		return err
	}

	s.IsPaused = paused
	l.putProgram(schema, address.SASProgram, s.Encode())

	return nil
}

// AddAttestation creates an attestation for nonce under schema, encoding
// values with the schema layout.
func (l *Ledger) AddAttestation(schema, nonce, signer address.Pubkey, values map[string]any, expiry int64) (address.Pubkey, error) {
	s, err := l.schema(schema)
	if err != nil {
		return address.Pubkey{}, err
	}

	data, err := sas.EncodeData(s, values)
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("encode attestation data:\n%w", err)
	}

	addr, err := address.DeriveAttestation(s.Credential, schema, nonce)
	if err != nil {
		return address.Pubkey{}, err
	}

	a := &sas.Attestation{
		Nonce:      nonce,
		Credential: s.Credential,
		Schema:     schema,
		Data:       data,
		Signer:     signer,
		Expiry:     expiry,
	}

	l.putProgram(addr, address.SASProgram, a.Encode())

	return addr, nil
}

// TokenizeSchema creates the schema's token-group mint.
func (l *Ledger) TokenizeSchema(schema address.Pubkey, maxSize uint64) (address.Pubkey, error) {
	s, err := l.schema(schema)
	if err != nil {
		return address.Pubkey{}, err
	}

	mintAddr, err := address.DeriveSchemaMint(schema)
	if err != nil {
		return address.Pubkey{}, err
	}

	authority, err := address.DeriveSASAuthority()
	if err != nil {
		return address.Pubkey{}, err
	}

	m := &token.Mint{MintAuthority: &authority, IsInitialized: true}
	m.SetPointer(token.ExtGroupPointer, token.Pointer{Authority: authority, Address: mintAddr})
	m.SetGroup(token.TokenGroup{UpdateAuthority: authority, Mint: mintAddr, MaxSize: maxSize})
	m.SetPointer(token.ExtMetadataPointer, token.Pointer{Authority: authority, Address: mintAddr})
	m.SetMetadata(token.TokenMetadata{
		UpdateAuthority: authority,
		Mint:            mintAddr,
		Name:            s.Name,
		Symbol:          "SAS",
	})

	l.putProgram(mintAddr, address.Token2022Program, m.Encode())

	return mintAddr, nil
}

// TokenizeAttestation creates the attestation's member mint inside the
// schema group and records the subject's token account on the attestation.
// The schema must be tokenized first.
func (l *Ledger) TokenizeAttestation(attestation address.Pubkey, name, symbol, uri string) (address.Pubkey, error) {
	a, err := l.attestation(attestation)
	if err != nil {
		return address.Pubkey{}, err
	}

	schemaMint, err := address.DeriveSchemaMint(a.Schema)
	if err != nil {
		return address.Pubkey{}, err
	}

	group, ok := l.accounts[schemaMint]
	if !ok {
		return address.Pubkey{}, fmt.Errorf("schema %s is not tokenized", a.Schema)
	}

	groupMint, err := token.ParseMint(group.Data)
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("schema mint:\n%w", err)
	}

	g, err := groupMint.Group()
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("schema mint:\n%w", err)
	}

	mintAddr, err := address.DeriveAttestationMint(attestation)
	if err != nil {
		return address.Pubkey{}, err
	}

	authority, err := address.DeriveSASAuthority()
	if err != nil {
		return address.Pubkey{}, err
	}

	g.Size++
	groupMint.SetGroup(*g)
	group.Data = groupMint.Encode()

	m := &token.Mint{MintAuthority: &authority, Supply: 1, IsInitialized: true}
	m.SetPointer(token.ExtGroupMemberPointer, token.Pointer{Authority: authority, Address: mintAddr})
	m.SetGroupMember(token.TokenGroupMember{Mint: mintAddr, Group: schemaMint, MemberNumber: g.Size})
	m.SetPointer(token.ExtMetadataPointer, token.Pointer{Authority: authority, Address: mintAddr})
	m.SetMetadata(token.TokenMetadata{
		UpdateAuthority: authority,
		Mint:            mintAddr,
		Name:            name,
		Symbol:          symbol,
		URI:             uri,
		AdditionalMetadata: [][2]string{
			{"attestation", attestation.String()},
			{"schema", a.Schema.String()},
		},
	})

	l.putProgram(mintAddr, address.Token2022Program, m.Encode())

	if a.TokenAccount, err = address.DeriveTokenAccount(a.Nonce, mintAddr); err != nil {
		return address.Pubkey{}, err
	}
	l.putProgram(attestation, address.SASProgram, a.Encode())

	return mintAddr, nil
}

// SetClock writes the clock sysvar with the given wall time.
// Layout: slot u64, epoch_start_timestamp i64, epoch u64,
// leader_schedule_epoch u64, unix_timestamp i64.
func (l *Ledger) SetClock(now time.Time) {
	data := make([]byte, clockSize)
	binary.LittleEndian.PutUint64(data[0:8], l.slot)
	binary.LittleEndian.PutUint64(data[8:16], uint64(now.Unix()))
	binary.LittleEndian.PutUint64(data[32:40], uint64(now.Unix()))

	l.Put(&ledger.Account{
		Address:   address.ClockSysvar,
		Owner:     address.SysvarProgram,
		Lamports:  clockLamports,
		RentEpoch: rentExempt,
		Data:      data,
	})
}

// KeyFromSeed derives a deterministic signing key and its address.
func KeyFromSeed(seed [32]byte) (ed25519.PrivateKey, address.Pubkey) {
	priv := ed25519.NewKeyFromSeed(seed[:])

	var pk address.Pubkey
	copy(pk[:], priv.Public().(ed25519.PublicKey))

	return priv, pk
}

// putProgram stores a rent-exempt account owned by program.
func (l *Ledger) putProgram(addr, program address.Pubkey, data []byte) {
	l.Put(&ledger.Account{
		Address:   addr,
		Owner:     program,
		Lamports:  defaultLamports,
		RentEpoch: rentExempt,
		Data:      data,
	})
}

// schema decodes a generated schema account.
func (l *Ledger) schema(addr address.Pubkey) (*sas.Schema, error) {
	a, ok := l.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("schema %s: %w", addr, ledger.ErrNotFound)
	}

	return sas.DecodeSchema(a.Data)
}

// attestation decodes a generated attestation account.
func (l *Ledger) attestation(addr address.Pubkey) (*sas.Attestation, error) {
	a, ok := l.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("attestation %s: %w", addr, ledger.ErrNotFound)
	}

	return sas.DecodeAttestation(a.Data)
}
