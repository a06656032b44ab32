// Package sas models the attestation program's accounts: credentials,
// schemas and attestations, plus the schema-driven payload codec.
package sas

import (
	"errors"
	"fmt"

	"SASVerify/internal/address"
	"SASVerify/internal/borsh"
)

// Account discriminators (first byte of account data).
const (
	DiscriminatorCredential  uint8 = 0
	DiscriminatorSchema      uint8 = 1
	DiscriminatorAttestation uint8 = 2
)

// ErrDiscriminator is returned when the first byte names another account kind.
var ErrDiscriminator = errors.New("unexpected account discriminator")

// Credential identifies an issuing authority and its signers.
type Credential struct {
	Authority         address.Pubkey   `json:"authority"`
	Name              string           `json:"name"`
	AuthorizedSigners []address.Pubkey `json:"authorizedSigners"`
}

// Schema is a versioned payload template owned by a credential.
type Schema struct {
	Credential  address.Pubkey `json:"credential"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Layout      []FieldType    `json:"layout"`
	FieldNames  []string       `json:"fieldNames"`
	IsPaused    bool           `json:"isPaused"`
	Version     uint8          `json:"version"`
}

// Attestation is a single signed claim about a nonce.
type Attestation struct {
	Nonce        address.Pubkey `json:"nonce"`
	Credential   address.Pubkey `json:"credential"`
	Schema       address.Pubkey `json:"schema"`
	Data         []byte         `json:"data"`
	Signer       address.Pubkey `json:"signer"`
	Expiry       int64          `json:"expiry"`
	TokenAccount address.Pubkey `json:"tokenAccount"`
}

// IsAuthorizedSigner reports whether pk is in the credential's signer set.
func (c *Credential) IsAuthorizedSigner(pk address.Pubkey) bool {
	for _, s := range c.AuthorizedSigners {
		if s == pk {
			return true
		}
	}
	return false
}

// DecodeCredential parses credential account data.
func DecodeCredential(data []byte) (*Credential, error) {
	r, err := open(data, DiscriminatorCredential)
	if err != nil {
		return nil, err
	}

	c := &Credential{
		Authority: r.Key(),
		Name:      string(r.Bytes()),
	}

	n := r.Len(address.PubkeySize)
	c.AuthorizedSigners = make([]address.Pubkey, 0, n)
	for i := 0; i < n; i++ {
		c.AuthorizedSigners = append(c.AuthorizedSigners, r.Key())
	}

	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode credential:\n%w", err)
	}

	return c, nil
}

// Encode serializes the credential in account layout.
func (c *Credential) Encode() []byte {
	w := borsh.NewWriter(1 + 32 + 4 + len(c.Name) + 4 + 32*len(c.AuthorizedSigners))
	w.U8(DiscriminatorCredential)
	w.Key(c.Authority)
	w.String(c.Name)
	w.U32(uint32(len(c.AuthorizedSigners)))
	for _, s := range c.AuthorizedSigners {
		w.Key(s)
	}
	return w.Bytes()
}

// DecodeSchema parses schema account data, including the nested field names.
func DecodeSchema(data []byte) (*Schema, error) {
	r, err := open(data, DiscriminatorSchema)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		Credential:  r.Key(),
		Name:        string(r.Bytes()),
		Description: string(r.Bytes()),
	}

	layout := r.Bytes()
	names := r.Bytes()
	s.IsPaused = r.Bool()
	s.Version = r.U8()

	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode schema:\n%w", err)
	}

	s.Layout = make([]FieldType, len(layout))
	for i, b := range layout {
		t := FieldType(b)
		if !t.Valid() {
			return nil, fmt.Errorf("decode schema: field %d has unknown type tag %d", i, b)
		}
		s.Layout[i] = t
	}

	if s.FieldNames, err = decodeFieldNames(names); err != nil {
		return nil, fmt.Errorf("decode schema field names:\n%w", err)
	}

	if len(s.FieldNames) != len(s.Layout) {
		return nil, fmt.Errorf("decode schema: %d field names for %d layout entries", len(s.FieldNames), len(s.Layout))
	}

	return s, nil
}

// Encode serializes the schema in account layout.
func (s *Schema) Encode() []byte {
	layout := make([]byte, len(s.Layout))
	for i, t := range s.Layout {
		layout[i] = byte(t)
	}

	w := borsh.NewWriter(128)
	w.U8(DiscriminatorSchema)
	w.Key(s.Credential)
	w.String(s.Name)
	w.String(s.Description)
	w.ByteVec(layout)
	w.ByteVec(encodeFieldNames(s.FieldNames))
	w.Bool(s.IsPaused)
	w.U8(s.Version)
	return w.Bytes()
}

// DecodeAttestation parses attestation account data. The payload stays raw;
// use DecodeData with the schema to interpret it.
func DecodeAttestation(data []byte) (*Attestation, error) {
	r, err := open(data, DiscriminatorAttestation)
	if err != nil {
		return nil, err
	}

	a := &Attestation{
		Nonce:      r.Key(),
		Credential: r.Key(),
		Schema:     r.Key(),
		Data:       r.Bytes(),
		Signer:     r.Key(),
		Expiry:     r.I64(),
	}
	a.TokenAccount = r.Key()

	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode attestation:\n%w", err)
	}

	return a, nil
}

// Encode serializes the attestation in account layout.
func (a *Attestation) Encode() []byte {
	w := borsh.NewWriter(1 + 32*3 + 4 + len(a.Data) + 32 + 8 + 32)
	w.U8(DiscriminatorAttestation)
	w.Key(a.Nonce)
	w.Key(a.Credential)
	w.Key(a.Schema)
	w.ByteVec(a.Data)
	w.Key(a.Signer)
	w.I64(a.Expiry)
	w.Key(a.TokenAccount)
	return w.Bytes()
}

// open checks the discriminator and returns a reader past it.
func open(data []byte, want uint8) (*borsh.Reader, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty account data:\n%w", borsh.ErrShortBuffer)
	}

	if data[0] != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDiscriminator, data[0], want)
	}

	return borsh.NewReader(data[1:]), nil
}

// decodeFieldNames parses a Borsh Vec<String>.
func decodeFieldNames(data []byte) ([]string, error) {
	r := borsh.NewReader(data)

	n := r.Len(4)
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, r.String())
	}

	if err := r.Finish(); err != nil {
		return nil, err
	}

	return names, nil
}

// encodeFieldNames serializes a Borsh Vec<String>.
func encodeFieldNames(names []string) []byte {
	w := borsh.NewWriter(64)
	w.U32(uint32(len(names)))
	for _, n := range names {
		w.String(n)
	}
	return w.Bytes()
}
