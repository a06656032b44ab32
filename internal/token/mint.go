// Package token reads Token-2022 mint accounts and the group/metadata
// extensions used by tokenized attestations.
package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"SASVerify/internal/address"
	"SASVerify/internal/borsh"
)

const (
	// MintSize is the length of the base mint layout.
	MintSize = 82

	// accountSize is the base token account length; extension data starts
	// after padding to this size plus the account-type byte.
	accountSize = 165

	accountTypeMint uint8 = 1
)

// ExtensionType is a Token-2022 TLV type.
type ExtensionType uint16

// Extension types read by the verifier.
const (
	ExtMetadataPointer    ExtensionType = 18
	ExtTokenMetadata      ExtensionType = 19
	ExtGroupPointer       ExtensionType = 20
	ExtTokenGroup         ExtensionType = 21
	ExtGroupMemberPointer ExtensionType = 22
	ExtTokenGroupMember   ExtensionType = 23
)

var (
	// ErrNotMint is returned when the data is not a mint.
	ErrNotMint = errors.New("account is not a token mint")

	// ErrMissingExtension is returned when a required extension is absent.
	ErrMissingExtension = errors.New("missing mint extension")
)

// Mint is a parsed Token-2022 mint with its raw extensions.
type Mint struct {
	MintAuthority   *address.Pubkey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *address.Pubkey

	Extensions map[ExtensionType][]byte
}

// TokenGroup describes a group mint.
type TokenGroup struct {
	UpdateAuthority address.Pubkey
	Mint            address.Pubkey
	Size            uint64
	MaxSize         uint64
}

// TokenGroupMember links a member mint to its group.
type TokenGroupMember struct {
	Mint         address.Pubkey
	Group        address.Pubkey
	MemberNumber uint64
}

// Pointer is the body of the metadata and group-member pointer extensions.
type Pointer struct {
	Authority address.Pubkey
	Address   address.Pubkey
}

// TokenMetadata is the on-mint metadata extension.
type TokenMetadata struct {
	UpdateAuthority    address.Pubkey
	Mint               address.Pubkey
	Name               string
	Symbol             string
	URI                string
	AdditionalMetadata [][2]string
}

// Lookup returns the value of an additional metadata key.
func (m *TokenMetadata) Lookup(key string) (string, bool) {
	for _, kv := range m.AdditionalMetadata {
		if kv[0] == key {
			return kv[1], true
		}
	}
	return "", false
}

// ParseMint decodes the base mint and indexes its extensions.
func ParseMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotMint, len(data))
	}

	r := borsh.NewReader(data[:MintSize])
	m := &Mint{Extensions: make(map[ExtensionType][]byte)}

	m.MintAuthority = readCOptionKey(r)
	m.Supply = r.U64()
	m.Decimals = r.U8()
	m.IsInitialized = r.Bool()
	m.FreezeAuthority = readCOptionKey(r)

	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode base mint:\n%w", err)
	}

	if len(data) == MintSize {
		return m, nil
	}

	if len(data) <= accountSize {
		return nil, fmt.Errorf("%w: unexpected length %d", ErrNotMint, len(data))
	}

	if data[accountSize] != accountTypeMint {
		return nil, fmt.Errorf("%w: account type %d", ErrNotMint, data[accountSize])
	}

	if err := parseTLV(data[accountSize+1:], m.Extensions); err != nil {
		return nil, fmt.Errorf("decode extensions:\n%w", err)
	}

	return m, nil
}

// parseTLV walks type-length-value entries until the data or an
// uninitialized entry ends them.
func parseTLV(data []byte, out map[ExtensionType][]byte) error {
	for len(data) >= 4 {
		typ := ExtensionType(binary.LittleEndian.Uint16(data[0:2]))
		n := int(binary.LittleEndian.Uint16(data[2:4]))
		data = data[4:]

		if typ == 0 {
			return nil
		}

		if len(data) < n {
			return fmt.Errorf("extension %d: %w", typ, borsh.ErrShortBuffer)
		}

		out[typ] = data[:n]
		data = data[n:]
	}

	return nil
}

// GroupMember returns the token group member extension.
func (m *Mint) GroupMember() (*TokenGroupMember, error) {
	r, err := m.extension(ExtTokenGroupMember)
	if err != nil {
		return nil, err
	}

	gm := &TokenGroupMember{Mint: r.Key(), Group: r.Key(), MemberNumber: r.U64()}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode group member:\n%w", err)
	}

	return gm, nil
}

// Group returns the token group extension.
func (m *Mint) Group() (*TokenGroup, error) {
	r, err := m.extension(ExtTokenGroup)
	if err != nil {
		return nil, err
	}

	g := &TokenGroup{UpdateAuthority: r.Key(), Mint: r.Key(), Size: r.U64(), MaxSize: r.U64()}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode group:\n%w", err)
	}

	return g, nil
}

// Metadata returns the token metadata extension.
func (m *Mint) Metadata() (*TokenMetadata, error) {
	r, err := m.extension(ExtTokenMetadata)
	if err != nil {
		return nil, err
	}

	md := &TokenMetadata{
		UpdateAuthority: r.Key(),
		Mint:            r.Key(),
		Name:            r.String(),
		Symbol:          r.String(),
		URI:             r.String(),
	}

	n := r.Len(8)
	for i := 0; i < n; i++ {
		md.AdditionalMetadata = append(md.AdditionalMetadata, [2]string{r.String(), r.String()})
	}

	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode metadata:\n%w", err)
	}

	return md, nil
}

// Pointer returns a pointer extension (metadata, group or group member).
func (m *Mint) Pointer(typ ExtensionType) (*Pointer, error) {
	r, err := m.extension(typ)
	if err != nil {
		return nil, err
	}

	p := &Pointer{Authority: r.Key(), Address: r.Key()}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode pointer %d:\n%w", typ, err)
	}

	return p, nil
}

// extension returns a reader over one extension body.
func (m *Mint) extension(typ ExtensionType) (*borsh.Reader, error) {
	body, ok := m.Extensions[typ]
	if !ok {
		return nil, fmt.Errorf("%w: type %d", ErrMissingExtension, typ)
	}
	return borsh.NewReader(body), nil
}

// readCOptionKey reads a u32-tagged optional key.
func readCOptionKey(r *borsh.Reader) *address.Pubkey {
	tag := r.U32()
	k := address.Pubkey(r.Key())
	if tag == 0 {
		return nil
	}
	return &k
}
