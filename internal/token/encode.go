package token

import (
	"sort"

	"SASVerify/internal/address"
	"SASVerify/internal/borsh"
)

// Encode serializes the mint in Token-2022 layout. Extensions are written
// in ascending type order so output is deterministic.
func (m *Mint) Encode() []byte {
	w := borsh.NewWriter(accountSize + 256)

	writeCOptionKey(w, m.MintAuthority)
	w.U64(m.Supply)
	w.U8(m.Decimals)
	w.Bool(m.IsInitialized)
	writeCOptionKey(w, m.FreezeAuthority)

	if len(m.Extensions) == 0 {
		return w.Bytes()
	}

	w.Fixed(make([]byte, accountSize-MintSize))
	w.U8(accountTypeMint)

	types := make([]int, 0, len(m.Extensions))
	for typ := range m.Extensions {
		types = append(types, int(typ))
	}
	sort.Ints(types)

	for _, typ := range types {
		body := m.Extensions[ExtensionType(typ)]
		w.U16(uint16(typ))
		w.U16(uint16(len(body)))
		w.Fixed(body)
	}

	return w.Bytes()
}

// SetGroupMember stores a group member extension.
func (m *Mint) SetGroupMember(gm TokenGroupMember) {
	w := borsh.NewWriter(72)
	w.Key(gm.Mint)
	w.Key(gm.Group)
	w.U64(gm.MemberNumber)
	m.setExtension(ExtTokenGroupMember, w.Bytes())
}

// SetGroup stores a token group extension.
func (m *Mint) SetGroup(g TokenGroup) {
	w := borsh.NewWriter(80)
	w.Key(g.UpdateAuthority)
	w.Key(g.Mint)
	w.U64(g.Size)
	w.U64(g.MaxSize)
	m.setExtension(ExtTokenGroup, w.Bytes())
}

// SetMetadata stores a token metadata extension.
func (m *Mint) SetMetadata(md TokenMetadata) {
	w := borsh.NewWriter(128)
	w.Key(md.UpdateAuthority)
	w.Key(md.Mint)
	w.String(md.Name)
	w.String(md.Symbol)
	w.String(md.URI)
	w.U32(uint32(len(md.AdditionalMetadata)))
	for _, kv := range md.AdditionalMetadata {
		w.String(kv[0])
		w.String(kv[1])
	}
	m.setExtension(ExtTokenMetadata, w.Bytes())
}

// SetPointer stores a pointer extension.
func (m *Mint) SetPointer(typ ExtensionType, p Pointer) {
	w := borsh.NewWriter(64)
	w.Key(p.Authority)
	w.Key(p.Address)
	m.setExtension(typ, w.Bytes())
}

func (m *Mint) setExtension(typ ExtensionType, body []byte) {
	if m.Extensions == nil {
		m.Extensions = make(map[ExtensionType][]byte)
	}
	m.Extensions[typ] = body
}

// writeCOptionKey writes a u32-tagged optional key.
func writeCOptionKey(w *borsh.Writer, k *address.Pubkey) {
	if k == nil {
		w.U32(0)
		w.Key(address.Pubkey{})
		return
	}
	w.U32(1)
	w.Key(*k)
}
