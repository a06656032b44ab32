// Package snapshot writes and reads pinned ledger snapshots: a flatbuffers
// LedgerSnapshot holding raw accounts, a blake3 checksum and zstd framing.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"SASVerify/internal/address"
	"SASVerify/internal/ledger"
	"SASVerify/internal/storage"
	"SASVerify/internal/types"
)

// snapshotVersion is the current snapshot format version.
const snapshotVersion = 1

// maxSnapshotSize bounds decompressed snapshot data.
var maxSnapshotSize uint64 = 1 << 30

// ErrChecksum is returned when snapshot contents do not match the stored checksum.
var ErrChecksum = errors.New("snapshot checksum mismatch")

// Snapshot is a decoded ledger snapshot.
type Snapshot struct {
	Version  uint32            // Version is the format version
	Slot     uint64            // Slot is the ledger slot the accounts were read at
	Accounts []*ledger.Account // Accounts are sorted by address
	Checksum [32]byte          // Checksum is the blake3 digest of the canonical contents
}

// Collect reads addrs through acc. Addresses holding no account are skipped.
func Collect(ctx context.Context, acc ledger.Accessor, addrs []address.Pubkey) ([]*ledger.Account, error) {
	accounts, err := ledger.GetAccounts(ctx, acc, dedup(addrs))
	if err != nil {
		return nil, fmt.Errorf("collect accounts:\n%w", err)
	}

	out := accounts[:0]
	for _, a := range accounts {
		if a != nil {
			out = append(out, a)
		}
	}

	return out, nil
}

// CollectStore returns every account in a store along with its recorded slot.
func CollectStore(s *storage.Store) ([]*ledger.Account, uint64, error) {
	var accounts []*ledger.Account

	err := s.Accounts(func(a *ledger.Account) error {
		accounts = append(accounts, a)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("iterate store:\n%w", err)
	}

	slot, err := s.Slot()
	if err != nil {
		return nil, 0, fmt.Errorf("read slot:\n%w", err)
	}

	return accounts, slot, nil
}

// RelatedAddresses lists every account a verification of (schema, nonce)
// reads: schema, credential, attestation, both mints and the clock sysvar.
// The schema account is fetched through acc to learn its credential.
func RelatedAddresses(ctx context.Context, acc ledger.Accessor, schema, nonce address.Pubkey) ([]address.Pubkey, error) {
	s, err := ledger.FetchSchema(ctx, acc, schema)
	if err != nil {
		return nil, fmt.Errorf("fetch schema %s:\n%w", schema, err)
	}

	attestation, err := address.DeriveAttestation(s.Credential, schema, nonce)
	if err != nil {
		return nil, err
	}

	schemaMint, err := address.DeriveSchemaMint(schema)
	if err != nil {
		return nil, err
	}

	attestationMint, err := address.DeriveAttestationMint(attestation)
	if err != nil {
		return nil, err
	}

	return []address.Pubkey{
		schema,
		s.Credential,
		attestation,
		schemaMint,
		attestationMint,
		address.ClockSysvar,
	}, nil
}

// Build creates the flatbuffers snapshot with checksum.
// Accounts are sorted by address in place.
func Build(slot uint64, accounts []*ledger.Account) []byte {
	sortAccounts(accounts)

	checksum := computeChecksum(snapshotVersion, slot, accounts)

	builder := flatbuffers.NewBuilder(1024)

	offsets := make([]flatbuffers.UOffsetT, len(accounts))
	for i, a := range accounts {
		addrOffset := builder.CreateByteVector(a.Address[:])
		ownerOffset := builder.CreateByteVector(a.Owner[:])
		dataOffset := builder.CreateByteVector(a.Data)

		types.SnapshotAccountStart(builder)
		types.SnapshotAccountAddAddress(builder, addrOffset)
		types.SnapshotAccountAddOwner(builder, ownerOffset)
		types.SnapshotAccountAddLamports(builder, a.Lamports)
		types.SnapshotAccountAddExecutable(builder, a.Executable)
		types.SnapshotAccountAddRentEpoch(builder, a.RentEpoch)
		types.SnapshotAccountAddData(builder, dataOffset)
		offsets[i] = types.SnapshotAccountEnd(builder)
	}

	types.LedgerSnapshotStartAccountsVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	accountsVector := builder.EndVector(len(offsets))

	checksumOffset := builder.CreateByteVector(checksum[:])

	types.LedgerSnapshotStart(builder)
	types.LedgerSnapshotAddVersion(builder, snapshotVersion)
	types.LedgerSnapshotAddSlot(builder, slot)
	types.LedgerSnapshotAddAccounts(builder, accountsVector)
	types.LedgerSnapshotAddChecksum(builder, checksumOffset)
	builder.Finish(types.LedgerSnapshotEnd(builder))

	return builder.FinishedBytes()
}

// Read decodes a snapshot and verifies its checksum.
func Read(data []byte) (snap *Snapshot, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	// Malformed offsets make the flatbuffers accessors index out of range.
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("malformed snapshot: %v", r)
		}
	}()

	root := types.GetRootAsLedgerSnapshot(data, 0)

	if v := root.Version(); v != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}

	snap = &Snapshot{
		Version:  root.Version(),
		Slot:     root.Slot(),
		Accounts: make([]*ledger.Account, root.AccountsLength()),
	}

	var entry types.SnapshotAccount
	for i := range snap.Accounts {
		if !root.Accounts(&entry, i) {
			return nil, fmt.Errorf("read account %d", i)
		}

		a, err := decodeEntry(&entry)
		if err != nil {
			return nil, fmt.Errorf("account %d:\n%w", i, err)
		}
		snap.Accounts[i] = a
	}

	stored := root.ChecksumBytes()
	if len(stored) != len(snap.Checksum) {
		return nil, fmt.Errorf("invalid checksum length: %d", len(stored))
	}
	copy(snap.Checksum[:], stored)

	sortAccounts(snap.Accounts)
	computed := computeChecksum(snap.Version, snap.Slot, snap.Accounts)
	if computed != snap.Checksum {
		return nil, ErrChecksum
	}

	return snap, nil
}

// Apply verifies a snapshot and writes its accounts to s atomically.
func Apply(s *storage.Store, data []byte) (*Snapshot, error) {
	snap, err := Read(data)
	if err != nil {
		return nil, fmt.Errorf("read snapshot:\n%w", err)
	}

	if err := s.PutAccounts(snap.Slot, snap.Accounts); err != nil {
		return nil, fmt.Errorf("write accounts:\n%w", err)
	}

	return snap, nil
}

// Load verifies a snapshot and returns an in-memory accessor over its accounts.
func Load(data []byte) (*ledger.Memory, *Snapshot, error) {
	snap, err := Read(data)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot:\n%w", err)
	}

	return ledger.NewMemory(snap.Accounts...), snap, nil
}

// Compress compresses snapshot data using zstd.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd-compressed snapshot data.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// WriteFile builds, compresses and writes a snapshot to path.
func WriteFile(path string, slot uint64, accounts []*ledger.Account) error {
	compressed, err := Compress(Build(slot, accounts))
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("write %s:\n%w", path, err)
	}

	return nil
}

// ReadFile reads and decompresses a snapshot file. The result is not yet
// checksum-verified; pass it to Read, Apply or Load.
func ReadFile(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s:\n%w", path, err)
	}

	data, err := Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress %s:\n%w", path, err)
	}

	return data, nil
}

// decodeEntry copies a flatbuffers account out of the snapshot buffer.
func decodeEntry(e *types.SnapshotAccount) (*ledger.Account, error) {
	addr, err := address.PubkeyFromBytes(e.AddressBytes())
	if err != nil {
		return nil, fmt.Errorf("address:\n%w", err)
	}

	owner, err := address.PubkeyFromBytes(e.OwnerBytes())
	if err != nil {
		return nil, fmt.Errorf("owner:\n%w", err)
	}

	data := make([]byte, e.DataLength())
	copy(data, e.DataBytes())

	return &ledger.Account{
		Address:    addr,
		Owner:      owner,
		Lamports:   e.Lamports(),
		Executable: e.Executable(),
		RentEpoch:  e.RentEpoch(),
		Data:       data,
	}, nil
}

// sortAccounts sorts accounts by address for deterministic ordering.
func sortAccounts(accounts []*ledger.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].Address[:], accounts[j].Address[:]) < 0
	})
}

// dedup drops repeated addresses, keeping first occurrences.
func dedup(addrs []address.Pubkey) []address.Pubkey {
	seen := make(map[address.Pubkey]bool, len(addrs))
	out := make([]address.Pubkey, 0, len(addrs))

	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}

	return out
}

// computeChecksum computes a blake3 checksum over canonical snapshot data.
// Format: version (4) + slot (8) + for each account: address (32) + owner (32)
// + lamports (8) + executable (1) + rent_epoch (8) + data length (4) + data
func computeChecksum(version uint32, slot uint64, accounts []*ledger.Account) [32]byte {
	hasher := blake3.New()

	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], version)
	hasher.Write(buf[:4])

	binary.BigEndian.PutUint64(buf[:], slot)
	hasher.Write(buf[:])

	for _, a := range accounts {
		hasher.Write(a.Address[:])
		hasher.Write(a.Owner[:])

		binary.BigEndian.PutUint64(buf[:], a.Lamports)
		hasher.Write(buf[:])

		if a.Executable {
			hasher.Write([]byte{1})
		} else {
			hasher.Write([]byte{0})
		}

		binary.BigEndian.PutUint64(buf[:], a.RentEpoch)
		hasher.Write(buf[:])

		binary.BigEndian.PutUint32(buf[:4], uint32(len(a.Data)))
		hasher.Write(buf[:4])
		hasher.Write(a.Data)
	}

	var checksum [32]byte
	hasher.Sum(checksum[:0])

	return checksum
}
