package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeedLength is the largest seed the runtime accepts.
	MaxSeedLength = 32

	// MaxSeeds is the largest number of seeds, bump included.
	MaxSeeds = 16

	pdaMarker = "ProgramDerivedAddress"
)

var (
	// ErrSeedTooLong is returned when a seed exceeds MaxSeedLength.
	ErrSeedTooLong = errors.New("seed exceeds 32 bytes")

	// ErrOnCurve is returned when the hash is a valid ed25519 point.
	ErrOnCurve = errors.New("address lies on the ed25519 curve")

	// ErrNoBump is returned when no bump in 255..0 yields an off-curve address.
	ErrNoBump = errors.New("no viable bump seed")
)

// CreateProgramAddress hashes seeds and the program ID into an address
// that has no private key.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Pubkey{}, fmt.Errorf("too many seeds: %d", len(seeds))
	}

	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return Pubkey{}, fmt.Errorf("seed %d:\n%w", i, ErrSeedTooLong)
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var pk Pubkey
	h.Sum(pk[:0])

	if IsOnCurve(pk) {
		return Pubkey{}, ErrOnCurve
	}

	return pk, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address with its bump.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Pubkey{}, 0, fmt.Errorf("too many seeds: %d", len(seeds))
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		pk, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return pk, uint8(bump), nil
		}

		if !errors.Is(err, ErrOnCurve) {
			return Pubkey{}, 0, err
		}
	}

	return Pubkey{}, 0, ErrNoBump
}

// IsOnCurve reports whether pk decodes to an ed25519 point.
func IsOnCurve(pk Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// TruncateSeed cuts a name to the maximum seed length.
// Names that share a 32-byte prefix derive the same address.
func TruncateSeed(name string) []byte {
	b := []byte(name)
	if len(b) > MaxSeedLength {
		return b[:MaxSeedLength]
	}
	return b
}
