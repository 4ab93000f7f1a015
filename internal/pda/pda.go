// Package pda derives program addresses: 32-byte addresses computed from a seed
// list and an owning program ID that are guaranteed not to be valid ed25519
// points, so no private key can ever sign for them.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16

	// MaxSeedLength is the maximum length of a single seed in bytes.
	MaxSeedLength = 32

	// marker is appended after the program ID before hashing.
	marker = "ProgramDerivedAddress"
)

var (
	// ErrInvalidSeeds is returned when the seed list exceeds MaxSeeds or a seed exceeds MaxSeedLength.
	ErrInvalidSeeds = errors.New("invalid seeds")

	// ErrOnCurve is returned when the candidate address is a valid ed25519 point.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoViableBump is returned when no bump in [0,255] yields an off-curve address.
	// It is unreachable in practice and signals a configuration error.
	ErrNoViableBump = errors.New("unable to find a viable program address bump")
)

// CreateProgramAddress hashes seeds with programID into an address.
// Seeds are used as given; callers supplying a bump pass it as the last seed.
func CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return solana.PublicKey{}, fmt.Errorf("%w: %d seeds (max %d)", ErrInvalidSeeds, len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return solana.PublicKey{}, fmt.Errorf("%w: seed %d is %d bytes (max %d)", ErrInvalidSeeds, i, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(marker))

	var addr solana.PublicKey
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr[:]) {
		return solana.PublicKey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: %d seeds leave no room for a bump", ErrInvalidSeeds, len(seeds))
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}

		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return solana.PublicKey{}, 0, err
		}
	}

	return solana.PublicKey{}, 0, ErrNoViableBump
}

// MustFindProgramAddress is like FindProgramAddress but panics on error.
// Only use with constant seeds.
func MustFindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8) {
	addr, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// IsOnCurve reports whether b decodes as an ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
