// Package idl is the wire contract shared by the on-ledger modules and the
// client orchestrator: program IDs, seeds, instruction encodings, account
// record layouts and error codes. Both sides must agree on every byte here.
package idl

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/pda"
)

// Program IDs.
var (
	TokenProgramID    = solana.MustPublicKeyFromBase58("EBEURCVTVLbppfEqG6Fax6prSgGsfH5C9AcWKaGm2hvc")
	NFTProgramID      = solana.MustPublicKeyFromBase58("8FYDpU57XSHSe8M7fygYeaMg7YbQ8j8CQ3PrSwb24Anm")
	CounterProgramID  = solana.MustPublicKeyFromBase58("12kUNNEjTuwtcw1nYGnF6Dtw8K4298BcYyJXFEkNWGDL")
	SystemProgramID   = solana.SystemProgramID
	SPLTokenProgramID = solana.TokenProgramID
	ATAProgramID      = solana.SPLAssociatedTokenAccountProgramID
	MetadataProgramID = solana.TokenMetadataProgramID
	RentSysvarID      = solana.SysVarRentPubkey
)

// Seeds of the fungible mint owned by the token module.
const (
	MintSeedTag   = "mint"
	MintSeedLabel = "tick"

	MetadataSeedPrefix = "metadata"
)

// MintSeeds returns the seed list of the fungible mint.
func MintSeeds() [][]byte {
	return [][]byte{[]byte(MintSeedTag), []byte(MintSeedLabel)}
}

// FindMintAddress derives the fungible mint address and its bump.
func FindMintAddress() (solana.PublicKey, uint8, error) {
	return pda.FindProgramAddress(MintSeeds(), TokenProgramID)
}

// AssociatedTokenSeeds returns the seed list of owner's holder account for mint.
func AssociatedTokenSeeds(owner, mint solana.PublicKey) [][]byte {
	return [][]byte{owner[:], SPLTokenProgramID[:], mint[:]}
}

// FindAssociatedTokenAddress derives owner's holder account for mint.
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return pda.FindProgramAddress(AssociatedTokenSeeds(owner, mint), ATAProgramID)
}

// MetadataSeeds returns the seed list of the metadata record of mint.
func MetadataSeeds(mint solana.PublicKey) [][]byte {
	return [][]byte{[]byte(MetadataSeedPrefix), MetadataProgramID[:], mint[:]}
}

// FindMetadataAddress derives the metadata record address of mint.
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return pda.FindProgramAddress(MetadataSeeds(mint), MetadataProgramID)
}

// Discriminator prefixes every module instruction and account record.
type Discriminator [8]byte

// InstructionDiscriminator returns sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) Discriminator {
	return sighash("global:" + name)
}

// AccountDiscriminator returns sha256("account:<name>")[:8].
func AccountDiscriminator(name string) Discriminator {
	return sighash("account:" + name)
}

func sighash(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

// SplitDiscriminator separates the 8-byte discriminator from the payload.
func SplitDiscriminator(data []byte) (Discriminator, []byte, bool) {
	var d Discriminator
	if len(data) < len(d) {
		return d, nil, false
	}
	copy(d[:], data[:8])
	return d, data[8:], true
}
