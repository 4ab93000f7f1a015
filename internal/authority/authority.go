// Package authority models who may sign for an account during one module
// invocation: transaction signers, plus program-derived addresses whose seeds
// the invoking program proves.
package authority

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/pda"
)

// Proof is a signer-seeds proof: the seeds and bump that re-derive a
// program-derived address under the presenting program's ID.
type Proof struct {
	Seeds [][]byte
	Bump  uint8
}

// NewProof builds a proof from seeds and a bump.
func NewProof(bump uint8, seeds ...[]byte) Proof {
	return Proof{Seeds: seeds, Bump: bump}
}

// Address recomputes the address the proof authorizes under programID.
func (p Proof) Address(programID solana.PublicKey) (solana.PublicKey, error) {
	seeds := make([][]byte, 0, len(p.Seeds)+1)
	seeds = append(seeds, p.Seeds...)
	seeds = append(seeds, []byte{p.Bump})
	return pda.CreateProgramAddress(seeds, programID)
}

// SignerSet is the set of keys treated as signers for one invocation.
type SignerSet map[solana.PublicKey]struct{}

// NewSignerSet returns a set holding keys.
func NewSignerSet(keys ...solana.PublicKey) SignerSet {
	s := make(SignerSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key may sign.
func (s SignerSet) Has(key solana.PublicKey) bool {
	_, ok := s[key]
	return ok
}

// Add marks key as a signer.
func (s SignerSet) Add(key solana.PublicKey) {
	s[key] = struct{}{}
}

// Clone returns an independent copy.
func (s SignerSet) Clone() SignerSet {
	out := make(SignerSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Keys returns the members in no particular order.
func (s SignerSet) Keys() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

// Resolve verifies proofs under caller and returns the derived addresses.
// Every proof must resolve; a failed derivation is Unauthorized.
func Resolve(caller solana.PublicKey, proofs []Proof) ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(proofs))
	for i, p := range proofs {
		addr, err := p.Address(caller)
		if err != nil {
			return nil, fmt.Errorf("%w: signer proof %d under %s: %v", idl.ErrUnauthorized, i, caller, err)
		}
		out = append(out, addr)
	}
	return out, nil
}
