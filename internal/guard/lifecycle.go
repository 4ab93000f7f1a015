package guard

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/authority"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

// InitSpec describes how to create an account.
type InitSpec struct {
	// Payer funds the rent-exempt minimum. It must be a writable signer.
	Payer *ledger.AccountInfo
	// Space is the exact data size to allocate.
	Space uint64
	// Owner is the module that will own the account.
	Owner solana.PublicKey
	// Create replaces the system allocation, for accounts another module
	// creates at its own derived address.
	Create func(e *Env) error
	// Initialize runs once the account is allocated and assigned.
	Initialize func(e *Env) error
	// Validate checks an existing account under InitIfNeeded. A non-nil
	// error is reported as AccountMismatch with its text as detail.
	Validate func(e *Env) error
}

// Init requires an account that holds no data yet, creates it with exactly
// Space bytes owned by Owner, charging Payer the rent, then runs Initialize.
// Lamports already at the address count towards the rent. A seed-bound
// account must declare Seeds first; any other account must sign the
// transaction.
func Init(spec InitSpec) Constraint {
	return func(e *Env) error {
		if !e.Account.IsUnallocated() {
			return e.Fail(idl.ErrAlreadyInitialized, "init", "account already in use")
		}
		return create(e, spec)
	}
}

// InitIfNeeded creates the account like Init when it does not exist, and
// otherwise requires its owner, size and Validate to match.
func InitIfNeeded(spec InitSpec) Constraint {
	return func(e *Env) error {
		if e.Account.IsUnallocated() {
			return create(e, spec)
		}
		if !e.Account.IsOwnedBy(spec.Owner) {
			return e.Fail(idl.ErrAccountMismatch, "init_if_needed", fmt.Sprintf("owned by %s, expected %s", e.Account.Owner(), spec.Owner))
		}
		if uint64(len(e.Account.Data())) != spec.Space {
			return e.Fail(idl.ErrAccountMismatch, "init_if_needed", fmt.Sprintf("size %d, expected %d", len(e.Account.Data()), spec.Space))
		}
		if spec.Validate != nil {
			if err := spec.Validate(e); err != nil {
				return e.Fail(idl.ErrAccountMismatch, "init_if_needed", err.Error())
			}
		}
		return nil
	}
}

func create(e *Env, spec InitSpec) error {
	if !e.Account.IsWritable {
		return e.Fail(idl.ErrAccountMismatch, "init", "account is not writable")
	}
	if spec.Payer == nil || !spec.Payer.IsSigner {
		return e.Fail(idl.ErrUnauthorized, "init", "payer must sign")
	}

	if spec.Create != nil {
		if err := spec.Create(e); err != nil {
			return err
		}
	} else {
		var proofs []authority.Proof
		if proof, ok := e.Proof(); ok {
			proofs = append(proofs, proof)
		} else if !e.Account.IsSigner {
			return e.Fail(idl.ErrUnauthorized, "init", "new account must sign or be seed-bound")
		}
		if err := e.Ctx.CreateAccount(spec.Payer, e.Account, spec.Space, spec.Owner, proofs...); err != nil {
			return err
		}
	}

	if spec.Initialize != nil {
		return spec.Initialize(e)
	}
	return nil
}

// MintSpec is the expected shape of a mint record. Nil fields are not checked.
type MintSpec struct {
	Authority *solana.PublicKey
	Decimals  *uint8
}

// Mint requires an initialized mint record owned by the token primitive.
// An authority other than the expected one is Unauthorized.
func Mint(spec MintSpec) Constraint {
	return func(e *Env) error {
		m, err := decodeMint(e.Account)
		if err != nil {
			if e.Account.IsEmpty() {
				return e.Fail(idl.ErrNotInitialized, "mint", "mint does not exist")
			}
			return e.Fail(idl.ErrAccountMismatch, "mint", err.Error())
		}
		if spec.Decimals != nil && m.Decimals != *spec.Decimals {
			return e.Fail(idl.ErrAccountMismatch, "mint::decimals", fmt.Sprintf("decimals %d, expected %d", m.Decimals, *spec.Decimals))
		}
		if spec.Authority != nil && (m.MintAuthority == nil || !m.MintAuthority.Equals(*spec.Authority)) {
			return e.Fail(idl.ErrUnauthorized, "mint::authority", fmt.Sprintf("expected authority %s", *spec.Authority))
		}
		return nil
	}
}

// AssociatedToken is InitIfNeeded for owner's associated holder account of
// mint. A missing account is created through the associated account module;
// an existing one must be a holder account of mint for owner.
func AssociatedToken(payer, mint, owner *ledger.AccountInfo) Constraint {
	initIfNeeded := InitIfNeeded(InitSpec{
		Payer: payer,
		Space: idl.TokenAccountSize,
		Owner: idl.SPLTokenProgramID,
		Create: func(e *Env) error {
			ix := idl.NewCreateAssociatedTokenAccountInstruction(payer.Key, e.Account.Key, owner.Key, mint.Key, true)
			return e.Ctx.Invoke(ix)
		},
		Validate: func(e *Env) error {
			return checkTokenAccount(e.Account, mint.Key, owner.Key)
		},
	})
	return func(e *Env) error {
		want, _, err := idl.FindAssociatedTokenAddress(owner.Key, mint.Key)
		if err != nil || !want.Equals(e.Account.Key) {
			return e.Fail(idl.ErrAccountMismatch, "associated_token", fmt.Sprintf("not the associated account of %s for mint %s", owner.Key, mint.Key))
		}
		return initIfNeeded(e)
	}
}

func decodeMint(acc *ledger.AccountInfo) (*idl.Mint, error) {
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) {
		return nil, fmt.Errorf("owned by %s, expected %s", acc.Owner(), idl.SPLTokenProgramID)
	}
	var m idl.Mint
	if err := m.UnmarshalBinary(acc.Data()); err != nil {
		return nil, err
	}
	if !m.IsInitialized {
		return nil, fmt.Errorf("mint is not initialized")
	}
	return &m, nil
}

func checkTokenAccount(acc *ledger.AccountInfo, mint, owner solana.PublicKey) error {
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) {
		return fmt.Errorf("owned by %s, expected %s", acc.Owner(), idl.SPLTokenProgramID)
	}
	var ta idl.TokenAccount
	if err := ta.UnmarshalBinary(acc.Data()); err != nil {
		return err
	}
	if ta.State == idl.TokenAccountUninitialized {
		return fmt.Errorf("holder account is not initialized")
	}
	if !ta.Mint.Equals(mint) {
		return fmt.Errorf("holder account belongs to mint %s, expected %s", ta.Mint, mint)
	}
	if !ta.Owner.Equals(owner) {
		return fmt.Errorf("holder account is owned by %s, expected %s", ta.Owner, owner)
	}
	return nil
}

// InitializeMint is an Initialize hook that turns the freshly allocated
// account into a mint with the given decimals and authority.
func InitializeMint(decimals uint8, mintAuthority solana.PublicKey) func(e *Env) error {
	return func(e *Env) error {
		ix := idl.NewInitializeMint2Instruction(e.Account.Key, idl.InitializeMint2Args{
			Decimals:      decimals,
			MintAuthority: mintAuthority,
		})
		return e.Ctx.Invoke(ix)
	}
}
