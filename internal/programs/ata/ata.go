// Package ata is the associated holder account module. It creates the one
// canonical holder account of an owner for a mint at a derived address.
package ata

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/authority"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

// Program is the associated holder account module.
type Program struct{}

// New returns the associated holder account module.
func New() *Program {
	return &Program{}
}

// ID implements ledger.Program.
func (p *Program) ID() solana.PublicKey {
	return idl.ATAProgramID
}

// Process implements ledger.Program.
func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	idempotent := false
	if len(data) > 0 {
		switch data[0] {
		case idl.ATAIxCreate:
		case idl.ATAIxCreateIdempotent:
			idempotent = true
		default:
			return fmt.Errorf("%w: associated account instruction %d", idl.ErrInvalidInstruction, data[0])
		}
	}
	if len(accounts) < 6 {
		return ledger.ErrMissingAccount
	}
	payer, account, owner, mint := accounts[0], accounts[1], accounts[2], accounts[3]

	if idempotent {
		ctx.Log("CreateIdempotent")
	} else {
		ctx.Log("Create")
	}

	addr, bump, err := idl.FindAssociatedTokenAddress(owner.Key, mint.Key)
	if err != nil {
		return fmt.Errorf("%w: %v", idl.ErrSeedMismatch, err)
	}
	if !addr.Equals(account.Key) {
		ctx.Log("Error: Associated address does not match seed derivation")
		return fmt.Errorf("%w: expected %s, got %s", idl.ErrSeedMismatch, addr, account.Key)
	}

	if !account.IsUnallocated() {
		if idempotent && validHolder(account, mint.Key, owner.Key) {
			return nil
		}
		if idempotent {
			return fmt.Errorf("%w: %s is not a holder account of %s for %s", idl.ErrAccountMismatch, account.Key, owner.Key, mint.Key)
		}
		return fmt.Errorf("%w: %s already in use", idl.ErrAlreadyInitialized, account.Key)
	}

	if !mint.IsOwnedBy(idl.SPLTokenProgramID) {
		return fmt.Errorf("%w: mint %s owned by %s", idl.ErrAccountMismatch, mint.Key, mint.Owner())
	}

	ctx.Log("Initialize the associated token account")
	proof := authority.NewProof(bump, idl.AssociatedTokenSeeds(owner.Key, mint.Key)...)
	if err := ctx.CreateAccount(payer, account, idl.TokenAccountSize, idl.SPLTokenProgramID, proof); err != nil {
		return err
	}
	return ctx.Invoke(idl.NewInitializeAccount3Instruction(account.Key, mint.Key, owner.Key))
}

func validHolder(acc *ledger.AccountInfo, mint, owner solana.PublicKey) bool {
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) {
		return false
	}
	var ta idl.TokenAccount
	if err := ta.UnmarshalBinary(acc.Data()); err != nil {
		return false
	}
	return ta.State != idl.TokenAccountUninitialized && ta.Mint.Equals(mint) && ta.Owner.Equals(owner)
}
