// Package system is the account-creation and lamport-transfer module.
package system

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

// MaxPermittedDataLength bounds the space of a new account.
const MaxPermittedDataLength = 10 * 1024 * 1024

// Program is the system module.
type Program struct{}

// New returns the system module.
func New() *Program {
	return &Program{}
}

// ID implements ledger.Program.
func (p *Program) ID() solana.PublicKey {
	return idl.SystemProgramID
}

// Process implements ledger.Program.
func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	ix, err := idl.DecodeSystemInstruction(data)
	if err != nil {
		return err
	}
	need := 2
	if ix.Index == idl.SystemIxAssign || ix.Index == idl.SystemIxAllocate {
		need = 1
	}
	if len(accounts) < need {
		return ledger.ErrMissingAccount
	}

	switch ix.Index {
	case idl.SystemIxCreateAccount:
		return createAccount(ctx, accounts[0], accounts[1], ix.CreateAccount)
	case idl.SystemIxTransfer:
		return transfer(ctx, accounts[0], accounts[1], ix.Lamports)
	case idl.SystemIxAssign:
		return assign(ctx, accounts[0], ix.Owner)
	case idl.SystemIxAllocate:
		return allocate(ctx, accounts[0], ix.Space)
	default:
		return idl.ErrInvalidInstruction
	}
}

func createAccount(ctx *ledger.InvokeContext, from, to *ledger.AccountInfo, args *idl.CreateAccountArgs) error {
	if !to.IsSigner {
		ctx.Log("Create Account: account %s must sign", to.Key)
		return fmt.Errorf("%w: new account %s did not sign", idl.ErrUnauthorized, to.Key)
	}
	if !to.IsEmpty() || to.Lamports() > 0 {
		ctx.Log("Create Account: account Address { address: %s, base: None } already in use", to.Key)
		return fmt.Errorf("%w: account %s already in use", idl.ErrAlreadyInitialized, to.Key)
	}
	if args.Space > MaxPermittedDataLength {
		return fmt.Errorf("%w: space %d exceeds %d", idl.ErrInvalidInstruction, args.Space, MaxPermittedDataLength)
	}

	if err := debit(ctx, from, args.Lamports); err != nil {
		return err
	}
	to.SetLamports(args.Lamports)
	to.Allocate(args.Space)
	to.Assign(args.Owner)
	return nil
}

// allocate sizes an account that may already hold lamports but no data.
func allocate(ctx *ledger.InvokeContext, acc *ledger.AccountInfo, space uint64) error {
	if !acc.IsSigner {
		ctx.Log("Allocate: 'to' account %s must sign", acc.Key)
		return fmt.Errorf("%w: %s did not sign", idl.ErrUnauthorized, acc.Key)
	}
	if !acc.IsUnallocated() {
		ctx.Log("Allocate: account Address { address: %s, base: None } already in use", acc.Key)
		return fmt.Errorf("%w: account %s already in use", idl.ErrAlreadyInitialized, acc.Key)
	}
	if space > MaxPermittedDataLength {
		return fmt.Errorf("%w: space %d exceeds %d", idl.ErrInvalidInstruction, space, MaxPermittedDataLength)
	}
	acc.Allocate(space)
	return nil
}

func assign(ctx *ledger.InvokeContext, acc *ledger.AccountInfo, owner solana.PublicKey) error {
	if acc.IsOwnedBy(owner) {
		return nil
	}
	if !acc.IsSigner {
		ctx.Log("Assign: account %s must sign", acc.Key)
		return fmt.Errorf("%w: %s did not sign", idl.ErrUnauthorized, acc.Key)
	}
	acc.Assign(owner)
	return nil
}

func transfer(ctx *ledger.InvokeContext, from, to *ledger.AccountInfo, lamports uint64) error {
	if err := debit(ctx, from, lamports); err != nil {
		return err
	}
	if to.Lamports()+lamports < to.Lamports() {
		return fmt.Errorf("%w: balance of %s", idl.ErrArithmeticOverflow, to.Key)
	}
	to.SetLamports(to.Lamports() + lamports)
	return nil
}

// debit takes lamports from a signing, data-free system account.
func debit(ctx *ledger.InvokeContext, from *ledger.AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return fmt.Errorf("%w: %s did not sign", idl.ErrUnauthorized, from.Key)
	}
	if len(from.Data()) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return fmt.Errorf("%w: %s carries data", idl.ErrAccountMismatch, from.Key)
	}
	if from.Lamports() < lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return fmt.Errorf("%w: %s has %d, need %d", idl.ErrInsufficientFunds, from.Key, from.Lamports(), lamports)
	}
	from.SetLamports(from.Lamports() - lamports)
	return nil
}
