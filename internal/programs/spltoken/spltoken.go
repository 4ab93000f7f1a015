// Package spltoken is the fungible token primitive: mint records, holder
// accounts, minting and transfers.
package spltoken

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

// Program is the token primitive.
type Program struct{}

// New returns the token primitive.
func New() *Program {
	return &Program{}
}

// ID implements ledger.Program.
func (p *Program) ID() solana.PublicKey {
	return idl.SPLTokenProgramID
}

// Process implements ledger.Program.
func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return idl.ErrInvalidInstruction
	}
	tag, payload := data[0], data[1:]

	switch tag {
	case idl.TokenIxInitializeMint2:
		ctx.Log("Instruction: InitializeMint2")
		var args idl.InitializeMint2Args
		if err := args.UnmarshalBinary(payload); err != nil {
			return err
		}
		if len(accounts) < 1 {
			return ledger.ErrMissingAccount
		}
		return initializeMint(ctx, accounts[0], args)

	case idl.TokenIxInitializeAccount3:
		ctx.Log("Instruction: InitializeAccount3")
		if len(payload) < 32 {
			return idl.ErrInvalidInstruction
		}
		if len(accounts) < 2 {
			return ledger.ErrMissingAccount
		}
		owner := solana.PublicKeyFromBytes(payload[:32])
		return initializeAccount(accounts[0], accounts[1], owner)

	case idl.TokenIxMintTo:
		ctx.Log("Instruction: MintTo")
		amount, err := idl.DecodeAmount(payload)
		if err != nil {
			return err
		}
		if len(accounts) < 3 {
			return ledger.ErrMissingAccount
		}
		return mintTo(accounts[0], accounts[1], accounts[2], amount, nil)

	case idl.TokenIxMintToChecked:
		ctx.Log("Instruction: MintToChecked")
		amount, decimals, err := idl.DecodeCheckedAmount(payload)
		if err != nil {
			return err
		}
		if len(accounts) < 3 {
			return ledger.ErrMissingAccount
		}
		return mintTo(accounts[0], accounts[1], accounts[2], amount, &decimals)

	case idl.TokenIxTransfer:
		ctx.Log("Instruction: Transfer")
		amount, err := idl.DecodeAmount(payload)
		if err != nil {
			return err
		}
		if len(accounts) < 3 {
			return ledger.ErrMissingAccount
		}
		return transfer(accounts[0], accounts[1], accounts[2], amount)

	default:
		return fmt.Errorf("%w: token instruction %d", idl.ErrInvalidInstruction, tag)
	}
}

func initializeMint(ctx *ledger.InvokeContext, acc *ledger.AccountInfo, args idl.InitializeMint2Args) error {
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) || len(acc.Data()) != idl.MintSize {
		return fmt.Errorf("%w: %s is not an allocated mint account", idl.ErrAccountMismatch, acc.Key)
	}
	var existing idl.Mint
	if err := existing.UnmarshalBinary(acc.Data()); err == nil && existing.IsInitialized {
		return fmt.Errorf("%w: mint %s", idl.ErrAlreadyInitialized, acc.Key)
	}
	if acc.Lamports() < ctx.MinimumBalance(idl.MintSize) {
		return fmt.Errorf("%w: mint %s is not rent exempt", idl.ErrInsufficientFunds, acc.Key)
	}

	authority := args.MintAuthority
	m := idl.Mint{
		MintAuthority:   &authority,
		Decimals:        args.Decimals,
		IsInitialized:   true,
		FreezeAuthority: args.FreezeAuthority,
	}
	return storeMint(acc, &m)
}

func initializeAccount(acc, mintAcc *ledger.AccountInfo, owner solana.PublicKey) error {
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) || len(acc.Data()) != idl.TokenAccountSize {
		return fmt.Errorf("%w: %s is not an allocated holder account", idl.ErrAccountMismatch, acc.Key)
	}
	var existing idl.TokenAccount
	if err := existing.UnmarshalBinary(acc.Data()); err == nil && existing.State != idl.TokenAccountUninitialized {
		return fmt.Errorf("%w: holder account %s", idl.ErrAlreadyInitialized, acc.Key)
	}
	if _, err := loadMint(mintAcc); err != nil {
		return err
	}

	ta := idl.TokenAccount{
		Mint:  mintAcc.Key,
		Owner: owner,
		State: idl.TokenAccountInitialized,
	}
	return storeTokenAccount(acc, &ta)
}

func mintTo(mintAcc, dest, authority *ledger.AccountInfo, amount uint64, decimals *uint8) error {
	m, err := loadMint(mintAcc)
	if err != nil {
		return err
	}
	ta, err := loadTokenAccount(dest)
	if err != nil {
		return err
	}
	if !ta.Mint.Equals(mintAcc.Key) {
		return fmt.Errorf("%w: holder account %s belongs to mint %s", idl.ErrAccountMismatch, dest.Key, ta.Mint)
	}
	if ta.State == idl.TokenAccountFrozen {
		return fmt.Errorf("%w: holder account %s is frozen", idl.ErrAccountMismatch, dest.Key)
	}
	if decimals != nil && *decimals != m.Decimals {
		return fmt.Errorf("%w: decimals %d, mint has %d", idl.ErrAccountMismatch, *decimals, m.Decimals)
	}
	if m.MintAuthority == nil {
		return fmt.Errorf("%w: mint %s has a fixed supply", idl.ErrUnauthorized, mintAcc.Key)
	}
	if !m.MintAuthority.Equals(authority.Key) || !authority.IsSigner {
		return fmt.Errorf("%w: %s is not the signing mint authority", idl.ErrUnauthorized, authority.Key)
	}

	supply, ok := checkedAdd(m.Supply, amount)
	if !ok {
		return fmt.Errorf("%w: supply %d + %d", idl.ErrArithmeticOverflow, m.Supply, amount)
	}
	balance, ok := checkedAdd(ta.Amount, amount)
	if !ok {
		return fmt.Errorf("%w: balance %d + %d", idl.ErrArithmeticOverflow, ta.Amount, amount)
	}
	m.Supply = supply
	ta.Amount = balance

	if err := storeMint(mintAcc, m); err != nil {
		return err
	}
	return storeTokenAccount(dest, ta)
}

func transfer(src, dst, owner *ledger.AccountInfo, amount uint64) error {
	from, err := loadTokenAccount(src)
	if err != nil {
		return err
	}
	to, err := loadTokenAccount(dst)
	if err != nil {
		return err
	}
	if !from.Mint.Equals(to.Mint) {
		return fmt.Errorf("%w: transfer between mints %s and %s", idl.ErrAccountMismatch, from.Mint, to.Mint)
	}
	if from.State == idl.TokenAccountFrozen || to.State == idl.TokenAccountFrozen {
		return fmt.Errorf("%w: frozen holder account", idl.ErrAccountMismatch)
	}
	if !from.Owner.Equals(owner.Key) || !owner.IsSigner {
		return fmt.Errorf("%w: %s is not the signing owner of %s", idl.ErrUnauthorized, owner.Key, src.Key)
	}
	if from.Amount < amount {
		return fmt.Errorf("%w: balance %d, need %d", idl.ErrInsufficientFunds, from.Amount, amount)
	}
	if src.Key.Equals(dst.Key) {
		return nil
	}

	balance, ok := checkedAdd(to.Amount, amount)
	if !ok {
		return fmt.Errorf("%w: balance %d + %d", idl.ErrArithmeticOverflow, to.Amount, amount)
	}
	from.Amount -= amount
	to.Amount = balance

	if err := storeTokenAccount(src, from); err != nil {
		return err
	}
	return storeTokenAccount(dst, to)
}

func loadMint(acc *ledger.AccountInfo) (*idl.Mint, error) {
	if acc.IsEmpty() {
		return nil, fmt.Errorf("%w: mint %s", idl.ErrNotInitialized, acc.Key)
	}
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) {
		return nil, fmt.Errorf("%w: mint %s owned by %s", idl.ErrAccountMismatch, acc.Key, acc.Owner())
	}
	var m idl.Mint
	if err := m.UnmarshalBinary(acc.Data()); err != nil {
		return nil, fmt.Errorf("%w: %v", idl.ErrAccountMismatch, err)
	}
	if !m.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s", idl.ErrNotInitialized, acc.Key)
	}
	return &m, nil
}

func loadTokenAccount(acc *ledger.AccountInfo) (*idl.TokenAccount, error) {
	if acc.IsEmpty() {
		return nil, fmt.Errorf("%w: holder account %s", idl.ErrNotInitialized, acc.Key)
	}
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) {
		return nil, fmt.Errorf("%w: holder account %s owned by %s", idl.ErrAccountMismatch, acc.Key, acc.Owner())
	}
	var ta idl.TokenAccount
	if err := ta.UnmarshalBinary(acc.Data()); err != nil {
		return nil, fmt.Errorf("%w: %v", idl.ErrAccountMismatch, err)
	}
	if ta.State == idl.TokenAccountUninitialized {
		return nil, fmt.Errorf("%w: holder account %s", idl.ErrNotInitialized, acc.Key)
	}
	return &ta, nil
}

func storeMint(acc *ledger.AccountInfo, m *idl.Mint) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	acc.SetData(data)
	return nil
}

func storeTokenAccount(acc *ledger.AccountInfo, ta *idl.TokenAccount) error {
	data, err := ta.MarshalBinary()
	if err != nil {
		return err
	}
	acc.SetData(data)
	return nil
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
