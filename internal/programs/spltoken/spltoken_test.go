package spltoken_test

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger/ledgertest"
	"solana-issuance-lab/internal/programs/spltoken"
	"solana-issuance-lab/internal/programs/system"
)

func setup(t *testing.T) (*ledgertest.Harness, solana.PrivateKey) {
	h := ledgertest.New(t, system.New(), spltoken.New())
	return h, h.NewWallet(t)
}

func TestInitializeMint(t *testing.T) {
	h, payer := setup(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 6)

	m := h.Mint(t, mint)
	assert.True(t, m.IsInitialized)
	assert.Equal(t, uint8(6), m.Decimals)
	require.NotNil(t, m.MintAuthority)
	assert.Equal(t, payer.PublicKey(), *m.MintAuthority)
	assert.Zero(t, m.Supply)
}

func TestInitializeMintTwice(t *testing.T) {
	h, payer := setup(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 6)

	receipt := h.Send(t, payer, []solana.Instruction{
		idl.NewInitializeMint2Instruction(mint, idl.InitializeMint2Args{Decimals: 1, MintAuthority: payer.PublicKey()}),
	})
	ledgertest.RequireCode(t, receipt, idl.ErrAlreadyInitialized)
	assert.Equal(t, uint8(6), h.Mint(t, mint).Decimals)
}

func TestMintToAndTransfer(t *testing.T) {
	h, payer := setup(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 9)
	alice := h.CreateHolder(t, payer, mint, payer.PublicKey())
	bob := h.CreateHolder(t, payer, mint, solana.NewWallet().PublicKey())

	receipt := h.Send(t, payer, []solana.Instruction{idl.NewMintToInstruction(mint, alice, payer.PublicKey(), 1_000)})
	require.NoError(t, receipt.Err)
	assert.Equal(t, uint64(1_000), h.Mint(t, mint).Supply)

	receipt = h.Send(t, payer, []solana.Instruction{idl.NewTransferInstruction(alice, bob, payer.PublicKey(), 400)})
	require.NoError(t, receipt.Err)
	assert.Equal(t, uint64(600), h.TokenAccount(t, alice).Amount)
	assert.Equal(t, uint64(400), h.TokenAccount(t, bob).Amount)

	receipt = h.Send(t, payer, []solana.Instruction{idl.NewTransferInstruction(alice, bob, payer.PublicKey(), 601)})
	ledgertest.RequireCode(t, receipt, idl.ErrInsufficientFunds)
}

func TestMintToRequiresAuthority(t *testing.T) {
	h, payer := setup(t)
	authority := solana.NewWallet().PublicKey()
	mint := h.CreateMint(t, payer, authority, 0)
	holder := h.CreateHolder(t, payer, mint, payer.PublicKey())

	receipt := h.Send(t, payer, []solana.Instruction{idl.NewMintToInstruction(mint, holder, payer.PublicKey(), 1)})
	ledgertest.RequireCode(t, receipt, idl.ErrUnauthorized)
	assert.Zero(t, h.TokenAccount(t, holder).Amount)
}

func TestMintToOverflow(t *testing.T) {
	h, payer := setup(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 0)
	holder := h.CreateHolder(t, payer, mint, payer.PublicKey())

	receipt := h.Send(t, payer, []solana.Instruction{idl.NewMintToInstruction(mint, holder, payer.PublicKey(), math.MaxUint64)})
	require.NoError(t, receipt.Err)

	receipt = h.Send(t, payer, []solana.Instruction{idl.NewMintToInstruction(mint, holder, payer.PublicKey(), 1)})
	ledgertest.RequireCode(t, receipt, idl.ErrArithmeticOverflow)
	assert.Equal(t, uint64(math.MaxUint64), h.TokenAccount(t, holder).Amount)
}

func TestMintToWrongMint(t *testing.T) {
	h, payer := setup(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 0)
	other := h.CreateMint(t, payer, payer.PublicKey(), 0)
	holder := h.CreateHolder(t, payer, other, payer.PublicKey())

	receipt := h.Send(t, payer, []solana.Instruction{idl.NewMintToInstruction(mint, holder, payer.PublicKey(), 1)})
	ledgertest.RequireCode(t, receipt, idl.ErrAccountMismatch)
}

func TestMintToCheckedDecimals(t *testing.T) {
	h, payer := setup(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 6)
	holder := h.CreateHolder(t, payer, mint, payer.PublicKey())

	receipt := h.Send(t, payer, []solana.Instruction{idl.NewMintToCheckedInstruction(mint, holder, payer.PublicKey(), 5, 9)})
	ledgertest.RequireCode(t, receipt, idl.ErrAccountMismatch)

	receipt = h.Send(t, payer, []solana.Instruction{idl.NewMintToCheckedInstruction(mint, holder, payer.PublicKey(), 5, 6)})
	require.NoError(t, receipt.Err)
	assert.Equal(t, uint64(5), h.TokenAccount(t, holder).Amount)
}

func TestUnknownInstruction(t *testing.T) {
	h, payer := setup(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 6)

	ix := solana.NewInstruction(idl.SPLTokenProgramID, solana.AccountMetaSlice{solana.Meta(mint).WRITE()}, []byte{99})
	receipt := h.Send(t, payer, []solana.Instruction{ix})
	ledgertest.RequireCode(t, receipt, idl.ErrInvalidInstruction)
}
