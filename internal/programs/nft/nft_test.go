package nft_test

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
	"solana-issuance-lab/internal/ledger/ledgertest"
	"solana-issuance-lab/internal/programs"
)

func mintNFT(t *testing.T, h *ledgertest.Harness, payer, mint solana.PrivateKey, params idl.MintNFTParams) (*ledger.Receipt, solana.PublicKey) {
	t.Helper()
	md, _, err := idl.FindMetadataAddress(mint.PublicKey())
	require.NoError(t, err)
	dest, _, err := idl.FindAssociatedTokenAddress(payer.PublicKey(), mint.PublicKey())
	require.NoError(t, err)

	ix, err := idl.NewMintNFTInstruction(idl.MintNFTAccounts{
		Metadata:    md,
		Mint:        mint.PublicKey(),
		Destination: dest,
		Payer:       payer.PublicKey(),
	}, params)
	require.NoError(t, err)
	return h.Send(t, payer, []solana.Instruction{ix}, mint), dest
}

func TestMintNFT(t *testing.T) {
	h := ledgertest.New(t, programs.All()...)
	payer := h.NewWallet(t)
	mint := solana.NewWallet().PrivateKey

	receipt, dest := mintNFT(t, h, payer, mint, idl.MintNFTParams{Name: "Homer NFT", Symbol: "HOMR", URI: "https://example.com/homer.json"})
	require.NoError(t, receipt.Err)
	assert.Contains(t, receipt.Logs, "Program log: Minting NFT Token")

	m := h.Mint(t, mint.PublicKey())
	assert.Zero(t, m.Decimals)
	assert.Equal(t, uint64(1), m.Supply)
	require.NotNil(t, m.MintAuthority)
	assert.Equal(t, payer.PublicKey(), *m.MintAuthority)

	ta := h.TokenAccount(t, dest)
	assert.Equal(t, uint64(1), ta.Amount)
	assert.Equal(t, payer.PublicKey(), ta.Owner)

	md := h.Metadata(t, mint.PublicKey())
	assert.Equal(t, "Homer NFT", md.Name)
	assert.Equal(t, payer.PublicKey(), md.UpdateAuthority)
	assert.Equal(t, idl.TokenStandardFungibleAsset, *md.TokenStandard)
}

func TestMintNFTFreshMintEachCall(t *testing.T) {
	h := ledgertest.New(t, programs.All()...)
	payer := h.NewWallet(t)
	params := idl.MintNFTParams{Name: "n", Symbol: "s", URI: "u"}

	first, second := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	receipt, _ := mintNFT(t, h, payer, first, params)
	require.NoError(t, receipt.Err)
	receipt, dest := mintNFT(t, h, payer, second, params)
	require.NoError(t, receipt.Err)
	assert.Equal(t, uint64(1), h.TokenAccount(t, dest).Amount)

	// reusing a mint key is a second initialization
	receipt, _ = mintNFT(t, h, payer, first, idl.MintNFTParams{Name: "again"})
	ledgertest.RequireCode(t, receipt, idl.ErrAlreadyInitialized)
	assert.Equal(t, uint64(1), h.Mint(t, first.PublicKey()).Supply)
}

func TestMintNFTMetadataRejected(t *testing.T) {
	h := ledgertest.New(t, programs.All()...)
	payer := h.NewWallet(t)
	mint := solana.NewWallet().PrivateKey

	receipt, dest := mintNFT(t, h, payer, mint, idl.MintNFTParams{Name: "n", Symbol: strings.Repeat("S", idl.MaxSymbolLength+1)})
	ledgertest.RequireCode(t, receipt, idl.ErrExternalRejection)
	assert.ErrorIs(t, receipt.Err, idl.ErrSymbolTooLong)

	assert.Nil(t, h.Account(t, mint.PublicKey()))
	assert.Nil(t, h.Account(t, dest))
	assert.Equal(t, ledgertest.DefaultFunding, h.Account(t, payer.PublicKey()).Lamports)
}
