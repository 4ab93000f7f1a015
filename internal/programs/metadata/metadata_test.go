package metadata_test

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

func createIx(t *testing.T, payer, mint, authority solana.PublicKey, data idl.DataV2) solana.Instruction {
	t.Helper()
	md, _, err := idl.FindMetadataAddress(mint)
	require.NoError(t, err)
	ix, err := idl.NewCreateMetadataAccountsV3Instruction(idl.CreateMetadataAccounts{
		Metadata:        md,
		Mint:            mint,
		MintAuthority:   authority,
		Payer:           payer,
		UpdateAuthority: authority,
	}, idl.CreateMetadataAccountArgsV3{Data: data})
	require.NoError(t, err)
	return ix
}

func TestCreateMetadata(t *testing.T) {
	h := ledgertest.New(t, programs.Builtins()...)
	payer := h.NewWallet(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 9)

	receipt := h.Send(t, payer, []solana.Instruction{
		createIx(t, payer.PublicKey(), mint, payer.PublicKey(), idl.DataV2{Name: "My Token", Symbol: "MTK", URI: "https://example.com/metadata"}),
	})
	require.NoError(t, receipt.Err)
	assert.Contains(t, receipt.Logs, "Program log: IX: Create Metadata Accounts v3")

	md := h.Metadata(t, mint)
	assert.Equal(t, "My Token", md.Name)
	assert.Equal(t, "MTK", md.Symbol)
	assert.Equal(t, mint, md.Mint)
	assert.Equal(t, payer.PublicKey(), md.UpdateAuthority)
	require.NotNil(t, md.TokenStandard)
	assert.Equal(t, idl.TokenStandardFungible, *md.TokenStandard)

	addr, _, err := idl.FindMetadataAddress(mint)
	require.NoError(t, err)
	acct := h.Account(t, addr)
	assert.Equal(t, idl.MetadataProgramID, acct.Owner)
	assert.Equal(t, ledger.MinimumBalance(idl.MetadataSize), acct.Lamports)

	receipt = h.Send(t, payer, []solana.Instruction{
		createIx(t, payer.PublicKey(), mint, payer.PublicKey(), idl.DataV2{Name: "again"}),
	})
	ledgertest.RequireCode(t, receipt, idl.ErrMetadataAlreadyInitialized)
}

func TestCreateMetadataZeroDecimals(t *testing.T) {
	h := ledgertest.New(t, programs.Builtins()...)
	payer := h.NewWallet(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 0)

	receipt := h.Send(t, payer, []solana.Instruction{createIx(t, payer.PublicKey(), mint, payer.PublicKey(), idl.DataV2{Name: "n"})})
	require.NoError(t, receipt.Err)
	assert.Equal(t, idl.TokenStandardFungibleAsset, *h.Metadata(t, mint).TokenStandard)
}

func TestCreateMetadataLimits(t *testing.T) {
	share := func(shares ...uint8) *[]idl.Creator {
		out := make([]idl.Creator, 0, len(shares))
		for _, s := range shares {
			out = append(out, idl.Creator{Address: solana.NewWallet().PublicKey(), Share: s})
		}
		return &out
	}

	tests := []struct {
		name string
		data idl.DataV2
		want *idl.ProgramError
	}{
		{"name", idl.DataV2{Name: strings.Repeat("n", idl.MaxNameLength+1)}, idl.ErrNameTooLong},
		{"symbol", idl.DataV2{Symbol: strings.Repeat("s", idl.MaxSymbolLength+1)}, idl.ErrSymbolTooLong},
		{"uri", idl.DataV2{URI: strings.Repeat("u", idl.MaxURILength+1)}, idl.ErrURITooLong},
		{"basis points", idl.DataV2{SellerFeeBasisPoints: idl.MaxSellerFeeBasisPoints + 1}, idl.ErrInvalidBasisPoints},
		{"no creators", idl.DataV2{Creators: share()}, idl.ErrCreatorsMustBeAtLeastOne},
		{"too many creators", idl.DataV2{Creators: share(20, 20, 20, 20, 10, 10)}, idl.ErrCreatorsTooLong},
		{"shares", idl.DataV2{Creators: share(50, 40)}, idl.ErrShareTotalMustBe100},
		{"verified collection", idl.DataV2{Collection: &idl.Collection{Verified: true}}, idl.ErrCollectionVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ledgertest.New(t, programs.Builtins()...)
			payer := h.NewWallet(t)
			mint := h.CreateMint(t, payer, payer.PublicKey(), 9)

			receipt := h.Send(t, payer, []solana.Instruction{createIx(t, payer.PublicKey(), mint, payer.PublicKey(), tt.data)})
			ledgertest.RequireCode(t, receipt, tt.want)
		})
	}
}

func TestCreateMetadataWrongAuthority(t *testing.T) {
	h := ledgertest.New(t, programs.Builtins()...)
	payer := h.NewWallet(t)
	other := h.NewWallet(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 9)

	receipt := h.Send(t, payer, []solana.Instruction{createIx(t, payer.PublicKey(), mint, other.PublicKey(), idl.DataV2{Name: "n"})}, other)
	ledgertest.RequireCode(t, receipt, idl.ErrInvalidMintAuthority)
}

func TestCreateMetadataWrongAddress(t *testing.T) {
	h := ledgertest.New(t, programs.Builtins()...)
	payer := h.NewWallet(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 9)
	other := h.CreateMint(t, payer, payer.PublicKey(), 9)

	// the metadata address of another mint
	ix := createIx(t, payer.PublicKey(), other, payer.PublicKey(), idl.DataV2{Name: "n"})
	ix.Accounts()[1].PublicKey = mint
	receipt := h.Send(t, payer, []solana.Instruction{ix})
	ledgertest.RequireCode(t, receipt, idl.ErrMetadataInvalidKey)
}

func TestCreateMetadataPrefunded(t *testing.T) {
	h := ledgertest.New(t, programs.Builtins()...)
	payer := h.NewWallet(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 9)
	addr, _, err := idl.FindMetadataAddress(mint)
	require.NoError(t, err)
	h.Prefund(t, h.NewWallet(t), addr, 1)

	receipt := h.Send(t, payer, []solana.Instruction{
		createIx(t, payer.PublicKey(), mint, payer.PublicKey(), idl.DataV2{Name: "My Token"}),
	})
	require.NoError(t, receipt.Err)

	assert.Equal(t, "My Token", h.Metadata(t, mint).Name)
	acct := h.Account(t, addr)
	assert.Equal(t, idl.MetadataProgramID, acct.Owner)
	assert.Equal(t, ledger.MinimumBalance(idl.MetadataSize), acct.Lamports)
}

func TestCreateMetadataUpdateAuthorityMustSign(t *testing.T) {
	h := ledgertest.New(t, programs.Builtins()...)
	payer := h.NewWallet(t)
	mint := h.CreateMint(t, payer, payer.PublicKey(), 9)
	md, _, err := idl.FindMetadataAddress(mint)
	require.NoError(t, err)

	ix, err := idl.NewCreateMetadataAccountsV3Instruction(idl.CreateMetadataAccounts{
		Metadata:        md,
		Mint:            mint,
		MintAuthority:   payer.PublicKey(),
		Payer:           payer.PublicKey(),
		UpdateAuthority: solana.NewWallet().PublicKey(),
	}, idl.CreateMetadataAccountArgsV3{Data: idl.DataV2{Name: "n"}})
	require.NoError(t, err)
	ix.Accounts()[4].IsSigner = false

	receipt := h.Send(t, payer, []solana.Instruction{ix})
	ledgertest.RequireCode(t, receipt, idl.ErrUpdateAuthorityNotSigner)
	assert.Nil(t, h.Account(t, md))
}
