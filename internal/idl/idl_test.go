package idl

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("global:create_token"))
	d := InstructionDiscriminator(IxCreateToken)
	assert.Equal(t, sum[:8], d[:])

	acc := AccountDiscriminator("Counter")
	sum = sha256.Sum256([]byte("account:Counter"))
	assert.Equal(t, sum[:8], acc[:])
}

func TestSplitDiscriminator(t *testing.T) {
	_, _, ok := SplitDiscriminator([]byte{1, 2, 3})
	assert.False(t, ok)

	data, err := EncodeInstruction(IxMintToken, &MintTokenArgs{Amount: 42})
	require.NoError(t, err)
	d, rest, ok := SplitDiscriminator(data)
	require.True(t, ok)
	assert.Equal(t, InstructionDiscriminator(IxMintToken), d)
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(rest))
}

func TestCreateTokenParamsFieldOrder(t *testing.T) {
	data, err := EncodeInstruction(IxCreateToken, &CreateTokenParams{
		Name:     "My Token",
		URI:      "https://example.com/metadata",
		Symbol:   "MTK",
		Decimals: 9,
	})
	require.NoError(t, err)

	payload := data[8:]
	// borsh string: u32 length then bytes
	require.Equal(t, uint32(8), binary.LittleEndian.Uint32(payload))
	assert.Equal(t, "My Token", string(payload[4:12]))
	payload = payload[12:]
	uriLen := binary.LittleEndian.Uint32(payload)
	assert.Equal(t, "https://example.com/metadata", string(payload[4:4+uriLen]))
	payload = payload[4+uriLen:]
	assert.Equal(t, "MTK", string(payload[4:7]))
	assert.Equal(t, byte(9), payload[7])

	var back CreateTokenParams
	require.NoError(t, DecodeArgs(data[8:], &back))
	assert.Equal(t, "My Token", back.Name)
	assert.Equal(t, uint8(9), back.Decimals)
}

func TestMintRoundTrip(t *testing.T) {
	auth := solana.NewWallet().PublicKey()
	m := Mint{MintAuthority: &auth, Supply: 1_000, Decimals: 9, IsInitialized: true}

	data, err := m.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, MintSize)
	assert.Equal(t, []byte{1, 0, 0, 0}, data[:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, data[46:50])

	var back Mint
	require.NoError(t, back.UnmarshalBinary(data))
	require.NotNil(t, back.MintAuthority)
	assert.Equal(t, auth, *back.MintAuthority)
	assert.Nil(t, back.FreezeAuthority)
	assert.Equal(t, uint64(1_000), back.Supply)

	assert.Error(t, back.UnmarshalBinary(data[:80]))
}

func TestTokenAccountRoundTrip(t *testing.T) {
	a := TokenAccount{
		Mint:   solana.NewWallet().PublicKey(),
		Owner:  solana.NewWallet().PublicKey(),
		Amount: 10_000_000_000_000,
		State:  TokenAccountInitialized,
	}
	data, err := a.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, TokenAccountSize)

	var back TokenAccount
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, a, back)
}

func TestInitializeMint2Args(t *testing.T) {
	freeze := solana.NewWallet().PublicKey()
	args := InitializeMint2Args{Decimals: 6, MintAuthority: solana.NewWallet().PublicKey(), FreezeAuthority: &freeze}
	data := args.MarshalBinary()
	require.Equal(t, TokenIxInitializeMint2, data[0])
	require.Len(t, data, 67)

	var back InitializeMint2Args
	require.NoError(t, back.UnmarshalBinary(data[1:]))
	assert.Equal(t, args.MintAuthority, back.MintAuthority)
	require.NotNil(t, back.FreezeAuthority)
	assert.Equal(t, freeze, *back.FreezeAuthority)

	assert.ErrorIs(t, back.UnmarshalBinary(data[1:10]), ErrInvalidInstruction)
}

func TestMetadataRecordPadding(t *testing.T) {
	ts := TokenStandardFungible
	m := Metadata{
		UpdateAuthority: solana.NewWallet().PublicKey(),
		Mint:            solana.NewWallet().PublicKey(),
		Name:            "My Token",
		Symbol:          "MTK",
		URI:             "https://example.com/metadata",
		TokenStandard:   &ts,
	}
	data, err := m.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, MetadataSize)
	assert.Equal(t, byte(MetadataKeyV1), data[0])
	// name is stored padded to its limit
	assert.Equal(t, uint32(MaxNameLength), binary.LittleEndian.Uint32(data[65:69]))

	var back Metadata
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, "My Token", back.Name)
	assert.Equal(t, "MTK", back.Symbol)
	assert.Equal(t, "https://example.com/metadata", back.URI)
	require.NotNil(t, back.TokenStandard)
	assert.Equal(t, TokenStandardFungible, *back.TokenStandard)
}

func TestCreateMetadataArgsRoundTrip(t *testing.T) {
	args := CreateMetadataAccountArgsV3{
		Data:      DataV2{Name: "n", Symbol: "s", URI: "u"},
		IsMutable: false,
	}
	data, err := args.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, MetadataIxCreateV3, data[0])

	var back CreateMetadataAccountArgsV3
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, "n", back.Data.Name)
	assert.Nil(t, back.Data.Creators)

	assert.ErrorIs(t, back.UnmarshalBinary([]byte{1}), ErrInvalidInstruction)
}

func TestCounterRecord(t *testing.T) {
	c := Counter{Count: 7}
	data, err := c.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, CounterSize)

	var back Counter
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, uint64(7), back.Count)

	data[0] ^= 0xff
	assert.Error(t, back.UnmarshalBinary(data))
}

func TestSystemInstructionDecode(t *testing.T) {
	payer, acct, owner := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	ix := NewCreateAccountInstruction(payer, acct, CreateAccountArgs{Lamports: 5, Space: 82, Owner: owner})
	data, err := ix.Data()
	require.NoError(t, err)

	dec, err := DecodeSystemInstruction(data)
	require.NoError(t, err)
	require.NotNil(t, dec.CreateAccount)
	assert.Equal(t, uint64(82), dec.CreateAccount.Space)
	assert.Equal(t, owner, dec.CreateAccount.Owner)

	data, err = NewAssignInstruction(acct, owner).Data()
	require.NoError(t, err)
	dec, err = DecodeSystemInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, SystemIxAssign, dec.Index)
	assert.Equal(t, owner, dec.Owner)

	data, err = NewAllocateInstruction(acct, 165).Data()
	require.NoError(t, err)
	dec, err = DecodeSystemInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, SystemIxAllocate, dec.Index)
	assert.Equal(t, uint64(165), dec.Space)

	_, err = DecodeSystemInstruction([]byte{9, 0, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidInstruction)
}

func TestErrorTaxonomy(t *testing.T) {
	addr := solana.NewWallet().PublicKey()
	err := Violation(ErrSeedMismatch, "mint", addr, "seeds", "")
	assert.True(t, errors.Is(err, ErrSeedMismatch))
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeSeedMismatch, code)

	rejected := Rejected("metadata", ErrInvalidInstruction)
	assert.ErrorIs(t, rejected, ErrExternalRejection)
	assert.ErrorIs(t, rejected, ErrInvalidInstruction)
	code, _ = CodeOf(rejected)
	assert.Equal(t, CodeExternalRejection, code)

	pe, ok := ErrorForCode(CodeArithmeticOverflow)
	require.True(t, ok)
	assert.Same(t, ErrArithmeticOverflow, pe)
}

func TestMintTokenRecipientAccount(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	ix, err := NewMintTokenInstruction(MintTokenAccounts{Payer: payer}, 1)
	require.NoError(t, err)
	assert.Len(t, ix.Accounts(), 6)

	ix, err = NewMintTokenInstruction(MintTokenAccounts{Payer: payer, Recipient: solana.NewWallet().PublicKey()}, 1)
	require.NoError(t, err)
	assert.Len(t, ix.Accounts(), 7)
}
