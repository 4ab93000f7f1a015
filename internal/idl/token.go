package idl

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction names of the fungible issuance module.
const (
	IxCreateToken = "create_token"
	IxMintToken   = "mint_token"
)

// CreateTokenParams is the argument of create_token. Field order is part of
// the encoding.
type CreateTokenParams struct {
	Name     string
	URI      string
	Symbol   string
	Decimals uint8
}

// MintTokenArgs is the argument of mint_token.
type MintTokenArgs struct {
	Amount uint64
}

// EncodeInstruction returns discriminator || borsh(args).
func EncodeInstruction(name string, args interface{}) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	if args == nil {
		return disc[:], nil
	}
	payload, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", name, err)
	}
	return append(disc[:], payload...), nil
}

// DecodeArgs decodes the borsh payload that follows a discriminator.
func DecodeArgs(payload []byte, args interface{}) error {
	if err := bin.UnmarshalBorsh(args, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	return nil
}

// CreateTokenAccounts lists the accounts of create_token.
type CreateTokenAccounts struct {
	Metadata solana.PublicKey
	Mint     solana.PublicKey
	Payer    solana.PublicKey
}

// NewCreateTokenInstruction builds create_token.
func NewCreateTokenInstruction(accounts CreateTokenAccounts, params CreateTokenParams) (solana.Instruction, error) {
	data, err := EncodeInstruction(IxCreateToken, &params)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(TokenProgramID, solana.AccountMetaSlice{
		solana.Meta(accounts.Metadata).WRITE(),
		solana.Meta(accounts.Mint).WRITE(),
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(RentSysvarID),
		solana.Meta(SystemProgramID),
		solana.Meta(SPLTokenProgramID),
		solana.Meta(MetadataProgramID),
	}, data), nil
}

// MintTokenAccounts lists the accounts of mint_token. Recipient is optional;
// when zero the payer owns the destination.
type MintTokenAccounts struct {
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Payer       solana.PublicKey
	Recipient   solana.PublicKey
}

// NewMintTokenInstruction builds mint_token. A recipient other than the payer
// is passed as a trailing read-only account.
func NewMintTokenInstruction(accounts MintTokenAccounts, amount uint64) (solana.Instruction, error) {
	data, err := EncodeInstruction(IxMintToken, &MintTokenArgs{Amount: amount})
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(accounts.Mint).WRITE(),
		solana.Meta(accounts.Destination).WRITE(),
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
		solana.Meta(SPLTokenProgramID),
		solana.Meta(ATAProgramID),
	}
	if !accounts.Recipient.IsZero() && !accounts.Recipient.Equals(accounts.Payer) {
		metas = append(metas, solana.Meta(accounts.Recipient))
	}
	return solana.NewInstruction(TokenProgramID, metas, data), nil
}
