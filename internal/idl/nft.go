package idl

import "github.com/gagliardetto/solana-go"

// IxMintNFT is the instruction name of the unique issuance module.
const IxMintNFT = "mint_nft"

// MintNFTParams is the argument of mint_nft.
type MintNFTParams struct {
	Name   string
	Symbol string
	URI    string
}

// MintNFTAccounts lists the accounts of mint_nft. Mint is a fresh keypair
// that signs the transaction.
type MintNFTAccounts struct {
	Metadata    solana.PublicKey
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Payer       solana.PublicKey
}

// NewMintNFTInstruction builds mint_nft.
func NewMintNFTInstruction(accounts MintNFTAccounts, params MintNFTParams) (solana.Instruction, error) {
	data, err := EncodeInstruction(IxMintNFT, &params)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(NFTProgramID, solana.AccountMetaSlice{
		solana.Meta(accounts.Metadata).WRITE(),
		solana.Meta(accounts.Mint).WRITE().SIGNER(),
		solana.Meta(accounts.Destination).WRITE(),
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(RentSysvarID),
		solana.Meta(SystemProgramID),
		solana.Meta(SPLTokenProgramID),
		solana.Meta(MetadataProgramID),
		solana.Meta(ATAProgramID),
	}, data), nil
}
