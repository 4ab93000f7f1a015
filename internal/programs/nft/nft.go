// Package nft is the unique issuance module: one fresh mint per call with
// zero decimals, a single unit and its metadata record.
package nft

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/guard"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

var mintNFTDisc = idl.InstructionDiscriminator(idl.IxMintNFT)

// Program is the unique issuance module.
type Program struct{}

// New returns the unique issuance module.
func New() *Program {
	return &Program{}
}

// ID implements ledger.Program.
func (p *Program) ID() solana.PublicKey {
	return idl.NFTProgramID
}

// Process implements ledger.Program.
func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	disc, payload, ok := idl.SplitDiscriminator(data)
	if !ok || disc != mintNFTDisc {
		return fmt.Errorf("%w: unknown instruction", idl.ErrInvalidInstruction)
	}
	ctx.Log("Instruction: MintNft")

	var params idl.MintNFTParams
	if err := idl.DecodeArgs(payload, &params); err != nil {
		return err
	}
	return mintNFT(ctx, accounts, &params)
}

func mintNFT(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, params *idl.MintNFTParams) error {
	acc, err := guard.Bind(accounts,
		"metadata", "mint", "destination", "payer", "rent",
		"system_program", "token_program", "token_metadata_program", "associated_token_program")
	if err != nil {
		return err
	}
	md, mint, dest, payer := acc["metadata"], acc["mint"], acc["destination"], acc["payer"]

	_, err = guard.New(ctx).
		Account("metadata", md, guard.Writable(), guard.Unchecked("validated and created by the metadata registry")).
		Account("mint", mint,
			guard.Signer(),
			guard.Init(guard.InitSpec{
				Payer:      payer,
				Space:      idl.MintSize,
				Owner:      idl.SPLTokenProgramID,
				Initialize: guard.InitializeMint(0, payer.Key),
			})).
		Account("destination", dest, guard.AssociatedToken(payer, mint, payer)).
		Account("payer", payer, guard.Mut(), guard.Signer()).
		Account("rent", acc["rent"], guard.Address(idl.RentSysvarID)).
		Account("system_program", acc["system_program"], guard.Program(idl.SystemProgramID)).
		Account("token_program", acc["token_program"], guard.Program(idl.SPLTokenProgramID)).
		Account("token_metadata_program", acc["token_metadata_program"], guard.Program(idl.MetadataProgramID)).
		Account("associated_token_program", acc["associated_token_program"], guard.Program(idl.ATAProgramID)).
		Run()
	if err != nil {
		return err
	}

	ctx.Log("Minting NFT Token")
	if err := ctx.Invoke(idl.NewMintToInstruction(mint.Key, dest.Key, payer.Key, 1)); err != nil {
		return err
	}

	ctx.Log("Creating metadata account")
	ix, err := idl.NewCreateMetadataAccountsV3Instruction(idl.CreateMetadataAccounts{
		Metadata:        md.Key,
		Mint:            mint.Key,
		MintAuthority:   payer.Key,
		Payer:           payer.Key,
		UpdateAuthority: payer.Key,
	}, idl.CreateMetadataAccountArgsV3{
		Data: idl.DataV2{
			Name:   params.Name,
			Symbol: params.Symbol,
			URI:    params.URI,
		},
		IsMutable: false,
	})
	if err != nil {
		return idl.Rejected("metadata", err)
	}
	if err := ctx.Invoke(ix); err != nil {
		return idl.Rejected("metadata", err)
	}

	ctx.Log("NFT minted successfully.")
	return nil
}
