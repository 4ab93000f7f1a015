// Package token is the fungible issuance module. It owns one mint at a
// fixed derived address, registers its metadata and mints into associated
// holder accounts.
package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/authority"
	"solana-issuance-lab/internal/guard"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

var (
	createTokenDisc = idl.InstructionDiscriminator(idl.IxCreateToken)
	mintTokenDisc   = idl.InstructionDiscriminator(idl.IxMintToken)
)

// Program is the fungible issuance module.
type Program struct{}

// New returns the fungible issuance module.
func New() *Program {
	return &Program{}
}

// ID implements ledger.Program.
func (p *Program) ID() solana.PublicKey {
	return idl.TokenProgramID
}

// Process implements ledger.Program.
func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	disc, payload, ok := idl.SplitDiscriminator(data)
	if !ok {
		return fmt.Errorf("%w: missing discriminator", idl.ErrInvalidInstruction)
	}

	switch disc {
	case createTokenDisc:
		ctx.Log("Instruction: CreateToken")
		var params idl.CreateTokenParams
		if err := idl.DecodeArgs(payload, &params); err != nil {
			return err
		}
		return createToken(ctx, accounts, &params)

	case mintTokenDisc:
		ctx.Log("Instruction: MintToken")
		var args idl.MintTokenArgs
		if err := idl.DecodeArgs(payload, &args); err != nil {
			return err
		}
		return mintToken(ctx, accounts, args.Amount)

	default:
		return fmt.Errorf("%w: unknown instruction", idl.ErrInvalidInstruction)
	}
}

func createToken(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, params *idl.CreateTokenParams) error {
	acc, err := guard.Bind(accounts,
		"metadata", "mint", "payer", "rent", "system_program", "token_program", "token_metadata_program")
	if err != nil {
		return err
	}
	md, mint, payer := acc["metadata"], acc["mint"], acc["payer"]

	bumps, err := guard.New(ctx).
		Account("metadata", md, guard.Writable(), guard.Unchecked("validated and created by the metadata registry")).
		Account("mint", mint,
			guard.Seeds(idl.MintSeeds()...),
			guard.Init(guard.InitSpec{
				Payer:      payer,
				Space:      idl.MintSize,
				Owner:      idl.SPLTokenProgramID,
				Initialize: guard.InitializeMint(params.Decimals, mint.Key),
			})).
		Account("payer", payer, guard.Mut(), guard.Signer()).
		Account("rent", acc["rent"], guard.Address(idl.RentSysvarID)).
		Account("system_program", acc["system_program"], guard.Program(idl.SystemProgramID)).
		Account("token_program", acc["token_program"], guard.Program(idl.SPLTokenProgramID)).
		Account("token_metadata_program", acc["token_metadata_program"], guard.Program(idl.MetadataProgramID)).
		Run()
	if err != nil {
		return err
	}

	ctx.Log("Creating metadata account")
	ix, err := idl.NewCreateMetadataAccountsV3Instruction(idl.CreateMetadataAccounts{
		Metadata:        md.Key,
		Mint:            mint.Key,
		MintAuthority:   mint.Key,
		Payer:           payer.Key,
		UpdateAuthority: mint.Key,
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

	proof := authority.NewProof(bumps["mint"], idl.MintSeeds()...)
	if err := ctx.Invoke(ix, proof); err != nil {
		ctx.Logger().WithError(err).Debug("metadata registration rejected")
		return idl.Rejected("metadata", err)
	}

	ctx.Log("Token mint created successfully.")
	return nil
}

func mintToken(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	acc, err := guard.Bind(accounts,
		"mint", "destination", "payer", "system_program", "token_program", "associated_token_program")
	if err != nil {
		return err
	}
	mint, dest, payer := acc["mint"], acc["destination"], acc["payer"]

	// the optional trailing account names the holder; the payer otherwise
	recipient := payer
	if len(accounts) > 6 {
		recipient = accounts[6]
	}

	checks := guard.New(ctx).
		Account("mint", mint,
			guard.Mut(),
			guard.Seeds(idl.MintSeeds()...),
			guard.Mint(guard.MintSpec{Authority: &mint.Key})).
		Account("destination", dest, guard.AssociatedToken(payer, mint, recipient)).
		Account("payer", payer, guard.Mut(), guard.Signer())
	if recipient != payer {
		checks.Account("recipient", recipient, guard.Unchecked("any principal may hold the asset"))
	}
	bumps, err := checks.
		Account("system_program", acc["system_program"], guard.Program(idl.SystemProgramID)).
		Account("token_program", acc["token_program"], guard.Program(idl.SPLTokenProgramID)).
		Account("associated_token_program", acc["associated_token_program"], guard.Program(idl.ATAProgramID)).
		Run()
	if err != nil {
		return err
	}

	proof := authority.NewProof(bumps["mint"], idl.MintSeeds()...)
	if err := ctx.Invoke(idl.NewMintToInstruction(mint.Key, dest.Key, mint.Key, amount), proof); err != nil {
		return err
	}

	ctx.Log("Token minted successfully.")
	return nil
}
