// Package metadata is the descriptive-data registry. It attaches one
// metadata record (name, symbol, URI) to a mint at a derived address.
package metadata

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/authority"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

// Program is the metadata registry.
type Program struct{}

// New returns the metadata registry.
func New() *Program {
	return &Program{}
}

// ID implements ledger.Program.
func (p *Program) ID() solana.PublicKey {
	return idl.MetadataProgramID
}

// Process implements ledger.Program. Only CreateMetadataAccountsV3 is served.
func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	var args idl.CreateMetadataAccountArgsV3
	if err := args.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(accounts) < 7 {
		return ledger.ErrMissingAccount
	}
	ctx.Log("IX: Create Metadata Accounts v3")
	return createMetadata(ctx, accounts, &args)
}

func createMetadata(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, args *idl.CreateMetadataAccountArgsV3) error {
	md, mintAcc, mintAuth, payer, update := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if err := validateData(&args.Data, update); err != nil {
		return err
	}

	addr, bump, err := idl.FindMetadataAddress(mintAcc.Key)
	if err != nil || !addr.Equals(md.Key) {
		return fmt.Errorf("%w: got %s, expected %s", idl.ErrMetadataInvalidKey, md.Key, addr)
	}
	if !md.IsUnallocated() {
		return fmt.Errorf("%w: %s", idl.ErrMetadataAlreadyInitialized, md.Key)
	}

	mint, err := loadMint(mintAcc)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil || !mint.MintAuthority.Equals(mintAuth.Key) {
		return fmt.Errorf("%w: %s", idl.ErrInvalidMintAuthority, mintAuth.Key)
	}
	if !mintAuth.IsSigner {
		return fmt.Errorf("%w: %s", idl.ErrNotMintAuthority, mintAuth.Key)
	}
	if !update.IsSigner {
		return fmt.Errorf("%w: %s", idl.ErrUpdateAuthorityNotSigner, update.Key)
	}

	proof := authority.NewProof(bump, idl.MetadataSeeds(mintAcc.Key)...)
	if err := ctx.CreateAccount(payer, md, idl.MetadataSize, idl.MetadataProgramID, proof); err != nil {
		return err
	}

	standard := idl.TokenStandardFungible
	if mint.Decimals == 0 {
		standard = idl.TokenStandardFungibleAsset
	}
	record := idl.Metadata{
		UpdateAuthority:      update.Key,
		Mint:                 mintAcc.Key,
		Name:                 args.Data.Name,
		Symbol:               args.Data.Symbol,
		URI:                  args.Data.URI,
		SellerFeeBasisPoints: args.Data.SellerFeeBasisPoints,
		IsMutable:            args.IsMutable,
		TokenStandard:        &standard,
		Collection:           args.Data.Collection,
		Uses:                 args.Data.Uses,
	}
	if args.Data.Creators != nil {
		record.Creators = *args.Data.Creators
	}
	data, err := record.MarshalBinary()
	if err != nil {
		return err
	}
	md.SetData(data)
	return nil
}

// validateData enforces the registry's field limits.
func validateData(d *idl.DataV2, update *ledger.AccountInfo) error {
	if len(d.Name) > idl.MaxNameLength {
		return fmt.Errorf("%w: %d bytes", idl.ErrNameTooLong, len(d.Name))
	}
	if len(d.Symbol) > idl.MaxSymbolLength {
		return fmt.Errorf("%w: %d bytes", idl.ErrSymbolTooLong, len(d.Symbol))
	}
	if len(d.URI) > idl.MaxURILength {
		return fmt.Errorf("%w: %d bytes", idl.ErrURITooLong, len(d.URI))
	}
	if d.SellerFeeBasisPoints > idl.MaxSellerFeeBasisPoints {
		return fmt.Errorf("%w: %d", idl.ErrInvalidBasisPoints, d.SellerFeeBasisPoints)
	}
	if d.Collection != nil && d.Collection.Verified {
		return idl.ErrCollectionVerified
	}
	if d.Creators == nil {
		return nil
	}

	creators := *d.Creators
	if len(creators) == 0 {
		return idl.ErrCreatorsMustBeAtLeastOne
	}
	if len(creators) > idl.MaxCreatorLimit {
		return fmt.Errorf("%w: %d", idl.ErrCreatorsTooLong, len(creators))
	}
	seen := make(map[solana.PublicKey]struct{}, len(creators))
	total := 0
	for _, c := range creators {
		if _, dup := seen[c.Address]; dup {
			return fmt.Errorf("%w: %s", idl.ErrDuplicateCreatorAddress, c.Address)
		}
		seen[c.Address] = struct{}{}
		if c.Verified && (!c.Address.Equals(update.Key) || !update.IsSigner) {
			return fmt.Errorf("%w: %s", idl.ErrCannotVerifyAnotherCreator, c.Address)
		}
		total += int(c.Share)
	}
	if total != 100 {
		return fmt.Errorf("%w: got %d", idl.ErrShareTotalMustBe100, total)
	}
	return nil
}

func loadMint(acc *ledger.AccountInfo) (*idl.Mint, error) {
	if !acc.IsOwnedBy(idl.SPLTokenProgramID) {
		return nil, fmt.Errorf("%w: %s owned by %s", idl.ErrMintMismatch, acc.Key, acc.Owner())
	}
	var m idl.Mint
	if err := m.UnmarshalBinary(acc.Data()); err != nil || !m.IsInitialized {
		return nil, fmt.Errorf("%w: %s is not an initialized mint", idl.ErrMintMismatch, acc.Key)
	}
	return &m, nil
}
