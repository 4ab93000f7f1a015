package idl

import (
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Metadata registry limits and layout constants.
const (
	MaxNameLength                 = 32
	MaxSymbolLength               = 10
	MaxURILength                  = 200
	MaxCreatorLimit               = 5
	MaxSellerFeeBasisPoints       = 10000
	MetadataSize                  = 679
	MetadataKeyV1                 = 4
	MetadataIxCreateV3      uint8 = 33
)

// TokenStandard classifies the mint a metadata record describes.
type TokenStandard uint8

const (
	TokenStandardNonFungible TokenStandard = iota
	TokenStandardFungibleAsset
	TokenStandardFungible
	TokenStandardNonFungibleEdition
	TokenStandardProgrammableNonFungible
)

// Creator is a royalty recipient.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// Collection links a mint to a collection mint.
type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

// Uses describes consumable usage.
type Uses struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

// CollectionDetails marks a collection parent; V1 is the only variant.
type CollectionDetails struct {
	Variant uint8
	Size    uint64
}

// DataV2 is the descriptive payload of a metadata record.
type DataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator  `bin:"optional"`
	Collection           *Collection `bin:"optional"`
	Uses                 *Uses       `bin:"optional"`
}

// CreateMetadataAccountArgsV3 is the argument payload of CreateMetadataAccountsV3.
type CreateMetadataAccountArgsV3 struct {
	Data              DataV2
	IsMutable         bool
	CollectionDetails *CollectionDetails `bin:"optional"`
}

// MarshalBinary returns tag || borsh(args).
func (a *CreateMetadataAccountArgsV3) MarshalBinary() ([]byte, error) {
	payload, err := bin.MarshalBorsh(a)
	if err != nil {
		return nil, fmt.Errorf("encode metadata args: %w", err)
	}
	return append([]byte{MetadataIxCreateV3}, payload...), nil
}

// UnmarshalBinary decodes tag || borsh(args).
func (a *CreateMetadataAccountArgsV3) UnmarshalBinary(data []byte) error {
	if len(data) < 1 || data[0] != MetadataIxCreateV3 {
		return ErrInvalidInstruction
	}
	if err := bin.UnmarshalBorsh(a, data[1:]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	return nil
}

// CreateMetadataAccounts lists the accounts of CreateMetadataAccountsV3.
type CreateMetadataAccounts struct {
	Metadata        solana.PublicKey
	Mint            solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	UpdateAuthority solana.PublicKey
}

// NewCreateMetadataAccountsV3Instruction registers descriptive data for a
// mint. The mint authority and the update authority both sign.
func NewCreateMetadataAccountsV3Instruction(accounts CreateMetadataAccounts, args CreateMetadataAccountArgsV3) (solana.Instruction, error) {
	data, err := args.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(MetadataProgramID, solana.AccountMetaSlice{
		solana.Meta(accounts.Metadata).WRITE(),
		solana.Meta(accounts.Mint),
		solana.Meta(accounts.MintAuthority).SIGNER(),
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(accounts.UpdateAuthority).SIGNER(),
		solana.Meta(SystemProgramID),
		solana.Meta(RentSysvarID),
	}, data), nil
}

// metadataLayout is the borsh encoding of the record before zero padding.
type metadataLayout struct {
	Key                 uint8
	UpdateAuthority     solana.PublicKey
	Mint                solana.PublicKey
	Data                dataLayout
	PrimarySaleHappened bool
	IsMutable           bool
	EditionNonce        *uint8      `bin:"optional"`
	TokenStandard       *uint8      `bin:"optional"`
	Collection          *Collection `bin:"optional"`
	Uses                *Uses       `bin:"optional"`
}

type dataLayout struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator `bin:"optional"`
}

// Metadata is the decoded Metadata Record.
type Metadata struct {
	UpdateAuthority      solana.PublicKey
	Mint                 solana.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8
	TokenStandard        *TokenStandard
	Collection           *Collection
	Uses                 *Uses
}

// MarshalBinary encodes the record padded to MetadataSize. Name, symbol and
// URI are right-padded with NULs to their limits, as the registry stores them.
func (m *Metadata) MarshalBinary() ([]byte, error) {
	l := metadataLayout{
		Key:             MetadataKeyV1,
		UpdateAuthority: m.UpdateAuthority,
		Mint:            m.Mint,
		Data: dataLayout{
			Name:                 puff(m.Name, MaxNameLength),
			Symbol:               puff(m.Symbol, MaxSymbolLength),
			URI:                  puff(m.URI, MaxURILength),
			SellerFeeBasisPoints: m.SellerFeeBasisPoints,
		},
		PrimarySaleHappened: m.PrimarySaleHappened,
		IsMutable:           m.IsMutable,
		EditionNonce:        m.EditionNonce,
		Collection:          m.Collection,
		Uses:                m.Uses,
	}
	if len(m.Creators) > 0 {
		creators := append([]Creator(nil), m.Creators...)
		l.Data.Creators = &creators
	}
	if m.TokenStandard != nil {
		ts := uint8(*m.TokenStandard)
		l.TokenStandard = &ts
	}

	data, err := bin.MarshalBorsh(&l)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if len(data) > MetadataSize {
		return nil, fmt.Errorf("metadata record is %d bytes (max %d)", len(data), MetadataSize)
	}
	out := make([]byte, MetadataSize)
	copy(out, data)
	return out, nil
}

// UnmarshalBinary decodes a metadata record and strips NUL padding.
func (m *Metadata) UnmarshalBinary(data []byte) error {
	if len(data) == 0 || data[0] != MetadataKeyV1 {
		return fmt.Errorf("metadata data: missing V1 key")
	}
	var l metadataLayout
	if err := bin.UnmarshalBorsh(&l, data); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	*m = Metadata{
		UpdateAuthority:      l.UpdateAuthority,
		Mint:                 l.Mint,
		Name:                 unpuff(l.Data.Name),
		Symbol:               unpuff(l.Data.Symbol),
		URI:                  unpuff(l.Data.URI),
		SellerFeeBasisPoints: l.Data.SellerFeeBasisPoints,
		PrimarySaleHappened:  l.PrimarySaleHappened,
		IsMutable:            l.IsMutable,
		EditionNonce:         l.EditionNonce,
		Collection:           l.Collection,
		Uses:                 l.Uses,
	}
	if l.Data.Creators != nil {
		m.Creators = *l.Data.Creators
	}
	if l.TokenStandard != nil {
		ts := TokenStandard(*l.TokenStandard)
		m.TokenStandard = &ts
	}
	return nil
}

func puff(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat("\x00", n-len(s))
}

func unpuff(s string) string {
	return strings.TrimRight(s, "\x00")
}

// Errors of the metadata registry. Their codes are local to that module and
// surface to issuance callers wrapped in ExternalRejection.
var (
	ErrMetadataAlreadyInitialized = &ProgramError{3, "AlreadyInitialized", "Already initialized"}
	ErrMetadataInvalidKey         = &ProgramError{5, "InvalidMetadataKey", "Metadata's key must match seed of ['metadata', program id, mint] provided"}
	ErrUpdateAuthorityNotSigner   = &ProgramError{8, "UpdateAuthorityIsNotSigner", "Update Authority needs to be signer to update metadata"}
	ErrNotMintAuthority           = &ProgramError{9, "NotMintAuthority", "You must be the mint authority and signer on this transaction"}
	ErrInvalidMintAuthority       = &ProgramError{10, "InvalidMintAuthority", "Mint authority provided does not match the authority on the mint"}
	ErrNameTooLong                = &ProgramError{11, "NameTooLong", "Name too long"}
	ErrSymbolTooLong              = &ProgramError{12, "SymbolTooLong", "Symbol too long"}
	ErrURITooLong                 = &ProgramError{13, "UriTooLong", "URI too long"}
	ErrMintMismatch               = &ProgramError{15, "MintMismatch", "Mint given does not match mint on Metadata"}
	ErrCreatorsTooLong            = &ProgramError{35, "CreatorsTooLong", "Creators list too long"}
	ErrCreatorsMustBeAtLeastOne   = &ProgramError{36, "CreatorsMustBeAtleastOne", "Creators must be at least one if set"}
	ErrShareTotalMustBe100        = &ProgramError{41, "ShareTotalMustBe100", "Share total must equal 100 for creator array"}
	ErrDuplicateCreatorAddress    = &ProgramError{42, "DuplicateCreatorAddress", "No duplicate creator addresses"}
	ErrCannotVerifyAnotherCreator = &ProgramError{43, "CannotVerifyAnotherCreator", "You cannot unilaterally verify another creator, they must sign"}
	ErrInvalidBasisPoints         = &ProgramError{54, "InvalidBasisPoints", "Basis points cannot be more than 10000"}
	ErrCollectionVerified         = &ProgramError{63, "CollectionCannotBeVerifiedInThisInstruction", "Collection cannot be verified in this instruction"}
)
