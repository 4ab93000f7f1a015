package idl

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Record sizes of the token primitive.
const (
	MintSize         = 82
	TokenAccountSize = 165
)

// Token primitive instruction tags.
const (
	TokenIxTransfer           uint8 = 3
	TokenIxMintTo             uint8 = 7
	TokenIxMintToChecked      uint8 = 14
	TokenIxInitializeAccount3 uint8 = 18
	TokenIxInitializeMint2    uint8 = 20
)

// TokenAccountState mirrors the holder account state byte.
type TokenAccountState uint8

const (
	TokenAccountUninitialized TokenAccountState = iota
	TokenAccountInitialized
	TokenAccountFrozen
)

// Mint is the decoded Mint Record.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// mintLayout is the 82-byte on-ledger encoding; options use a 4-byte tag.
type mintLayout struct {
	MintAuthorityOption   uint32
	MintAuthority         solana.PublicKey
	Supply                uint64
	Decimals              uint8
	IsInitialized         bool
	FreezeAuthorityOption uint32
	FreezeAuthority       solana.PublicKey
}

// MarshalBinary encodes the mint into exactly MintSize bytes.
func (m *Mint) MarshalBinary() ([]byte, error) {
	l := mintLayout{
		Supply:        m.Supply,
		Decimals:      m.Decimals,
		IsInitialized: m.IsInitialized,
	}
	if m.MintAuthority != nil {
		l.MintAuthorityOption = 1
		l.MintAuthority = *m.MintAuthority
	}
	if m.FreezeAuthority != nil {
		l.FreezeAuthorityOption = 1
		l.FreezeAuthority = *m.FreezeAuthority
	}
	return encodeFixed(&l, MintSize)
}

// UnmarshalBinary decodes a mint record.
func (m *Mint) UnmarshalBinary(data []byte) error {
	if len(data) != MintSize {
		return fmt.Errorf("mint data: expected %d bytes, got %d", MintSize, len(data))
	}
	var l mintLayout
	if err := bin.UnmarshalBin(&l, data); err != nil {
		return fmt.Errorf("decode mint: %w", err)
	}
	*m = Mint{
		Supply:        l.Supply,
		Decimals:      l.Decimals,
		IsInitialized: l.IsInitialized,
	}
	if l.MintAuthorityOption != 0 {
		auth := l.MintAuthority
		m.MintAuthority = &auth
	}
	if l.FreezeAuthorityOption != 0 {
		auth := l.FreezeAuthority
		m.FreezeAuthority = &auth
	}
	return nil
}

// TokenAccount is the decoded Holder Asset Account.
type TokenAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           TokenAccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

type tokenAccountLayout struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       uint32
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       uint32
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption uint32
	CloseAuthority       solana.PublicKey
}

// MarshalBinary encodes the holder account into exactly TokenAccountSize bytes.
func (a *TokenAccount) MarshalBinary() ([]byte, error) {
	l := tokenAccountLayout{
		Mint:            a.Mint,
		Owner:           a.Owner,
		Amount:          a.Amount,
		State:           uint8(a.State),
		DelegatedAmount: a.DelegatedAmount,
	}
	if a.Delegate != nil {
		l.DelegateOption = 1
		l.Delegate = *a.Delegate
	}
	if a.IsNative != nil {
		l.IsNativeOption = 1
		l.IsNative = *a.IsNative
	}
	if a.CloseAuthority != nil {
		l.CloseAuthorityOption = 1
		l.CloseAuthority = *a.CloseAuthority
	}
	return encodeFixed(&l, TokenAccountSize)
}

// UnmarshalBinary decodes a holder account record.
func (a *TokenAccount) UnmarshalBinary(data []byte) error {
	if len(data) != TokenAccountSize {
		return fmt.Errorf("token account data: expected %d bytes, got %d", TokenAccountSize, len(data))
	}
	var l tokenAccountLayout
	if err := bin.UnmarshalBin(&l, data); err != nil {
		return fmt.Errorf("decode token account: %w", err)
	}
	*a = TokenAccount{
		Mint:            l.Mint,
		Owner:           l.Owner,
		Amount:          l.Amount,
		State:           TokenAccountState(l.State),
		DelegatedAmount: l.DelegatedAmount,
	}
	if l.DelegateOption != 0 {
		d := l.Delegate
		a.Delegate = &d
	}
	if l.IsNativeOption != 0 {
		n := l.IsNative
		a.IsNative = &n
	}
	if l.CloseAuthorityOption != 0 {
		c := l.CloseAuthority
		a.CloseAuthority = &c
	}
	return nil
}

// InitializeMint2Args carries the mint parameters.
type InitializeMint2Args struct {
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

// MarshalBinary packs the instruction; the freeze authority option uses a 1-byte tag.
func (a InitializeMint2Args) MarshalBinary() []byte {
	data := make([]byte, 0, 67)
	data = append(data, TokenIxInitializeMint2, a.Decimals)
	data = append(data, a.MintAuthority[:]...)
	if a.FreezeAuthority != nil {
		data = append(data, 1)
		data = append(data, a.FreezeAuthority[:]...)
	} else {
		data = append(data, 0)
	}
	return data
}

// UnmarshalBinary decodes the payload that follows the instruction tag.
func (a *InitializeMint2Args) UnmarshalBinary(payload []byte) error {
	if len(payload) < 34 {
		return ErrInvalidInstruction
	}
	a.Decimals = payload[0]
	copy(a.MintAuthority[:], payload[1:33])
	a.FreezeAuthority = nil
	switch payload[33] {
	case 0:
	case 1:
		if len(payload) < 66 {
			return ErrInvalidInstruction
		}
		var freeze solana.PublicKey
		copy(freeze[:], payload[34:66])
		a.FreezeAuthority = &freeze
	default:
		return ErrInvalidInstruction
	}
	return nil
}

// amountArgs is the layout of MintTo / Transfer payloads.
type amountArgs struct {
	Amount uint64
}

// checkedAmountArgs is the layout of MintToChecked payloads.
type checkedAmountArgs struct {
	Amount   uint64
	Decimals uint8
}

// DecodeAmount decodes a u64 amount payload.
func DecodeAmount(payload []byte) (uint64, error) {
	var a amountArgs
	if len(payload) < 8 {
		return 0, ErrInvalidInstruction
	}
	if err := bin.UnmarshalBin(&a, payload); err != nil {
		return 0, ErrInvalidInstruction
	}
	return a.Amount, nil
}

// DecodeCheckedAmount decodes a u64 amount followed by expected decimals.
func DecodeCheckedAmount(payload []byte) (uint64, uint8, error) {
	var a checkedAmountArgs
	if len(payload) < 9 {
		return 0, 0, ErrInvalidInstruction
	}
	if err := bin.UnmarshalBin(&a, payload); err != nil {
		return 0, 0, ErrInvalidInstruction
	}
	return a.Amount, a.Decimals, nil
}

// NewInitializeMint2Instruction initializes an allocated mint account.
func NewInitializeMint2Instruction(mint solana.PublicKey, args InitializeMint2Args) solana.Instruction {
	return solana.NewInstruction(SPLTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
	}, args.MarshalBinary())
}

// NewInitializeAccount3Instruction binds an allocated holder account to mint and owner.
func NewInitializeAccount3Instruction(account, mint, owner solana.PublicKey) solana.Instruction {
	data := append([]byte{TokenIxInitializeAccount3}, owner[:]...)
	return solana.NewInstruction(SPLTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(account).WRITE(),
		solana.Meta(mint),
	}, data)
}

// NewMintToInstruction mints amount units of mint into destination.
func NewMintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(SPLTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, encodeTagged(TokenIxMintTo, &amountArgs{Amount: amount}))
}

// NewMintToCheckedInstruction is MintTo with a decimals assertion.
func NewMintToCheckedInstruction(mint, destination, authority solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	return solana.NewInstruction(SPLTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(mint).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, encodeTagged(TokenIxMintToChecked, &checkedAmountArgs{Amount: amount, Decimals: decimals}))
}

// NewTransferInstruction moves amount units between two holder accounts of the same mint.
func NewTransferInstruction(source, destination, owner solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(SPLTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(source).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(owner).SIGNER(),
	}, encodeTagged(TokenIxTransfer, &amountArgs{Amount: amount}))
}

// encodeFixed encodes v with the little-endian bin codec and checks its size.
func encodeFixed(v interface{}, size int) ([]byte, error) {
	data, err := bin.MarshalBin(v)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("layout size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

// encodeTagged prefixes a 1-byte tag to a bin-encoded payload.
func encodeTagged(tag uint8, v interface{}) []byte {
	payload, err := bin.MarshalBin(v)
	if err != nil {
		// fixed-size numeric payloads cannot fail to encode
		panic(err)
	}
	return append([]byte{tag}, payload...)
}
