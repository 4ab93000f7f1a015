package idl

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// System instruction indexes (u32 little-endian on the wire).
const (
	SystemIxCreateAccount uint32 = 0
	SystemIxAssign        uint32 = 1
	SystemIxTransfer      uint32 = 2
	SystemIxAllocate      uint32 = 8
)

// CreateAccountArgs allocates space bytes owned by Owner, funded with Lamports.
type CreateAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type createAccountLayout struct {
	Index    uint32
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type transferLayout struct {
	Index    uint32
	Lamports uint64
}

type assignLayout struct {
	Index uint32
	Owner solana.PublicKey
}

type allocateLayout struct {
	Index uint32
	Space uint64
}

// SystemInstruction is a decoded system instruction.
type SystemInstruction struct {
	Index         uint32
	CreateAccount *CreateAccountArgs
	Lamports      uint64           // Transfer
	Owner         solana.PublicKey // Assign
	Space         uint64           // Allocate
}

// DecodeSystemInstruction parses system instruction data.
func DecodeSystemInstruction(data []byte) (*SystemInstruction, error) {
	if len(data) < 4 {
		return nil, ErrInvalidInstruction
	}
	dec := bin.NewBinDecoder(data)
	index, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, ErrInvalidInstruction
	}

	switch index {
	case SystemIxCreateAccount:
		var l createAccountLayout
		if err := bin.UnmarshalBin(&l, data); err != nil {
			return nil, ErrInvalidInstruction
		}
		return &SystemInstruction{
			Index:         index,
			CreateAccount: &CreateAccountArgs{Lamports: l.Lamports, Space: l.Space, Owner: l.Owner},
		}, nil
	case SystemIxTransfer:
		var l transferLayout
		if err := bin.UnmarshalBin(&l, data); err != nil {
			return nil, ErrInvalidInstruction
		}
		return &SystemInstruction{Index: index, Lamports: l.Lamports}, nil
	case SystemIxAssign:
		var l assignLayout
		if err := bin.UnmarshalBin(&l, data); err != nil {
			return nil, ErrInvalidInstruction
		}
		return &SystemInstruction{Index: index, Owner: l.Owner}, nil
	case SystemIxAllocate:
		var l allocateLayout
		if err := bin.UnmarshalBin(&l, data); err != nil {
			return nil, ErrInvalidInstruction
		}
		return &SystemInstruction{Index: index, Space: l.Space}, nil
	default:
		return nil, ErrInvalidInstruction
	}
}

// NewCreateAccountInstruction funds and allocates newAccount; both payer and newAccount sign.
func NewCreateAccountInstruction(payer, newAccount solana.PublicKey, args CreateAccountArgs) solana.Instruction {
	data, err := bin.MarshalBin(&createAccountLayout{
		Index:    SystemIxCreateAccount,
		Lamports: args.Lamports,
		Space:    args.Space,
		Owner:    args.Owner,
	})
	if err != nil {
		panic(err)
	}
	return solana.NewInstruction(SystemProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(newAccount).WRITE().SIGNER(),
	}, data)
}

// NewSystemTransferInstruction moves lamports between system-owned accounts.
func NewSystemTransferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	data, err := bin.MarshalBin(&transferLayout{Index: SystemIxTransfer, Lamports: lamports})
	if err != nil {
		panic(err)
	}
	return solana.NewInstruction(SystemProgramID, solana.AccountMetaSlice{
		solana.Meta(from).WRITE().SIGNER(),
		solana.Meta(to).WRITE(),
	}, data)
}

// NewAllocateInstruction sizes a data-free system account; account signs.
func NewAllocateInstruction(account solana.PublicKey, space uint64) solana.Instruction {
	data, err := bin.MarshalBin(&allocateLayout{Index: SystemIxAllocate, Space: space})
	if err != nil {
		panic(err)
	}
	return solana.NewInstruction(SystemProgramID, solana.AccountMetaSlice{
		solana.Meta(account).WRITE().SIGNER(),
	}, data)
}

// NewAssignInstruction hands a system account to owner; account signs.
func NewAssignInstruction(account, owner solana.PublicKey) solana.Instruction {
	data, err := bin.MarshalBin(&assignLayout{Index: SystemIxAssign, Owner: owner})
	if err != nil {
		panic(err)
	}
	return solana.NewInstruction(SystemProgramID, solana.AccountMetaSlice{
		solana.Meta(account).WRITE().SIGNER(),
	}, data)
}
