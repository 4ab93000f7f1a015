package idl

import "github.com/gagliardetto/solana-go"

// Associated holder account instruction tags. An empty payload means Create.
const (
	ATAIxCreate           uint8 = 0
	ATAIxCreateIdempotent uint8 = 1
)

// NewCreateAssociatedTokenAccountInstruction creates owner's holder account for mint.
// With idempotent set, an existing, correctly bound account is accepted.
func NewCreateAssociatedTokenAccountInstruction(payer, account, owner, mint solana.PublicKey, idempotent bool) solana.Instruction {
	tag := ATAIxCreate
	if idempotent {
		tag = ATAIxCreateIdempotent
	}
	return solana.NewInstruction(ATAProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(account).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(SystemProgramID),
		solana.Meta(SPLTokenProgramID),
	}, []byte{tag})
}
