package idl

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Counter module instruction and account names.
const (
	IxInitialize = "initialize"
	IxIncrement  = "increment"

	CounterAccountName = "Counter"
	CounterSize        = 8 + 8
)

// Counter is the counter record.
type Counter struct {
	Count uint64
}

// MarshalBinary encodes discriminator || count.
func (c *Counter) MarshalBinary() ([]byte, error) {
	disc := AccountDiscriminator(CounterAccountName)
	data := make([]byte, CounterSize)
	copy(data, disc[:])
	binary.LittleEndian.PutUint64(data[8:], c.Count)
	return data, nil
}

// UnmarshalBinary decodes a counter record and checks its discriminator.
func (c *Counter) UnmarshalBinary(data []byte) error {
	disc, rest, ok := SplitDiscriminator(data)
	if !ok || disc != AccountDiscriminator(CounterAccountName) || len(rest) < 8 {
		return fmt.Errorf("counter data: bad discriminator or size %d", len(data))
	}
	c.Count = binary.LittleEndian.Uint64(rest)
	return nil
}

// NewInitializeCounterInstruction creates the counter account; both signer
// and counter sign.
func NewInitializeCounterInstruction(counter, signer solana.PublicKey) solana.Instruction {
	data, _ := EncodeInstruction(IxInitialize, nil)
	return solana.NewInstruction(CounterProgramID, solana.AccountMetaSlice{
		solana.Meta(counter).WRITE().SIGNER(),
		solana.Meta(signer).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
	}, data)
}

// NewIncrementInstruction adds one to the counter.
func NewIncrementInstruction(counter solana.PublicKey) solana.Instruction {
	data, _ := EncodeInstruction(IxIncrement, nil)
	return solana.NewInstruction(CounterProgramID, solana.AccountMetaSlice{
		solana.Meta(counter).WRITE(),
	}, data)
}
