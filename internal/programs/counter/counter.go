// Package counter is the counter module: a single u64 record per account.
package counter

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/guard"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
)

var (
	initializeDisc = idl.InstructionDiscriminator(idl.IxInitialize)
	incrementDisc  = idl.InstructionDiscriminator(idl.IxIncrement)
)

// Program is the counter module.
type Program struct{}

// New returns the counter module.
func New() *Program {
	return &Program{}
}

// ID implements ledger.Program.
func (p *Program) ID() solana.PublicKey {
	return idl.CounterProgramID
}

// Process implements ledger.Program.
func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	disc, _, ok := idl.SplitDiscriminator(data)
	if !ok {
		return fmt.Errorf("%w: missing discriminator", idl.ErrInvalidInstruction)
	}
	switch disc {
	case initializeDisc:
		ctx.Log("Instruction: Initialize")
		return initialize(ctx, accounts)
	case incrementDisc:
		ctx.Log("Instruction: Increment")
		return increment(ctx, accounts)
	default:
		return fmt.Errorf("%w: unknown instruction", idl.ErrInvalidInstruction)
	}
}

func initialize(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	acc, err := guard.Bind(accounts, "counter", "signer", "system_program")
	if err != nil {
		return err
	}
	counter, signer := acc["counter"], acc["signer"]

	_, err = guard.New(ctx).
		Account("counter", counter, guard.Init(guard.InitSpec{
			Payer: signer,
			Space: idl.CounterSize,
			Owner: idl.CounterProgramID,
			Initialize: func(e *guard.Env) error {
				return store(e.Account, &idl.Counter{})
			},
		})).
		Account("signer", signer, guard.Mut(), guard.Signer()).
		Account("system_program", acc["system_program"], guard.Program(idl.SystemProgramID)).
		Run()
	if err != nil {
		return err
	}

	ctx.Log("Counter Account Created")
	ctx.Log("Count: %d", 0)
	return nil
}

func increment(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	acc, err := guard.Bind(accounts, "counter")
	if err != nil {
		return err
	}
	counter := acc["counter"]

	_, err = guard.New(ctx).
		Account("counter", counter,
			guard.Mut(),
			guard.Owner(idl.CounterProgramID),
			guard.Discriminator(idl.AccountDiscriminator(idl.CounterAccountName))).
		Run()
	if err != nil {
		return err
	}

	var c idl.Counter
	if err := c.UnmarshalBinary(counter.Data()); err != nil {
		return fmt.Errorf("%w: %v", idl.ErrAccountMismatch, err)
	}
	if c.Count == ^uint64(0) {
		return fmt.Errorf("%w: counter at %d", idl.ErrArithmeticOverflow, c.Count)
	}
	ctx.Log("Previous counter: %d", c.Count)
	c.Count++
	if err := store(counter, &c); err != nil {
		return err
	}
	ctx.Log("Counter incremented. Current count: %d", c.Count)
	return nil
}

func store(acc *ledger.AccountInfo, c *idl.Counter) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	acc.SetData(data)
	return nil
}
