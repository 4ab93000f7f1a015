package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-issuance-lab/internal/authority"
	"solana-issuance-lab/internal/idl"
)

// MaxCPIDepth is the deepest nesting of cross-module invocations below a
// top-level instruction.
const MaxCPIDepth = 4

// Program is an on-ledger module.
type Program interface {
	// ID is the address the module is deployed at.
	ID() solana.PublicKey

	// Process executes one instruction against accounts. Returning an error
	// aborts the transaction.
	Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// InvokeContext is what a module sees while it runs: its own ID, logging,
// rent and the ability to invoke other modules.
type InvokeContext struct {
	env       *txEnv
	programID solana.PublicKey
	depth     int
	accounts  []*AccountInfo
	pre       map[solana.PublicKey]*Account
}

// Context returns the request context.
func (c *InvokeContext) Context() context.Context { return c.env.ctx }

// ProgramID returns the running module's ID.
func (c *InvokeContext) ProgramID() solana.PublicKey { return c.programID }

// Depth returns the invocation depth, 1 for top-level instructions.
func (c *InvokeContext) Depth() int { return c.depth }

// Slot returns the slot the transaction executes in.
func (c *InvokeContext) Slot() uint64 { return c.env.slot }

// Logger returns the runtime logger scoped to this invocation.
func (c *InvokeContext) Logger() logrus.FieldLogger {
	return c.env.log.WithFields(logrus.Fields{
		"program": c.programID.String(),
		"depth":   c.depth,
	})
}

// Log appends a "Program log:" line to the transaction logs.
func (c *InvokeContext) Log(format string, args ...interface{}) {
	c.env.logs.programLog(fmt.Sprintf(format, args...))
}

// MinimumBalance returns the rent-exempt minimum for size bytes.
func (c *InvokeContext) MinimumBalance(size uint64) uint64 {
	return MinimumBalance(size)
}

// Invoke runs ix as a cross-module call. Accounts are shared with the
// caller. A signer flag on ix is honoured only when the caller already holds
// that signature or one of proofs derives the key under the caller's ID.
func (c *InvokeContext) Invoke(ix solana.Instruction, proofs ...authority.Proof) error {
	if c.depth > MaxCPIDepth {
		return ErrCallDepth
	}

	derived, err := authority.Resolve(c.programID, proofs)
	if err != nil {
		return err
	}
	pdaSigners := authority.NewSignerSet(derived...)

	byKey := make(map[solana.PublicKey]*AccountInfo, len(c.accounts))
	for _, info := range c.accounts {
		if prev, ok := byKey[info.Key]; ok {
			// merge duplicate privileges
			prev.IsSigner = prev.IsSigner || info.IsSigner
			prev.IsWritable = prev.IsWritable || info.IsWritable
			continue
		}
		byKey[info.Key] = &AccountInfo{Key: info.Key, IsSigner: info.IsSigner, IsWritable: info.IsWritable, account: info.account}
	}

	metas := ix.Accounts()
	infos := make([]*AccountInfo, 0, len(metas))
	for _, m := range metas {
		caller, ok := byKey[m.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, m.PublicKey)
		}
		if m.IsSigner && !caller.IsSigner && !pdaSigners.Has(m.PublicKey) {
			return fmt.Errorf("%w: %s signer", ErrPrivilegeEscalation, m.PublicKey)
		}
		if m.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: %s writable", ErrPrivilegeEscalation, m.PublicKey)
		}
		infos = append(infos, &AccountInfo{
			Key:        m.PublicKey,
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
			account:    caller.account,
		})
	}

	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("instruction data: %w", err)
	}

	// the caller's own changes are checked before control passes on
	if err := verify(c.programID, c.accounts, c.pre); err != nil {
		return err
	}
	if err := c.env.call(ix.ProgramID(), infos, data, c.depth+1); err != nil {
		return err
	}
	c.pre = snapshot(c.accounts)
	return nil
}

// CreateAccount allocates space bytes at account for owner, funded by
// payer up to the rent-exempt minimum. An address that already holds
// lamports but no data is topped up, allocated and assigned in place.
// proofs sign for a derived account.
func (c *InvokeContext) CreateAccount(payer, account *AccountInfo, space uint64, owner solana.PublicKey, proofs ...authority.Proof) error {
	rent := c.MinimumBalance(space)
	if account.Lamports() == 0 {
		return c.Invoke(idl.NewCreateAccountInstruction(payer.Key, account.Key, idl.CreateAccountArgs{
			Lamports: rent,
			Space:    space,
			Owner:    owner,
		}), proofs...)
	}

	if have := account.Lamports(); have < rent {
		if err := c.Invoke(idl.NewSystemTransferInstruction(payer.Key, account.Key, rent-have)); err != nil {
			return err
		}
	}
	if err := c.Invoke(idl.NewAllocateInstruction(account.Key, space), proofs...); err != nil {
		return err
	}
	return c.Invoke(idl.NewAssignInstruction(account.Key, owner), proofs...)
}
