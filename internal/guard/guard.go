// Package guard is the account lifecycle guard: a declarative checklist of
// per-account constraints that a module runs, in declared order, before its
// business logic.
package guard

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/authority"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
	"solana-issuance-lab/internal/pda"
)

// Bumps holds the bump found for each seed-bound role.
type Bumps map[string]uint8

// Env is what a constraint sees for the account it checks.
type Env struct {
	Ctx     *ledger.InvokeContext
	Role    string
	Account *ledger.AccountInfo
	Bumps   Bumps

	// proof is set by Seeds and lets Init create the account at its
	// derived address.
	proof *authority.Proof
}

// Fail builds a constraint violation for the current account.
func (e *Env) Fail(kind *idl.ProgramError, constraint, detail string) error {
	return idl.Violation(kind, e.Role, e.Account.Key, constraint, detail)
}

// Proof returns the signer proof recorded by Seeds, if any.
func (e *Env) Proof() (authority.Proof, bool) {
	if e.proof == nil {
		return authority.Proof{}, false
	}
	return *e.proof, true
}

// Constraint checks one account.
type Constraint func(e *Env) error

type entry struct {
	role        string
	account     *ledger.AccountInfo
	constraints []Constraint
}

// Checklist is an ordered list of account roles and their constraints.
type Checklist struct {
	ctx     *ledger.InvokeContext
	entries []entry
}

// New starts a checklist for the running invocation.
func New(ctx *ledger.InvokeContext) *Checklist {
	return &Checklist{ctx: ctx}
}

// Account adds a role. Constraints run in the order given.
func (c *Checklist) Account(role string, account *ledger.AccountInfo, constraints ...Constraint) *Checklist {
	c.entries = append(c.entries, entry{role: role, account: account, constraints: constraints})
	return c
}

// Run checks every role in declared order and stops at the first failure.
func (c *Checklist) Run() (Bumps, error) {
	bumps := make(Bumps)
	for _, en := range c.entries {
		env := &Env{
			Ctx:     c.ctx,
			Role:    en.role,
			Account: en.account,
			Bumps:   bumps,
		}
		for _, check := range en.constraints {
			if err := check(env); err != nil {
				return nil, err
			}
		}
	}
	return bumps, nil
}

// Bind maps positional instruction accounts onto role names. Extra accounts
// are ignored; missing ones fail.
func Bind(accounts []*ledger.AccountInfo, roles ...string) (map[string]*ledger.AccountInfo, error) {
	if len(accounts) < len(roles) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrMissingAccount, roles[len(accounts)])
	}
	out := make(map[string]*ledger.AccountInfo, len(roles))
	for i, role := range roles {
		out[role] = accounts[i]
	}
	return out, nil
}

// Signer requires a signature, from the transaction or a verified proof.
func Signer() Constraint {
	return func(e *Env) error {
		if !e.Account.IsSigner {
			return e.Fail(idl.ErrUnauthorized, "signer", "missing required signature")
		}
		return nil
	}
}

// Mut requires an existing, writable account.
func Mut() Constraint {
	return func(e *Env) error {
		if e.Account.IsEmpty() {
			return e.Fail(idl.ErrNotInitialized, "mut", "account does not exist")
		}
		if !e.Account.IsWritable {
			return e.Fail(idl.ErrAccountMismatch, "mut", "account is not writable")
		}
		return nil
	}
}

// Writable requires a writable account and nothing else.
func Writable() Constraint {
	return func(e *Env) error {
		if !e.Account.IsWritable {
			return e.Fail(idl.ErrAccountMismatch, "mut", "account is not writable")
		}
		return nil
	}
}

// Unchecked exempts the account from validation. reason documents why the
// caller accepts that trust boundary.
func Unchecked(reason string) Constraint {
	return func(*Env) error {
		return nil
	}
}

// Seeds requires the address to equal the derivation of seeds under the
// running module and records the bump and signer proof for the role.
func Seeds(seeds ...[]byte) Constraint {
	return func(e *Env) error {
		addr, bump, err := pda.FindProgramAddress(seeds, e.Ctx.ProgramID())
		if err != nil {
			return e.Fail(idl.ErrSeedMismatch, "seeds", err.Error())
		}
		if !addr.Equals(e.Account.Key) {
			return e.Fail(idl.ErrSeedMismatch, "seeds", fmt.Sprintf("expected %s", addr))
		}
		e.Bumps[e.Role] = bump
		proof := authority.NewProof(bump, seeds...)
		e.proof = &proof
		return nil
	}
}

// Address requires a specific key.
func Address(key solana.PublicKey) Constraint {
	return func(e *Env) error {
		if !e.Account.Key.Equals(key) {
			return e.Fail(idl.ErrAccountMismatch, "address", fmt.Sprintf("expected %s", key))
		}
		return nil
	}
}

// Program requires the account to be the deployed module id.
func Program(id solana.PublicKey) Constraint {
	return func(e *Env) error {
		if !e.Account.Key.Equals(id) || !e.Account.Executable() {
			return e.Fail(idl.ErrAccountMismatch, "program", fmt.Sprintf("expected program %s", id))
		}
		return nil
	}
}

// Owner requires an existing account owned by program.
func Owner(program solana.PublicKey) Constraint {
	return func(e *Env) error {
		if e.Account.IsEmpty() {
			return e.Fail(idl.ErrNotInitialized, "owner", "account does not exist")
		}
		if !e.Account.IsOwnedBy(program) {
			return e.Fail(idl.ErrAccountMismatch, "owner", fmt.Sprintf("owned by %s, expected %s", e.Account.Owner(), program))
		}
		return nil
	}
}

// Discriminator requires the account data to start with d.
func Discriminator(d idl.Discriminator) Constraint {
	return func(e *Env) error {
		got, _, ok := idl.SplitDiscriminator(e.Account.Data())
		if !ok || got != d {
			return e.Fail(idl.ErrAccountMismatch, "discriminator", "account discriminator mismatch")
		}
		return nil
	}
}
