package guard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/guard"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
	"solana-issuance-lab/internal/ledger/ledgertest"
	"solana-issuance-lab/internal/pda"
	"solana-issuance-lab/internal/programs"
)

var checkerID = solana.NewWallet().PublicKey()

// checker runs a checklist built by the test against its instruction accounts.
type checker struct {
	checks func(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) *guard.Checklist
	bumps  guard.Bumps
}

func (p *checker) ID() solana.PublicKey { return checkerID }

func (p *checker) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ []byte) error {
	bumps, err := p.checks(ctx, accounts).Run()
	p.bumps = bumps
	return err
}

func run(t *testing.T, p *checker, metas solana.AccountMetaSlice, signers ...solana.PrivateKey) (*ledgertest.Harness, solana.PrivateKey, *ledger.Receipt) {
	t.Helper()
	h := ledgertest.New(t, append(programs.Builtins(), p)...)
	payer := h.NewWallet(t)
	metas = append(solana.AccountMetaSlice{solana.Meta(payer.PublicKey()).WRITE().SIGNER()}, metas...)
	receipt := h.Send(t, payer, []solana.Instruction{solana.NewInstruction(checkerID, metas, nil)}, signers...)
	return h, payer, receipt
}

func TestMutRequiresExistingAccount(t *testing.T) {
	missing := solana.NewWallet().PublicKey()
	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).Account("target", a[1], guard.Mut())
	}}

	_, _, receipt := run(t, p, solana.AccountMetaSlice{solana.Meta(missing).WRITE()})
	ledgertest.RequireCode(t, receipt, idl.ErrNotInitialized)

	var ce *idl.ConstraintError
	require.True(t, errors.As(receipt.Err, &ce))
	assert.Equal(t, "target", ce.Role)
	assert.Equal(t, missing, ce.Address)
	assert.Contains(t, ce.Error(), "caused by account: target")
}

func TestChecksRunInDeclaredOrder(t *testing.T) {
	readonly := solana.NewWallet().PublicKey()
	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).
			Account("payer", a[0], guard.Signer(), guard.Mut()).
			Account("rent", a[1], guard.Address(idl.RentSysvarID)).
			Account("target", a[2], guard.Writable())
	}}

	_, _, receipt := run(t, p, solana.AccountMetaSlice{solana.Meta(idl.SystemProgramID), solana.Meta(readonly)})
	ledgertest.RequireCode(t, receipt, idl.ErrAccountMismatch)
	var ce *idl.ConstraintError
	require.True(t, errors.As(receipt.Err, &ce))
	assert.Equal(t, "rent", ce.Role)
}

func TestProgramConstraint(t *testing.T) {
	impostor := solana.NewWallet().PublicKey()
	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).
			Account("system_program", a[1], guard.Program(idl.SystemProgramID)).
			Account("token_program", a[2], guard.Program(idl.SPLTokenProgramID))
	}}

	_, _, receipt := run(t, p, solana.AccountMetaSlice{solana.Meta(idl.SystemProgramID), solana.Meta(impostor)})
	ledgertest.RequireCode(t, receipt, idl.ErrAccountMismatch)
}

func TestSeedsRecordsBump(t *testing.T) {
	seeds := [][]byte{[]byte("vault")}
	vault, vaultBump := mustFind(t, seeds)
	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).Account("vault", a[1], guard.Seeds(seeds...), guard.Unchecked("test"))
	}}
	_, _, receipt := run(t, p, solana.AccountMetaSlice{solana.Meta(vault)})
	require.NoError(t, receipt.Err)
	assert.Equal(t, vaultBump, p.bumps["vault"])

	// the issuance mint is not derived under the checker
	p = &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).Account("mint", a[1], guard.Seeds(idl.MintSeeds()...))
	}}
	mint, _, err := idl.FindMintAddress()
	require.NoError(t, err)
	_, _, receipt = run(t, p, solana.AccountMetaSlice{solana.Meta(mint)})
	ledgertest.RequireCode(t, receipt, idl.ErrSeedMismatch)
}

func TestInitSeededAccount(t *testing.T) {
	seeds := [][]byte{[]byte("vault")}
	vault, _ := mustFind(t, seeds)

	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).Account("vault", a[1],
			guard.Seeds(seeds...),
			guard.Init(guard.InitSpec{
				Payer: a[0],
				Space: 8,
				Owner: checkerID,
				Initialize: func(e *guard.Env) error {
					e.Account.SetData([]byte{1, 2, 3, 4, 5, 6, 7, 8})
					return nil
				},
			}))
	}}

	h, _, receipt := run(t, p, solana.AccountMetaSlice{solana.Meta(vault).WRITE(), solana.Meta(idl.SystemProgramID)})
	require.NoError(t, receipt.Err)
	acct := h.Account(t, vault)
	require.NotNil(t, acct)
	assert.Equal(t, checkerID, acct.Owner)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, acct.Data)
	assert.Equal(t, ledger.MinimumBalance(8), acct.Lamports)
}

func TestInitSeededAccountAlreadyFunded(t *testing.T) {
	seeds := [][]byte{[]byte("vault")}
	vault, _ := mustFind(t, seeds)

	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).Account("vault", a[1],
			guard.Seeds(seeds...),
			guard.Init(guard.InitSpec{Payer: a[0], Space: 8, Owner: checkerID}))
	}}

	h := ledgertest.New(t, append(programs.Builtins(), p)...)
	payer := h.NewWallet(t)
	h.Prefund(t, h.NewWallet(t), vault, 1)

	receipt := h.Send(t, payer, []solana.Instruction{solana.NewInstruction(checkerID, solana.AccountMetaSlice{
		solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
		solana.Meta(vault).WRITE(),
		solana.Meta(idl.SystemProgramID),
	}, nil)})
	require.NoError(t, receipt.Err)

	acct := h.Account(t, vault)
	assert.Equal(t, checkerID, acct.Owner)
	assert.Len(t, acct.Data, 8)
	assert.Equal(t, ledger.MinimumBalance(8), acct.Lamports)
	assert.Equal(t, ledgertest.DefaultFunding-ledger.MinimumBalance(8)+1, h.Account(t, payer.PublicKey()).Lamports)

	// once it holds data the address is in use
	receipt = h.Send(t, payer, []solana.Instruction{solana.NewInstruction(checkerID, solana.AccountMetaSlice{
		solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
		solana.Meta(vault).WRITE(),
		solana.Meta(idl.SystemProgramID),
	}, nil)})
	ledgertest.RequireCode(t, receipt, idl.ErrAlreadyInitialized)
}

func TestInitUnseededAccountMustSign(t *testing.T) {
	fresh := solana.NewWallet().PrivateKey
	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).Account("fresh", a[1], guard.Init(guard.InitSpec{Payer: a[0], Space: 8, Owner: checkerID}))
	}}

	_, _, receipt := run(t, p, solana.AccountMetaSlice{solana.Meta(fresh.PublicKey()).WRITE(), solana.Meta(idl.SystemProgramID)})
	ledgertest.RequireCode(t, receipt, idl.ErrUnauthorized)

	h, _, receipt := run(t, p, solana.AccountMetaSlice{solana.Meta(fresh.PublicKey()).WRITE().SIGNER(), solana.Meta(idl.SystemProgramID)}, fresh)
	require.NoError(t, receipt.Err)
	assert.Len(t, h.Account(t, fresh.PublicKey()).Data, 8)
}

func TestInitIfNeeded(t *testing.T) {
	existing := solana.NewWallet().PublicKey()
	spec := func(a []*ledger.AccountInfo) guard.InitSpec {
		return guard.InitSpec{
			Payer: a[0],
			Space: 4,
			Owner: checkerID,
			Validate: func(e *guard.Env) error {
				if e.Account.Data()[0] != 7 {
					return errors.New("wrong tag")
				}
				return nil
			},
		}
	}
	p := &checker{checks: func(ctx *ledger.InvokeContext, a []*ledger.AccountInfo) *guard.Checklist {
		return guard.New(ctx).Account("target", a[1], guard.InitIfNeeded(spec(a)))
	}}

	tests := []struct {
		name string
		acct domain.Account
		want *idl.ProgramError
	}{
		{"matching", domain.Account{Data: []byte{7, 0, 0, 0}, Owner: checkerID.String()}, nil},
		{"wrong owner", domain.Account{Data: []byte{7, 0, 0, 0}, Owner: solana.NewWallet().PublicKey().String()}, idl.ErrAccountMismatch},
		{"wrong size", domain.Account{Data: []byte{7, 0}, Owner: checkerID.String()}, idl.ErrAccountMismatch},
		{"wrong tag", domain.Account{Data: []byte{1, 0, 0, 0}, Owner: checkerID.String()}, idl.ErrAccountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ledgertest.New(t, append(programs.Builtins(), p)...)
			payer := h.NewWallet(t)
			acct := tt.acct
			acct.Address = existing.String()
			acct.Lamports = ledger.MinimumBalance(uint64(len(acct.Data)))
			require.NoError(t, h.Accounts.Apply(context.Background(), []*domain.Account{&acct}))

			receipt := h.Send(t, payer, []solana.Instruction{solana.NewInstruction(checkerID, solana.AccountMetaSlice{
				solana.Meta(payer.PublicKey()).WRITE().SIGNER(),
				solana.Meta(existing).WRITE(),
			}, nil)})
			if tt.want == nil {
				require.NoError(t, receipt.Err)
				return
			}
			ledgertest.RequireCode(t, receipt, tt.want)
		})
	}
}

func TestBindMissingAccount(t *testing.T) {
	_, err := guard.Bind(nil, "payer")
	assert.ErrorIs(t, err, ledger.ErrMissingAccount)

	acc, err := guard.Bind([]*ledger.AccountInfo{ledger.NewAccountInfo(checkerID, false, false, &ledger.Account{})}, "payer")
	require.NoError(t, err)
	assert.Equal(t, checkerID, acc["payer"].Key)
}

func mustFind(t *testing.T, seeds [][]byte) (solana.PublicKey, uint8) {
	t.Helper()
	addr, bump, err := pda.FindProgramAddress(seeds, checkerID)
	require.NoError(t, err)
	return addr, bump
}
