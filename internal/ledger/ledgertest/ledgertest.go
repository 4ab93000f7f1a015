// Package ledgertest runs a ledger runtime over in-memory stores for tests.
package ledgertest

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
	"solana-issuance-lab/internal/storage"
	"solana-issuance-lab/internal/storage/memory"
)

// DefaultFunding is what NewWallet credits.
const DefaultFunding = 10 * solana.LAMPORTS_PER_SOL

// Harness is a runtime plus the stores behind it.
type Harness struct {
	Runtime  *ledger.Runtime
	Accounts *memory.AccountStore
	Txs      *memory.TransactionStore
	Chain    *memory.ChainStateStore
	Logs     *test.Hook
}

// New starts a runtime with programs deployed.
func New(t testing.TB, programs ...ledger.Program) *Harness {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &Harness{
		Accounts: memory.NewAccountStore(),
		Txs:      memory.NewTransactionStore(),
		Chain:    memory.NewChainStateStore(),
		Logs:     hook,
	}
	rt, err := ledger.New(context.Background(), h.Accounts, h.Txs,
		ledger.WithLogger(logger),
		ledger.WithChainState(h.Chain),
		ledger.WithPrograms(programs...),
	)
	require.NoError(t, err)
	h.Runtime = rt
	return h
}

// NewWallet returns a fresh keypair funded with DefaultFunding.
func (h *Harness) NewWallet(t testing.TB) solana.PrivateKey {
	t.Helper()
	w := solana.NewWallet().PrivateKey
	require.NoError(t, h.Runtime.Credit(context.Background(), w.PublicKey(), DefaultFunding))
	return w
}

// BuildTx signs ixs with payer first and any extra signers.
func (h *Harness) BuildTx(t testing.TB, payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) *solana.Transaction {
	t.Helper()
	hash, _ := h.Runtime.LatestBlockhash()
	return Sign(t, hash, payer, ixs, signers...)
}

// Send builds, signs and executes ixs.
func (h *Harness) Send(t testing.TB, payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) *ledger.Receipt {
	t.Helper()
	tx := h.BuildTx(t, payer, ixs, signers...)
	receipt, err := h.Runtime.Execute(context.Background(), tx, ledger.ExecuteOptions{})
	require.NoError(t, err)
	return receipt
}

// Account returns the account at key, or nil if it does not exist.
func (h *Harness) Account(t testing.TB, key solana.PublicKey) *ledger.Account {
	t.Helper()
	acct, err := h.Runtime.GetAccount(context.Background(), key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return acct
}

// Mint decodes the mint record at key.
func (h *Harness) Mint(t testing.TB, key solana.PublicKey) *idl.Mint {
	t.Helper()
	acct := h.Account(t, key)
	require.NotNil(t, acct, "mint %s does not exist", key)
	var m idl.Mint
	require.NoError(t, m.UnmarshalBinary(acct.Data))
	return &m
}

// TokenAccount decodes the holder account at key.
func (h *Harness) TokenAccount(t testing.TB, key solana.PublicKey) *idl.TokenAccount {
	t.Helper()
	acct := h.Account(t, key)
	require.NotNil(t, acct, "holder account %s does not exist", key)
	var ta idl.TokenAccount
	require.NoError(t, ta.UnmarshalBinary(acct.Data))
	return &ta
}

// Metadata decodes the metadata record of mint.
func (h *Harness) Metadata(t testing.TB, mint solana.PublicKey) *idl.Metadata {
	t.Helper()
	addr, _, err := idl.FindMetadataAddress(mint)
	require.NoError(t, err)
	acct := h.Account(t, addr)
	require.NotNil(t, acct, "metadata of %s does not exist", mint)
	var md idl.Metadata
	require.NoError(t, md.UnmarshalBinary(acct.Data))
	return &md
}

// Sign builds a legacy transaction over ixs paid by payer.
func Sign(t testing.TB, blockhash solana.Hash, payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)

	keys := append([]solana.PrivateKey{payer}, signers...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(key) {
				return &keys[i]
			}
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

// RequireCode asserts that receipt failed with a module error of kind.
func RequireCode(t testing.TB, receipt *ledger.Receipt, kind *idl.ProgramError) {
	t.Helper()
	require.Error(t, receipt.Err, "transaction succeeded, expected %s", kind.Name)
	code, ok := idl.CodeOf(receipt.Err)
	require.True(t, ok, "no module error in %v", receipt.Err)
	require.Equal(t, kind.Code, code, "got %v", receipt.Err)
}

// CreateMint creates a mint at a fresh keypair through the system and token
// primitives. Both must be deployed.
func (h *Harness) CreateMint(t testing.TB, payer solana.PrivateKey, authority solana.PublicKey, decimals uint8) solana.PublicKey {
	t.Helper()
	mint := solana.NewWallet().PrivateKey
	receipt := h.Send(t, payer, []solana.Instruction{
		idl.NewCreateAccountInstruction(payer.PublicKey(), mint.PublicKey(), idl.CreateAccountArgs{
			Lamports: ledger.MinimumBalance(idl.MintSize),
			Space:    idl.MintSize,
			Owner:    idl.SPLTokenProgramID,
		}),
		idl.NewInitializeMint2Instruction(mint.PublicKey(), idl.InitializeMint2Args{
			Decimals:      decimals,
			MintAuthority: authority,
		}),
	}, mint)
	require.NoError(t, receipt.Err)
	return mint.PublicKey()
}

// CreateHolder creates a holder account of mint for owner at a fresh keypair.
func (h *Harness) CreateHolder(t testing.TB, payer solana.PrivateKey, mint, owner solana.PublicKey) solana.PublicKey {
	t.Helper()
	acct := solana.NewWallet().PrivateKey
	receipt := h.Send(t, payer, []solana.Instruction{
		idl.NewCreateAccountInstruction(payer.PublicKey(), acct.PublicKey(), idl.CreateAccountArgs{
			Lamports: ledger.MinimumBalance(idl.TokenAccountSize),
			Space:    idl.TokenAccountSize,
			Owner:    idl.SPLTokenProgramID,
		}),
		idl.NewInitializeAccount3Instruction(acct.PublicKey(), mint, owner),
	}, acct)
	require.NoError(t, receipt.Err)
	return acct.PublicKey()
}

// Prefund sends lamports from payer to key with a system transfer, leaving
// key data-free and owned by the system module.
func (h *Harness) Prefund(t testing.TB, payer solana.PrivateKey, key solana.PublicKey, lamports uint64) {
	t.Helper()
	receipt := h.Send(t, payer, []solana.Instruction{
		idl.NewSystemTransferInstruction(payer.PublicKey(), key, lamports),
	})
	require.NoError(t, receipt.Err)
}
