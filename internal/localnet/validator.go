// Package localnet serves the ledger runtime over the Solana JSON-RPC and
// websocket protocols, so standard clients can drive the issuance modules
// against a single local node.
package localnet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger"
	"solana-issuance-lab/internal/observability"
	"solana-issuance-lab/internal/storage"
)

// DefaultAirdropCap bounds a single airdrop.
const DefaultAirdropCap = 100 * solana.LAMPORTS_PER_SOL

// Faucet errors.
var (
	ErrAirdropCap     = errors.New("airdrop request exceeds cap")
	ErrAirdropZero    = errors.New("airdrop amount must be positive")
	ErrFaucetDepleted = errors.New("faucet balance too low")
)

// Validator is a single local node: every recorded transaction is final in
// the slot it lands in.
type Validator struct {
	rt      *ledger.Runtime
	txs     storage.TransactionStore
	faucet  solana.PrivateKey
	cap     uint64
	metrics *observability.Metrics
	log     logrus.FieldLogger
	hub     *hub
	now     func() time.Time
}

// Option configures Validator.
type Option func(*Validator)

// WithFaucet sets the faucet keypair. A fresh one is generated otherwise.
func WithFaucet(key solana.PrivateKey) Option {
	return func(v *Validator) {
		v.faucet = key
	}
}

// WithAirdropCap bounds a single airdrop.
func WithAirdropCap(lamports uint64) Option {
	return func(v *Validator) {
		v.cap = lamports
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(v *Validator) {
		v.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(v *Validator) {
		v.log = l
	}
}

// NewValidator wraps rt and tops the faucet up to faucetLamports.
func NewValidator(ctx context.Context, rt *ledger.Runtime, txs storage.TransactionStore, faucetLamports uint64, opts ...Option) (*Validator, error) {
	v := &Validator{
		rt:  rt,
		txs: txs,
		cap: DefaultAirdropCap,
		log: logrus.StandardLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.faucet == nil {
		v.faucet = solana.NewWallet().PrivateKey
	}
	if v.metrics == nil {
		v.metrics = observability.NewMetrics("")
	}
	v.hub = newHub(v.metrics)

	balance, err := v.Balance(ctx, v.faucet.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("read faucet balance: %w", err)
	}
	if balance < faucetLamports {
		if err := rt.Credit(ctx, v.faucet.PublicKey(), faucetLamports-balance); err != nil {
			return nil, fmt.Errorf("fund faucet: %w", err)
		}
	}
	v.metrics.CurrentSlot.Set(float64(rt.Slot()))

	v.log.WithFields(logrus.Fields{
		"faucet": v.faucet.PublicKey().String(),
		"slot":   rt.Slot(),
	}).Info("validator ready")
	return v, nil
}

// Runtime returns the underlying runtime.
func (v *Validator) Runtime() *ledger.Runtime {
	return v.rt
}

// Metrics returns the metrics sink.
func (v *Validator) Metrics() *observability.Metrics {
	return v.metrics
}

// Faucet returns the faucet address.
func (v *Validator) Faucet() solana.PublicKey {
	return v.faucet.PublicKey()
}

// Balance returns the lamports held by key; zero for missing accounts.
func (v *Validator) Balance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	acct, err := v.rt.GetAccount(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

// Submit executes tx and notifies signature subscribers once it is recorded.
func (v *Validator) Submit(ctx context.Context, tx *solana.Transaction, opts ledger.ExecuteOptions) (*ledger.Receipt, error) {
	start := time.Now()
	receipt, err := v.rt.Execute(ctx, tx, opts)
	if err != nil {
		return nil, err
	}

	status := observability.StatusCommitted
	switch {
	case receipt.Err == nil:
	case receipt.Recorded:
		status = observability.StatusFailed
	default:
		status = observability.StatusRejected
	}
	v.metrics.RecordTransaction(status, ErrorKind(receipt.Err), time.Since(start).Seconds())

	log := v.log.WithFields(logrus.Fields{
		"signature": receipt.Signature.String(),
		"status":    status,
	})
	if receipt.Err != nil {
		log = log.WithError(receipt.Err)
	}
	log.Info("transaction processed")

	if receipt.Recorded {
		v.metrics.RecordCommit(receipt.Slot, v.now().Unix())
		v.hub.publish(receipt.Signature.String(), receipt.Slot, ledger.WireError(receipt.Err))
	}
	return receipt, nil
}

// Airdrop transfers lamports from the faucet to key.
func (v *Validator) Airdrop(ctx context.Context, key solana.PublicKey, lamports uint64) (solana.Signature, error) {
	if lamports == 0 {
		return solana.Signature{}, ErrAirdropZero
	}
	if lamports > v.cap {
		return solana.Signature{}, fmt.Errorf("%w: %d > %d", ErrAirdropCap, lamports, v.cap)
	}

	hash, _ := v.rt.LatestBlockhash()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{idl.NewSystemTransferInstruction(v.faucet.PublicKey(), key, lamports)},
		hash,
		solana.TransactionPayer(v.faucet.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build airdrop: %w", err)
	}
	if _, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(v.faucet.PublicKey()) {
			return &v.faucet
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign airdrop: %w", err)
	}

	receipt, err := v.Submit(ctx, tx, ledger.ExecuteOptions{})
	if err != nil {
		return solana.Signature{}, err
	}
	if receipt.Err != nil {
		if errors.Is(receipt.Err, idl.ErrInsufficientFunds) {
			return solana.Signature{}, fmt.Errorf("%w: %v", ErrFaucetDepleted, receipt.Err)
		}
		return solana.Signature{}, fmt.Errorf("airdrop: %w", receipt.Err)
	}
	v.metrics.RecordAirdrop(lamports)
	return receipt.Signature, nil
}

// Transaction returns the recorded transaction, or nil if unknown.
func (v *Validator) Transaction(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	rec, err := v.txs.GetBySignature(ctx, signature)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// ErrorKind names the variant of a transaction error for metrics and logs;
// empty for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var pe *idl.ProgramError
	if errors.As(err, &pe) {
		return pe.Name
	}
	var re *ledger.RuntimeError
	if errors.As(err, &re) {
		return re.Name
	}
	return "Unknown"
}
