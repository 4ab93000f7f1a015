// Package ledger is the simulated ledger runtime the modules run on. It
// executes signed transactions atomically against an account store, routes
// cross-module invocations and enforces the ownership rules between them.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

// MaxRecentBlockhashes is how many blockhashes a transaction may reference.
const MaxRecentBlockhashes = 150

const genesisSeed = "solana-issuance-lab genesis"

// Runtime executes transactions. One transaction runs at a time.
type Runtime struct {
	mu       sync.Mutex
	accounts storage.AccountStore
	txs      storage.TransactionStore
	chain    storage.ChainStateStore
	programs map[solana.PublicKey]Program
	log      logrus.FieldLogger
	now      func() time.Time

	slot      uint64
	blockhash solana.Hash
	recent    []solana.Hash
}

// Option configures Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runtime) {
		r.log = l
	}
}

// WithChainState persists the slot and blockhash sequence.
func WithChainState(s storage.ChainStateStore) Option {
	return func(r *Runtime) {
		r.chain = s
	}
}

// WithClock sets the block time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		r.now = now
	}
}

// WithPrograms deploys modules.
func WithPrograms(programs ...Program) Option {
	return func(r *Runtime) {
		for _, p := range programs {
			r.programs[p.ID()] = p
		}
	}
}

// New creates a runtime over the given stores. When a chain state store is
// configured the runtime resumes from the saved position.
func New(ctx context.Context, accounts storage.AccountStore, txs storage.TransactionStore, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		accounts:  accounts,
		txs:       txs,
		programs:  make(map[solana.PublicKey]Program),
		log:       logrus.StandardLogger(),
		now:       time.Now,
		blockhash: solana.Hash(sha256.Sum256([]byte(genesisSeed))),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.chain != nil {
		state, err := r.chain.GetChainState(ctx)
		switch {
		case err == nil:
			hash, err := solana.HashFromBase58(state.Blockhash)
			if err != nil {
				return nil, fmt.Errorf("parse saved blockhash: %w", err)
			}
			r.slot = state.Slot
			r.blockhash = hash
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load chain state: %w", err)
		}
	}
	r.recent = []solana.Hash{r.blockhash}

	return r, nil
}

// Deploy registers a module.
func (r *Runtime) Deploy(p Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[p.ID()] = p
}

// IsDeployed reports whether a module is deployed at id.
func (r *Runtime) IsDeployed(id solana.PublicKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.programs[id]
	return ok
}

// Slot returns the last committed slot.
func (r *Runtime) Slot() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot
}

// LatestBlockhash returns the newest blockhash and the last slot at which a
// transaction referencing it is accepted.
func (r *Runtime) LatestBlockhash() (solana.Hash, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockhash, r.slot + MaxRecentBlockhashes
}

// GetAccount returns the account at key. Returns storage.ErrNotFound for
// accounts that do not exist.
func (r *Runtime) GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, _, err := r.loadAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	if acct.Lamports == 0 && len(acct.Data) == 0 && !acct.Executable {
		return nil, storage.ErrNotFound
	}
	return acct, nil
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Key     solana.PublicKey
	Account *Account
}

// ProgramAccounts returns the accounts owned by program, ordered by address.
func (r *Runtime) ProgramAccounts(ctx context.Context, program solana.PublicKey) ([]KeyedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.accounts.GetByOwner(ctx, program.String())
	if err != nil {
		return nil, err
	}
	out := make([]KeyedAccount, 0, len(rows))
	for _, row := range rows {
		key, err := solana.PublicKeyFromBase58(row.Address)
		if err != nil {
			return nil, fmt.Errorf("stored address %q: %w", row.Address, err)
		}
		acct, err := accountFromDomain(row)
		if err != nil {
			return nil, fmt.Errorf("stored account %s: %w", row.Address, err)
		}
		out = append(out, KeyedAccount{Key: key, Account: acct})
	}
	return out, nil
}

// Credit adds lamports to key outside of any transaction. It backs genesis
// funding of the faucet.
func (r *Runtime) Credit(ctx context.Context, key solana.PublicKey, lamports uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, synthetic, err := r.loadAccount(ctx, key)
	if err != nil {
		return err
	}
	if synthetic {
		return fmt.Errorf("credit %s: not a user account", key)
	}
	if acct.Lamports+lamports < acct.Lamports {
		return fmt.Errorf("credit %s: balance overflow", key)
	}
	acct.Lamports += lamports
	return r.accounts.Apply(ctx, []*domain.Account{acct.toDomain(key, r.slot)})
}

// loadAccount reads key from the store, serving deployed modules and the
// rent sysvar as synthetic read-only accounts. A missing account comes back
// empty and owned by the system module.
func (r *Runtime) loadAccount(ctx context.Context, key solana.PublicKey) (*Account, bool, error) {
	if _, ok := r.programs[key]; ok {
		return &Account{Lamports: 1, Owner: NativeLoaderID, Executable: true}, true, nil
	}
	if key.Equals(solana.SysVarRentPubkey) {
		return &Account{Lamports: 1, Owner: SysvarOwnerID, Data: rentSysvarData()}, true, nil
	}

	d, err := r.accounts.Get(ctx, key.String())
	if errors.Is(err, storage.ErrNotFound) {
		return &Account{Owner: solana.SystemProgramID}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load account %s: %w", key, err)
	}
	acct, err := accountFromDomain(d)
	if err != nil {
		return nil, false, fmt.Errorf("decode account %s: %w", key, err)
	}
	return acct, false, nil
}

// Receipt is the outcome of Execute.
type Receipt struct {
	Signature solana.Signature
	Slot      uint64
	Logs      []string
	Err       error
	Recorded  bool
}

// ExecuteOptions tunes Execute.
type ExecuteOptions struct {
	// RecordFailed lands failed transactions in the log with their error,
	// as a node does when preflight is skipped.
	RecordFailed bool
}

// Execute runs tx. Transaction failures are reported in Receipt.Err and
// leave every account untouched; the returned error is reserved for store
// failures.
func (r *Runtime) Execute(ctx context.Context, tx *solana.Transaction, opts ExecuteOptions) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	receipt := &Receipt{}
	if len(tx.Signatures) > 0 {
		receipt.Signature = tx.Signatures[0]
	}
	log := r.log.WithField("signature", receipt.Signature.String())

	if err := sanitize(tx); err != nil {
		receipt.Err = err
		return receipt, nil
	}

	_, err := r.txs.GetBySignature(ctx, receipt.Signature.String())
	switch {
	case err == nil:
		receipt.Err = ErrAlreadyProcessed
		return receipt, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("lookup signature: %w", err)
	}

	if !r.isRecentBlockhash(tx.Message.RecentBlockhash) {
		receipt.Err = ErrBlockhashNotFound
		return receipt, nil
	}
	if err := verifySignatures(tx); err != nil {
		receipt.Err = err
		return receipt, nil
	}

	slot := r.slot + 1
	env := &txEnv{
		ctx:  ctx,
		rt:   r,
		ws:   newWorkingSet(),
		logs: &logCollector{},
		log:  log,
		slot: slot,
	}

	msg := tx.Message
	keys := msg.AccountKeys
	for _, key := range keys {
		if err := env.ws.load(ctx, r, key); err != nil {
			return nil, err
		}
	}
	if env.ws.accounts[keys[0]].Lamports == 0 {
		receipt.Err = ErrAccountNotFound
		return receipt, nil
	}

	numSigners := int(msg.Header.NumRequiredSignatures)
	for i, ci := range msg.Instructions {
		infos := make([]*AccountInfo, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			key := keys[idx]
			infos = append(infos, &AccountInfo{
				Key:        key,
				IsSigner:   int(idx) < numSigners,
				IsWritable: isWritable(msg.Header, len(keys), int(idx)),
				account:    env.ws.accounts[key],
			})
		}
		if err := env.call(keys[ci.ProgramIDIndex], infos, ci.Data, 1); err != nil {
			receipt.Err = &InstructionError{Index: i, Err: err}
			break
		}
	}
	receipt.Logs = env.logs.lines

	if receipt.Err == nil {
		if err := r.accounts.Apply(ctx, env.ws.changes(slot)); err != nil {
			return nil, fmt.Errorf("commit accounts: %w", err)
		}
	}

	if receipt.Err == nil || opts.RecordFailed {
		if err := r.record(ctx, tx, receipt, slot); err != nil {
			return nil, err
		}
		if err := r.advance(ctx, slot); err != nil {
			return nil, err
		}
		receipt.Slot = slot
		receipt.Recorded = true
	}

	if receipt.Err != nil {
		log.WithError(receipt.Err).Debug("transaction failed")
	} else {
		log.WithField("slot", slot).Debug("transaction committed")
	}
	return receipt, nil
}

func (r *Runtime) record(ctx context.Context, tx *solana.Transaction, receipt *Receipt, slot uint64) error {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	rec := &domain.TransactionRecord{
		Signature: receipt.Signature.String(),
		Slot:      slot,
		BlockTime: r.now().Unix(),
		Logs:      receipt.Logs,
		Raw:       raw,
	}
	for _, key := range tx.Message.AccountKeys {
		rec.Accounts = append(rec.Accounts, key.String())
	}
	if receipt.Err != nil {
		encoded, err := json.Marshal(WireError(receipt.Err))
		if err != nil {
			return fmt.Errorf("encode transaction error: %w", err)
		}
		rec.Err = string(encoded)
	}

	if err := r.txs.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// advance moves to slot and derives its blockhash from the previous one.
func (r *Runtime) advance(ctx context.Context, slot uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], slot)
	h := sha256.New()
	h.Write(r.blockhash[:])
	h.Write(buf[:])

	var next solana.Hash
	copy(next[:], h.Sum(nil))

	r.slot = slot
	r.blockhash = next
	r.recent = append(r.recent, next)
	if len(r.recent) > MaxRecentBlockhashes {
		r.recent = r.recent[len(r.recent)-MaxRecentBlockhashes:]
	}

	if r.chain != nil {
		err := r.chain.SetChainState(ctx, &storage.ChainState{Slot: slot, Blockhash: next.String()})
		if err != nil {
			return fmt.Errorf("save chain state: %w", err)
		}
	}
	return nil
}

func (r *Runtime) isRecentBlockhash(h solana.Hash) bool {
	for _, recent := range r.recent {
		if recent == h {
			return true
		}
	}
	return false
}

// txEnv is the state shared by every invocation of one transaction.
type txEnv struct {
	ctx  context.Context
	rt   *Runtime
	ws   *workingSet
	logs *logCollector
	log  logrus.FieldLogger
	slot uint64
}

// call runs one module invocation and checks what it changed.
func (e *txEnv) call(programID solana.PublicKey, infos []*AccountInfo, data []byte, depth int) error {
	prog, ok := e.rt.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}

	e.logs.invoke(programID, depth)
	ictx := &InvokeContext{
		env:       e,
		programID: programID,
		depth:     depth,
		accounts:  infos,
		pre:       snapshot(infos),
	}

	err := prog.Process(ictx, infos, data)
	if err == nil {
		err = verify(programID, infos, ictx.pre)
	}
	if err != nil {
		if isModuleError(err) {
			e.logs.programLog("Error: " + err.Error())
		}
		e.logs.failed(programID, err)
		return err
	}

	e.logs.success(programID)
	return nil
}

func isModuleError(err error) bool {
	var re *RuntimeError
	return !errors.As(err, &re)
}

// workingSet holds the transaction's copy of every referenced account.
type workingSet struct {
	accounts  map[solana.PublicKey]*Account
	original  map[solana.PublicKey]*Account
	synthetic map[solana.PublicKey]bool
	order     []solana.PublicKey
}

func newWorkingSet() *workingSet {
	return &workingSet{
		accounts:  make(map[solana.PublicKey]*Account),
		original:  make(map[solana.PublicKey]*Account),
		synthetic: make(map[solana.PublicKey]bool),
	}
}

func (w *workingSet) load(ctx context.Context, r *Runtime, key solana.PublicKey) error {
	if _, ok := w.accounts[key]; ok {
		return nil
	}
	acct, synthetic, err := r.loadAccount(ctx, key)
	if err != nil {
		return err
	}
	w.accounts[key] = acct
	w.original[key] = acct.clone()
	w.synthetic[key] = synthetic
	w.order = append(w.order, key)
	return nil
}

// changes returns the accounts that differ from their loaded state.
func (w *workingSet) changes(slot uint64) []*domain.Account {
	var out []*domain.Account
	for _, key := range w.order {
		if w.synthetic[key] {
			continue
		}
		cur := w.accounts[key]
		if cur.equal(w.original[key]) {
			continue
		}
		out = append(out, cur.toDomain(key, slot))
	}
	return out
}

func isWritable(h solana.MessageHeader, numKeys, idx int) bool {
	numSigners := int(h.NumRequiredSignatures)
	if idx < numSigners {
		return idx < numSigners-int(h.NumReadonlySignedAccounts)
	}
	return idx < numKeys-int(h.NumReadonlyUnsignedAccounts)
}

func sanitize(tx *solana.Transaction) error {
	msg := tx.Message
	if len(msg.AddressTableLookups) > 0 {
		return ErrUnsupportedVersion
	}

	numKeys := len(msg.AccountKeys)
	numSigners := int(msg.Header.NumRequiredSignatures)
	if numSigners == 0 || len(tx.Signatures) != numSigners {
		return ErrSanitizeFailure
	}
	if int(msg.Header.NumReadonlySignedAccounts) >= numSigners ||
		numSigners+int(msg.Header.NumReadonlyUnsignedAccounts) > numKeys {
		return ErrSanitizeFailure
	}

	seen := make(map[solana.PublicKey]bool, numKeys)
	for _, key := range msg.AccountKeys {
		if seen[key] {
			return ErrSanitizeFailure
		}
		seen[key] = true
	}

	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= numKeys {
			return ErrSanitizeFailure
		}
		for _, idx := range ci.Accounts {
			if int(idx) >= numKeys {
				return ErrSanitizeFailure
			}
		}
	}
	return nil
}

func verifySignatures(tx *solana.Transaction) error {
	content, err := tx.Message.MarshalBinary()
	if err != nil {
		return ErrSanitizeFailure
	}
	for i, sig := range tx.Signatures {
		if !sig.Verify(tx.Message.AccountKeys[i], content) {
			return ErrSignatureFailure
		}
	}
	return nil
}
