package solana

import "context"

// RPCClient defines the Solana JSON-RPC HTTP surface used by the issuer.
type RPCClient interface {
	// GetAccountInfo retrieves an account by public key. Returns nil if not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetBalance returns the lamport balance of pubkey.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetLatestBlockhash returns the blockhash new transactions should reference.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for size bytes.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)

	// RequestAirdrop asks the faucet for lamports and returns the signature.
	RequestAirdrop(ctx context.Context, pubkey string, lamports uint64) (string, error)

	// SendTransaction submits a wire-encoded transaction and returns its signature.
	SendTransaction(ctx context.Context, raw []byte, opts *SendOpts) (string, error)

	// GetSignatureStatuses returns one status per signature, nil for unknown ones.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetTransaction retrieves a transaction by signature. Returns nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	Fee         uint64
	LogMessages []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys     []string
	RecentBlockhash string
}
