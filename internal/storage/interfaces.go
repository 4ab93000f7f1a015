package storage

import (
	"context"

	"solana-issuance-lab/internal/domain"
)

// AccountStore provides access to ledger accounts.
type AccountStore interface {
	// Get retrieves an account by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.Account, error)

	// Apply writes a batch of accounts atomically. Accounts with zero lamports
	// are removed. Either every write lands or none does.
	Apply(ctx context.Context, accounts []*domain.Account) error

	// GetByOwner retrieves all accounts owned by a program, ordered by address ASC.
	GetByOwner(ctx context.Context, owner string) ([]*domain.Account, error)
}

// TransactionStore provides access to the append-only transaction log.
type TransactionStore interface {
	// Insert adds a transaction. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, r *domain.TransactionRecord) error

	// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TransactionRecord, error)

	// GetByAccount retrieves transactions referencing address, newest first, at most limit.
	GetByAccount(ctx context.Context, address string, limit int) ([]*domain.TransactionRecord, error)
}
