package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Get retrieves an account by address. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(ctx context.Context, address string) (*domain.Account, error) {
	query := `
		SELECT address, lamports, data, owner, executable, slot
		FROM accounts
		WHERE address = $1
	`

	a, err := scanAccount(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if noRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// Apply writes a batch of accounts in one transaction. Zero-lamport
// accounts are deleted.
func (s *AccountStore) Apply(ctx context.Context, accounts []*domain.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	for _, a := range accounts {
		if a == nil || a.Address == "" || a.Lamports > math.MaxInt64 {
			return storage.ErrInvalidInput
		}
	}

	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, a := range accounts {
			if a.Lamports == 0 {
				if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE address = $1`, a.Address); err != nil {
					return fmt.Errorf("delete account %s: %w", a.Address, err)
				}
				continue
			}
			data := a.Data
			if data == nil {
				data = []byte{}
			}
			_, err := tx.Exec(ctx, upsertAccount,
				a.Address,
				int64(a.Lamports),
				data,
				a.Owner,
				a.Executable,
				int64(a.Slot),
			)
			if err != nil {
				return fmt.Errorf("upsert account %s: %w", a.Address, err)
			}
		}
		return nil
	})
}

const upsertAccount = `
	INSERT INTO accounts (address, lamports, data, owner, executable, slot, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (address) DO UPDATE
	SET lamports = EXCLUDED.lamports,
	    data = EXCLUDED.data,
	    owner = EXCLUDED.owner,
	    executable = EXCLUDED.executable,
	    slot = EXCLUDED.slot,
	    updated_at = NOW()
`

// GetByOwner retrieves all accounts owned by owner, ordered by address ASC.
func (s *AccountStore) GetByOwner(ctx context.Context, owner string) ([]*domain.Account, error) {
	query := `
		SELECT address, lamports, data, owner, executable, slot
		FROM accounts
		WHERE owner = $1
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("query accounts by owner: %w", err)
	}
	defer rows.Close()

	var result []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var lamports, slot int64
	if err := row.Scan(&a.Address, &lamports, &a.Data, &a.Owner, &a.Executable, &slot); err != nil {
		return nil, err
	}
	a.Lamports = uint64(lamports)
	a.Slot = uint64(slot)
	return &a, nil
}
