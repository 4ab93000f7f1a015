package clickhouse

import (
	"context"
	"fmt"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using ClickHouse.
// MergeTree does not enforce uniqueness, so Insert checks for the signature
// before writing.
type TransactionStore struct {
	conn *Conn
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(conn *Conn) *TransactionStore {
	return &TransactionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `signature, slot, block_time, err, logs, raw, fee, accounts`

// Insert adds a transaction. Returns ErrDuplicateKey if signature exists.
func (s *TransactionStore) Insert(ctx context.Context, r *domain.TransactionRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, r.Signature)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO transactions (`+transactionColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	logs := r.Logs
	if logs == nil {
		logs = []string{}
	}
	accounts := r.Accounts
	if accounts == nil {
		accounts = []string{}
	}
	err = batch.Append(
		r.Signature, r.Slot, r.BlockTime, r.Err,
		logs, string(r.Raw), r.Fee, accounts,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions FINAL
		WHERE signature = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query by signature: %w", err)
	}
	defer rows.Close()

	records, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetByAccount retrieves transactions referencing address, newest first.
func (s *TransactionStore) GetByAccount(ctx context.Context, address string, limit int) ([]*domain.TransactionRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions FINAL
		WHERE has(accounts, ?)
		ORDER BY slot DESC, signature DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, address, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *TransactionStore) exists(ctx context.Context, signature string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE signature = ?`, signature).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTransactions(rows chRows) ([]*domain.TransactionRecord, error) {
	var records []*domain.TransactionRecord

	for rows.Next() {
		var r domain.TransactionRecord
		var raw string
		if err := rows.Scan(&r.Signature, &r.Slot, &r.BlockTime, &r.Err, &r.Logs, &raw, &r.Fee, &r.Accounts); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		r.Raw = []byte(raw)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}
