package postgres

import (
	"context"

	"solana-issuance-lab/internal/storage"
)

// ChainStateStore is a PostgreSQL implementation of storage.ChainStateStore.
// The chain_state table holds a single row with id = 1.
type ChainStateStore struct {
	pool *Pool
}

// NewChainStateStore creates a new PostgreSQL chain state store.
func NewChainStateStore(pool *Pool) *ChainStateStore {
	return &ChainStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ChainStateStore = (*ChainStateStore)(nil)

// GetChainState returns the last saved position.
func (s *ChainStateStore) GetChainState(ctx context.Context) (*storage.ChainState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT slot, blockhash
		FROM chain_state
		WHERE id = 1
	`)

	var slot int64
	var state storage.ChainState
	if err := row.Scan(&slot, &state.Blockhash); err != nil {
		if noRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	state.Slot = uint64(slot)

	return &state, nil
}

// SetChainState saves the position.
func (s *ChainStateStore) SetChainState(ctx context.Context, state *storage.ChainState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO chain_state (id, slot, blockhash, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    blockhash = EXCLUDED.blockhash,
		    updated_at = NOW()
	`, int64(state.Slot), state.Blockhash)

	return err
}
