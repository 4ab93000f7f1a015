package memory

import (
	"context"
	"sync"

	"solana-issuance-lab/internal/storage"
)

// ChainStateStore is an in-memory implementation of storage.ChainStateStore.
type ChainStateStore struct {
	mu    sync.RWMutex
	state *storage.ChainState
}

// NewChainStateStore creates a new in-memory chain state store.
func NewChainStateStore() *ChainStateStore {
	return &ChainStateStore{}
}

// GetChainState returns the last saved position.
func (s *ChainStateStore) GetChainState(_ context.Context) (*storage.ChainState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, storage.ErrNotFound
	}

	stateCopy := *s.state
	return &stateCopy, nil
}

// SetChainState saves the position.
func (s *ChainStateStore) SetChainState(_ context.Context, state *storage.ChainState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stateCopy := *state
	s.state = &stateCopy
	return nil
}

var _ storage.ChainStateStore = (*ChainStateStore)(nil)
