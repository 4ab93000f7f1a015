package memory

import (
	"context"
	"sync"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu          sync.RWMutex
	bySignature map[string]*domain.TransactionRecord
	order       []*domain.TransactionRecord // insertion order
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		bySignature: make(map[string]*domain.TransactionRecord),
	}
}

// Insert adds a transaction. Returns ErrDuplicateKey if signature exists.
func (s *TransactionStore) Insert(_ context.Context, r *domain.TransactionRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySignature[r.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := copyRecord(r)
	s.bySignature[r.Signature] = recCopy
	s.order = append(s.order, recCopy)
	return nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(_ context.Context, signature string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.bySignature[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// GetByAccount retrieves transactions referencing address, newest first.
func (s *TransactionStore) GetByAccount(_ context.Context, address string, limit int) ([]*domain.TransactionRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for i := len(s.order) - 1; i >= 0 && len(result) < limit; i-- {
		r := s.order[i]
		for _, a := range r.Accounts {
			if a == address {
				result = append(result, copyRecord(r))
				break
			}
		}
	}
	return result, nil
}

func copyRecord(r *domain.TransactionRecord) *domain.TransactionRecord {
	c := *r
	c.Logs = append([]string(nil), r.Logs...)
	c.Raw = append([]byte(nil), r.Raw...)
	c.Accounts = append([]string(nil), r.Accounts...)
	return &c
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
