package memory

import (
	"context"
	"sort"
	"sync"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account // keyed by address
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Get retrieves an account by address. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(_ context.Context, address string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.accounts[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return a.Clone(), nil
}

// Apply writes a batch of accounts atomically.
func (s *AccountStore) Apply(_ context.Context, accounts []*domain.Account) error {
	for _, a := range accounts {
		if a == nil || a.Address == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range accounts {
		if a.Lamports == 0 {
			delete(s.accounts, a.Address)
			continue
		}
		s.accounts[a.Address] = a.Clone()
	}
	return nil
}

// GetByOwner retrieves all accounts owned by owner, ordered by address ASC.
func (s *AccountStore) GetByOwner(_ context.Context, owner string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Account
	for _, a := range s.accounts {
		if a.Owner == owner {
			result = append(result, a.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result, nil
}

var _ storage.AccountStore = (*AccountStore)(nil)
