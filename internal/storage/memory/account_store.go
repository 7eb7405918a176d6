package memory

import (
	"context"
	"sync"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*domain.Account
	slot     uint64
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[solana.PublicKey]*domain.Account),
	}
}

// GetAccount returns a copy of the account. Returns ErrNotFound if absent.
func (s *AccountStore) GetAccount(_ context.Context, addr solana.PublicKey) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, exists := s.accounts[addr]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return acct.Clone(), nil
}

// ApplyChanges writes all changes under one lock.
func (s *AccountStore) ApplyChanges(_ context.Context, slot uint64, changes []domain.AccountChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range changes {
		if c.Account == nil {
			delete(s.accounts, c.Address)
			continue
		}
		s.accounts[c.Address] = c.Account.Clone()
	}
	if slot > s.slot {
		s.slot = slot
	}
	return nil
}

// LastSlot returns the latest committed slot.
func (s *AccountStore) LastSlot(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slot, nil
}

// Count returns the number of accounts.
func (s *AccountStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

func (s *AccountStore) Close() error { return nil }

var _ storage.AccountStore = (*AccountStore)(nil)
