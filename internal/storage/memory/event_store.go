package memory

import (
	"context"
	"sort"
	"sync"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data []*domain.NftEvent
	keys map[string]bool // event ids
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		keys: make(map[string]bool),
	}
}

// InsertBulk adds events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.NftEvent) error {
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]bool, len(events))
	for _, e := range events {
		if s.keys[e.EventID] || batch[e.EventID] {
			return storage.ErrDuplicateKey
		}
		batch[e.EventID] = true
	}

	for _, e := range events {
		eventCopy := *e
		s.data = append(s.data, &eventCopy)
		s.keys[e.EventID] = true
	}
	return nil
}

// GetByMint retrieves all events of a mint, ordered by (slot, index) ASC.
func (s *EventStore) GetByMint(_ context.Context, mint string) ([]*domain.NftEvent, error) {
	return s.filter(func(e *domain.NftEvent) bool { return e.Mint == mint }), nil
}

// GetBySignature retrieves the events of one transaction.
func (s *EventStore) GetBySignature(_ context.Context, signature string) ([]*domain.NftEvent, error) {
	return s.filter(func(e *domain.NftEvent) bool { return e.Signature == signature }), nil
}

func (s *EventStore) filter(keep func(*domain.NftEvent) bool) []*domain.NftEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.NftEvent, 0)
	for _, e := range s.data {
		if keep(e) {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].Index < result[j].Index
	})
	return result
}

var _ storage.EventStore = (*EventStore)(nil)
