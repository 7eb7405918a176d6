package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/solana"
)

// InstrumentAccounts records the latency and errors of every call on s
// under the given database label. ErrNotFound is not counted as an error.
func InstrumentAccounts(s AccountStore, database string, m *observability.Metrics) AccountStore {
	return &instrumentedAccounts{next: s, obs: observer{db: database, m: m}}
}

// InstrumentEvents is InstrumentAccounts for an EventStore.
func InstrumentEvents(s EventStore, database string, m *observability.Metrics) EventStore {
	return &instrumentedEvents{next: s, obs: observer{db: database, m: m}}
}

type observer struct {
	db string
	m  *observability.Metrics
}

func (o observer) done(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	o.m.RecordDBQuery(o.db, op, time.Since(start).Seconds(), err)
}

type instrumentedAccounts struct {
	next AccountStore
	obs  observer
}

func (s *instrumentedAccounts) GetAccount(ctx context.Context, addr solana.PublicKey) (*domain.Account, error) {
	start := time.Now()
	acct, err := s.next.GetAccount(ctx, addr)
	s.obs.done("get_account", start, err)
	return acct, err
}

func (s *instrumentedAccounts) ApplyChanges(ctx context.Context, slot uint64, changes []domain.AccountChange) error {
	start := time.Now()
	err := s.next.ApplyChanges(ctx, slot, changes)
	s.obs.done("apply_changes", start, err)
	return err
}

func (s *instrumentedAccounts) LastSlot(ctx context.Context) (uint64, error) {
	start := time.Now()
	slot, err := s.next.LastSlot(ctx)
	s.obs.done("last_slot", start, err)
	return slot, err
}

func (s *instrumentedAccounts) Count(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.next.Count(ctx)
	s.obs.done("count", start, err)
	return n, err
}

func (s *instrumentedAccounts) Close() error { return s.next.Close() }

type instrumentedEvents struct {
	next EventStore
	obs  observer
}

func (s *instrumentedEvents) InsertBulk(ctx context.Context, events []*domain.NftEvent) error {
	start := time.Now()
	err := s.next.InsertBulk(ctx, events)
	s.obs.done("insert_events", start, err)
	return err
}

func (s *instrumentedEvents) GetByMint(ctx context.Context, mint string) ([]*domain.NftEvent, error) {
	start := time.Now()
	events, err := s.next.GetByMint(ctx, mint)
	s.obs.done("events_by_mint", start, err)
	return events, err
}

func (s *instrumentedEvents) GetBySignature(ctx context.Context, signature string) ([]*domain.NftEvent, error) {
	start := time.Now()
	events, err := s.next.GetBySignature(ctx, signature)
	s.obs.done("events_by_signature", start, err)
	return events, err
}
