package clickhouse

import (
	"context"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const selectEvents = `
	SELECT event_id, signature, slot, idx, kind, mint, authority,
		from_account, to_account, name, symbol, uri, timestamp_ms
	FROM nft_events
`

// InsertBulk adds multiple events. Fails entire batch on duplicate event_id.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.NftEvent) error {
	if len(events) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	// MergeTree does not enforce uniqueness; check existing rows first.
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.EventID)
	}
	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM nft_events WHERE event_id IN ?`, ids).Scan(&count); err != nil {
		return errors.Wrap(err, "check existing events")
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO nft_events (
			event_id, signature, slot, idx, kind, mint, authority,
			from_account, to_account, name, symbol, uri, timestamp_ms
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID, e.Signature, e.Slot, uint32(e.Index), string(e.Kind), e.Mint, e.Authority,
			e.From, e.To, e.Name, e.Symbol, e.URI, e.Timestamp,
		)
		if err != nil {
			return errors.Wrap(err, "append to batch")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send batch")
	}
	return nil
}

// GetByMint retrieves all events of a mint, ordered by (slot, idx) ASC.
func (s *EventStore) GetByMint(ctx context.Context, mint string) ([]*domain.NftEvent, error) {
	rows, err := s.conn.Query(ctx, selectEvents+` WHERE mint = ? ORDER BY slot ASC, idx ASC`, mint)
	if err != nil {
		return nil, errors.Wrap(err, "query by mint")
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetBySignature retrieves the events of one transaction.
func (s *EventStore) GetBySignature(ctx context.Context, signature string) ([]*domain.NftEvent, error) {
	rows, err := s.conn.Query(ctx, selectEvents+` WHERE signature = ? ORDER BY slot ASC, idx ASC`, signature)
	if err != nil {
		return nil, errors.Wrap(err, "query by signature")
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows chRows) ([]*domain.NftEvent, error) {
	events := make([]*domain.NftEvent, 0)

	for rows.Next() {
		var e domain.NftEvent
		var idx uint32
		var kind string

		err := rows.Scan(
			&e.EventID, &e.Signature, &e.Slot, &idx, &kind, &e.Mint, &e.Authority,
			&e.From, &e.To, &e.Name, &e.Symbol, &e.URI, &e.Timestamp,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan nft event row")
		}

		e.Index = int(idx)
		e.Kind = domain.EventKind(kind)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate nft event rows")
	}

	return events, nil
}
