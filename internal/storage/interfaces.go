package storage

import (
	"context"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/solana"
)

// AccountReader reads committed ledger accounts.
type AccountReader interface {
	// GetAccount returns the account at addr. Returns ErrNotFound if absent.
	GetAccount(ctx context.Context, addr solana.PublicKey) (*domain.Account, error)
}

// AccountStore is the committed ledger: an address to account map updated
// one transaction at a time.
type AccountStore interface {
	AccountReader

	// ApplyChanges writes every change and records slot as the latest
	// committed slot, atomically: either all of it is visible or none.
	ApplyChanges(ctx context.Context, slot uint64, changes []domain.AccountChange) error

	// LastSlot returns the latest committed slot, 0 for an empty ledger.
	LastSlot(ctx context.Context) (uint64, error)

	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// EventStore provides access to nft_events storage.
type EventStore interface {
	// InsertBulk adds events atomically. Fails entire batch on any duplicate event_id.
	InsertBulk(ctx context.Context, events []*domain.NftEvent) error

	// GetByMint retrieves all events of a mint, ordered by (slot, index) ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.NftEvent, error)

	// GetBySignature retrieves the events of one transaction, ordered by index ASC.
	GetBySignature(ctx context.Context, signature string) ([]*domain.NftEvent, error)
}
