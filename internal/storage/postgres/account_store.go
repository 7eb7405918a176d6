package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// GetAccount retrieves an account by address. Returns ErrNotFound if not exists.
func (s *AccountStore) GetAccount(ctx context.Context, addr solana.PublicKey) (*domain.Account, error) {
	query := `
		SELECT lamports, owner, executable, rent_epoch, data
		FROM accounts
		WHERE address = $1
	`

	var (
		a        domain.Account
		lamports int64
		owner    string
		epoch    int64
	)
	err := s.pool.QueryRow(ctx, query, addr.String()).Scan(&lamports, &owner, &a.Executable, &epoch, &a.Data)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "get account")
	}

	a.Owner, err = solana.ParsePublicKey(owner)
	if err != nil {
		return nil, errors.Wrapf(err, "parse owner of %s", addr)
	}
	a.Lamports = uint64(lamports)
	a.RentEpoch = uint64(epoch)
	return &a, nil
}

// ApplyChanges upserts and deletes accounts and advances the slot in one transaction.
func (s *AccountStore) ApplyChanges(ctx context.Context, slot uint64, changes []domain.AccountChange) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO accounts (address, lamports, owner, executable, rent_epoch, data, slot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO UPDATE SET
			lamports = EXCLUDED.lamports,
			owner = EXCLUDED.owner,
			executable = EXCLUDED.executable,
			rent_epoch = EXCLUDED.rent_epoch,
			data = EXCLUDED.data,
			slot = EXCLUDED.slot,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, c := range changes {
		if c.Account == nil {
			batch.Queue(`DELETE FROM accounts WHERE address = $1`, c.Address.String())
			continue
		}
		data := c.Account.Data
		if data == nil {
			data = []byte{}
		}
		batch.Queue(upsert,
			c.Address.String(),
			int64(c.Account.Lamports),
			c.Account.Owner.String(),
			c.Account.Executable,
			int64(c.Account.RentEpoch),
			data,
			int64(slot),
		)
	}
	batch.Queue(`
		INSERT INTO ledger_state (id, last_slot) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_slot = GREATEST(ledger_state.last_slot, EXCLUDED.last_slot)
	`, int64(slot))

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "apply account changes")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// LastSlot returns the last committed slot, 0 for an empty ledger.
func (s *AccountStore) LastSlot(ctx context.Context) (uint64, error) {
	var slot int64
	err := s.pool.QueryRow(ctx, `SELECT last_slot FROM ledger_state WHERE id = 1`).Scan(&slot)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get last slot")
	}
	return uint64(slot), nil
}

// Count returns the number of stored accounts.
func (s *AccountStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count accounts")
	}
	return int(n), nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *AccountStore) Close() error {
	return nil
}
