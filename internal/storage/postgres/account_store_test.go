package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
)

func TestAccountStore_ApplyAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()

	mint := solana.PublicKey{7}
	acct := &domain.Account{Lamports: 1461600, Owner: solana.TokenProgramID, Data: make([]byte, 82)}
	acct.Data[45] = 1

	require.NoError(t, store.ApplyChanges(ctx, 12, []domain.AccountChange{{Address: mint, Account: acct}}))

	got, err := store.GetAccount(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, acct.Lamports, got.Lamports)
	assert.Equal(t, solana.TokenProgramID, got.Owner)
	assert.Equal(t, acct.Data, got.Data)

	slot, err := store.LastSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), slot)

	// Upsert overwrites
	acct.Lamports = 5
	require.NoError(t, store.ApplyChanges(ctx, 13, []domain.AccountChange{{Address: mint, Account: acct}}))
	got, err = store.GetAccount(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Lamports)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccountStore_DeleteAndNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()

	slot, err := store.LastSlot(ctx)
	require.NoError(t, err)
	assert.Zero(t, slot)

	addr := solana.PublicKey{8}
	_, err = store.GetAccount(ctx, addr)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.ApplyChanges(ctx, 1, []domain.AccountChange{{Address: addr, Account: &domain.Account{Lamports: 1, Owner: solana.SystemProgramID}}}))
	require.NoError(t, store.ApplyChanges(ctx, 2, []domain.AccountChange{{Address: addr}}))

	_, err = store.GetAccount(ctx, addr)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
