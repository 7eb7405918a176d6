package pebble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
)

func TestAccountStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)

	a := solana.PublicKey{1}
	b := solana.PublicKey{2}
	require.NoError(t, store.ApplyChanges(ctx, 7, []domain.AccountChange{
		{Address: a, Account: &domain.Account{Lamports: 10, Owner: solana.TokenProgramID, Data: []byte{1, 2, 3}}},
		{Address: b, Account: &domain.Account{Lamports: 5, Owner: solana.SystemProgramID}},
	}))
	require.NoError(t, store.Close())

	// Reopen to check durability.
	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetAccount(ctx, a)
	require.NoError(t, err)
	require.Equal(t, uint64(10), got.Lamports)
	require.Equal(t, solana.TokenProgramID, got.Owner)
	require.Equal(t, []byte{1, 2, 3}, got.Data)

	slot, err := store.LastSlot(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), slot)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAccountStore_Delete(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	a := solana.PublicKey{3}
	require.NoError(t, store.ApplyChanges(ctx, 1, []domain.AccountChange{{Address: a, Account: &domain.Account{Lamports: 1}}}))
	require.NoError(t, store.ApplyChanges(ctx, 2, []domain.AccountChange{{Address: a}}))

	_, err = store.GetAccount(ctx, a)
	require.ErrorIs(t, err, storage.ErrNotFound)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
