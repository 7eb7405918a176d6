package clickhouse

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/storage"
)

func TestEventStore_InsertAndGetByMint(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEventStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op
	require.NoError(t, store.InsertBulk(ctx, nil))

	events := []*domain.NftEvent{
		{EventID: uuid.NewString(), Signature: "sig-2", Slot: 11, Index: 0, Kind: domain.EventTransferred, Mint: "mint-1", From: "a", To: "b", Timestamp: 2000},
		{EventID: uuid.NewString(), Signature: "sig-1", Slot: 10, Index: 1, Kind: domain.EventMinted, Mint: "mint-1", Name: "Lab", Symbol: "LAB", URI: "https://x", Timestamp: 1000},
		{EventID: uuid.NewString(), Signature: "sig-1", Slot: 10, Index: 0, Kind: domain.EventMintInitialized, Mint: "mint-1", Authority: "owner", Timestamp: 1000},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.EventMintInitialized, got[0].Kind)
	assert.Equal(t, domain.EventMinted, got[1].Kind)
	assert.Equal(t, "LAB", got[1].Symbol)
	assert.Equal(t, domain.EventTransferred, got[2].Kind)
	assert.Equal(t, "b", got[2].To)

	bySig, err := store.GetBySignature(ctx, "sig-1")
	require.NoError(t, err)
	assert.Len(t, bySig, 2)

	none, err := store.GetByMint(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventStore_Duplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEventStore(conn)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, store.InsertBulk(ctx, []*domain.NftEvent{{EventID: id, Mint: "m", Kind: domain.EventMinted}}))

	err := store.InsertBulk(ctx, []*domain.NftEvent{
		{EventID: uuid.NewString(), Mint: "m", Kind: domain.EventTransferred},
		{EventID: id, Mint: "m", Kind: domain.EventMinted},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByMint(ctx, "m")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Intra-batch duplicates
	dup := uuid.NewString()
	err = store.InsertBulk(ctx, []*domain.NftEvent{{EventID: dup, Mint: "m"}, {EventID: dup, Mint: "m"}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
