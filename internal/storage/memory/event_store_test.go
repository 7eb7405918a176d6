package memory

import (
	"context"
	"errors"
	"testing"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/storage"
)

func TestEventStore_InsertAndGetByMint(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	events := []*domain.NftEvent{
		{EventID: "e3", Signature: "sig2", Slot: 5, Index: 0, Kind: domain.EventTransferred, Mint: "mint1"},
		{EventID: "e1", Signature: "sig1", Slot: 4, Index: 1, Kind: domain.EventMinted, Mint: "mint1"},
		{EventID: "e0", Signature: "sig1", Slot: 4, Index: 0, Kind: domain.EventMintInitialized, Mint: "mint1"},
		{EventID: "e9", Signature: "sig9", Slot: 1, Index: 0, Kind: domain.EventMinted, Mint: "mint2"},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	want := []string{"e0", "e1", "e3"}
	for i, e := range got {
		if e.EventID != want[i] {
			t.Errorf("event %d: got %s, want %s", i, e.EventID, want[i])
		}
	}

	bySig, _ := store.GetBySignature(ctx, "sig1")
	if len(bySig) != 2 {
		t.Errorf("expected 2 events for sig1, got %d", len(bySig))
	}
}

func TestEventStore_DuplicateRejectsWholeBatch(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.NftEvent{{EventID: "a", Mint: "m"}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.NftEvent{{EventID: "b", Mint: "m"}, {EventID: "a", Mint: "m"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByMint(ctx, "m")
	if len(got) != 1 {
		t.Errorf("expected batch to be rejected entirely, got %d events", len(got))
	}
}

func TestEventStore_InvalidInput(t *testing.T) {
	err := NewEventStore().InsertBulk(context.Background(), []*domain.NftEvent{{Mint: "m"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
