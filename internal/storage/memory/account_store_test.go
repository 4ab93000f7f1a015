package memory

import (
	"context"
	"errors"
	"testing"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

func TestAccountStore_ApplyAndGet(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	err := store.Apply(ctx, []*domain.Account{
		{Address: "acct1", Lamports: 100, Data: []byte{1, 2, 3}, Owner: "prog1"},
		{Address: "acct2", Lamports: 50, Owner: "prog2"},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	result, err := store.Get(ctx, "acct1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if result.Lamports != 100 || len(result.Data) != 3 {
		t.Errorf("account mismatch: got %+v", result)
	}

	// Mutating the returned copy must not leak into the store
	result.Data[0] = 9
	again, _ := store.Get(ctx, "acct1")
	if again.Data[0] != 1 {
		t.Errorf("store returned shared data slice")
	}
}

func TestAccountStore_ZeroLamportsDeletes(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	if err := store.Apply(ctx, []*domain.Account{{Address: "acct1", Lamports: 10}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := store.Apply(ctx, []*domain.Account{{Address: "acct1", Lamports: 0}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	_, err := store.Get(ctx, "acct1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountStore_InvalidBatchWritesNothing(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	err := store.Apply(ctx, []*domain.Account{
		{Address: "acct1", Lamports: 10},
		{Address: "", Lamports: 10},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if _, err := store.Get(ctx, "acct1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("partial batch was written")
	}
}

func TestAccountStore_GetByOwner(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	_ = store.Apply(ctx, []*domain.Account{
		{Address: "c", Lamports: 1, Owner: "prog"},
		{Address: "a", Lamports: 1, Owner: "prog"},
		{Address: "b", Lamports: 1, Owner: "other"},
	})

	result, err := store.GetByOwner(ctx, "prog")
	if err != nil {
		t.Fatalf("GetByOwner failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(result))
	}
	if result[0].Address != "a" || result[1].Address != "c" {
		t.Errorf("wrong order: %s, %s", result[0].Address, result[1].Address)
	}
}
