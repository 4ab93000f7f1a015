package memory

import (
	"context"
	"errors"
	"testing"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

func TestTransactionStore_InsertAndGet(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	rec := &domain.TransactionRecord{
		Signature: "sig1",
		Slot:      3,
		Logs:      []string{"Program log: hi"},
		Accounts:  []string{"payer", "mint"},
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if result.Slot != 3 || !result.Succeeded() {
		t.Errorf("record mismatch: got %+v", result)
	}

	if err := store.Insert(ctx, rec); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	if _, err := store.GetBySignature(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionStore_GetByAccount(t *testing.T) {
	store := NewTransactionStore()
	ctx := context.Background()

	for i, sig := range []string{"s1", "s2", "s3"} {
		accounts := []string{"payer"}
		if i != 1 {
			accounts = append(accounts, "mint")
		}
		if err := store.Insert(ctx, &domain.TransactionRecord{Signature: sig, Slot: uint64(i), Accounts: accounts}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByAccount(ctx, "mint", 10)
	if err != nil {
		t.Fatalf("GetByAccount failed: %v", err)
	}
	if len(result) != 2 || result[0].Signature != "s3" || result[1].Signature != "s1" {
		t.Errorf("unexpected result: %+v", result)
	}

	result, _ = store.GetByAccount(ctx, "payer", 1)
	if len(result) != 1 || result[0].Signature != "s3" {
		t.Errorf("limit not honoured: %+v", result)
	}
}

func TestChainStateStore(t *testing.T) {
	store := NewChainStateStore()
	ctx := context.Background()

	if _, err := store.GetChainState(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetChainState(ctx, &storage.ChainState{Slot: 7, Blockhash: "h"}); err != nil {
		t.Fatalf("SetChainState failed: %v", err)
	}
	state, err := store.GetChainState(ctx)
	if err != nil {
		t.Fatalf("GetChainState failed: %v", err)
	}
	if state.Slot != 7 || state.Blockhash != "h" {
		t.Errorf("state mismatch: %+v", state)
	}
}
