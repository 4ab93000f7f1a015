package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

func TestAccountStore_ApplyAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountStore(pool)

	err := store.Apply(ctx, []*domain.Account{
		{Address: "acct1", Lamports: 1_461_600, Data: make([]byte, 82), Owner: "token", Slot: 4},
		{Address: "acct2", Lamports: 5, Owner: "system"},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "acct1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_461_600), got.Lamports)
	assert.Len(t, got.Data, 82)
	assert.Equal(t, "token", got.Owner)
	assert.Equal(t, uint64(4), got.Slot)

	empty, err := store.Get(ctx, "acct2")
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
}

func TestAccountStore_ApplyUpsertAndDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountStore(pool)

	require.NoError(t, store.Apply(ctx, []*domain.Account{{Address: "a", Lamports: 10, Owner: "system"}}))
	require.NoError(t, store.Apply(ctx, []*domain.Account{{Address: "a", Lamports: 20, Data: []byte{1}, Owner: "prog"}}))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got.Lamports)
	assert.Equal(t, "prog", got.Owner)

	require.NoError(t, store.Apply(ctx, []*domain.Account{{Address: "a", Lamports: 0}}))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_InvalidBatchWritesNothing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountStore(pool)

	err := store.Apply(ctx, []*domain.Account{
		{Address: "a", Lamports: 10, Owner: "system"},
		nil,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_GetByOwner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountStore(pool)

	require.NoError(t, store.Apply(ctx, []*domain.Account{
		{Address: "c", Lamports: 1, Owner: "prog"},
		{Address: "a", Lamports: 1, Owner: "prog"},
		{Address: "b", Lamports: 1, Owner: "other"},
	}))

	got, err := store.GetByOwner(ctx, "prog")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Address)
	assert.Equal(t, "c", got[1].Address)
}
