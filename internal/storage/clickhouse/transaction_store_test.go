package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/storage"
)

func TestTransactionStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(conn)
	ctx := context.Background()

	rec := &domain.TransactionRecord{
		Signature: "sig-1",
		Slot:      12,
		BlockTime: 1704067200,
		Logs:      []string{"Program 11111111111111111111111111111111 invoke [1]"},
		Raw:       []byte{1, 2, 3},
		Accounts:  []string{"payer", "mint"},
	}
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetBySignature(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), got.Slot)
	assert.Equal(t, rec.Logs, got.Logs)
	assert.Equal(t, rec.Raw, got.Raw)
	assert.True(t, got.Succeeded())

	assert.ErrorIs(t, store.Insert(ctx, rec), storage.ErrDuplicateKey)

	_, err = store.GetBySignature(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionStore_GetByAccount(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.TransactionRecord{Signature: "a", Slot: 1, Accounts: []string{"mint"}}))
	require.NoError(t, store.Insert(ctx, &domain.TransactionRecord{Signature: "b", Slot: 2, Accounts: []string{"other"}}))
	require.NoError(t, store.Insert(ctx, &domain.TransactionRecord{Signature: "c", Slot: 3, Accounts: []string{"mint"}, Err: `{"InstructionError":[0,{"Custom":6000}]}`}))

	got, err := store.GetByAccount(ctx, "mint", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Signature)
	assert.False(t, got[0].Succeeded())
	assert.Equal(t, "a", got[1].Signature)

	_, err = store.GetByAccount(ctx, "mint", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestParseDSN(t *testing.T) {
	opts, err := parseDSN("clickhouse://user:pw@localhost/ledger")
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9000"}, opts.Addr)
	assert.Equal(t, "user", opts.Auth.Username)
	assert.Equal(t, "pw", opts.Auth.Password)
	assert.Equal(t, "ledger", opts.Auth.Database)

	_, err = parseDSN("http://localhost:8123")
	assert.Error(t, err)
}
