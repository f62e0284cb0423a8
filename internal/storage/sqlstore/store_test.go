package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), SQLite, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entry(id, account, amount string, at time.Time) models.LedgerEntry {
	return models.LedgerEntry{
		ID:            id,
		AccountID:     account,
		Amount:        decimal.RequireFromString(amount),
		Note:          "cash",
		AttachmentRef: "uploads/" + id + ".png",
		CreatedAt:     at,
	}
}

func TestStoreAppendAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	at := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

	_, err := store.GetAccount(ctx, "stu-1")
	require.ErrorIs(t, err, xerrors.ErrNotFound)

	acc, saved, err := store.AppendEntry(ctx, entry("e1", "stu-1", "5000", at))
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.Version)
	assert.True(t, acc.Paid.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, int64(1), saved.Sequence)

	acc, _, err = store.AppendEntry(ctx, entry("e2", "stu-1", "-500.50", at.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), acc.Version)
	assert.Equal(t, "4499.5", acc.Paid.String())

	snap, entries, err := store.Snapshot(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, acc.Version, snap.Version)
	assert.True(t, snap.Paid.Equal(acc.Paid))
	require.Len(t, entries, 2)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "e2", entries[1].ID)
	assert.Equal(t, "-500.5", entries[1].Amount.String())
	assert.Equal(t, "uploads/e1.png", entries[0].AttachmentRef)
	assert.True(t, entries[0].CreatedAt.Equal(at))
	assert.Nil(t, entries[0].DeletedAt)
}

func TestStoreDuplicateEntryRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	at := time.Now()

	before, _, err := store.AppendEntry(ctx, entry("e1", "stu-1", "100", at))
	require.NoError(t, err)

	_, _, err = store.AppendEntry(ctx, entry("e1", "stu-1", "100", at))
	require.ErrorIs(t, err, xerrors.ErrConflict)

	after, err := store.GetAccount(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, before.Paid.Equal(after.Paid))
}

func TestStoreMarkEntryDeleted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	at := time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)

	_, _, err := store.AppendEntry(ctx, entry("e1", "stu-1", "5000", at))
	require.NoError(t, err)

	acc, deleted, err := store.MarkEntryDeleted(ctx, "e1", at)
	require.NoError(t, err)
	assert.True(t, acc.Paid.IsZero())
	assert.Equal(t, int64(2), acc.Version)
	require.NotNil(t, deleted.DeletedAt)

	got, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(at))

	_, _, err = store.MarkEntryDeleted(ctx, "e1", at)
	assert.ErrorIs(t, err, xerrors.ErrAlreadyReversed)

	_, _, err = store.MarkEntryDeleted(ctx, "nope", at)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	acc, err = store.GetAccount(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), acc.Version)
}

func TestStoreSetTotalFeesCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	acc, err := store.SetTotalFees(ctx, "stu-1", decimal.NewFromInt(12000), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.Version)
	assert.True(t, acc.TotalFees.Equal(decimal.NewFromInt(12000)))

	_, err = store.SetTotalFees(ctx, "stu-1", decimal.NewFromInt(15000), 0)
	require.ErrorIs(t, err, xerrors.ErrVersionMismatch)
	require.ErrorIs(t, err, xerrors.ErrConflict)

	acc, err = store.GetAccount(ctx, "stu-1")
	require.NoError(t, err)
	assert.True(t, acc.TotalFees.Equal(decimal.NewFromInt(12000)))
}

func TestStoreStaleBaselineDoesNotMaterializeAccount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.SetTotalFees(ctx, "stu-9", decimal.NewFromInt(100), 3)
	require.ErrorIs(t, err, xerrors.ErrVersionMismatch)

	_, err = store.GetAccount(ctx, "stu-9")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestStoreSetPaid(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.SetPaid(ctx, "ghost", decimal.Zero, 0)
	require.ErrorIs(t, err, xerrors.ErrNotFound)

	acc, _, err := store.AppendEntry(ctx, entry("e1", "stu-1", "250", time.Now()))
	require.NoError(t, err)

	acc, err = store.SetPaid(ctx, "stu-1", decimal.NewFromInt(250), acc.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), acc.Version)

	_, err = store.SetPaid(ctx, "stu-1", decimal.NewFromInt(250), 1)
	assert.ErrorIs(t, err, xerrors.ErrVersionMismatch)
}
