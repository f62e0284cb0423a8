package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
)

// LedgerStore persists entries and account aggregates. Every mutating call is
// atomic for the account it touches; nothing is atomic across accounts.
type LedgerStore interface {
	// GetAccount returns xerrors.ErrNotFound if the account was never written.
	GetAccount(ctx context.Context, accountID string) (models.Account, error)

	// AppendEntry materializes the account if needed, inserts the entry and
	// applies paid += amount, version += 1. The returned entry carries its Sequence.
	AppendEntry(ctx context.Context, entry models.LedgerEntry) (models.Account, models.LedgerEntry, error)

	GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error)

	// MarkEntryDeleted soft-deletes the entry and applies paid -= amount, version += 1.
	MarkEntryDeleted(ctx context.Context, entryID string, at time.Time) (models.Account, models.LedgerEntry, error)

	// SetTotalFees and SetPaid are check-and-set on version and return
	// xerrors.ErrVersionMismatch when expectedVersion is stale.
	SetTotalFees(ctx context.Context, accountID string, totalFees decimal.Decimal, expectedVersion int64) (models.Account, error)
	SetPaid(ctx context.Context, accountID string, paid decimal.Decimal, expectedVersion int64) (models.Account, error)

	// Snapshot reads the account and all of its entries, deleted ones included,
	// ordered by Sequence ascending, as of one version.
	Snapshot(ctx context.Context, accountID string) (models.Account, []models.LedgerEntry, error)

	Close() error
}
