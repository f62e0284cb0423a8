package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/metrics"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models/events"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

const (
	defaultRepairAttempts   = 3
	defaultBatchConcurrency = 8
	publishTimeout          = 5 * time.Second
)

// Ledger is the reconciliation engine. It validates requests, checks account
// identity against the directory and delegates every per-account mutation to
// the store as a single atomic call. It never retries a caller's write.
type Ledger struct {
	store     interfaces.LedgerStore
	directory interfaces.Directory
	publisher interfaces.EventPublisher
	log       *zap.Logger
	metrics   *metrics.Metrics

	now   func() time.Time
	newID func() string

	repairAttempts   int
	batchConcurrency int
}

type Option func(*Ledger)

// WithPublisher sets where ledger events go after commit. Without one, no events are sent.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// WithRepairAttempts bounds how many times Repair recomputes after losing a
// version race to a concurrent writer.
func WithRepairAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.repairAttempts = n
		}
	}
}

func WithBatchConcurrency(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.batchConcurrency = n
		}
	}
}

func NewLedger(store interfaces.LedgerStore, directory interfaces.Directory, opts ...Option) *Ledger {
	l := &Ledger{
		store:            store,
		directory:        directory,
		log:              zap.NewNop(),
		now:              time.Now,
		newID:            func() string { return ulid.Make().String() },
		repairAttempts:   defaultRepairAttempts,
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type RecordEntryRequest struct {
	AccountID     string
	Amount        decimal.Decimal // positive = payment, negative = assessment
	Note          string
	AttachmentRef string
}

type UpdateBaselineRequest struct {
	AccountID       string
	TotalFees       decimal.Decimal
	ExpectedVersion int64
}

// RecordEntry appends a signed entry and applies it to the account's paid total
// in one atomic store call.
func (l *Ledger) RecordEntry(ctx context.Context, req RecordEntryRequest) (entry models.LedgerEntry, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("record_entry", xerrors.Kind(err), started) }()

	if req.AccountID == "" {
		return models.LedgerEntry{}, fmt.Errorf("account id is required: %w", xerrors.ErrValidation)
	}
	if req.Amount.IsZero() {
		return models.LedgerEntry{}, fmt.Errorf("amount must be non-zero: %w", xerrors.ErrValidation)
	}
	if err := l.requireAccount(ctx, req.AccountID); err != nil {
		return models.LedgerEntry{}, err
	}

	acc, saved, err := l.store.AppendEntry(ctx, models.LedgerEntry{
		ID:            l.newID(),
		AccountID:     req.AccountID,
		Amount:        req.Amount,
		Note:          req.Note,
		AttachmentRef: req.AttachmentRef,
		CreatedAt:     l.now().UTC(),
	})
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("record entry for %s: %w", req.AccountID, err)
	}

	l.publish(ctx, events.TopicEntryRecorded, acc.AccountID, events.EntryRecorded{
		EntryID:    saved.ID,
		AccountID:  acc.AccountID,
		Amount:     saved.Amount,
		Note:       saved.Note,
		Paid:       acc.Paid,
		Due:        acc.Due(),
		Version:    acc.Version,
		OccurredAt: saved.CreatedAt,
	})
	return saved, nil
}

// ReverseEntry soft-deletes an entry and takes its amount back out of paid.
// Reversing an entry twice is a conflict, not a no-op.
func (l *Ledger) ReverseEntry(ctx context.Context, entryID string) (err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("reverse_entry", xerrors.Kind(err), started) }()

	if entryID == "" {
		return fmt.Errorf("entry id is required: %w", xerrors.ErrValidation)
	}

	at := l.now().UTC()
	acc, entry, err := l.store.MarkEntryDeleted(ctx, entryID, at)
	if err != nil {
		return fmt.Errorf("reverse entry %s: %w", entryID, err)
	}

	l.publish(ctx, events.TopicEntryReversed, acc.AccountID, events.EntryReversed{
		EntryID:    entry.ID,
		AccountID:  acc.AccountID,
		Amount:     entry.Amount,
		Paid:       acc.Paid,
		Due:        acc.Due(),
		Version:    acc.Version,
		OccurredAt: at,
	})
	return nil
}

// UpdateBaseline replaces total_fees if the account is still at the version
// the caller last read.
func (l *Ledger) UpdateBaseline(ctx context.Context, req UpdateBaselineRequest) (acc models.Account, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("update_baseline", xerrors.Kind(err), started) }()

	if req.AccountID == "" {
		return models.Account{}, fmt.Errorf("account id is required: %w", xerrors.ErrValidation)
	}
	if req.TotalFees.IsNegative() {
		return models.Account{}, fmt.Errorf("total fees must not be negative: %w", xerrors.ErrValidation)
	}
	if err := l.requireAccount(ctx, req.AccountID); err != nil {
		return models.Account{}, err
	}

	acc, err = l.store.SetTotalFees(ctx, req.AccountID, req.TotalFees, req.ExpectedVersion)
	if err != nil {
		return models.Account{}, fmt.Errorf("update baseline of %s: %w", req.AccountID, err)
	}

	l.publish(ctx, events.TopicBaselineUpdated, acc.AccountID, events.BaselineUpdated{
		AccountID:  acc.AccountID,
		TotalFees:  acc.TotalFees,
		Due:        acc.Due(),
		Version:    acc.Version,
		OccurredAt: l.now().UTC(),
	})
	return acc, nil
}

// GetAccountState is a pure read. An account the directory knows but the
// ledger has never written reads as all zeros at version 0.
func (l *Ledger) GetAccountState(ctx context.Context, accountID string) (state models.AccountState, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("get_account_state", xerrors.Kind(err), started) }()

	acc, err := l.account(ctx, accountID)
	if err != nil {
		return models.AccountState{}, err
	}
	return StateOf(acc), nil
}

// Statement returns the account state and its active entries, newest first,
// read from a single snapshot.
func (l *Ledger) Statement(ctx context.Context, accountID string) (st models.Statement, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("statement", xerrors.Kind(err), started) }()

	acc, entries, err := l.store.Snapshot(ctx, accountID)
	if errors.Is(err, xerrors.ErrNotFound) {
		if err := l.requireAccount(ctx, accountID); err != nil {
			return models.Statement{}, err
		}
		return models.Statement{State: StateOf(models.NewAccount(accountID)), Entries: []models.LedgerEntry{}}, nil
	}
	if err != nil {
		return models.Statement{}, fmt.Errorf("statement for %s: %w", accountID, err)
	}
	return models.Statement{State: StateOf(acc), Entries: HistoryNewestFirst(entries)}, nil
}

// Entry returns one entry by id, deleted or not.
func (l *Ledger) Entry(ctx context.Context, entryID string) (entry models.LedgerEntry, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("get_entry", xerrors.Kind(err), started) }()

	if entryID == "" {
		return models.LedgerEntry{}, fmt.Errorf("entry id is required: %w", xerrors.ErrValidation)
	}
	entry, err = l.store.GetEntry(ctx, entryID)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("get entry %s: %w", entryID, err)
	}
	return entry, nil
}

// Repair rebuilds paid from the entry log and writes it with a version
// check-and-set. Losing the race to a concurrent writer means the snapshot is
// stale, so the sum is recomputed from a fresh one, up to repairAttempts times.
func (l *Ledger) Repair(ctx context.Context, accountID string) (repaired models.Account, err error) {
	started := time.Now()
	defer func() { l.metrics.Observe("repair", xerrors.Kind(err), started) }()

	for attempt := 1; ; attempt++ {
		acc, entries, err := l.store.Snapshot(ctx, accountID)
		if errors.Is(err, xerrors.ErrNotFound) {
			// nothing written yet, so nothing can have drifted
			if err := l.requireAccount(ctx, accountID); err != nil {
				return models.Account{}, err
			}
			return models.NewAccount(accountID), nil
		}
		if err != nil {
			return models.Account{}, fmt.Errorf("repair %s: %w", accountID, err)
		}

		recomputed := SumActive(entries)
		drift := acc.Paid.Sub(recomputed)

		repaired, err = l.store.SetPaid(ctx, accountID, recomputed, acc.Version)
		if errors.Is(err, xerrors.ErrVersionMismatch) && attempt < l.repairAttempts {
			l.log.Debug("repair lost version race, recomputing",
				zap.String("account_id", accountID),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return models.Account{}, fmt.Errorf("repair %s: %w", accountID, err)
		}

		if !drift.IsZero() {
			l.metrics.RepairDrift()
			l.log.Warn("repaired paid total drift",
				zap.String("account_id", accountID),
				zap.String("cached", acc.Paid.String()),
				zap.String("recomputed", recomputed.String()),
				zap.Int64("version", repaired.Version))
		}

		l.publish(ctx, events.TopicAccountRepaired, accountID, events.AccountRepaired{
			AccountID:  accountID,
			Paid:       repaired.Paid,
			Drift:      drift,
			Version:    repaired.Version,
			OccurredAt: l.now().UTC(),
		})
		return repaired, nil
	}
}

func (l *Ledger) account(ctx context.Context, accountID string) (models.Account, error) {
	if accountID == "" {
		return models.Account{}, fmt.Errorf("account id is required: %w", xerrors.ErrValidation)
	}
	acc, err := l.store.GetAccount(ctx, accountID)
	if errors.Is(err, xerrors.ErrNotFound) {
		if err := l.requireAccount(ctx, accountID); err != nil {
			return models.Account{}, err
		}
		return models.NewAccount(accountID), nil
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account %s: %w", accountID, err)
	}
	return acc, nil
}

func (l *Ledger) requireAccount(ctx context.Context, accountID string) error {
	ok, err := l.directory.AccountExists(ctx, accountID)
	if err != nil {
		return fmt.Errorf("directory lookup %s: %w", accountID, err)
	}
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}
	return nil
}

// publish sends an event for a change that is already committed. Failures are
// logged and counted; they never undo the ledger write.
func (l *Ledger) publish(ctx context.Context, topic, key string, event any) {
	if l.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := l.publisher.Publish(pubCtx, topic, key, event); err != nil {
		l.metrics.PublishFailure(topic)
		l.log.Warn("failed to publish ledger event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err))
	}
}
