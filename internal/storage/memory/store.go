package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

type accountRecord struct {
	mu      sync.Mutex // serializes mutations of this account only
	account models.Account
	entries []models.LedgerEntry
	exists  bool
}

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Each account has its own lock, so writers on different accounts never block each other.
type MemoryLedgerStore struct {
	mapMu    sync.RWMutex              // protects the two maps below, not their values
	accounts map[string]*accountRecord // account id -> record
	entryIdx map[string]string         // entry id -> account id

	now func() time.Time

	// failAppend, when set, is consulted before an append is applied. Used to
	// simulate a store failure for a single account.
	failAppend func(accountID string) error
}

type Option func(*MemoryLedgerStore)

func WithClock(now func() time.Time) Option {
	return func(m *MemoryLedgerStore) { m.now = now }
}

func WithAppendFailure(fn func(accountID string) error) Option {
	return func(m *MemoryLedgerStore) { m.failAppend = fn }
}

func NewMemoryLedgerStore(opts ...Option) *MemoryLedgerStore {
	m := &MemoryLedgerStore{
		accounts: make(map[string]*accountRecord),
		entryIdx: make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// record returns the record for accountID, creating an unmaterialized one if needed.
func (m *MemoryLedgerStore) record(accountID string) *accountRecord {
	m.mapMu.RLock()
	rec, ok := m.accounts[accountID]
	m.mapMu.RUnlock()
	if ok {
		return rec
	}

	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	if rec, ok = m.accounts[accountID]; !ok {
		rec = &accountRecord{account: models.NewAccount(accountID)}
		m.accounts[accountID] = rec
	}
	return rec
}

func (m *MemoryLedgerStore) lookup(accountID string) (*accountRecord, bool) {
	m.mapMu.RLock()
	defer m.mapMu.RUnlock()
	rec, ok := m.accounts[accountID]
	return rec, ok
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	rec, ok := m.lookup(accountID)
	if !ok {
		return models.Account{}, fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.exists {
		return models.Account{}, fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}
	return rec.account, nil
}

func (m *MemoryLedgerStore) AppendEntry(ctx context.Context, entry models.LedgerEntry) (models.Account, models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, models.LedgerEntry{}, err
	}

	rec := m.record(entry.AccountID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	// Checked under the account lock so a failure leaves the account untouched.
	if m.failAppend != nil {
		if err := m.failAppend(entry.AccountID); err != nil {
			return models.Account{}, models.LedgerEntry{}, err
		}
	}

	m.mapMu.Lock()
	if _, dup := m.entryIdx[entry.ID]; dup {
		m.mapMu.Unlock()
		return models.Account{}, models.LedgerEntry{}, fmt.Errorf("entry %s already exists: %w", entry.ID, xerrors.ErrConflict)
	}
	m.entryIdx[entry.ID] = entry.AccountID
	m.mapMu.Unlock()

	acc := rec.account
	acc.Paid = acc.Paid.Add(entry.Amount)
	acc.Version++
	acc.UpdatedAt = m.now()

	entry.Sequence = acc.Version
	entry.DeletedAt = nil

	rec.account = acc
	rec.entries = append(rec.entries, entry)
	rec.exists = true

	return acc, entry, nil
}

func (m *MemoryLedgerStore) GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error) {
	rec, ok := m.recordForEntry(entryID)
	if !ok {
		return models.LedgerEntry{}, fmt.Errorf("entry %s: %w", entryID, xerrors.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	i := indexOf(rec.entries, entryID)
	if i < 0 {
		return models.LedgerEntry{}, fmt.Errorf("entry %s: %w", entryID, xerrors.ErrNotFound)
	}
	return copyEntry(rec.entries[i]), nil
}

func (m *MemoryLedgerStore) MarkEntryDeleted(ctx context.Context, entryID string, at time.Time) (models.Account, models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, models.LedgerEntry{}, err
	}

	rec, ok := m.recordForEntry(entryID)
	if !ok {
		return models.Account{}, models.LedgerEntry{}, fmt.Errorf("entry %s: %w", entryID, xerrors.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	i := indexOf(rec.entries, entryID)
	if i < 0 {
		return models.Account{}, models.LedgerEntry{}, fmt.Errorf("entry %s: %w", entryID, xerrors.ErrNotFound)
	}
	if rec.entries[i].Deleted() {
		return models.Account{}, models.LedgerEntry{}, fmt.Errorf("entry %s: %w", entryID, xerrors.ErrAlreadyReversed)
	}

	deletedAt := at
	rec.entries[i].DeletedAt = &deletedAt

	acc := rec.account
	acc.Paid = acc.Paid.Sub(rec.entries[i].Amount)
	acc.Version++
	acc.UpdatedAt = m.now()
	rec.account = acc

	return acc, copyEntry(rec.entries[i]), nil
}

func (m *MemoryLedgerStore) SetTotalFees(ctx context.Context, accountID string, totalFees decimal.Decimal, expectedVersion int64) (models.Account, error) {
	return m.compareAndSet(ctx, accountID, expectedVersion, func(acc *models.Account) {
		acc.TotalFees = totalFees
	})
}

func (m *MemoryLedgerStore) SetPaid(ctx context.Context, accountID string, paid decimal.Decimal, expectedVersion int64) (models.Account, error) {
	return m.compareAndSet(ctx, accountID, expectedVersion, func(acc *models.Account) {
		acc.Paid = paid
	})
}

func (m *MemoryLedgerStore) compareAndSet(ctx context.Context, accountID string, expectedVersion int64, apply func(*models.Account)) (models.Account, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}

	rec := m.record(accountID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.account.Version != expectedVersion {
		return models.Account{}, fmt.Errorf("account %s at version %d, expected %d: %w",
			accountID, rec.account.Version, expectedVersion, xerrors.ErrVersionMismatch)
	}

	acc := rec.account
	apply(&acc)
	acc.Version++
	acc.UpdatedAt = m.now()

	rec.account = acc
	rec.exists = true
	return acc, nil
}

func (m *MemoryLedgerStore) Snapshot(ctx context.Context, accountID string) (models.Account, []models.LedgerEntry, error) {
	rec, ok := m.lookup(accountID)
	if !ok {
		return models.Account{}, nil, fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.exists {
		return models.Account{}, nil, fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}

	// copy entries so callers can't modify internal state
	copied := make([]models.LedgerEntry, len(rec.entries))
	for i, e := range rec.entries {
		copied[i] = copyEntry(e)
	}
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Sequence < copied[j].Sequence })
	return rec.account, copied, nil
}

// CorruptPaid overwrites the cached paid total without touching the entry log
// or version, reproducing a writer that crashed between its two halves.
func (m *MemoryLedgerStore) CorruptPaid(accountID string, paid decimal.Decimal) {
	rec := m.record(accountID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.account.Paid = paid
	rec.exists = true
}

func (m *MemoryLedgerStore) Close() error {
	return nil
}

func (m *MemoryLedgerStore) recordForEntry(entryID string) (*accountRecord, bool) {
	m.mapMu.RLock()
	accountID, ok := m.entryIdx[entryID]
	m.mapMu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.lookup(accountID)
}

func indexOf(entries []models.LedgerEntry, entryID string) int {
	for i := range entries {
		if entries[i].ID == entryID {
			return i
		}
	}
	return -1
}

func copyEntry(e models.LedgerEntry) models.LedgerEntry {
	if e.DeletedAt != nil {
		at := *e.DeletedAt
		e.DeletedAt = &at
	}
	return e
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
