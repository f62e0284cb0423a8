package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

// Store is a database/sql implementation of interfaces.LedgerStore.
// Every mutation runs in one transaction scoped to a single account row.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}
}

const accountColumns = `account_id, total_fees, paid, version, updated_at`

const entryColumns = `entry_id, account_id, amount, note, attachment_ref, created_at, sequence, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM fee_accounts WHERE account_id = ?`), accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account %s: %w", accountID, err)
	}
	return acc, nil
}

func (s *Store) AppendEntry(ctx context.Context, entry models.LedgerEntry) (models.Account, models.LedgerEntry, error) {
	var acc models.Account
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.ensureAccount(ctx, tx, entry.AccountID); err != nil {
			return err
		}
		current, err := s.lockAccount(ctx, tx, entry.AccountID)
		if err != nil {
			return err
		}

		acc, err = s.applyPaid(ctx, tx, current, current.Paid.Add(entry.Amount))
		if err != nil {
			return err
		}

		entry.Sequence = acc.Version
		entry.DeletedAt = nil
		_, err = tx.ExecContext(ctx, s.q(`INSERT INTO fee_ledger_entries (`+entryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`),
			entry.ID, entry.AccountID, entry.Amount, entry.Note, entry.AttachmentRef,
			entry.CreatedAt.UnixMicro(), entry.Sequence)
		if isUniqueViolation(err) {
			return fmt.Errorf("entry %s already exists: %w", entry.ID, xerrors.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Account{}, models.LedgerEntry{}, err
	}

	entry.CreatedAt = time.UnixMicro(entry.CreatedAt.UnixMicro()).UTC()
	return acc, entry, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+entryColumns+` FROM fee_ledger_entries WHERE entry_id = ?`), entryID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, fmt.Errorf("entry %s: %w", entryID, xerrors.ErrNotFound)
	}
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("get entry %s: %w", entryID, err)
	}
	return entry, nil
}

func (s *Store) MarkEntryDeleted(ctx context.Context, entryID string, at time.Time) (models.Account, models.LedgerEntry, error) {
	var (
		acc   models.Account
		entry models.LedgerEntry
	)
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.q(`SELECT `+entryColumns+` FROM fee_ledger_entries WHERE entry_id = ?`), entryID)
		var err error
		entry, err = scanEntry(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entry %s: %w", entryID, xerrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get entry %s: %w", entryID, err)
		}

		current, err := s.lockAccount(ctx, tx, entry.AccountID)
		if err != nil {
			return err
		}

		// the deleted_at guard makes two racing reversals resolve to one winner
		res, err := tx.ExecContext(ctx, s.q(`UPDATE fee_ledger_entries SET deleted_at = ?
			WHERE entry_id = ? AND deleted_at IS NULL`), at.UnixMicro(), entryID)
		if err != nil {
			return fmt.Errorf("mark entry deleted: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("mark entry deleted: %w", err)
		} else if n == 0 {
			return fmt.Errorf("entry %s: %w", entryID, xerrors.ErrAlreadyReversed)
		}

		acc, err = s.applyPaid(ctx, tx, current, current.Paid.Sub(entry.Amount))
		if err != nil {
			return err
		}
		deletedAt := time.UnixMicro(at.UnixMicro()).UTC()
		entry.DeletedAt = &deletedAt
		return nil
	})
	if err != nil {
		return models.Account{}, models.LedgerEntry{}, err
	}
	return acc, entry, nil
}

func (s *Store) SetTotalFees(ctx context.Context, accountID string, totalFees decimal.Decimal, expectedVersion int64) (models.Account, error) {
	var acc models.Account
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.ensureAccount(ctx, tx, accountID); err != nil {
			return err
		}
		var err error
		acc, err = s.compareAndSet(ctx, tx, accountID, "total_fees", totalFees, expectedVersion)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}
	return acc, nil
}

func (s *Store) SetPaid(ctx context.Context, accountID string, paid decimal.Decimal, expectedVersion int64) (models.Account, error) {
	var acc models.Account
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		acc, err = s.compareAndSet(ctx, tx, accountID, "paid", paid, expectedVersion)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}
	return acc, nil
}

func (s *Store) Snapshot(ctx context.Context, accountID string) (models.Account, []models.LedgerEntry, error) {
	var (
		acc     models.Account
		entries []models.LedgerEntry
	)
	err := s.withTx(ctx, s.dialect.snapshotTxOptions(), func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM fee_accounts WHERE account_id = ?`), accountID)
		var err error
		acc, err = scanAccount(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get account %s: %w", accountID, err)
		}

		rows, err := tx.QueryContext(ctx, s.q(`SELECT `+entryColumns+` FROM fee_ledger_entries
			WHERE account_id = ? ORDER BY sequence ASC`), accountID)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return fmt.Errorf("scan entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return models.Account{}, nil, err
	}
	return acc, entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureAccount(ctx context.Context, tx *sql.Tx, accountID string) error {
	_, err := tx.ExecContext(ctx, s.q(`INSERT INTO fee_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, 0, ?) ON CONFLICT (account_id) DO NOTHING`),
		accountID, decimal.Zero, decimal.Zero, s.now().UnixMicro())
	if err != nil {
		return fmt.Errorf("ensure account %s: %w", accountID, err)
	}
	return nil
}

func (s *Store) lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (models.Account, error) {
	row := tx.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM fee_accounts WHERE account_id = ?`+s.dialect.lockClause()), accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	return acc, nil
}

// applyPaid writes a new paid total for an account already locked in tx.
func (s *Store) applyPaid(ctx context.Context, tx *sql.Tx, current models.Account, paid decimal.Decimal) (models.Account, error) {
	next := current
	next.Paid = paid
	next.Version = current.Version + 1
	next.UpdatedAt = time.UnixMicro(s.now().UnixMicro()).UTC()

	res, err := tx.ExecContext(ctx, s.q(`UPDATE fee_accounts SET paid = ?, version = ?, updated_at = ?
		WHERE account_id = ? AND version = ?`),
		next.Paid, next.Version, next.UpdatedAt.UnixMicro(), current.AccountID, current.Version)
	if err != nil {
		return models.Account{}, fmt.Errorf("update account %s: %w", current.AccountID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Account{}, fmt.Errorf("update account %s: %w", current.AccountID, err)
	} else if n == 0 {
		return models.Account{}, fmt.Errorf("account %s: %w", current.AccountID, xerrors.ErrVersionMismatch)
	}
	return next, nil
}

// compareAndSet updates one amount column when the stored version still equals expectedVersion.
func (s *Store) compareAndSet(ctx context.Context, tx *sql.Tx, accountID, column string, value decimal.Decimal, expectedVersion int64) (models.Account, error) {
	res, err := tx.ExecContext(ctx, s.q(`UPDATE fee_accounts SET `+column+` = ?, version = version + 1, updated_at = ?
		WHERE account_id = ? AND version = ?`),
		value, s.now().UnixMicro(), accountID, expectedVersion)
	if err != nil {
		return models.Account{}, fmt.Errorf("update %s of %s: %w", column, accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Account{}, fmt.Errorf("update %s of %s: %w", column, accountID, err)
	}

	row := tx.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM fee_accounts WHERE account_id = ?`), accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("account %s: %w", accountID, xerrors.ErrNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account %s: %w", accountID, err)
	}
	if n == 0 {
		return models.Account{}, fmt.Errorf("account %s at version %d, expected %d: %w",
			accountID, acc.Version, expectedVersion, xerrors.ErrVersionMismatch)
	}
	return acc, nil
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		acc       models.Account
		updatedAt int64
	)
	if err := row.Scan(&acc.AccountID, &acc.TotalFees, &acc.Paid, &acc.Version, &updatedAt); err != nil {
		return models.Account{}, err
	}
	acc.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return acc, nil
}

func scanEntry(row rowScanner) (models.LedgerEntry, error) {
	var (
		entry     models.LedgerEntry
		createdAt int64
		deletedAt sql.NullInt64
	)
	err := row.Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Amount,
		&entry.Note,
		&entry.AttachmentRef,
		&createdAt,
		&entry.Sequence,
		&deletedAt,
	)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	entry.CreatedAt = time.UnixMicro(createdAt).UTC()
	if deletedAt.Valid {
		at := time.UnixMicro(deletedAt.Int64).UTC()
		entry.DeletedAt = &at
	}
	return entry, nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
