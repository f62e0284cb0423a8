package sqlstore

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS fee_accounts (
		account_id TEXT PRIMARY KEY,
		total_fees NUMERIC NOT NULL DEFAULT 0,
		paid       NUMERIC NOT NULL DEFAULT 0,
		version    BIGINT  NOT NULL DEFAULT 0,
		updated_at BIGINT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fee_ledger_entries (
		entry_id       TEXT PRIMARY KEY,
		account_id     TEXT    NOT NULL REFERENCES fee_accounts (account_id),
		amount         NUMERIC NOT NULL CHECK (amount <> 0),
		note           TEXT    NOT NULL DEFAULT '',
		attachment_ref TEXT    NOT NULL DEFAULT '',
		created_at     BIGINT  NOT NULL,
		sequence       BIGINT  NOT NULL,
		deleted_at     BIGINT,
		UNIQUE (account_id, sequence)
	)`,
}

// Amounts are TEXT in SQLite: NUMERIC affinity would turn fractional values into REAL.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS fee_accounts (
		account_id TEXT PRIMARY KEY,
		total_fees TEXT    NOT NULL DEFAULT '0',
		paid       TEXT    NOT NULL DEFAULT '0',
		version    INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fee_ledger_entries (
		entry_id       TEXT PRIMARY KEY,
		account_id     TEXT    NOT NULL REFERENCES fee_accounts (account_id),
		amount         TEXT    NOT NULL,
		note           TEXT    NOT NULL DEFAULT '',
		attachment_ref TEXT    NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL,
		sequence       INTEGER NOT NULL,
		deleted_at     INTEGER,
		UNIQUE (account_id, sequence)
	)`,
}

// EnsureSchema creates the ledger tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == Postgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
