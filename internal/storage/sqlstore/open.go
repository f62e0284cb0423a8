package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	connectAttempts = 5
	connectDelay    = 2 * time.Second
)

// Open connects to the database, tunes the pool for the dialect and makes sure
// the schema exists. Postgres connections are retried with exponential backoff.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	switch dialect {
	case Postgres:
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(5 * time.Minute)
	case SQLite:
		// one connection: an in-memory database lives per connection, and
		// SQLite allows a single writer anyway
		db.SetMaxOpenConns(1)
	}

	delay := connectDelay
	for i := 1; ; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			break
		}
		if dialect != Postgres || i == connectAttempts {
			_ = db.Close()
			return nil, fmt.Errorf("connect %s after %d attempts: %w", dialect, i, err)
		}
		logger.Warn("database not reachable, retrying",
			zap.Int("attempt", i),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	store := NewStore(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("ledger store connected", zap.String("dialect", string(dialect)))
	return store, nil
}
