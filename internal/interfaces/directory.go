package interfaces

import "context"

// Directory is the student/batch directory. It owns identity and membership;
// the ledger only reads from it.
type Directory interface {
	AccountExists(ctx context.Context, accountID string) (bool, error)
	// BatchMembers returns xerrors.ErrNotFound for an unknown batch.
	BatchMembers(ctx context.Context, batchID string) ([]string, error)
}
