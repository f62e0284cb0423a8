package directory

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

// Redis reads the directory maintained by the student service:
//
//	<prefix>:students              SET of account ids
//	<prefix>:batch:<id>            STRING/HASH marking the batch as existing
//	<prefix>:batch:<id>:members    LIST of account ids in enrollment order
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "directory"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) studentsKey() string {
	return r.prefix + ":students"
}

func (r *Redis) batchKey(batchID string) string {
	return r.prefix + ":batch:" + batchID
}

func (r *Redis) membersKey(batchID string) string {
	return r.batchKey(batchID) + ":members"
}

func (r *Redis) AccountExists(ctx context.Context, accountID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.studentsKey(), accountID).Result()
	if err != nil {
		return false, fmt.Errorf("directory lookup %s: %w", accountID, err)
	}
	return ok, nil
}

// BatchMembers reads the batch marker and member list in one pipeline so the
// snapshot is taken at a single point.
func (r *Redis) BatchMembers(ctx context.Context, batchID string) ([]string, error) {
	var (
		exists  *redis.IntCmd
		members *redis.StringSliceCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, r.batchKey(batchID))
		members = pipe.LRange(ctx, r.membersKey(batchID), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory batch %s: %w", batchID, err)
	}
	if exists.Val() == 0 {
		return nil, fmt.Errorf("batch %s: %w", batchID, xerrors.ErrNotFound)
	}
	return members.Val(), nil
}

var _ interfaces.Directory = (*Redis)(nil)
