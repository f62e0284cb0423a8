package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

func TestMemoryMembershipOrder(t *testing.T) {
	ctx := context.Background()
	dir := NewMemory()
	dir.Enroll("class-10", "stu-3")
	dir.Enroll("class-10", "stu-1")
	dir.Enroll("class-10", "stu-3")

	members, err := dir.BatchMembers(ctx, "class-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-3", "stu-1"}, members)

	members[0] = "mutated"
	again, err := dir.BatchMembers(ctx, "class-10")
	require.NoError(t, err)
	assert.Equal(t, "stu-3", again[0])

	_, err = dir.BatchMembers(ctx, "class-11")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestMemoryEmptyBatchExists(t *testing.T) {
	dir := NewMemory()
	dir.AddBatch("evening")

	members, err := dir.BatchMembers(context.Background(), "evening")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMemoryRemoveStudentKeepsMembership(t *testing.T) {
	ctx := context.Background()
	dir := NewMemory()
	dir.Enroll("b1", "stu-1")
	dir.RemoveStudent("stu-1")

	ok, err := dir.AccountExists(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := dir.BatchMembers(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1"}, members)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.json")
	seed := `{"students": ["solo"], "batches": {"class-9": ["a", "b"]}}`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	dir, err := LoadFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"solo", "a", "b"} {
		ok, err := dir.AccountExists(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}
	members, err := dir.BatchMembers(ctx, "class-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
