package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := `UPDATE fee_accounts SET paid = ?, version = ? WHERE account_id = ?`

	assert.Equal(t, `UPDATE fee_accounts SET paid = $1, version = $2 WHERE account_id = $3`, Postgres.rebind(query))
	assert.Equal(t, query, SQLite.rebind(query))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect(" Postgres ")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestLockClause(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", Postgres.lockClause())
	assert.Empty(t, SQLite.lockClause())
}
