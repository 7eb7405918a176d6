package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFiles(t *testing.T) {
	pg, err := List(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Contains(t, pg, "001_accounts.sql")

	ch, err := List(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Contains(t, ch, "001_nft_events.sql")

	for _, f := range ch {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+f)
		require.NoError(t, err)
		stmts, err := splitStatements(string(data))
		require.NoError(t, err, f)
		assert.NotEmpty(t, stmts, f)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- header
CREATE TABLE a (x UInt8) ENGINE = Memory;

CREATE TABLE b (y UInt8) ENGINE = Memory;
`
	stmts, err := splitStatements(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x UInt8) ENGINE = Memory", stmts[0])
}

func TestSplitStatements_Literals(t *testing.T) {
	stmts, err := splitStatements(`SELECT 'it''s'; SELECT 1`)
	require.NoError(t, err)
	assert.Equal(t, []string{`SELECT 'it''s'`, "SELECT 1"}, stmts)

	_, err = splitStatements(`SELECT 'a;b'`)
	assert.Error(t, err)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/nftlab")
	require.NoError(t, err)
	assert.Equal(t, "nftlab", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
