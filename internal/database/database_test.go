package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT id FROM payments WHERE external_ref = ? AND status = ?"
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "SELECT id FROM payments WHERE external_ref = $1 AND status = $2", Postgres.Rebind(q))
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", MySQL.ForUpdate())
	assert.Equal(t, " FOR UPDATE", Postgres.ForUpdate())
	assert.Empty(t, SQLite.ForUpdate())
}

func TestSplitStatements(t *testing.T) {
	src := "CREATE TABLE a (\n  id INTEGER\n);\n\nCREATE INDEX i ON a (id);\n"
	stmts := splitStatements(src)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (\n  id INTEGER\n)", stmts[0])
	assert.Equal(t, "CREATE INDEX i ON a (id)", stmts[1])
}

func TestLoadMigrations(t *testing.T) {
	for _, d := range []Dialect{MySQL, Postgres, SQLite} {
		ms, err := LoadMigrations(d)
		require.NoError(t, err, d)
		require.Len(t, ms, 3, d)
		assert.Equal(t, 1, ms[0].Version)
		assert.Equal(t, "create_catalog", ms[0].Name)
		assert.Equal(t, 2, ms[1].Version)
		assert.Equal(t, "event_branding", ms[2].Name)
	}
}

func TestMigrateSQLiteIsRepeatable(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpenURLRejectsUnknownScheme(t *testing.T) {
	_, err := OpenURL("oracle://nope")
	assert.Error(t, err)
}
