package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsRepeatable(t *testing.T) {
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "catalog.db")})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('foods', 'food_logs')`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	// Hold two connections open so the pool has to hand out distinct ones.
	ctx := context.Background()
	c1, err := db.Conn(ctx)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := db.Conn(ctx)
	require.NoError(t, err)
	defer c2.Close()

	var on1, on2 int
	require.NoError(t, c1.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on1))
	require.NoError(t, c2.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on2))
	assert.Equal(t, 1, on1)
	assert.Equal(t, 1, on2)
}

func TestDefaultConfigHonorsEnv(t *testing.T) {
	t.Setenv("FORMA_DB_PATH", "/tmp/x/catalog.db")
	assert.Equal(t, "/tmp/x/catalog.db", DefaultConfig().Path)

	t.Setenv("FORMA_DB_PATH", "")
	assert.Equal(t, filepath.Join(".forma", "catalog.db"), filepath.Join(filepath.Base(filepath.Dir(DefaultConfig().Path)), "catalog.db"))
}
