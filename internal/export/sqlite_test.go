package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapseed/internal/testutil"
)

func TestSQLiteExporter_InMemory(t *testing.T) {
	ctx := context.Background()
	e := generated(t)

	exp := NewSQLite(testutil.NewTestLogger(t))
	require.NoError(t, exp.Open(ctx, Config{Type: "sqlite", BatchSize: 2}))
	defer func() { _ = exp.Close() }()

	require.NoError(t, exp.Export(ctx, e))

	counts := map[string]int{"Organisation": 2, "User": 3, "Project": 2}
	for table, want := range counts {
		var got int
		require.NoError(t, exp.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM "`+table+`"`).Scan(&got))
		assert.Equal(t, want, got, table)
	}

	// every user references an exported organisation
	var orphans int
	require.NoError(t, exp.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM "User" u LEFT JOIN "Organisation" o ON o."id" = u."Organisation" WHERE o."id" IS NULL`).Scan(&orphans))
	assert.Zero(t, orphans)

	// one join row per user with a fan-out of one
	var joins int
	require.NoError(t, exp.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM "UserProject"`).Scan(&joins))
	assert.Equal(t, 3, joins)
}

func TestSQLiteExporter_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.db")

	require.NoError(t, Run(ctx, Config{Type: "sqlite", Path: path}, generated(t), testutil.NewTestLogger(t)))

	// a second run over the same file replaces the tables
	cfg := Config{Type: "sqlite", Path: path, Options: map[string]string{"drop": "true"}}
	require.NoError(t, Run(ctx, cfg, generated(t), nil))

	exp := NewSQLite(nil)
	require.NoError(t, exp.Open(ctx, Config{Path: path}))
	defer func() { _ = exp.Close() }()

	var users int
	require.NoError(t, exp.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM "User"`).Scan(&users))
	assert.Equal(t, 3, users)
}
