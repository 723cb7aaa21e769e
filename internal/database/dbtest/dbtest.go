// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jdholdren/indexwatch/internal/database"
	"github.com/jdholdren/indexwatch/internal/migrations"
)

// New returns a repo over a fresh sqlite file in the test's temp dir.
func New(t testing.TB) database.Repo {
	t.Helper()

	dbx, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "indexwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })

	require.NoError(t, migrations.Run(dbx))

	return database.New(dbx)
}
