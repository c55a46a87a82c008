// Package sqlite3test opens migrated in-memory databases for tests.
package sqlite3test

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/karma/db/sqlite3"
	"github.com/stretchr/testify/require"
)

func DSN() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
}

// New returns an empty, migrated database that is closed when the test ends.
func New(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sqlite3.NewDB(t.Context(), DSN())
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	err = sqlite3.MigrateUp(t.Context(), db)
	require.NoError(t, err)

	return db
}
