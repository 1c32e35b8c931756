// Package dbtest provides migrated throwaway databases for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"identity-service/backend/internal/db"
	"identity-service/backend/internal/db/migrate"
)

// NewSQLite creates a SQLite database in t.TempDir, applies every embedded migration and
// returns an open handle that is closed when the test ends.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identity.db")
	if err := migrate.Run("sqlite://"+path, "up"); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}
