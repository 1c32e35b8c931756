package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations, one directory per driver.
// Used by the migrate runner (cmd/migrate and AUTO_MIGRATE at server start).
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS

// MigrationDir returns the embedded migration directory for driver.
func MigrationDir(driver Driver) string {
	return "migrations/" + string(driver)
}
