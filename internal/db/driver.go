package db

import (
	"fmt"
	"strings"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

const sqliteScheme = "sqlite://"

// DriverFor returns the driver for a DATABASE_URL based on its scheme.
func DriverFor(dsn string) (Driver, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(dsn, sqliteScheme):
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("db: unsupported DATABASE_URL scheme in %q", redact(dsn))
	}
}

// SQLitePath extracts the file path from a sqlite:// URL, dropping any query string.
func SQLitePath(dsn string) string {
	p := strings.TrimPrefix(strings.TrimSpace(dsn), sqliteScheme)
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// redact hides everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	if len(dsn) > 8 {
		return dsn[:8] + "..."
	}
	return dsn
}
