package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrUniqueViolation matches any unique-constraint failure from either backend.
var ErrUniqueViolation = errors.New("unique constraint violation")

// UniqueViolationError carries the violated constraint. It matches ErrUniqueViolation
// and the driver error with errors.Is / errors.As.
type UniqueViolationError struct {
	// Constraint is the Postgres constraint name (e.g. accounts_email_key) or the SQLite
	// column list (e.g. accounts.email).
	Constraint string
	err        error
}

func (e *UniqueViolationError) Error() string {
	if e.Constraint == "" {
		return ErrUniqueViolation.Error()
	}
	return ErrUniqueViolation.Error() + ": " + e.Constraint
}

func (e *UniqueViolationError) Unwrap() []error {
	return []error{ErrUniqueViolation, e.err}
}

// Involves reports whether the violated constraint mentions column.
func (e *UniqueViolationError) Involves(column string) bool {
	return strings.Contains(e.Constraint, column)
}

// TranslateError converts driver unique violations into *UniqueViolationError and returns
// every other error unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return &UniqueViolationError{Constraint: pgErr.ConstraintName, err: err}
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return &UniqueViolationError{Constraint: sqliteConstraint(sqliteErr.Error()), err: err}
		}
	}
	return err
}

// sqliteConstraint pulls "accounts.email" out of "UNIQUE constraint failed: accounts.email".
func sqliteConstraint(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.Index(rest, " ("); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
