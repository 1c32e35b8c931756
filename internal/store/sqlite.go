package store

import (
	"context"
	"database/sql"

	"github.com/samber/oops"

	accountrepo "identity-service/backend/internal/account/repository"
	"identity-service/backend/internal/db"
	identityrepo "identity-service/backend/internal/identity/repository"
	"identity-service/backend/internal/identity/service"
)

// SQLite runs each unit of work in a database/sql transaction. Opened with _txlock=immediate,
// writers take the database lock at BEGIN and serialize.
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a unit of work over sqlDB.
func NewSQLite(sqlDB *sql.DB) *SQLite {
	return &SQLite{db: sqlDB}
}

// WithinTx has the same contract as Postgres.WithinTx.
func (s *SQLite) WithinTx(ctx context.Context, fn func(ctx context.Context, repos service.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").In("store").Wrap(db.TranslateError(err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	repos := service.Repos{
		Accounts:   accountrepo.NewSQLiteRepository(tx),
		Identities: identityrepo.NewSQLiteRepository(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	committed = true
	if err := tx.Commit(); err != nil {
		return oops.Code("TX_COMMIT_FAILED").In("store").Wrap(db.TranslateError(err))
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
