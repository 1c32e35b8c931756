// Package store implements the auth service's unit of work over Postgres and SQLite.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	accountrepo "identity-service/backend/internal/account/repository"
	"identity-service/backend/internal/db"
	identityrepo "identity-service/backend/internal/identity/repository"
	"identity-service/backend/internal/identity/service"
)

// PgxPool is the subset of *pgxpool.Pool the Postgres unit of work needs. pgxmock pools satisfy it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Postgres runs each unit of work in a read committed pgx transaction.
type Postgres struct {
	pool PgxPool
}

// NewPostgres returns a unit of work over pool.
func NewPostgres(pool PgxPool) *Postgres {
	return &Postgres{pool: pool}
}

// WithinTx begins a transaction, hands fn repositories bound to it and commits when fn returns nil.
// On error or panic the transaction is rolled back; a panic is re-raised after the rollback.
func (s *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, repos service.Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").In("store").Wrap(err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()
	repos := service.Repos{
		Accounts:   accountrepo.NewPostgresRepository(tx),
		Identities: identityrepo.NewPostgresRepository(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	committed = true
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").In("store").Wrap(db.TranslateError(err))
	}
	return nil
}

// Ping checks the database connection.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
