package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	accountdomain "identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/db"
	"identity-service/backend/internal/identity/domain"
)

// SQLiteRepository implements Repository over database/sql with modernc.org/sqlite.
type SQLiteRepository struct {
	db db.SQLQuerier
}

// NewSQLiteRepository returns an identity repository that uses q (a *sql.DB or *sql.Tx).
func NewSQLiteRepository(q db.SQLQuerier) *SQLiteRepository {
	return &SQLiteRepository{db: q}
}

func (r *SQLiteRepository) GetByProvider(ctx context.Context, provider, providerID string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM external_identities
		WHERE provider = ? AND provider_id = ?`, provider, providerID)
	return r.one(row, "provider")
}

func (r *SQLiteRepository) GetByAccountAndProvider(ctx context.Context, accountID int64, provider string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM external_identities
		WHERE account_id = ? AND provider = ?`, accountID, provider)
	return r.one(row, "account_provider")
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID int64) ([]*domain.Identity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM external_identities
		WHERE account_id = ? ORDER BY provider`, accountID)
	if err != nil {
		return nil, oops.Code("IDENTITY_QUERY_FAILED").In("identity").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()
	var out []*domain.Identity
	for rows.Next() {
		i, err := scanSQLiteIdentity(rows)
		if err != nil {
			return nil, oops.Code("IDENTITY_QUERY_FAILED").In("identity").With("account_id", accountID).Wrap(err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("IDENTITY_QUERY_FAILED").In("identity").With("account_id", accountID).Wrap(err)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, i *domain.Identity) error {
	err := r.db.QueryRowContext(ctx, `INSERT INTO external_identities
		(account_id, provider, type, provider_id, device, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		i.AccountID, i.Provider, i.Type, i.ProviderID, int(i.Device), db.ToMillis(i.CreatedAt), db.ToMillis(i.UpdatedAt),
	).Scan(&i.ID)
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").In("identity").
			With("account_id", i.AccountID, "provider", i.Provider).
			Wrap(db.TranslateError(err))
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, i *domain.Identity) error {
	res, err := r.db.ExecContext(ctx, `UPDATE external_identities
		SET provider_id = ?, type = ?, device = ?, updated_at = ?
		WHERE id = ?`,
		i.ProviderID, i.Type, int(i.Device), db.ToMillis(i.UpdatedAt), i.ID,
	)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").In("identity").With("identity_id", i.ID).Wrap(db.TranslateError(err))
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").In("identity").With("identity_id", i.ID).Errorf("identity %d not found", i.ID)
	}
	return nil
}

func (r *SQLiteRepository) one(row *sql.Row, by string) (*domain.Identity, error) {
	i, err := scanSQLiteIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.Code("IDENTITY_QUERY_FAILED").In("identity").With("by", by).Wrap(err)
	}
	return i, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteIdentity(row scanner) (*domain.Identity, error) {
	var (
		i                    domain.Identity
		device               int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&i.ID, &i.AccountID, &i.Provider, &i.Type, &i.ProviderID, &device, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	i.Device = accountdomain.Device(device)
	i.CreatedAt = db.FromMillis(createdAt)
	i.UpdatedAt = db.FromMillis(updatedAt)
	return &i, nil
}
