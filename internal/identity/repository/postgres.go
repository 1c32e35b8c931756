package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	accountdomain "identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/db"
	"identity-service/backend/internal/identity/domain"
)

type PostgresRepository struct {
	db db.PgxQuerier
}

// NewPostgresRepository returns an identity repository that uses q for persistence.
func NewPostgresRepository(q db.PgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByProvider returns the identity for (provider, providerID), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByProvider(ctx context.Context, provider, providerID string) (*domain.Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM external_identities
		WHERE provider = $1 AND provider_id = $2`, provider, providerID)
	return r.one(row, "provider")
}

// GetByAccountAndProvider returns the account's identity for provider, or nil if not found.
func (r *PostgresRepository) GetByAccountAndProvider(ctx context.Context, accountID int64, provider string) (*domain.Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM external_identities
		WHERE account_id = $1 AND provider = $2`, accountID, provider)
	return r.one(row, "account_provider")
}

// ListByAccount returns the account's identities ordered by provider.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID int64) ([]*domain.Identity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+identityColumns+` FROM external_identities
		WHERE account_id = $1 ORDER BY provider`, accountID)
	if err != nil {
		return nil, oops.Code("IDENTITY_QUERY_FAILED").In("identity").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()
	var out []*domain.Identity
	for rows.Next() {
		i, err := scanPostgresIdentity(rows)
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

// Create persists the identity and sets i.ID.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	err := r.db.QueryRow(ctx, `INSERT INTO external_identities
		(account_id, provider, type, provider_id, device, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		i.AccountID, i.Provider, i.Type, i.ProviderID, int(i.Device), i.CreatedAt, i.UpdatedAt,
	).Scan(&i.ID)
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").In("identity").
			With("account_id", i.AccountID, "provider", i.Provider).
			Wrap(db.TranslateError(err))
	}
	return nil
}

// Update rewrites the link's subject, type and device.
func (r *PostgresRepository) Update(ctx context.Context, i *domain.Identity) error {
	tag, err := r.db.Exec(ctx, `UPDATE external_identities
		SET provider_id = $2, type = $3, device = $4, updated_at = $5
		WHERE id = $1`,
		i.ID, i.ProviderID, i.Type, int(i.Device), i.UpdatedAt,
	)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").In("identity").With("identity_id", i.ID).Wrap(db.TranslateError(err))
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").In("identity").With("identity_id", i.ID).Errorf("identity %d not found", i.ID)
	}
	return nil
}

func (r *PostgresRepository) one(row pgx.Row, by string) (*domain.Identity, error) {
	i, err := scanPostgresIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.Code("IDENTITY_QUERY_FAILED").In("identity").With("by", by).Wrap(err)
	}
	return i, nil
}

func scanPostgresIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		i      domain.Identity
		device int
	)
	if err := row.Scan(&i.ID, &i.AccountID, &i.Provider, &i.Type, &i.ProviderID, &device, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.Device = accountdomain.Device(device)
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	return &i, nil
}
