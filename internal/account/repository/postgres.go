package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/db"
)

// PostgresRepository implements Repository over pgx. It runs against whatever querier it is
// given, so a transaction-bound instance sees the transaction's writes.
type PostgresRepository struct {
	db db.PgxQuerier
}

// NewPostgresRepository returns an account repository that uses q for persistence.
func NewPostgresRepository(q db.PgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByID returns the account for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail returns the account with the given (already normalized) email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, "email", email)
}

// GetByPhone returns the account with the given phone, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.getOne(ctx, "phone", phone)
}

// GetByAPIKey returns the account whose api_key matches exactly, or nil if not found.
func (r *PostgresRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Account, error) {
	return r.getOne(ctx, "api_key", apiKey)
}

// ExistsByAPIKey reports whether any account holds apiKey.
func (r *PostgresRepository) ExistsByAPIKey(ctx context.Context, apiKey string) (bool, error) {
	return r.exists(ctx, "api_key", apiKey)
}

// ExistsByPhone reports whether any account holds phone.
func (r *PostgresRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, "phone", phone)
}

// Create inserts a and sets a.ID from the generated key.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	err := r.db.QueryRow(ctx, `INSERT INTO accounts (photo, phone, email, name, created_at, password, status,
		origin, is_deleted, is_verified, deleted_at, profile, public_id, device, api_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		a.Photo, a.Phone, a.Email, a.Name, a.CreatedAt, a.Password, a.Status,
		a.Origin, a.IsDeleted, a.IsVerified, a.DeletedAt, a.Profile, a.PublicID, int(a.Device), a.APIKey,
	).Scan(&a.ID)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").In("account").
			With("origin", a.Origin, "device", int(a.Device)).
			Wrap(db.TranslateError(err))
	}
	return nil
}

// Update writes the mutable columns of a. The id and created_at never change.
func (r *PostgresRepository) Update(ctx context.Context, a *domain.Account) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET photo = $2, phone = $3, email = $4, name = $5,
		password = $6, status = $7, origin = $8, is_deleted = $9, is_verified = $10, deleted_at = $11,
		profile = $12, public_id = $13, device = $14, api_key = $15
		WHERE id = $1`,
		a.ID, a.Photo, a.Phone, a.Email, a.Name, a.Password, a.Status, a.Origin,
		a.IsDeleted, a.IsVerified, a.DeletedAt, a.Profile, a.PublicID, int(a.Device), a.APIKey,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").In("account").With("account_id", a.ID).Wrap(db.TranslateError(err))
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").In("account").With("account_id", a.ID).Errorf("account %d not found", a.ID)
	}
	return nil
}

// column is always one of the fixed names above, never caller input.
func (r *PostgresRepository) getOne(ctx context.Context, column string, arg any) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, arg)
	a, err := scanPostgresAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").In("account").With("by", column).Wrap(err)
	}
	return a, nil
}

func (r *PostgresRepository) exists(ctx context.Context, column string, arg any) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE `+column+` = $1)`, arg).Scan(&found)
	if err != nil {
		return false, oops.Code("ACCOUNT_QUERY_FAILED").In("account").With("by", column).Wrap(err)
	}
	return found, nil
}

func scanPostgresAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a         domain.Account
		createdAt time.Time
		deletedAt *time.Time
		device    int
	)
	err := row.Scan(&a.ID, &a.Photo, &a.Phone, &a.Email, &a.Name, &createdAt, &a.Password, &a.Status,
		&a.Origin, &a.IsDeleted, &a.IsVerified, &deletedAt, &a.Profile, &a.PublicID, &device, &a.APIKey)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = createdAt.UTC()
	if deletedAt != nil {
		t := deletedAt.UTC()
		a.DeletedAt = &t
	}
	a.Device = domain.Device(device)
	return &a, nil
}
