package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/db"
)

// SQLiteRepository implements Repository over database/sql with modernc.org/sqlite.
// Timestamps are stored as UTC unix milliseconds.
type SQLiteRepository struct {
	db db.SQLQuerier
}

// NewSQLiteRepository returns an account repository that uses q (a *sql.DB or *sql.Tx).
func NewSQLiteRepository(q db.SQLQuerier) *SQLiteRepository {
	return &SQLiteRepository{db: q}
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.getOne(ctx, "id", id)
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, "email", email)
}

func (r *SQLiteRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.getOne(ctx, "phone", phone)
}

func (r *SQLiteRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Account, error) {
	return r.getOne(ctx, "api_key", apiKey)
}

func (r *SQLiteRepository) ExistsByAPIKey(ctx context.Context, apiKey string) (bool, error) {
	return r.exists(ctx, "api_key", apiKey)
}

func (r *SQLiteRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, "phone", phone)
}

// Create inserts a and sets a.ID from the generated rowid.
func (r *SQLiteRepository) Create(ctx context.Context, a *domain.Account) error {
	err := r.db.QueryRowContext(ctx, `INSERT INTO accounts (photo, phone, email, name, created_at, password,
		status, origin, is_deleted, is_verified, deleted_at, profile, public_id, device, api_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.Photo, a.Phone, a.Email, a.Name, db.ToMillis(a.CreatedAt), a.Password, a.Status,
		a.Origin, a.IsDeleted, a.IsVerified, nullMillis(a), a.Profile, a.PublicID, int(a.Device), a.APIKey,
	).Scan(&a.ID)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").In("account").
			With("origin", a.Origin, "device", int(a.Device)).
			Wrap(db.TranslateError(err))
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, a *domain.Account) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET photo = ?, phone = ?, email = ?, name = ?,
		password = ?, status = ?, origin = ?, is_deleted = ?, is_verified = ?, deleted_at = ?,
		profile = ?, public_id = ?, device = ?, api_key = ?
		WHERE id = ?`,
		a.Photo, a.Phone, a.Email, a.Name, a.Password, a.Status, a.Origin,
		a.IsDeleted, a.IsVerified, nullMillis(a), a.Profile, a.PublicID, int(a.Device), a.APIKey, a.ID,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").In("account").With("account_id", a.ID).Wrap(db.TranslateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").In("account").With("account_id", a.ID).Wrap(err)
	}
	if n == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").In("account").With("account_id", a.ID).Errorf("account %d not found", a.ID)
	}
	return nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, column string, arg any) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ?`, arg)
	var (
		a         domain.Account
		createdAt int64
		deletedAt sql.NullInt64
		device    int
	)
	err := row.Scan(&a.ID, &a.Photo, &a.Phone, &a.Email, &a.Name, &createdAt, &a.Password, &a.Status,
		&a.Origin, &a.IsDeleted, &a.IsVerified, &deletedAt, &a.Profile, &a.PublicID, &device, &a.APIKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").In("account").With("by", column).Wrap(err)
	}
	a.CreatedAt = db.FromMillis(createdAt)
	if deletedAt.Valid {
		t := db.FromMillis(deletedAt.Int64)
		a.DeletedAt = &t
	}
	a.Device = domain.Device(device)
	return &a, nil
}

func (r *SQLiteRepository) exists(ctx context.Context, column string, arg any) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE `+column+` = ?)`, arg).Scan(&found)
	if err != nil {
		return false, oops.Code("ACCOUNT_QUERY_FAILED").In("account").With("by", column).Wrap(err)
	}
	return found, nil
}

func nullMillis(a *domain.Account) sql.NullInt64 {
	if a.DeletedAt == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: db.ToMillis(*a.DeletedAt), Valid: true}
}
