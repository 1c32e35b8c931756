package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/db"
)

var accountCols = []string{"id", "photo", "phone", "email", "name", "created_at", "password", "status",
	"origin", "is_deleted", "is_verified", "deleted_at", "profile", "public_id", "device", "api_key"}

func newAccount() *domain.Account {
	return &domain.Account{
		Photo:     "https://example.com/p.jpg",
		Phone:     "+15551234567",
		Email:     "a@x.com",
		Name:      "Alice",
		CreatedAt: time.Date(2025, 10, 19, 10, 0, 0, 0, time.UTC),
		Password:  "pbkdf2_sha256$1000$aa$bb",
		Status:    domain.StatusActive,
		Origin:    1,
		Profile:   domain.ProfileDefault,
		PublicID:  domain.PendingPublicID,
		Device:    domain.DeviceMobile,
		APIKey:    "key-1",
	}
}

func TestPostgresRepository_GetByEmail(t *testing.T) {
	created := time.Date(2025, 10, 19, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantNil   bool
		wantErr   bool
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountCols).AddRow(
					int64(7), "https://example.com/p.jpg", "+15551234567", "a@x.com", "Alice", created,
					"hash", 1, 1, false, false, (*time.Time)(nil), 1, "101910257", 10, "key-1")
				mock.ExpectQuery(`(?s)SELECT .+ FROM accounts WHERE email = \$1`).
					WithArgs("a@x.com").
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`(?s)SELECT .+ FROM accounts WHERE email = \$1`).
					WithArgs("a@x.com").
					WillReturnError(pgx.ErrNoRows)
			},
			wantNil: true,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`(?s)SELECT .+ FROM accounts WHERE email = \$1`).
					WithArgs("a@x.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()
			tt.setupMock(mock)

			repo := NewPostgresRepository(mock)
			got, err := repo.GetByEmail(context.Background(), "a@x.com")

			switch {
			case tt.wantErr:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "connection refused")
			case tt.wantNil:
				require.NoError(t, err)
				assert.Nil(t, got)
			default:
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, int64(7), got.ID)
				assert.Equal(t, "a@x.com", got.Email)
				assert.Equal(t, domain.DeviceMobile, got.Device)
				assert.Equal(t, "101910257", got.PublicID)
				assert.Nil(t, got.DeletedAt)
				assert.True(t, got.CreatedAt.Equal(created))
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := newAccount()
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(a.Photo, a.Phone, a.Email, a.Name, a.CreatedAt, a.Password, a.Status,
			a.Origin, a.IsDeleted, a.IsVerified, pgxmock.AnyArg(), a.Profile, a.PublicID, 10, a.APIKey).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, NewPostgresRepository(mock).Create(context.Background(), a))
	assert.Equal(t, int64(42), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(anyArgs(15)...).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_phone_key"})

	a := newAccount()
	err = NewPostgresRepository(mock).Create(context.Background(), a)
	require.ErrorIs(t, err, db.ErrUniqueViolation)
	var uv *db.UniqueViolationError
	require.ErrorAs(t, err, &uv)
	assert.True(t, uv.Involves("phone"))
	assert.NoError(t, mock.ExpectationsWereMet())

	oe, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.NotContains(t, fmt.Sprint(oe.Context()), a.Email, "email must stay out of error context")
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresRepository_Update(t *testing.T) {
	tests := []struct {
		name    string
		result  pgconn.CommandTag
		wantErr bool
	}{
		{"updated", pgxmock.NewResult("UPDATE", 1), false},
		{"missing row", pgxmock.NewResult("UPDATE", 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			a := newAccount()
			a.ID = 42
			a.PublicID = "101910254"
			mock.ExpectExec(`UPDATE accounts SET`).
				WithArgs(a.ID, a.Photo, a.Phone, a.Email, a.Name, a.Password, a.Status, a.Origin,
					a.IsDeleted, a.IsVerified, pgxmock.AnyArg(), a.Profile, a.PublicID, 10, a.APIKey).
				WillReturnResult(tt.result)

			err = NewPostgresRepository(mock).Update(context.Background(), a)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM accounts WHERE api_key = \$1\)`).
		WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM accounts WHERE phone = \$1\)`).
		WithArgs("+1555").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	repo := NewPostgresRepository(mock)
	found, err := repo.ExistsByAPIKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsByPhone(context.Background(), "+1555")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
