package repository

import (
	"context"

	"identity-service/backend/internal/account/domain"
)

// Repository defines persistence for accounts. Lookups return (nil, nil) when no row matches.
// Unique-constraint failures are returned as *db.UniqueViolationError.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Account, error)
	ExistsByAPIKey(ctx context.Context, apiKey string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	// Create inserts the account and sets a.ID to the store-assigned identity.
	Create(ctx context.Context, a *domain.Account) error
	// Update writes every mutable column of the account identified by a.ID.
	Update(ctx context.Context, a *domain.Account) error
}

const accountColumns = `id, photo, phone, email, name, created_at, password, status, origin,
	is_deleted, is_verified, deleted_at, profile, public_id, device, api_key`
