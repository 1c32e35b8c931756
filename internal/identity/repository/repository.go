package repository

import (
	"context"

	"identity-service/backend/internal/identity/domain"
)

// Repository defines persistence for external identities. Lookups return (nil, nil) when no
// row matches. Unique-constraint failures are returned as *db.UniqueViolationError.
type Repository interface {
	// GetByProvider returns the identity bound to (provider, providerID).
	GetByProvider(ctx context.Context, provider, providerID string) (*domain.Identity, error)
	// GetByAccountAndProvider returns the account's identity for provider.
	GetByAccountAndProvider(ctx context.Context, accountID int64, provider string) (*domain.Identity, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*domain.Identity, error)
	// Create inserts the identity and sets i.ID.
	Create(ctx context.Context, i *domain.Identity) error
	// Update writes provider_id, type, device and updated_at of the identity identified by i.ID.
	Update(ctx context.Context, i *domain.Identity) error
}

const identityColumns = `id, account_id, provider, type, provider_id, device, created_at, updated_at`
