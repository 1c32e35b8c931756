package engine

import (
	"context"

	accountdomain "identity-service/backend/internal/account/domain"
)

// SocialInput is the request attributes a social sign-in is admitted on.
type SocialInput struct {
	Provider string
	Type     string
	Device   accountdomain.Device
}

// Evaluator decides whether a social sign-in may proceed.
type Evaluator interface {
	// AllowSocial reports whether the provider and link type are admitted.
	// An error means the policy could not be evaluated, not that the request was denied.
	AllowSocial(ctx context.Context, in SocialInput) (bool, error)
}
