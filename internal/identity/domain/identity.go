package domain

import (
	"strings"
	"time"

	accountdomain "identity-service/backend/internal/account/domain"
)

// Identity links an account to a subject at a third-party provider.
// (Provider, ProviderID) belongs to at most one account, and an account has at most one
// identity per provider.
type Identity struct {
	ID         int64
	AccountID  int64
	Provider   string
	Type       string
	ProviderID string
	Device     accountdomain.Device
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Link types accepted by the default social policy.
const (
	TypeOAuth = "oauth"
	TypeToken = "token"
	TypeOIDC  = "oidc"
)

// Normalize lowercases and trims provider names and link types.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Relink points the identity at a new subject, type and device.
func (i *Identity) Relink(providerID, linkType string, device accountdomain.Device, at time.Time) {
	i.ProviderID = providerID
	i.Type = linkType
	i.Device = device
	i.UpdatedAt = at
}
