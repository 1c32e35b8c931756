// Package events publishes account lifecycle events after a unit of work commits.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeAccountRegistered   = "account.registered"
	TypeAccountSocialLinked = "account.social_linked"
	TypeAccountLogin        = "account.login"
)

// Event is the JSON payload written to the events topic.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AccountID  int64     `json:"account_id"`
	PublicID   string    `json:"public_id"`
	Provider   string    `json:"provider,omitempty"`
	Device     int       `json:"device"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New returns an event of type typ with a fresh id.
func New(typ string, accountID int64, publicID string, device int, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		AccountID:  accountID,
		PublicID:   publicID,
		Device:     device,
		OccurredAt: at.UTC(),
	}
}
