package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Account is a registered end user.
type Account struct {
	ID         int64
	Photo      string
	Phone      string
	Email      string
	Name       string
	CreatedAt  time.Time
	Password   string // encoded hash, never plaintext
	Status     int
	Origin     int
	IsDeleted  bool
	IsVerified bool
	DeletedAt  *time.Time
	Profile    int
	PublicID   string
	Device     Device
	APIKey     string
}

// Device identifies the client class an account or link was created from.
type Device int

const (
	DeviceMobile  Device = 10
	DeviceDesktop Device = 20
)

// Valid reports whether d is a known device code.
func (d Device) Valid() bool {
	return d == DeviceMobile || d == DeviceDesktop
}

const (
	StatusActive = 1

	ProfileDefault = 1

	// OriginSocial marks accounts created by social authentication. Clients may not register with it.
	OriginSocial = 90

	// PendingPublicID is held by public_id only inside the creating transaction.
	PendingPublicID = "pending"
)

// Active reports whether the account may authenticate.
func (a *Account) Active() bool {
	return !a.IsDeleted && a.Status == StatusActive
}

// DerivePublicID builds <device><DDMMYY of createdAt in UTC><id>.
func DerivePublicID(device Device, createdAt time.Time, id int64) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(device)))
	b.WriteString(createdAt.UTC().Format("020106"))
	b.WriteString(strconv.FormatInt(id, 10))
	return b.String()
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.Phone == "" {
		return errors.New("phone is required")
	}
	if a.Password == "" {
		return errors.New("password hash is required")
	}
	if a.APIKey == "" {
		return errors.New("api key is required")
	}
	if a.PublicID == "" {
		return errors.New("public id is required")
	}
	if !a.Device.Valid() {
		return errors.New("device is invalid")
	}
	if a.Status == 0 {
		a.Status = StatusActive
	}
	if a.Profile == 0 {
		a.Profile = ProfileDefault
	}
	return nil
}
