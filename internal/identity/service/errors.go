package service

import (
	"errors"

	"identity-service/backend/internal/db"
)

// Error kinds. Handlers map these to transport status codes; every other error is internal.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
)

// Error is a caller-facing failure of a given kind. Error() is the message shown to callers;
// errors.Is matches both the specific sentinel and its kind.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func invalidArgument(msg string) error { return newError(ErrInvalidArgument, msg) }

var (
	ErrInvalidDevice          = newError(ErrInvalidArgument, "device must be 10 (mobile) or 20 (desktop)")
	ErrReservedOrigin         = newError(ErrInvalidArgument, "origin is reserved")
	ErrProviderNotAllowed     = newError(ErrInvalidArgument, "provider not allowed")
	ErrEmailAlreadyRegistered = newError(ErrConflict, "email already registered")
	ErrPhoneAlreadyRegistered = newError(ErrConflict, "phone already registered")
	ErrAlreadyLinked          = newError(ErrConflict, "already linked to another user")
	ErrProviderAlreadyLinked  = newError(ErrConflict, "provider already linked to this account")
	ErrAccountUnavailable     = newError(ErrConflict, "account is not available")
	ErrAlreadyExists          = newError(ErrConflict, "already exists")
	ErrInvalidCredentials     = newError(ErrUnauthorized, "invalid credentials")
	ErrMissingAPIKey          = newError(ErrUnauthorized, "api key is required")
	ErrUnknownAPIKey          = newError(ErrForbidden, "api key not recognized")
)

// IsKind reports whether err carries one of the caller-facing kinds.
func IsKind(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden)
}

// conflictFrom turns a storage unique violation into the matching Conflict error.
// It returns nil when err is not a unique violation.
func conflictFrom(err error) error {
	var uv *db.UniqueViolationError
	if !errors.As(err, &uv) {
		return nil
	}
	switch {
	case uv.Involves("account_provider"), uv.Involves("external_identities.account_id"):
		return ErrProviderAlreadyLinked
	case uv.Involves("external_identities"):
		return ErrAlreadyLinked
	case uv.Involves("email"):
		return ErrEmailAlreadyRegistered
	case uv.Involves("phone"):
		return ErrPhoneAlreadyRegistered
	default:
		return ErrAlreadyExists
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
