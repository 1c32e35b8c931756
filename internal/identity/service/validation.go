package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	accountdomain "identity-service/backend/internal/account/domain"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,28}$`)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegister(in RegisterInput) error {
	if !in.Device.Valid() {
		return ErrInvalidDevice
	}
	if in.Origin == accountdomain.OriginSocial {
		return ErrReservedOrigin
	}
	if in.Origin < 0 {
		return invalidArgument("origin must not be negative")
	}
	if err := validateName(in.Name); err != nil {
		return err
	}
	if n := len(in.Phone); n < 8 || n > 30 {
		return invalidArgument("phone must be between 8 and 30 characters")
	}
	if !phonePattern.MatchString(in.Phone) {
		return invalidArgument("phone contains invalid characters")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(in.Password); n < 6 || n > 128 {
		return invalidArgument("password must be between 6 and 128 characters")
	}
	return nil
}

func validateSocial(in SocialAuthInput) error {
	if !in.Device.Valid() {
		return ErrInvalidDevice
	}
	switch {
	case in.Provider == "":
		return invalidArgument("provider is required")
	case in.Type == "":
		return invalidArgument("type is required")
	case in.ProviderID == "":
		return invalidArgument("provider_id is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	return validateName(in.Name)
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < 2 || n > 120 {
		return invalidArgument("name must be between 2 and 120 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalidArgument("email is required")
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return invalidArgument("invalid email format")
	}
	return nil
}
