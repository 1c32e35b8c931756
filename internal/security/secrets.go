package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// SyntheticPhonePrefix marks phone values generated for accounts that never supplied one.
// Real phone numbers are validated to start with a digit or '+', so the two spaces never meet.
const SyntheticPhonePrefix = "sx-"

const (
	apiKeyBytes         = 48
	syntheticPhoneBytes = 12
)

// GenerateAPIKey returns a URL-safe random secret backed by 48 bytes from crypto/rand.
// It is used for API keys and for one-off secrets such as unusable placeholder passwords.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateSyntheticPhone returns SyntheticPhonePrefix followed by 24 random hex characters.
func GenerateSyntheticPhone() (string, error) {
	b := make([]byte, syntheticPhoneBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return SyntheticPhonePrefix + hex.EncodeToString(b), nil
}
