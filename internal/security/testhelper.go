package security

import "time"

// testSecret is a signing secret for unit tests only. Do not use in production.
const testSecret = "test-secret-0123456789abcdef0123456789abcdef"

// NewTestTokenProvider returns a TokenProvider with a fixed test secret and a 7 day TTL.
// now may be nil to use the wall clock.
func NewTestTokenProvider(now func() time.Time) *TokenProvider {
	if now == nil {
		return NewTokenProvider([]byte(testSecret), DefaultTokenTTLDays)
	}
	return NewTokenProvider([]byte(testSecret), DefaultTokenTTLDays, WithClock(now))
}

// NewTestHasher returns a Hasher with a low iteration count so tests stay fast.
// Do not use in production; NewHasher enforces the real minimum.
func NewTestHasher() *Hasher {
	return &Hasher{Iterations: 1000}
}
