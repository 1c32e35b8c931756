package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, forged, or expired.
	// The causes are deliberately not distinguished.
	ErrInvalidToken = errors.New("invalid token")
)

// DefaultTokenTTLDays is the token lifetime used when the configured value is not positive.
const DefaultTokenTTLDays = 7

// ProfileClaims is the flat claim set carried by identity tokens.
type ProfileClaims struct {
	jwt.RegisteredClaims
	Photo    string `json:"photo"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Status   int    `json:"status"`
	PublicID string `json:"public_id"`
	Profile  int    `json:"profile"`
}

// TokenProvider issues and validates HS256 identity tokens with a server-held secret.
type TokenProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenProvider.
type TokenOption func(*TokenProvider)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) { p.now = now }
}

// NewTokenProvider returns a TokenProvider signing with secret; tokens expire ttlDays after issue.
func NewTokenProvider(secret []byte, ttlDays int, opts ...TokenOption) *TokenProvider {
	if ttlDays <= 0 {
		ttlDays = DefaultTokenTTLDays
	}
	p := &TokenProvider{
		secret: secret,
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TTL returns the token lifetime.
func (p *TokenProvider) TTL() time.Duration {
	return p.ttl
}

// Issue signs claims with an expiry of now + TTL. Registered claims other than exp and iat are ignored.
// Returns the token string and its expiration time.
func (p *TokenProvider) Issue(claims ProfileClaims) (string, time.Time, error) {
	if len(p.secret) == 0 {
		return "", time.Time{}, errors.New("token secret is not configured")
	}
	now := p.now().UTC()
	expiresAt := now.Add(p.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := t.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses and validates tokenString (signature, alg, exp) and returns its claims.
// Every failure is reported as ErrInvalidToken.
func (p *TokenProvider) Verify(tokenString string) (*ProfileClaims, error) {
	if tokenString == "" || len(p.secret) == 0 {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &ProfileClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*ProfileClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
