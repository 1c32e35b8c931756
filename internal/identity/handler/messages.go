package handler

import (
	"time"

	"identity-service/backend/internal/identity/service"
)

// RegisterRequest is the body of Register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Origin   int    `json:"origin"`
	Device   int    `json:"device"`
}

type RegisterResponse struct {
	PublicID string `json:"public_id"`
	Message  string `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SocialRequest is a sign-in already verified by the provider upstream.
type SocialRequest struct {
	Provider   string `json:"provider"`
	Type       string `json:"type"`
	ProviderID string `json:"provider_id"`
	Email      string `json:"email"`
	Device     int    `json:"device"`
	PhotoURL   string `json:"photo_url,omitempty"`
	Name       string `json:"name"`
}

// RenewRequest and MeRequest carry nothing; the api key travels in x-api-key metadata.
type RenewRequest struct{}

type MeRequest struct{}

type TokenResponse struct {
	Token     string    `json:"token"`
	APIKey    string    `json:"api_key"`
	ExpiresAt time.Time `json:"expires_at"`
	PublicID  string    `json:"public_id"`
}

type SocialResponse struct {
	TokenResponse
	Created bool `json:"created"`
	Linked  bool `json:"linked"`
}

type LinkedIdentityResponse struct {
	Provider string    `json:"provider"`
	Type     string    `json:"type"`
	LinkedAt time.Time `json:"linked_at"`
}

type ProfileResponse struct {
	PublicID   string                   `json:"public_id"`
	Name       string                   `json:"name"`
	Email      string                   `json:"email"`
	Phone      string                   `json:"phone"`
	Photo      string                   `json:"photo"`
	Status     int                      `json:"status"`
	Profile    int                      `json:"profile"`
	IsVerified bool                     `json:"is_verified"`
	Identities []LinkedIdentityResponse `json:"identities"`
}

// ErrorResponse is the HTTP error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func tokenToResponse(t *service.TokenResult) *TokenResponse {
	return &TokenResponse{Token: t.Token, APIKey: t.APIKey, ExpiresAt: t.ExpiresAt, PublicID: t.PublicID}
}

func profileToResponse(p *service.Profile) *ProfileResponse {
	out := &ProfileResponse{
		PublicID:   p.PublicID,
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone,
		Photo:      p.Photo,
		Status:     p.Status,
		Profile:    p.Profile,
		IsVerified: p.IsVerified,
		Identities: make([]LinkedIdentityResponse, 0, len(p.Identities)),
	}
	for _, i := range p.Identities {
		out.Identities = append(out.Identities, LinkedIdentityResponse{Provider: i.Provider, Type: i.Type, LinkedAt: i.LinkedAt})
	}
	return out
}
