package handler

import (
	"context"

	"identity-service/backend/internal/identity/service"
)

// fakeAuth implements AuthAPI with canned results and records the inputs it received.
type fakeAuth struct {
	err error

	register  service.RegisterInput
	social    service.SocialAuthInput
	loginWith [2]string
	apiKey    string
}

func (f *fakeAuth) Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error) {
	f.register = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.RegisterResult{PublicID: "101910251", Message: service.RegisteredMessage}, nil
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*service.TokenResult, error) {
	f.loginWith = [2]string{email, password}
	if f.err != nil {
		return nil, f.err
	}
	return &service.TokenResult{Token: "tok", APIKey: "key", PublicID: "101910251"}, nil
}

func (f *fakeAuth) SocialAuth(ctx context.Context, in service.SocialAuthInput) (*service.SocialResult, error) {
	f.social = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.SocialResult{TokenResult: service.TokenResult{Token: "tok", APIKey: "key"}, Created: true, Linked: true}, nil
}

func (f *fakeAuth) RenewToken(ctx context.Context, apiKey string) (*service.TokenResult, error) {
	f.apiKey = apiKey
	if f.err != nil {
		return nil, f.err
	}
	return &service.TokenResult{Token: "tok2", APIKey: apiKey}, nil
}

func (f *fakeAuth) Me(ctx context.Context, apiKey string) (*service.Profile, error) {
	f.apiKey = apiKey
	if f.err != nil {
		return nil, f.err
	}
	return &service.Profile{
		PublicID:   "101910251",
		Email:      "a@x.com",
		Identities: []service.LinkedIdentity{{Provider: "google", Type: "oauth"}},
	}, nil
}
