package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	accountdomain "identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/events"
	identitydomain "identity-service/backend/internal/identity/domain"
	policyengine "identity-service/backend/internal/policy/engine"
	"identity-service/backend/internal/security"
)

// SocialAuthInput holds a sign-in asserted by a third-party provider.
type SocialAuthInput struct {
	Provider   string
	Type       string
	ProviderID string
	Email      string
	Device     accountdomain.Device
	PhotoURL   string
	Name       string
}

// SocialResult is the outcome of SocialAuth. Created is set when the account was created by
// this call; Linked is set when a new external identity row was inserted.
type SocialResult struct {
	TokenResult
	Created bool
	Linked  bool
}

// errNeedSecret aborts a SocialAuth transaction that has to create an account before the
// placeholder password hash exists. The hash is computed outside the transaction and it reruns.
var errNeedSecret = errors.New("social: placeholder secret not hashed")

// SocialAuth finds or creates the account for in.Email and binds (provider, provider_id) to it.
// A provider subject already bound to another account is never moved.
func (s *AuthService) SocialAuth(ctx context.Context, in SocialAuthInput) (res *SocialResult, err error) {
	defer s.record(ctx, "social", &err)
	in.Provider = identitydomain.Normalize(in.Provider)
	in.Type = identitydomain.Normalize(in.Type)
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.PhotoURL = strings.TrimSpace(in.PhotoURL)
	if err := validateSocial(in); err != nil {
		return nil, err
	}
	if s.policy != nil {
		ok, err := s.policy.AllowSocial(ctx, policyengine.SocialInput{Provider: in.Provider, Type: in.Type, Device: in.Device})
		if err != nil {
			return nil, s.internal("social", err)
		}
		if !ok {
			return nil, ErrProviderNotAllowed
		}
	}

	var (
		acct            *accountdomain.Account
		created, linked bool
		secretHash      string
	)
	link := func(ctx context.Context, r Repos) error {
		created, linked = false, false
		a, err := r.Accounts.GetByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		switch {
		case a == nil && secretHash == "":
			return errNeedSecret
		case a == nil:
			a, err = s.createSocialAccount(ctx, r, in, secretHash)
			if err != nil {
				return err
			}
			created = true
		case a.IsDeleted:
			return ErrAccountUnavailable
		}
		acct = a

		bound, err := r.Identities.GetByProvider(ctx, in.Provider, in.ProviderID)
		if err != nil {
			return err
		}
		if bound != nil && bound.AccountID != a.ID {
			return ErrAlreadyLinked
		}
		now := s.now().UTC()
		current, err := r.Identities.GetByAccountAndProvider(ctx, a.ID, in.Provider)
		if err != nil {
			return err
		}
		if current != nil {
			current.Relink(in.ProviderID, in.Type, in.Device, now)
			return r.Identities.Update(ctx, current)
		}
		linked = true
		return r.Identities.Create(ctx, &identitydomain.Identity{
			AccountID:  a.ID,
			Provider:   in.Provider,
			Type:       in.Type,
			ProviderID: in.ProviderID,
			Device:     in.Device,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	err = s.uow.WithinTx(ctx, link)
	if errors.Is(err, errNeedSecret) {
		secretHash, err = s.placeholderHash()
		if err != nil {
			return nil, s.internal("social", err)
		}
		err = s.uow.WithinTx(ctx, link)
	}
	if err != nil {
		return nil, s.fail("social", err)
	}
	tr, err := s.issue(acct)
	if err != nil {
		return nil, s.internal("social", err)
	}

	var evs []events.Event
	if created {
		s.created.Add(ctx, 1, metric.WithAttributes(attribute.Int("origin", acct.Origin)))
		s.logger.Info("account created by social sign-in",
			zap.String("public_id", acct.PublicID), zap.String("provider", in.Provider))
		evs = append(evs, events.New(events.TypeAccountRegistered, acct.ID, acct.PublicID, int(acct.Device), acct.CreatedAt))
	}
	linkedEv := events.New(events.TypeAccountSocialLinked, acct.ID, acct.PublicID, int(in.Device), s.now())
	linkedEv.Provider = in.Provider
	events.PublishAsync(ctx, s.producer, s.logger, append(evs, linkedEv)...)

	return &SocialResult{TokenResult: *tr, Created: created, Linked: linked}, nil
}

// placeholderHash hashes a random secret nobody knows, the password of social-created accounts.
func (s *AuthService) placeholderHash() (string, error) {
	secret, err := security.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	return s.hasher.Hash(secret)
}

// createSocialAccount creates a verified account with a synthetic phone and the placeholder password hash.
func (s *AuthService) createSocialAccount(ctx context.Context, r Repos, in SocialAuthInput, hashed string) (*accountdomain.Account, error) {
	phone, err := security.Allocate(ctx, security.GenerateSyntheticPhone, r.Accounts.ExistsByPhone, s.maxAttempts)
	if err != nil {
		return nil, err
	}
	photo := in.PhotoURL
	if photo == "" {
		photo = s.photoURL
	}
	a := &accountdomain.Account{
		Photo:      photo,
		Phone:      phone,
		Email:      in.Email,
		Name:       in.Name,
		Password:   hashed,
		Origin:     accountdomain.OriginSocial,
		IsVerified: true,
		Device:     in.Device,
	}
	if err := s.createAccount(ctx, r, a); err != nil {
		return nil, err
	}
	return a, nil
}
