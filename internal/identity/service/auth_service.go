package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	accountdomain "identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/events"
	identitydomain "identity-service/backend/internal/identity/domain"
	"identity-service/backend/internal/logging"
	policyengine "identity-service/backend/internal/policy/engine"
	"identity-service/backend/internal/security"
)

// DefaultPhotoURL is stored for accounts created without a photo.
const DefaultPhotoURL = "https://juca.eu.org/img/icon_dafault.jpg"

// RegisteredMessage is returned with every successful registration.
const RegisteredMessage = "User created successfully."

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*accountdomain.Account, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*accountdomain.Account, error)
	ExistsByAPIKey(ctx context.Context, apiKey string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	Update(ctx context.Context, a *accountdomain.Account) error
}

// IdentityRepo is the minimal external identity repository needed by the auth service.
type IdentityRepo interface {
	GetByProvider(ctx context.Context, provider, providerID string) (*identitydomain.Identity, error)
	GetByAccountAndProvider(ctx context.Context, accountID int64, provider string) (*identitydomain.Identity, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
	Update(ctx context.Context, i *identitydomain.Identity) error
}

// Repos are the repositories bound to one transaction.
type Repos struct {
	Accounts   AccountRepo
	Identities IdentityRepo
}

// UnitOfWork runs fn in a single transaction. It commits only when fn returns nil and rolls back
// on error or panic.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

// RegisterInput holds the fields of a password registration.
type RegisterInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
	Origin   int
	Device   accountdomain.Device
}

// RegisterResult is the outcome of Register.
type RegisterResult struct {
	PublicID string
	Message  string
}

// TokenResult is a freshly issued token with the account's api key.
type TokenResult struct {
	Token     string
	APIKey    string
	ExpiresAt time.Time
	PublicID  string
}

// LinkedIdentity is the public view of an external identity.
type LinkedIdentity struct {
	Provider string
	Type     string
	LinkedAt time.Time
}

// Profile is the read-only view returned by Me.
type Profile struct {
	PublicID   string
	Name       string
	Email      string
	Phone      string
	Photo      string
	Status     int
	Profile    int
	IsVerified bool
	Identities []LinkedIdentity
}

// AuthService implements password registration and login, social sign-in, token renewal and
// the profile view.
type AuthService struct {
	uow         UnitOfWork
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	policy      policyengine.Evaluator
	producer    events.Producer
	logger      *zap.Logger
	now         func() time.Time
	photoURL    string
	attempts    metric.Int64Counter
	created     metric.Int64Counter
	dummyOnce   sync.Once
	dummyHash   string
	maxAttempts int
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithPolicy sets the social admission policy. Without one every provider is admitted.
func WithPolicy(p policyengine.Evaluator) Option {
	return func(s *AuthService) { s.policy = p }
}

// WithProducer sets the producer account events are published to after commit.
func WithProducer(p events.Producer) Option {
	return func(s *AuthService) { s.producer = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

// WithMeter sets the meter the auth counters are created on. Defaults to the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(s *AuthService) { s.initCounters(m) }
}

// WithClock overrides the time source for account and identity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithDefaultPhoto overrides DefaultPhotoURL. An empty url is ignored.
func WithDefaultPhoto(url string) Option {
	return func(s *AuthService) {
		if url != "" {
			s.photoURL = url
		}
	}
}

// WithMaxAllocationAttempts bounds the api key and synthetic phone allocation loops.
func WithMaxAllocationAttempts(n int) Option {
	return func(s *AuthService) { s.maxAttempts = n }
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(uow UnitOfWork, hasher *security.Hasher, tokens *security.TokenProvider, opts ...Option) *AuthService {
	s := &AuthService{
		uow:         uow,
		hasher:      hasher,
		tokens:      tokens,
		producer:    events.Noop{},
		logger:      zap.NewNop(),
		now:         time.Now,
		photoURL:    DefaultPhotoURL,
		maxAttempts: security.MaxAllocationAttempts,
	}
	s.initCounters(otel.Meter("identity-service/backend/internal/identity/service"))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) initCounters(m metric.Meter) {
	// Instrument creation only fails on invalid names; the returned no-op counter is still usable.
	s.attempts, _ = m.Int64Counter("identity.auth.attempts",
		metric.WithDescription("Authentication operations by operation and outcome."))
	s.created, _ = m.Int64Counter("identity.accounts.created",
		metric.WithDescription("Accounts created by origin."))
}

// Register creates a password account. The email and phone must be unused.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *RegisterResult, err error) {
	defer s.record(ctx, "register", &err)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateRegister(in); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal("register", err)
	}
	var acct *accountdomain.Account
	err = s.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		existing, err := r.Accounts.GetByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailAlreadyRegistered
		}
		existing, err = r.Accounts.GetByPhone(ctx, in.Phone)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrPhoneAlreadyRegistered
		}
		acct = &accountdomain.Account{
			Photo:    s.photoURL,
			Phone:    in.Phone,
			Email:    in.Email,
			Name:     in.Name,
			Password: hashed,
			Origin:   in.Origin,
			Device:   in.Device,
		}
		return s.createAccount(ctx, r, acct)
	})
	if err != nil {
		return nil, s.fail("register", err)
	}
	s.created.Add(ctx, 1, metric.WithAttributes(attribute.Int("origin", acct.Origin)))
	s.logger.Info("account registered", zap.String("public_id", acct.PublicID), zap.Int("device", int(acct.Device)))
	events.PublishAsync(ctx, s.producer, s.logger,
		events.New(events.TypeAccountRegistered, acct.ID, acct.PublicID, int(acct.Device), acct.CreatedAt))
	return &RegisterResult{PublicID: acct.PublicID, Message: RegisteredMessage}, nil
}

// Login authenticates by email and password and issues a token. A missing account, a wrong
// password and an account that may not sign in all return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *TokenResult, err error) {
	defer s.record(ctx, "login", &err)
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	// Verification and rehashing run after the read transaction has ended.
	var acct *accountdomain.Account
	err = s.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		acct, err = r.Accounts.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		return nil, s.fail("login", err)
	}
	if acct == nil {
		s.hasher.Verify(password, s.dummy())
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, acct.Password) || !acct.Active() {
		return nil, ErrInvalidCredentials
	}
	if s.hasher.NeedsRehash(acct.Password) {
		s.rehash(ctx, acct, password)
	}
	res, err = s.issue(acct)
	if err != nil {
		return nil, s.internal("login", err)
	}
	events.PublishAsync(ctx, s.producer, s.logger,
		events.New(events.TypeAccountLogin, acct.ID, acct.PublicID, int(acct.Device), s.now()))
	return res, nil
}

// rehash upgrades a stale password hash. The new hash is computed first; the write is skipped
// when the stored hash changed in the meantime. Failures are logged and do not fail the login.
func (s *AuthService) rehash(ctx context.Context, acct *accountdomain.Account, password string) {
	upgraded, err := s.hasher.Hash(password)
	if err != nil {
		logging.LogError(s.logger, "password rehash failed", s.internal("login", err))
		return
	}
	stale := acct.Password
	err = s.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		current, err := r.Accounts.GetByEmail(ctx, acct.Email)
		if err != nil || current == nil || current.Password != stale {
			return err
		}
		current.Password = upgraded
		return r.Accounts.Update(ctx, current)
	})
	if err != nil {
		logging.LogError(s.logger, "password rehash failed", s.internal("login", err),
			zap.Int64("account_id", acct.ID))
		return
	}
	acct.Password = upgraded
}

// RenewToken issues a fresh token for the account holding apiKey.
func (s *AuthService) RenewToken(ctx context.Context, apiKey string) (res *TokenResult, err error) {
	defer s.record(ctx, "renew", &err)
	acct, err := s.accountByAPIKey(ctx, apiKey, nil)
	if err != nil {
		return nil, s.fail("renew", err)
	}
	res, err = s.issue(acct)
	if err != nil {
		return nil, s.internal("renew", err)
	}
	return res, nil
}

// Me returns the profile of the account holding apiKey with its linked providers.
func (s *AuthService) Me(ctx context.Context, apiKey string) (p *Profile, err error) {
	defer s.record(ctx, "me", &err)
	var linked []*identitydomain.Identity
	acct, err := s.accountByAPIKey(ctx, apiKey, func(ctx context.Context, r Repos, a *accountdomain.Account) error {
		var err error
		linked, err = r.Identities.ListByAccount(ctx, a.ID)
		return err
	})
	if err != nil {
		return nil, s.fail("me", err)
	}
	p = &Profile{
		PublicID:   acct.PublicID,
		Name:       acct.Name,
		Email:      acct.Email,
		Phone:      acct.Phone,
		Photo:      acct.Photo,
		Status:     acct.Status,
		Profile:    acct.Profile,
		IsVerified: acct.IsVerified,
		Identities: make([]LinkedIdentity, 0, len(linked)),
	}
	for _, i := range linked {
		p.Identities = append(p.Identities, LinkedIdentity{Provider: i.Provider, Type: i.Type, LinkedAt: i.CreatedAt})
	}
	return p, nil
}

// accountByAPIKey resolves apiKey in a transaction and runs then, if set, in the same transaction.
// Deleted and non-active accounts are treated as unknown keys, as Login treats them as bad credentials.
func (s *AuthService) accountByAPIKey(
	ctx context.Context,
	apiKey string,
	then func(ctx context.Context, r Repos, a *accountdomain.Account) error,
) (*accountdomain.Account, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var acct *accountdomain.Account
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		a, err := r.Accounts.GetByAPIKey(ctx, apiKey)
		if err != nil {
			return err
		}
		if a == nil || !a.Active() {
			return ErrUnknownAPIKey
		}
		acct = a
		if then != nil {
			return then(ctx, r, a)
		}
		return nil
	})
	return acct, err
}

// createAccount allocates the api key, inserts acct with the pending public id and then writes
// the derived one. acct.Origin, Device and the identifying fields must be set.
func (s *AuthService) createAccount(ctx context.Context, r Repos, acct *accountdomain.Account) error {
	key, err := security.Allocate(ctx, security.GenerateAPIKey, r.Accounts.ExistsByAPIKey, s.maxAttempts)
	if err != nil {
		return err
	}
	acct.APIKey = key
	acct.CreatedAt = s.now().UTC()
	acct.Status = accountdomain.StatusActive
	acct.Profile = accountdomain.ProfileDefault
	acct.PublicID = accountdomain.PendingPublicID
	if err := acct.Validate(); err != nil {
		return err
	}
	if err := r.Accounts.Create(ctx, acct); err != nil {
		return err
	}
	acct.PublicID = accountdomain.DerivePublicID(acct.Device, acct.CreatedAt, acct.ID)
	return r.Accounts.Update(ctx, acct)
}

func (s *AuthService) issue(a *accountdomain.Account) (*TokenResult, error) {
	token, exp, err := s.tokens.Issue(security.ProfileClaims{
		Photo:    a.Photo,
		Phone:    a.Phone,
		Email:    a.Email,
		Name:     a.Name,
		Status:   a.Status,
		PublicID: a.PublicID,
		Profile:  a.Profile,
	})
	if err != nil {
		return nil, err
	}
	return &TokenResult{Token: token, APIKey: a.APIKey, ExpiresAt: exp, PublicID: a.PublicID}, nil
}

// dummy returns a hash Login verifies against when no account matches, so the response time
// does not reveal whether the email exists.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}

// fail maps store unique violations to Conflict, passes caller-facing kinds through and wraps
// everything else as internal.
func (s *AuthService) fail(op string, err error) error {
	if c := conflictFrom(err); c != nil {
		return c
	}
	if IsKind(err) {
		return err
	}
	return s.internal(op, err)
}

func (s *AuthService) internal(op string, err error) error {
	return oops.Code("AUTH_" + strings.ToUpper(op) + "_FAILED").In("auth").With("operation", op).Wrap(err)
}

func (s *AuthService) record(ctx context.Context, op string, err *error) {
	s.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome(*err)),
	))
}
