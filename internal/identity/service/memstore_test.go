package service

import (
	"context"
	"sort"
	"sync"
	"time"

	accountdomain "identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/db"
	identitydomain "identity-service/backend/internal/identity/domain"
)

// memStore is an in-memory UnitOfWork. WithinTx serializes callers and restores a snapshot
// when fn fails, the way a rolled-back transaction would.
type memStore struct {
	mu           sync.Mutex
	accounts     map[int64]accountdomain.Account
	identities   map[int64]identitydomain.Identity
	nextAccount  int64
	nextIdentity int64

	commitErr    error
	apiKeysTaken bool
	txCount      int
	longestTx    time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   make(map[int64]accountdomain.Account),
		identities: make(map[int64]identitydomain.Identity),
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	start := time.Now()
	defer func() {
		if d := time.Since(start); d > m.longestTx {
			m.longestTx = d
		}
	}()
	accounts := make(map[int64]accountdomain.Account, len(m.accounts))
	for k, v := range m.accounts {
		accounts[k] = v
	}
	identities := make(map[int64]identitydomain.Identity, len(m.identities))
	for k, v := range m.identities {
		identities[k] = v
	}
	nextAccount, nextIdentity := m.nextAccount, m.nextIdentity

	err := fn(ctx, Repos{Accounts: memAccounts{m}, Identities: memIdentities{m}})
	if err == nil && m.commitErr != nil {
		err = m.commitErr
	}
	if err != nil {
		m.accounts, m.identities = accounts, identities
		m.nextAccount, m.nextIdentity = nextAccount, nextIdentity
	}
	return err
}

// put inserts an account outside any transaction and returns its id.
func (m *memStore) put(a accountdomain.Account) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAccount++
	a.ID = m.nextAccount
	m.accounts[a.ID] = a
	return a.ID
}

func (m *memStore) longest() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.longestTx
}

func (m *memStore) account(id int64) accountdomain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

func (m *memStore) accountByEmail(email string) *accountdomain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a
		}
	}
	return nil
}

func (m *memStore) counts() (accounts, identities int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), len(m.identities)
}

func (m *memStore) identitiesOf(accountID int64) []identitydomain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []identitydomain.Identity
	for _, i := range m.identities {
		if i.AccountID == accountID {
			out = append(out, i)
		}
	}
	return out
}

type memAccounts struct{ m *memStore }

func (r memAccounts) find(match func(a accountdomain.Account) bool) *accountdomain.Account {
	for _, a := range r.m.accounts {
		if match(a) {
			return &a
		}
	}
	return nil
}

func (r memAccounts) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	return r.find(func(a accountdomain.Account) bool { return a.Email == email }), nil
}

func (r memAccounts) GetByPhone(ctx context.Context, phone string) (*accountdomain.Account, error) {
	return r.find(func(a accountdomain.Account) bool { return a.Phone == phone }), nil
}

func (r memAccounts) GetByAPIKey(ctx context.Context, apiKey string) (*accountdomain.Account, error) {
	return r.find(func(a accountdomain.Account) bool { return a.APIKey == apiKey }), nil
}

func (r memAccounts) ExistsByAPIKey(ctx context.Context, apiKey string) (bool, error) {
	if r.m.apiKeysTaken {
		return true, nil
	}
	a, _ := r.GetByAPIKey(ctx, apiKey)
	return a != nil, nil
}

func (r memAccounts) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	a, _ := r.GetByPhone(ctx, phone)
	return a != nil, nil
}

func (r memAccounts) unique(a *accountdomain.Account) error {
	for _, o := range r.m.accounts {
		if o.ID == a.ID {
			continue
		}
		switch {
		case o.Email == a.Email:
			return &db.UniqueViolationError{Constraint: "accounts_email_key"}
		case o.Phone == a.Phone:
			return &db.UniqueViolationError{Constraint: "accounts_phone_key"}
		case o.APIKey == a.APIKey:
			return &db.UniqueViolationError{Constraint: "accounts_api_key_key"}
		case o.PublicID == a.PublicID:
			return &db.UniqueViolationError{Constraint: "accounts_public_id_key"}
		}
	}
	return nil
}

func (r memAccounts) Create(ctx context.Context, a *accountdomain.Account) error {
	if err := r.unique(a); err != nil {
		return err
	}
	r.m.nextAccount++
	a.ID = r.m.nextAccount
	r.m.accounts[a.ID] = *a
	return nil
}

func (r memAccounts) Update(ctx context.Context, a *accountdomain.Account) error {
	if err := r.unique(a); err != nil {
		return err
	}
	r.m.accounts[a.ID] = *a
	return nil
}

type memIdentities struct{ m *memStore }

func (r memIdentities) find(match func(i identitydomain.Identity) bool) *identitydomain.Identity {
	for _, i := range r.m.identities {
		if match(i) {
			return &i
		}
	}
	return nil
}

func (r memIdentities) GetByProvider(ctx context.Context, provider, providerID string) (*identitydomain.Identity, error) {
	return r.find(func(i identitydomain.Identity) bool {
		return i.Provider == provider && i.ProviderID == providerID
	}), nil
}

func (r memIdentities) GetByAccountAndProvider(ctx context.Context, accountID int64, provider string) (*identitydomain.Identity, error) {
	return r.find(func(i identitydomain.Identity) bool {
		return i.AccountID == accountID && i.Provider == provider
	}), nil
}

func (r memIdentities) ListByAccount(ctx context.Context, accountID int64) ([]*identitydomain.Identity, error) {
	var out []*identitydomain.Identity
	for _, i := range r.m.identities {
		if i.AccountID == accountID {
			out = append(out, &i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Provider < out[b].Provider })
	return out, nil
}

func (r memIdentities) unique(i *identitydomain.Identity) error {
	for _, o := range r.m.identities {
		if o.ID == i.ID {
			continue
		}
		if o.Provider == i.Provider && o.ProviderID == i.ProviderID {
			return &db.UniqueViolationError{Constraint: "external_identities_provider_key"}
		}
		if o.AccountID == i.AccountID && o.Provider == i.Provider {
			return &db.UniqueViolationError{Constraint: "external_identities_account_provider_key"}
		}
	}
	return nil
}

func (r memIdentities) Create(ctx context.Context, i *identitydomain.Identity) error {
	if err := r.unique(i); err != nil {
		return err
	}
	r.m.nextIdentity++
	i.ID = r.m.nextIdentity
	r.m.identities[i.ID] = *i
	return nil
}

func (r memIdentities) Update(ctx context.Context, i *identitydomain.Identity) error {
	if err := r.unique(i); err != nil {
		return err
	}
	r.m.identities[i.ID] = *i
	return nil
}
