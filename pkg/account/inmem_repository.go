package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type linkKey struct {
	provider    string
	providerKey string
}

// InMemAccountRepository implements AccountRepository using in-memory
// storage. Intended for tests and local development.
type InMemAccountRepository struct {
	mutex    sync.RWMutex
	accounts map[uuid.UUID]*Account
	byEmail  map[string]uuid.UUID
	links    map[linkKey]*ExternalLoginLink
}

// NewInMemAccountRepository creates a new in-memory account repository.
func NewInMemAccountRepository() *InMemAccountRepository {
	return &InMemAccountRepository{
		accounts: make(map[uuid.UUID]*Account),
		byEmail:  make(map[string]uuid.UUID),
		links:    make(map[linkKey]*ExternalLoginLink),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByID retrieves an account by ID.
func (r *InMemAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	acct, exists := r.accounts[id]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return *acct, nil
}

// GetByEmail retrieves an account by email.
func (r *InMemAccountRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, exists := r.byEmail[normalizeEmail(email)]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return *r.accounts[id], nil
}

// Create creates a new account. The email must not already exist.
func (r *InMemAccountRepository) Create(ctx context.Context, arg CreateAccountParams) (Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.createLocked(arg)
}

func (r *InMemAccountRepository) createLocked(arg CreateAccountParams) (Account, error) {
	email := normalizeEmail(arg.Email)
	if _, exists := r.byEmail[email]; exists {
		return Account{}, ErrEmailAlreadyExists{Email: arg.Email}
	}

	acct := &Account{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    arg.FirstName,
		LastName:     arg.LastName,
		PasswordHash: arg.PasswordHash,
		IsActive:     arg.IsActive,
		DateOfBirth:  arg.DateOfBirth,
		CreatedAt:    time.Now().UTC(),
		LastLoginAt:  arg.LastLoginAt,
	}
	r.accounts[acct.ID] = acct
	r.byEmail[email] = acct.ID
	return *acct, nil
}

// CreateWithLink creates an account and its external login link in one
// locked section so no orphaned account can be observed.
func (r *InMemAccountRepository) CreateWithLink(ctx context.Context, arg CreateAccountParams, provider, providerKey string) (Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := linkKey{provider: provider, providerKey: providerKey}
	if _, exists := r.links[key]; exists {
		return Account{}, ErrLinkAlreadyExists{Provider: provider, ProviderKey: providerKey}
	}

	acct, err := r.createLocked(arg)
	if err != nil {
		return Account{}, err
	}

	r.links[key] = &ExternalLoginLink{
		Provider:    provider,
		ProviderKey: providerKey,
		AccountID:   acct.ID,
		CreatedAt:   time.Now().UTC(),
	}
	return acct, nil
}

// UpdateLastLogin advances the account's last login timestamp. The timestamp
// never moves backwards.
func (r *InMemAccountRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	acct, exists := r.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	if acct.LastLoginAt != nil && acct.LastLoginAt.After(at) {
		return nil
	}
	t := at
	acct.LastLoginAt = &t
	return nil
}

// GetLink retrieves an external login link by (provider, provider_key).
func (r *InMemAccountRepository) GetLink(ctx context.Context, provider, providerKey string) (ExternalLoginLink, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	link, exists := r.links[linkKey{provider: provider, providerKey: providerKey}]
	if !exists {
		return ExternalLoginLink{}, ErrLinkNotFound
	}
	return *link, nil
}

// CreateLink links an existing account to an external identity.
func (r *InMemAccountRepository) CreateLink(ctx context.Context, accountID uuid.UUID, provider, providerKey string) (ExternalLoginLink, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.accounts[accountID]; !exists {
		return ExternalLoginLink{}, ErrAccountNotFound
	}

	key := linkKey{provider: provider, providerKey: providerKey}
	if _, exists := r.links[key]; exists {
		return ExternalLoginLink{}, ErrLinkAlreadyExists{Provider: provider, ProviderKey: providerKey}
	}

	link := &ExternalLoginLink{
		Provider:    provider,
		ProviderKey: providerKey,
		AccountID:   accountID,
		CreatedAt:   time.Now().UTC(),
	}
	r.links[key] = link
	return *link, nil
}

// ListLinksByAccountID returns all external login links for an account.
func (r *InMemAccountRepository) ListLinksByAccountID(ctx context.Context, accountID uuid.UUID) ([]ExternalLoginLink, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []ExternalLoginLink
	for _, link := range r.links {
		if link.AccountID == accountID {
			result = append(result, *link)
		}
	}
	return result, nil
}
