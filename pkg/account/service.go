package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AccountService provides account lookup, provisioning and login bookkeeping
// on top of an AccountRepository.
type AccountService struct {
	repo AccountRepository
}

// NewAccountService creates a new account service.
func NewAccountService(repo AccountRepository) *AccountService {
	return &AccountService{
		repo: repo,
	}
}

// GetByID retrieves an account by ID.
func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByEmail retrieves an account by email.
func (s *AccountService) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.repo.GetByEmail(ctx, email)
}

// FindByExternalLogin resolves the account linked to the given
// (provider, provider_key) pair.
func (s *AccountService) FindByExternalLogin(ctx context.Context, provider, providerKey string) (Account, error) {
	link, err := s.repo.GetLink(ctx, provider, providerKey)
	if err != nil {
		return Account{}, err
	}
	return s.repo.GetByID(ctx, link.AccountID)
}

// LinkExternal associates an existing account with an external identity.
func (s *AccountService) LinkExternal(ctx context.Context, accountID uuid.UUID, provider, providerKey string) error {
	_, err := s.repo.CreateLink(ctx, accountID, provider, providerKey)
	return err
}

// ProvisionExternal creates a new account from externally asserted fields
// and links it to the external identity in one atomic unit. A unique-email
// conflict means another callback won the race; the winner's account is
// looked up and linked instead of surfacing the conflict.
func (s *AccountService) ProvisionExternal(ctx context.Context, arg CreateAccountParams, provider, providerKey string) (Account, error) {
	arg.IsActive = true

	acct, err := s.repo.CreateWithLink(ctx, arg, provider, providerKey)
	if err == nil {
		slog.Info("Provisioned new account from external login",
			"email", acct.Email, "provider", provider, "account_id", acct.ID)
		return acct, nil
	}

	var emailExists ErrEmailAlreadyExists
	if errors.As(err, &emailExists) {
		slog.Warn("Concurrent provisioning detected, retrying lookup", "email", arg.Email, "provider", provider)
		acct, lookupErr := s.repo.GetByEmail(ctx, arg.Email)
		if lookupErr != nil {
			return Account{}, fmt.Errorf("failed to resolve account after create conflict: %w", lookupErr)
		}
		if linkErr := s.LinkExternal(ctx, acct.ID, provider, providerKey); linkErr != nil {
			var linkExists ErrLinkAlreadyExists
			if !errors.As(linkErr, &linkExists) {
				return Account{}, linkErr
			}
		}
		return acct, nil
	}

	// The same race can lose on the link side first: a concurrent callback
	// already claimed (provider, provider_key). The linked account wins.
	var linkExists ErrLinkAlreadyExists
	if errors.As(err, &linkExists) {
		slog.Warn("Concurrent provisioning detected, resolving linked account", "provider", provider, "provider_key", providerKey)
		acct, lookupErr := s.FindByExternalLogin(ctx, provider, providerKey)
		if lookupErr != nil {
			return Account{}, fmt.Errorf("failed to resolve account after link conflict: %w", lookupErr)
		}
		return acct, nil
	}

	return Account{}, err
}

// RecordLogin advances the account's last login timestamp on the first login
// of the calendar day. It reports whether this login was the day's first.
func (s *AccountService) RecordLogin(ctx context.Context, acct Account, now time.Time) (bool, error) {
	if !acct.IsFirstLoginOfDay(now) {
		return false, nil
	}
	if err := s.repo.UpdateLastLogin(ctx, acct.ID, now); err != nil {
		return false, fmt.Errorf("failed to record login: %w", err)
	}
	return true, nil
}
