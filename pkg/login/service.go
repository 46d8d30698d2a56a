package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-sso/pkg/account"
)

// Result carries the outcome of a successful credential login.
type Result struct {
	Account           account.Account
	Message           string
	IsFirstLoginToday bool
}

// Status describes the signed-in account for the login status view.
type Status struct {
	Account           account.Account
	GreetingMessage   string
	IsBirthday        bool
	IsFirstLoginToday bool
}

// Service handles local credential logins and login status resolution.
type Service struct {
	accounts *account.AccountService
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new login service.
func NewService(accounts *account.AccountService, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the email/password pair. Unknown emails and wrong passwords
// both come back as ErrInvalidCredentials; inactive accounts are rejected
// with a message naming the user.
func (s *Service) Login(ctx context.Context, email, password string) (Result, error) {
	acct, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			slog.Info("Login attempt for unknown email", "email", email)
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, fmt.Errorf("failed to look up account: %w", err)
	}

	if bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)) != nil {
		slog.Info("Login attempt with wrong password", "email", email)
		return Result{}, ErrInvalidCredentials
	}

	if !acct.IsActive {
		slog.Warn("Login attempt for inactive account", "email", email)
		return Result{}, account.ErrAccountInactive{Name: acct.FullName()}
	}

	now := s.now()
	first, err := s.accounts.RecordLogin(ctx, acct, now)
	if err != nil {
		return Result{}, err
	}

	slog.Info("User logged in", "email", email, "account_id", acct.ID)
	return Result{
		Account:           acct,
		Message:           fmt.Sprintf("Welcome %s! You have logged in successfully.", acct.FullName()),
		IsFirstLoginToday: first,
	}, nil
}

// ResolveStatus builds the login status view for an already-authenticated
// account and touches the last login timestamp on the first login of the day.
func (s *Service) ResolveStatus(ctx context.Context, accountID uuid.UUID) (Status, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return Status{}, err
	}

	now := s.now()
	status := Status{
		Account:           acct,
		GreetingMessage:   acct.GreetMessage(now),
		IsBirthday:        acct.IsBirthday(now),
		IsFirstLoginToday: acct.IsFirstLoginOfDay(now),
	}

	if _, err := s.accounts.RecordLogin(ctx, acct, now); err != nil {
		return Status{}, err
	}
	return status, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
