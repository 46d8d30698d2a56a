package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateAccountParams holds the fields for a new account record.
type CreateAccountParams struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash []byte
	IsActive     bool
	DateOfBirth  time.Time
	LastLoginAt  *time.Time
}

// AccountRepository defines the interface for account and external login
// link storage.
type AccountRepository interface {
	// Account operations
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, arg CreateAccountParams) (Account, error)

	// CreateWithLink creates an account and its external login link as one
	// atomic unit. A failure on either side leaves no partial state.
	CreateWithLink(ctx context.Context, arg CreateAccountParams, provider, providerKey string) (Account, error)

	// UpdateLastLogin advances the account's last login timestamp.
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// External login link operations
	GetLink(ctx context.Context, provider, providerKey string) (ExternalLoginLink, error)
	CreateLink(ctx context.Context, accountID uuid.UUID, provider, providerKey string) (ExternalLoginLink, error)
	ListLinksByAccountID(ctx context.Context, accountID uuid.UUID) ([]ExternalLoginLink, error)
}
