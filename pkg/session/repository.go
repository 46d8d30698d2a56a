package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session matches the lookup key.
var ErrSessionNotFound = errors.New("session not found")

// Repository defines the interface for session storage.
type Repository interface {
	// Create a new session record
	Create(ctx context.Context, req CreateSessionRequest) (*Session, error)

	// Get a session by JTI
	GetByJTI(ctx context.Context, jti string) (*Session, error)

	// Revoke a session by JTI
	RevokeByJTI(ctx context.Context, jti string) error

	// Revoke all sessions for an account
	RevokeAllByAccountID(ctx context.Context, accountID uuid.UUID) error

	// Check if a session is valid (exists, not revoked, not expired)
	IsValid(ctx context.Context, jti string) (bool, error)

	// Cleanup expired sessions (for maintenance)
	DeleteExpired(ctx context.Context) error
}
