package session

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an authenticated session: an opaque token identifier
// (the JWT jti) mapped to an account with an expiry. Transport-independent;
// the cookie layer only carries the signed token.
type Session struct {
	ID         uuid.UUID  `json:"id"`
	JTI        string     `json:"jti"`
	AccountID  uuid.UUID  `json:"account_id"`
	Persistent bool       `json:"persistent"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateSessionRequest represents the request to create a new session.
type CreateSessionRequest struct {
	AccountID  uuid.UUID `json:"account_id"`
	JTI        string    `json:"jti"`
	Persistent bool      `json:"persistent"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Principal is the resolved identity a valid session carries for a request.
type Principal struct {
	AccountID uuid.UUID
	JTI       string
}
