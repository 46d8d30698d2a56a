package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements Repository using in-memory storage.
type InMemRepository struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
}

// NewInMemRepository creates a new in-memory session repository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		sessions: make(map[string]*Session),
	}
}

// Create creates a new session record.
func (r *InMemRepository) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	session := &Session{
		ID:         uuid.New(),
		JTI:        req.JTI,
		AccountID:  req.AccountID,
		Persistent: req.Persistent,
		IssuedAt:   now,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  now,
	}
	r.sessions[req.JTI] = session

	sessionCopy := *session
	return &sessionCopy, nil
}

// GetByJTI retrieves a session by JTI.
func (r *InMemRepository) GetByJTI(ctx context.Context, jti string) (*Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	session, exists := r.sessions[jti]
	if !exists {
		return nil, ErrSessionNotFound
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

// RevokeByJTI revokes a session by JTI.
func (r *InMemRepository) RevokeByJTI(ctx context.Context, jti string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session, exists := r.sessions[jti]
	if !exists {
		return ErrSessionNotFound
	}

	now := time.Now().UTC()
	session.RevokedAt = &now
	return nil
}

// RevokeAllByAccountID revokes all sessions for an account.
func (r *InMemRepository) RevokeAllByAccountID(ctx context.Context, accountID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	for _, session := range r.sessions {
		if session.AccountID == accountID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

// IsValid reports whether the session exists, is not revoked and has not
// expired.
func (r *InMemRepository) IsValid(ctx context.Context, jti string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	session, exists := r.sessions[jti]
	if !exists {
		return false, nil
	}
	if session.RevokedAt != nil {
		return false, nil
	}
	return session.ExpiresAt.After(time.Now()), nil
}

// DeleteExpired removes expired sessions.
func (r *InMemRepository) DeleteExpired(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	for jti, session := range r.sessions {
		if session.ExpiresAt.Before(now) {
			delete(r.sessions, jti)
		}
	}
	return nil
}
