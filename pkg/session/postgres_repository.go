package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// Create creates a new session record.
func (r *PostgresRepository) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	query := `
		INSERT INTO sessions (account_id, jti, persistent, issued_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
		RETURNING id, jti, account_id, persistent, issued_at, expires_at, revoked_at, created_at
	`

	session := &Session{}
	var revokedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query,
		req.AccountID,
		req.JTI,
		req.Persistent,
		req.ExpiresAt,
	).Scan(
		&session.ID,
		&session.JTI,
		&session.AccountID,
		&session.Persistent,
		&session.IssuedAt,
		&session.ExpiresAt,
		&revokedAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}
	return session, nil
}

// GetByJTI retrieves a session by JTI.
func (r *PostgresRepository) GetByJTI(ctx context.Context, jti string) (*Session, error) {
	query := `
		SELECT id, jti, account_id, persistent, issued_at, expires_at, revoked_at, created_at
		FROM sessions
		WHERE jti = $1
	`

	session := &Session{}
	var revokedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, jti).Scan(
		&session.ID,
		&session.JTI,
		&session.AccountID,
		&session.Persistent,
		&session.IssuedAt,
		&session.ExpiresAt,
		&revokedAt,
		&session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}
	return session, nil
}

// RevokeByJTI revokes a session by JTI.
func (r *PostgresRepository) RevokeByJTI(ctx context.Context, jti string) error {
	query := `UPDATE sessions SET revoked_at = NOW() WHERE jti = $1 AND revoked_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, jti)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllByAccountID revokes all sessions for an account.
func (r *PostgresRepository) RevokeAllByAccountID(ctx context.Context, accountID uuid.UUID) error {
	query := `UPDATE sessions SET revoked_at = NOW() WHERE account_id = $1 AND revoked_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// IsValid reports whether the session exists, is not revoked and has not
// expired.
func (r *PostgresRepository) IsValid(ctx context.Context, jti string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE jti = $1 AND revoked_at IS NULL AND expires_at > NOW()
		)
	`

	var valid bool
	if err := r.pool.QueryRow(ctx, query, jti).Scan(&valid); err != nil {
		return false, fmt.Errorf("failed to check session validity: %w", err)
	}
	return valid, nil
}

// DeleteExpired removes expired sessions.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM sessions WHERE expires_at < NOW()`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}
