package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository backed by Redis. Expiry is delegated
// to key TTLs, so DeleteExpired is a no-op.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-backed session repository.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
		prefix: "session:",
	}
}

func (r *RedisRepository) key(jti string) string {
	return r.prefix + jti
}

func (r *RedisRepository) accountKey(accountID uuid.UUID) string {
	return r.prefix + "account:" + accountID.String()
}

// Create creates a new session record with a TTL matching its expiry.
func (r *RedisRepository) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	ttl := time.Until(req.ExpiresAt)
	if ttl <= 0 {
		return nil, fmt.Errorf("expires_at must be in the future")
	}

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

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(req.JTI), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	// Track the account's JTIs for bulk revocation; expires with the
	// longest-lived member.
	if err := r.client.SAdd(ctx, r.accountKey(req.AccountID), req.JTI).Err(); err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}
	if err := r.client.ExpireGT(ctx, r.accountKey(req.AccountID), ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to set index expiry: %w", err)
	}

	return session, nil
}

// GetByJTI retrieves a session by JTI.
func (r *RedisRepository) GetByJTI(ctx context.Context, jti string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// RevokeByJTI revokes a session by deleting its key.
func (r *RedisRepository) RevokeByJTI(ctx context.Context, jti string) error {
	deleted, err := r.client.Del(ctx, r.key(jti)).Result()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if deleted == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllByAccountID revokes all sessions for an account.
func (r *RedisRepository) RevokeAllByAccountID(ctx context.Context, accountID uuid.UUID) error {
	jtis, err := r.client.SMembers(ctx, r.accountKey(accountID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list account sessions: %w", err)
	}

	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, r.key(jti))
	}
	keys = append(keys, r.accountKey(accountID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// IsValid reports whether the session still exists. Redis TTL covers expiry
// and revocation deletes the key.
func (r *RedisRepository) IsValid(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return exists == 1, nil
}

// DeleteExpired is a no-op; Redis TTLs expire sessions.
func (r *RedisRepository) DeleteExpired(ctx context.Context) error {
	return nil
}
