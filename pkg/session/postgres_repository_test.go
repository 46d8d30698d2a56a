package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "sso_db.sql")),
		postgres.WithDatabase("sso_db"),
		postgres.WithUsername("sso"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestPostgresSessionRepository(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		accountID := uuid.New()
		created, err := repo.Create(ctx, CreateSessionRequest{
			AccountID: accountID,
			JTI:       uuid.NewString(),
			ExpiresAt: time.Now().Add(30 * time.Minute),
		})
		require.NoError(t, err)

		got, err := repo.GetByJTI(ctx, created.JTI)
		require.NoError(t, err)
		assert.Equal(t, accountID, got.AccountID)
		assert.Nil(t, got.RevokedAt)

		valid, err := repo.IsValid(ctx, created.JTI)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("Revoke", func(t *testing.T) {
		created, err := repo.Create(ctx, CreateSessionRequest{
			AccountID: uuid.New(),
			JTI:       uuid.NewString(),
			ExpiresAt: time.Now().Add(30 * time.Minute),
		})
		require.NoError(t, err)

		require.NoError(t, repo.RevokeByJTI(ctx, created.JTI))

		valid, err := repo.IsValid(ctx, created.JTI)
		require.NoError(t, err)
		assert.False(t, valid)

		// Already revoked counts as gone.
		assert.ErrorIs(t, repo.RevokeByJTI(ctx, created.JTI), ErrSessionNotFound)
	})

	t.Run("ExpiredNotValid", func(t *testing.T) {
		created, err := repo.Create(ctx, CreateSessionRequest{
			AccountID: uuid.New(),
			JTI:       uuid.NewString(),
			ExpiresAt: time.Now().Add(-1 * time.Minute),
		})
		require.NoError(t, err)

		valid, err := repo.IsValid(ctx, created.JTI)
		require.NoError(t, err)
		assert.False(t, valid)

		require.NoError(t, repo.DeleteExpired(ctx))

		_, err = repo.GetByJTI(ctx, created.JTI)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("RevokeAllByAccountID", func(t *testing.T) {
		accountID := uuid.New()
		var jtis []string
		for i := 0; i < 2; i++ {
			created, err := repo.Create(ctx, CreateSessionRequest{
				AccountID: accountID,
				JTI:       uuid.NewString(),
				ExpiresAt: time.Now().Add(30 * time.Minute),
			})
			require.NoError(t, err)
			jtis = append(jtis, created.JTI)
		}
		other, err := repo.Create(ctx, CreateSessionRequest{
			AccountID: uuid.New(),
			JTI:       uuid.NewString(),
			ExpiresAt: time.Now().Add(30 * time.Minute),
		})
		require.NoError(t, err)

		require.NoError(t, repo.RevokeAllByAccountID(ctx, accountID))

		for _, jti := range jtis {
			valid, err := repo.IsValid(ctx, jti)
			require.NoError(t, err)
			assert.False(t, valid)
		}

		valid, err := repo.IsValid(ctx, other.JTI)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.GetByJTI(ctx, "never-issued")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}
