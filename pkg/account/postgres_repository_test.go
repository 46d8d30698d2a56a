package account

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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

func TestPostgresAccountRepository(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresAccountRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		created, err := repo.Create(ctx, CreateAccountParams{
			Email:       "create@example.com",
			FirstName:   "Ada",
			LastName:    "Lovelace",
			IsActive:    true,
			DateOfBirth: DefaultDateOfBirth,
		})
		require.NoError(t, err)

		byID, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "create@example.com", byID.Email)
		assert.True(t, byID.IsActive)

		byEmail, err := repo.GetByEmail(ctx, "CREATE@Example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("CreateDuplicateEmail", func(t *testing.T) {
		_, err := repo.Create(ctx, CreateAccountParams{Email: "dup@example.com", DateOfBirth: DefaultDateOfBirth})
		require.NoError(t, err)

		_, err = repo.Create(ctx, CreateAccountParams{Email: "dup@example.com", DateOfBirth: DefaultDateOfBirth})
		var emailExists ErrEmailAlreadyExists
		require.ErrorAs(t, err, &emailExists)
	})

	t.Run("CreateWithLink", func(t *testing.T) {
		created, err := repo.CreateWithLink(ctx, CreateAccountParams{
			Email:       "linked@example.com",
			IsActive:    true,
			DateOfBirth: DefaultDateOfBirth,
		}, "microsoft", "subject-link")
		require.NoError(t, err)

		link, err := repo.GetLink(ctx, "microsoft", "subject-link")
		require.NoError(t, err)
		assert.Equal(t, created.ID, link.AccountID)
	})

	t.Run("CreateWithLinkEmailConflictLeavesNoLink", func(t *testing.T) {
		_, err := repo.Create(ctx, CreateAccountParams{Email: "taken@example.com", DateOfBirth: DefaultDateOfBirth})
		require.NoError(t, err)

		_, err = repo.CreateWithLink(ctx, CreateAccountParams{
			Email:       "taken@example.com",
			DateOfBirth: DefaultDateOfBirth,
		}, "microsoft", "subject-orphan")
		var emailExists ErrEmailAlreadyExists
		require.ErrorAs(t, err, &emailExists)

		_, err = repo.GetLink(ctx, "microsoft", "subject-orphan")
		assert.ErrorIs(t, err, ErrLinkNotFound, "the aborted transaction must not leave a link behind")
	})

	t.Run("CreateWithLinkKeyConflictLeavesNoAccount", func(t *testing.T) {
		_, err := repo.CreateWithLink(ctx, CreateAccountParams{
			Email:       "first@example.com",
			DateOfBirth: DefaultDateOfBirth,
		}, "microsoft", "subject-claimed")
		require.NoError(t, err)

		_, err = repo.CreateWithLink(ctx, CreateAccountParams{
			Email:       "second@example.com",
			DateOfBirth: DefaultDateOfBirth,
		}, "microsoft", "subject-claimed")
		var linkExists ErrLinkAlreadyExists
		require.ErrorAs(t, err, &linkExists)

		_, err = repo.GetByEmail(ctx, "second@example.com")
		assert.ErrorIs(t, err, ErrAccountNotFound, "the aborted transaction must not leave an account behind")
	})

	t.Run("CreateLinkDuplicate", func(t *testing.T) {
		created, err := repo.Create(ctx, CreateAccountParams{Email: "links@example.com", DateOfBirth: DefaultDateOfBirth})
		require.NoError(t, err)

		_, err = repo.CreateLink(ctx, created.ID, "google", "subject-g")
		require.NoError(t, err)

		_, err = repo.CreateLink(ctx, created.ID, "google", "subject-g")
		var linkExists ErrLinkAlreadyExists
		require.ErrorAs(t, err, &linkExists)

		links, err := repo.ListLinksByAccountID(ctx, created.ID)
		require.NoError(t, err)
		assert.Len(t, links, 1)
	})

	t.Run("UpdateLastLoginMonotonic", func(t *testing.T) {
		created, err := repo.Create(ctx, CreateAccountParams{Email: "login@example.com", DateOfBirth: DefaultDateOfBirth})
		require.NoError(t, err)

		later := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
		earlier := later.Add(-2 * time.Hour)

		require.NoError(t, repo.UpdateLastLogin(ctx, created.ID, later))
		require.NoError(t, repo.UpdateLastLogin(ctx, created.ID, earlier))

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
		assert.Equal(t, later, got.LastLoginAt.UTC())
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrAccountNotFound)

		_, err = repo.GetLink(ctx, "microsoft", "never-linked")
		assert.ErrorIs(t, err, ErrLinkNotFound)
	})
}
