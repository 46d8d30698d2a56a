package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionExternal(t *testing.T) {
	ctx := context.Background()
	svc := NewAccountService(NewInMemAccountRepository())

	acct, err := svc.ProvisionExternal(ctx, CreateAccountParams{
		Email:       "ada@example.com",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: DefaultDateOfBirth,
	}, "microsoft", "subject-1")
	require.NoError(t, err)
	assert.True(t, acct.IsActive, "provisioned accounts start active")

	linked, err := svc.FindByExternalLogin(ctx, "microsoft", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, linked.ID)
}

func TestProvisionExternalEmailConflictLinksWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemAccountRepository()
	svc := NewAccountService(repo)

	winner, err := repo.Create(ctx, CreateAccountParams{
		Email:    "ada@example.com",
		IsActive: true,
	})
	require.NoError(t, err)

	acct, err := svc.ProvisionExternal(ctx, CreateAccountParams{
		Email: "ada@example.com",
	}, "microsoft", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, acct.ID)

	linked, err := svc.FindByExternalLogin(ctx, "microsoft", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, linked.ID)
}

func TestProvisionExternalConflictToleratesExistingLink(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemAccountRepository()
	svc := NewAccountService(repo)

	winner, err := repo.CreateWithLink(ctx, CreateAccountParams{
		Email:    "ada@example.com",
		IsActive: true,
	}, "microsoft", "subject-1")
	require.NoError(t, err)

	acct, err := svc.ProvisionExternal(ctx, CreateAccountParams{
		Email: "ada@example.com",
	}, "microsoft", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, acct.ID)
}

func TestProvisionExternalProviderKeyConflictResolvesLinkedAccount(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemAccountRepository()
	svc := NewAccountService(repo)

	winner, err := repo.CreateWithLink(ctx, CreateAccountParams{
		Email:    "ada@corp.example.com",
		IsActive: true,
	}, "microsoft", "subject-1")
	require.NoError(t, err)

	// Same provider key but a different asserted email: the link conflict
	// fires before the email conflict can.
	acct, err := svc.ProvisionExternal(ctx, CreateAccountParams{
		Email: "ada@example.com",
	}, "microsoft", "subject-1")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, acct.ID)

	// The loser's email never produced an account.
	_, err = repo.GetByEmail(ctx, "ada@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestRecordLogin(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemAccountRepository()
	svc := NewAccountService(repo)

	created, err := repo.Create(ctx, CreateAccountParams{Email: "ada@example.com"})
	require.NoError(t, err)

	morning := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	first, err := svc.RecordLogin(ctx, created, morning)
	require.NoError(t, err)
	assert.True(t, first)

	refreshed, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	evening := time.Date(2026, time.March, 10, 21, 0, 0, 0, time.UTC)
	first, err = svc.RecordLogin(ctx, refreshed, evening)
	require.NoError(t, err)
	assert.False(t, first)

	unchanged, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, morning, unchanged.LastLoginAt.UTC())

	nextDay := time.Date(2026, time.March, 11, 0, 30, 0, 0, time.UTC)
	first, err = svc.RecordLogin(ctx, unchanged, nextDay)
	require.NoError(t, err)
	assert.True(t, first)
}
