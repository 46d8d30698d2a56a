package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstablishAndValidate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemRepository(), "test-secret")

	accountID := uuid.New()
	token, sess, err := svc.Establish(ctx, accountID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, accountID, sess.AccountID)
	assert.False(t, sess.Persistent)

	principal, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, accountID, principal.AccountID)
	assert.Equal(t, sess.JTI, principal.JTI)
}

func TestEstablishPersistentUsesLongerExpiry(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemRepository(), "test-secret",
		WithSessionExpiry(30*time.Minute),
		WithPersistentExpiry(30*24*time.Hour),
	)

	_, short, err := svc.Establish(ctx, uuid.New(), false)
	require.NoError(t, err)
	_, long, err := svc.Establish(ctx, uuid.New(), true)
	require.NoError(t, err)

	assert.True(t, long.Persistent)
	assert.True(t, long.ExpiresAt.After(short.ExpiresAt.Add(24*time.Hour)))
}

func TestEstablishRequiresAccountID(t *testing.T) {
	svc := NewService(NewInMemRepository(), "test-secret")

	_, _, err := svc.Establish(context.Background(), uuid.Nil, false)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewService(NewInMemRepository(), "test-secret")

	_, err := svc.Validate(context.Background(), "not-a-token")
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()
	issuer := NewService(repo, "secret-a")
	verifier := NewService(repo, "secret-b")

	token, _, err := issuer.Establish(ctx, uuid.New(), false)
	require.NoError(t, err)

	_, err = verifier.Validate(ctx, token)
	assert.Error(t, err)
}

func TestValidateRejectsWrongAudience(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()
	issuer := NewService(repo, "test-secret", WithAudience("web"))
	verifier := NewService(repo, "test-secret", WithAudience("api"))

	token, _, err := issuer.Establish(ctx, uuid.New(), false)
	require.NoError(t, err)

	_, err = verifier.Validate(ctx, token)
	assert.Error(t, err)

	_, err = issuer.Validate(ctx, token)
	assert.NoError(t, err)
}

func TestValidateRejectsRevokedSession(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemRepository(), "test-secret")

	token, sess, err := svc.Establish(ctx, uuid.New(), false)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, sess.JTI))

	_, err = svc.Validate(ctx, token)
	assert.Error(t, err, "revoked session must not validate even with a good signature")
}

func TestSignOutIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemRepository(), "test-secret")

	_, sess, err := svc.Establish(ctx, uuid.New(), false)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, sess.JTI))
	require.NoError(t, svc.SignOut(ctx, sess.JTI))
	require.NoError(t, svc.SignOut(ctx, "never-issued"))
}

func TestRevokeAllByAccountID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()
	svc := NewService(repo, "test-secret")

	accountID := uuid.New()
	tokenA, _, err := svc.Establish(ctx, accountID, false)
	require.NoError(t, err)
	tokenB, _, err := svc.Establish(ctx, accountID, true)
	require.NoError(t, err)
	tokenOther, _, err := svc.Establish(ctx, uuid.New(), false)
	require.NoError(t, err)

	require.NoError(t, repo.RevokeAllByAccountID(ctx, accountID))

	_, err = svc.Validate(ctx, tokenA)
	assert.Error(t, err)
	_, err = svc.Validate(ctx, tokenB)
	assert.Error(t, err)
	_, err = svc.Validate(ctx, tokenOther)
	assert.NoError(t, err)
}
