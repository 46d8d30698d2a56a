package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default session lifetimes. Non-persistent sessions mirror the 30 minute
// cookie lifetime of the upstream apps; persistent ("remember me") sessions
// live much longer.
const (
	DefaultSessionExpiry    = 30 * time.Minute
	DefaultPersistentExpiry = 30 * 24 * time.Hour
)

// Service issues and validates sessions. The browser carries a signed JWT
// whose jti points at the stored session record; a token is only accepted
// while both the signature and the record are valid, so revocation is
// immediate.
type Service struct {
	repo             Repository
	secret           []byte
	issuer           string
	audience         string
	sessionExpiry    time.Duration
	persistentExpiry time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIssuer sets the JWT issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithAudience sets the JWT audience claim.
func WithAudience(audience string) ServiceOption {
	return func(s *Service) {
		s.audience = audience
	}
}

// WithSessionExpiry sets the lifetime of non-persistent sessions.
func WithSessionExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		s.sessionExpiry = expiry
	}
}

// WithPersistentExpiry sets the lifetime of remember-me sessions.
func WithPersistentExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		s.persistentExpiry = expiry
	}
}

// NewService creates a new session service.
func NewService(repo Repository, secret string, opts ...ServiceOption) *Service {
	s := &Service{
		repo:             repo,
		secret:           []byte(secret),
		issuer:           "simple-sso",
		audience:         "simple-sso",
		sessionExpiry:    DefaultSessionExpiry,
		persistentExpiry: DefaultPersistentExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Establish creates a session for the account and returns the signed token
// to hand to the transport layer.
func (s *Service) Establish(ctx context.Context, accountID uuid.UUID, persistent bool) (string, *Session, error) {
	if accountID == uuid.Nil {
		return "", nil, fmt.Errorf("account_id is required")
	}

	jti := uuid.NewString()
	expiry := s.sessionExpiry
	if persistent {
		expiry = s.persistentExpiry
	}

	now := time.Now()
	expiresAt := now.Add(expiry)

	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		ID:        jti,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	session, err := s.repo.Create(ctx, CreateSessionRequest{
		AccountID:  accountID,
		JTI:        jti,
		Persistent: persistent,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	return token, session, nil
}

// Validate parses and verifies a session token and checks the backing
// session record. Returns the principal the session carries.
func (s *Service) Validate(ctx context.Context, tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	if err != nil {
		return Principal{}, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" {
		return Principal{}, fmt.Errorf("session token missing jti")
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("session token has invalid subject: %w", err)
	}

	if err := s.checkLive(ctx, claims.ID); err != nil {
		return Principal{}, err
	}

	return Principal{AccountID: accountID, JTI: claims.ID}, nil
}

// resolvePrincipal maps the claims of an already signature-verified token to
// a live principal. Used by the middleware, which gets verification from the
// jwtauth layer.
func (s *Service) resolvePrincipal(ctx context.Context, claims map[string]interface{}) (Principal, error) {
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return Principal{}, fmt.Errorf("session token missing jti")
	}

	sub, _ := claims["sub"].(string)
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return Principal{}, fmt.Errorf("session token has invalid subject: %w", err)
	}

	if err := s.checkLive(ctx, jti); err != nil {
		return Principal{}, err
	}

	return Principal{AccountID: accountID, JTI: jti}, nil
}

func (s *Service) checkLive(ctx context.Context, jti string) error {
	valid, err := s.repo.IsValid(ctx, jti)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !valid {
		return fmt.Errorf("session revoked or expired")
	}
	return nil
}

// SignOut revokes the session behind the given JTI. An already-gone session
// is not an error.
func (s *Service) SignOut(ctx context.Context, jti string) error {
	err := s.repo.RevokeByJTI(ctx, jti)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}
