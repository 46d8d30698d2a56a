package externalprovider

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-sso/pkg/externallogin"
)

// ErrStateInvalid marks a lost, expired or mismatched OAuth2 state. The
// callback surface maps it to the missing-assertion login error.
var ErrStateInvalid = errors.New("invalid or expired state")

// Service drives OAuth2 client flows with external identity providers and
// normalizes the provider's userinfo into an assertion.
type Service struct {
	repository      Repository
	baseURL         string
	stateExpiration time.Duration
	httpClient      *http.Client
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL sets the base URL used to build callback URLs.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = baseURL
	}
}

// WithStateExpiration sets the OAuth2 state expiration.
func WithStateExpiration(duration time.Duration) Option {
	return func(s *Service) {
		s.stateExpiration = duration
	}
}

// WithHTTPClient sets the HTTP client used for token and userinfo calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

// NewService creates a new external provider service.
func NewService(repository Repository, opts ...Option) *Service {
	service := &Service{
		repository:      repository,
		baseURL:         "http://localhost:4000",
		stateExpiration: 10 * time.Minute,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// EnabledProviders returns all enabled provider configurations.
func (s *Service) EnabledProviders(ctx context.Context) ([]*Provider, error) {
	return s.repository.GetEnabledProviders()
}

func (s *Service) callbackURL() string {
	return fmt.Sprintf("%s/account/external-login/callback", s.baseURL)
}

// InitiateFlow starts the authorization flow for a provider and returns the
// URL to redirect the browser to. returnURL is round-tripped via the state.
func (s *Service) InitiateFlow(ctx context.Context, providerID, returnURL string) (string, error) {
	provider, err := s.repository.GetProvider(providerID)
	if err != nil {
		return "", fmt.Errorf("failed to get provider: %w", err)
	}

	if !provider.Enabled {
		return "", fmt.Errorf("provider is disabled: %s", providerID)
	}

	state, err := generateSecureState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	if err := s.repository.StoreState(&State{
		Value:     state,
		Provider:  providerID,
		ReturnURL: returnURL,
		ExpiresAt: time.Now().Add(s.stateExpiration).Unix(),
	}); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	authURL, err := provider.BuildAuthURL(state, s.callbackURL())
	if err != nil {
		return "", fmt.Errorf("failed to build auth URL: %w", err)
	}

	slog.Info("External login flow initiated", "provider", providerID)
	return authURL, nil
}

// HandleCallback consumes the state, exchanges the code, fetches userinfo
// and returns the normalized assertion plus the return URL carried by the
// state.
func (s *Service) HandleCallback(ctx context.Context, code, stateValue string) (*externallogin.Assertion, string, error) {
	state, err := s.repository.ConsumeState(stateValue)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStateInvalid, err)
	}

	provider, err := s.repository.GetProvider(state.Provider)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get provider: %w", err)
	}

	tokenResponse, err := s.exchangeCodeForToken(ctx, provider, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code for token: %w", err)
	}

	assertion, err := s.fetchAssertion(ctx, provider, tokenResponse.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user info: %w", err)
	}

	slog.Info("External callback processed",
		"provider", provider.ID, "provider_key", assertion.ProviderKey, "email", assertion.Email)
	return assertion, state.ReturnURL, nil
}

func generateSecureState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *Service) exchangeCodeForToken(ctx context.Context, provider *Provider, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", provider.ClientID)
	data.Set("client_secret", provider.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", s.callbackURL())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResponse TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	return &tokenResponse, nil
}

func (s *Service) fetchAssertion(ctx context.Context, provider *Provider, accessToken string) (*externallogin.Assertion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make user info request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return parseAssertion(provider, body)
}

// parseAssertion normalizes raw userinfo into an assertion. The provider key
// is required; all other claims may be absent and stay empty, to be judged
// by the callback processor.
func parseAssertion(provider *Provider, data []byte) (*externallogin.Assertion, error) {
	var rawUserInfo map[string]interface{}
	if err := json.Unmarshal(data, &rawUserInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user info: %w", err)
	}

	assertion := &externallogin.Assertion{
		Provider: provider.ID,
	}

	switch provider.ID {
	case ProviderMicrosoft:
		assertion.ProviderKey = getStringValue(rawUserInfo, "id")
		assertion.Email = getStringValue(rawUserInfo, "mail")
		if assertion.Email == "" {
			assertion.Email = getStringValue(rawUserInfo, "userPrincipalName")
		}
		assertion.GivenName = getStringValue(rawUserInfo, "givenName")
		assertion.Surname = getStringValue(rawUserInfo, "surname")
		assertion.DateOfBirthRaw = getStringValue(rawUserInfo, "birthday")

	case ProviderGoogle:
		assertion.ProviderKey = getStringValue(rawUserInfo, "id")
		assertion.Email = getStringValue(rawUserInfo, "email")
		assertion.GivenName = getStringValue(rawUserInfo, "given_name")
		assertion.Surname = getStringValue(rawUserInfo, "family_name")

	default:
		// Generic OIDC parsing
		assertion.ProviderKey = getStringValue(rawUserInfo, "sub")
		if assertion.ProviderKey == "" {
			assertion.ProviderKey = getStringValue(rawUserInfo, "id")
		}
		assertion.Email = getStringValue(rawUserInfo, "email")
		assertion.GivenName = getStringValue(rawUserInfo, "given_name")
		assertion.Surname = getStringValue(rawUserInfo, "family_name")
		assertion.DateOfBirthRaw = getStringValue(rawUserInfo, "birthdate")
	}

	if assertion.ProviderKey == "" {
		return nil, fmt.Errorf("no subject identifier found in user info")
	}

	return assertion, nil
}

func getStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
