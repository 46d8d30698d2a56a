package externalprovider

import (
	"fmt"
	"net/url"
	"strings"
)

// Well-known provider IDs with dedicated userinfo parsing.
const (
	ProviderMicrosoft = "microsoft"
	ProviderGoogle    = "google"
)

// Provider represents an external OAuth2/OIDC identity provider
// configuration.
type Provider struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	IconURL      string   `json:"icon_url,omitempty"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	UserInfoURL  string   `json:"user_info_url"`
	Scopes       []string `json:"scopes"`
	Enabled      bool     `json:"enabled"`
}

// State is the CSRF state parameter round-tripped through an OAuth2 flow.
// It also carries the caller's post-login return URL.
type State struct {
	Value     string `json:"value"`
	Provider  string `json:"provider"`
	ReturnURL string `json:"return_url,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}

// TokenResponse represents the OAuth2 token endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// ValidateConfig validates the provider configuration.
func (p *Provider) ValidateConfig() error {
	if p.ID == "" {
		return fmt.Errorf("provider ID is required")
	}
	if p.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if p.AuthURL == "" {
		return fmt.Errorf("authorization URL is required")
	}
	if p.TokenURL == "" {
		return fmt.Errorf("token URL is required")
	}
	if p.UserInfoURL == "" {
		return fmt.Errorf("user info URL is required")
	}

	for _, raw := range []string{p.AuthURL, p.TokenURL, p.UserInfoURL} {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("invalid provider URL %q: %w", raw, err)
		}
	}

	return nil
}

// BuildAuthURL builds the OAuth2 authorization URL for this provider.
func (p *Provider) BuildAuthURL(state, redirectURI string) (string, error) {
	authURL, err := url.Parse(p.AuthURL)
	if err != nil {
		return "", fmt.Errorf("invalid auth URL: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", p.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", redirectURI)
	params.Set("state", state)

	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}
	params.Set("scope", strings.Join(scopes, " "))

	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}

// MicrosoftProvider builds a Microsoft Entra ID provider configuration for
// the given tenant.
func MicrosoftProvider(tenantID, clientID, clientSecret string) *Provider {
	return &Provider{
		ID:           ProviderMicrosoft,
		Name:         "Microsoft",
		DisplayName:  "Login with Microsoft",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", tenantID),
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		UserInfoURL:  "https://graph.microsoft.com/v1.0/me",
		Scopes:       []string{"openid", "profile", "email", "User.Read"},
		Enabled:      true,
	}
}

// GoogleProvider builds a Google provider configuration.
func GoogleProvider(clientID, clientSecret string) *Provider {
	return &Provider{
		ID:           ProviderGoogle,
		Name:         "Google",
		DisplayName:  "Login with Google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes:       []string{"openid", "profile", "email"},
		Enabled:      true,
	}
}
