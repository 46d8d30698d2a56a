package config

import "fmt"

// LoginMode selects which login surfaces the service exposes.
const (
	// LoginModeExternalOnly disables local credential login; the only way in
	// is through an external identity provider.
	LoginModeExternalOnly = "external_only"
	// LoginModeLocalAndExternal exposes both local credential login and
	// external providers.
	LoginModeLocalAndExternal = "local_and_external"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	BaseURL   string `env:"SSO_BASE_URL" env-default:"http://localhost:4000"`
	LoginMode string `env:"SSO_LOGIN_MODE" env-default:"local_and_external"`

	Db               DbConfig
	Session          SessionConfig
	ExternalProvider ExternalProviderConfig
	Email            EmailConfig
}

// DbConfig configures the PostgreSQL connection. Store selects between
// backends so development can run without a database.
type DbConfig struct {
	Store    string `env:"SSO_STORE" env-default:"inmem"`
	Host     string `env:"SSO_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"SSO_PG_PORT" env-default:"5432"`
	Database string `env:"SSO_PG_DATABASE" env-default:"sso_db"`
	User     string `env:"SSO_PG_USER" env-default:"sso"`
	Password string `env:"SSO_PG_PASSWORD" env-default:"pwd"`
}

// ToDatabaseURL builds a postgres connection URL.
func (d DbConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Database)
}

// SessionConfig configures session signing and storage.
type SessionConfig struct {
	Store            string `env:"SSO_SESSION_STORE" env-default:"inmem"`
	Secret           string `env:"SSO_SESSION_SECRET" env-default:"very-secure-session-secret"`
	Issuer           string `env:"SSO_SESSION_ISSUER" env-default:"simple-sso"`
	Audience         string `env:"SSO_SESSION_AUDIENCE" env-default:"simple-sso"`
	Expiry           string `env:"SSO_SESSION_EXPIRY" env-default:"30m"`
	PersistentExpiry string `env:"SSO_SESSION_PERSISTENT_EXPIRY" env-default:"720h"`
	CookieHttpOnly   bool   `env:"SSO_COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure     bool   `env:"SSO_COOKIE_SECURE" env-default:"true"`
	RedisAddr        string `env:"SSO_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword    string `env:"SSO_REDIS_PASSWORD" env-default:""`
	RedisDB          int    `env:"SSO_REDIS_DB" env-default:"0"`
}

// ExternalProviderConfig configures the built-in identity providers.
type ExternalProviderConfig struct {
	StateExpiry string `env:"SSO_STATE_EXPIRY" env-default:"10m"`

	MicrosoftEnabled      bool   `env:"SSO_MICROSOFT_ENABLED" env-default:"false"`
	MicrosoftTenantID     string `env:"SSO_MICROSOFT_TENANT_ID" env-default:"common"`
	MicrosoftClientID     string `env:"SSO_MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"SSO_MICROSOFT_CLIENT_SECRET"`

	GoogleEnabled      bool   `env:"SSO_GOOGLE_ENABLED" env-default:"false"`
	GoogleClientID     string `env:"SSO_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"SSO_GOOGLE_CLIENT_SECRET"`
}

// EmailConfig configures the SMTP sender for welcome notices.
type EmailConfig struct {
	Enabled  bool   `env:"SSO_EMAIL_ENABLED" env-default:"false"`
	Host     string `env:"SSO_EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"SSO_EMAIL_PORT" env-default:"1025"`
	Username string `env:"SSO_EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password string `env:"SSO_EMAIL_PASSWORD" env-default:"pwd"`
	From     string `env:"SSO_EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"SSO_EMAIL_TLS" env-default:"false"`
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c Config) Validate() error {
	switch c.LoginMode {
	case LoginModeExternalOnly, LoginModeLocalAndExternal:
	default:
		return fmt.Errorf("invalid login mode: %q", c.LoginMode)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	return nil
}
