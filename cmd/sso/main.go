package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-sso/pkg/account"
	"github.com/tendant/simple-sso/pkg/accountapi"
	"github.com/tendant/simple-sso/pkg/config"
	"github.com/tendant/simple-sso/pkg/externallogin"
	"github.com/tendant/simple-sso/pkg/externalprovider"
	"github.com/tendant/simple-sso/pkg/login"
	"github.com/tendant/simple-sso/pkg/notification"
	"github.com/tendant/simple-sso/pkg/session"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	cfg := config.Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(-1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(-1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	pool := openPool(cfg)

	accountRepo := newAccountRepository(cfg, pool)
	accountService := account.NewAccountService(accountRepo)

	sessionService := session.NewService(
		newSessionRepository(cfg, pool),
		cfg.Session.Secret,
		session.WithIssuer(cfg.Session.Issuer),
		session.WithAudience(cfg.Session.Audience),
		session.WithSessionExpiry(parseDuration(cfg.Session.Expiry, session.DefaultSessionExpiry)),
		session.WithPersistentExpiry(parseDuration(cfg.Session.PersistentExpiry, session.DefaultPersistentExpiry)),
	)

	providerService := externalprovider.NewService(
		newProviderRepository(cfg),
		externalprovider.WithBaseURL(cfg.BaseURL),
		externalprovider.WithStateExpiration(parseDuration(cfg.ExternalProvider.StateExpiry, 10*time.Minute)),
	)

	var processorOpts []externallogin.ProcessorOption
	if cfg.Email.Enabled {
		notifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			TLS:      cfg.Email.TLS,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
		if err != nil {
			slog.Error("Failed to create email notifier", "err", err)
			os.Exit(-1)
		}
		processorOpts = append(processorOpts, externallogin.WithNotifier(notifier))
	}
	processor := externallogin.NewProcessor(accountService, processorOpts...)

	loginService := login.NewService(accountService)

	handle := accountapi.NewHandle(
		loginService,
		processor,
		providerService,
		sessionService,
		accountapi.WithLocalLogin(cfg.LoginMode == config.LoginModeLocalAndExternal),
		accountapi.WithCookieSetter(session.NewCookieSetter(cfg.Session.CookieHttpOnly, cfg.Session.CookieSecure)),
	)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.Session.Secret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(session.Verifier(tokenAuth))
		r.Use(session.Authenticator(sessionService))
		handle.Routes(r)
	})

	slog.Info("Starting sso server", "login_mode", cfg.LoginMode, "base_url", cfg.BaseURL)
	server.Run()
}

// openPool creates the pgx pool when any store is configured for postgres.
func openPool(cfg config.Config) *pgxpool.Pool {
	if cfg.Db.Store != "postgres" && cfg.Session.Store != "postgres" {
		return nil
	}

	dbConfig := dbutils.DbConfig{
		Host:     cfg.Db.Host,
		Port:     cfg.Db.Port,
		Database: cfg.Db.Database,
		User:     cfg.Db.User,
		Password: cfg.Db.Password,
	}
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}
	return pool
}

func newAccountRepository(cfg config.Config, pool *pgxpool.Pool) account.AccountRepository {
	if cfg.Db.Store == "postgres" {
		return account.NewPostgresAccountRepository(pool)
	}
	slog.Warn("Using in-memory account store; data will not survive restarts")
	return account.NewInMemAccountRepository()
}

func newSessionRepository(cfg config.Config, pool *pgxpool.Pool) session.Repository {
	switch cfg.Session.Store {
	case "postgres":
		return session.NewPostgresRepository(pool)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		return session.NewRedisRepository(client)
	default:
		slog.Warn("Using in-memory session store; sessions will not survive restarts")
		return session.NewInMemRepository()
	}
}

func newProviderRepository(cfg config.Config) externalprovider.Repository {
	repo := externalprovider.NewInMemRepository()

	if cfg.ExternalProvider.MicrosoftEnabled {
		provider := externalprovider.MicrosoftProvider(
			cfg.ExternalProvider.MicrosoftTenantID,
			cfg.ExternalProvider.MicrosoftClientID,
			cfg.ExternalProvider.MicrosoftClientSecret,
		)
		if err := repo.CreateProvider(provider); err != nil {
			slog.Error("Failed to register microsoft provider", "err", err)
			os.Exit(-1)
		}
	}

	if cfg.ExternalProvider.GoogleEnabled {
		provider := externalprovider.GoogleProvider(
			cfg.ExternalProvider.GoogleClientID,
			cfg.ExternalProvider.GoogleClientSecret,
		)
		if err := repo.CreateProvider(provider); err != nil {
			slog.Error("Failed to register google provider", "err", err)
			os.Exit(-1)
		}
	}

	return repo
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration, using default", "value", value, "default", fallback)
		return fallback
	}
	return d
}

// loadEnvFile loads environment variables from .env file if it exists
// Only sets variables that are not already set in the environment
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	execDir := filepath.Dir(execPath)
	envFile := filepath.Join(execDir, ".env")

	// Also check current working directory
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}
}
