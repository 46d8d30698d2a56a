package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// PostgresAccountRepository implements AccountRepository using PostgreSQL.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a new PostgreSQL account repository.
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{
		pool: pool,
	}
}

const accountColumns = `
	id, email, first_name, last_name, password_hash, is_active,
	date_of_birth, created_at, last_login_at
`

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	var passwordHash []byte
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.FirstName,
		&acct.LastName,
		&passwordHash,
		&acct.IsActive,
		&acct.DateOfBirth,
		&acct.CreatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return Account{}, err
	}

	acct.PasswordHash = passwordHash
	if lastLoginAt.Valid {
		acct.LastLoginAt = &lastLoginAt.Time
	}
	return acct, nil
}

// GetByID retrieves an account by ID.
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	query := `SELECT` + accountColumns + `FROM accounts WHERE id = $1`

	acct, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email.
func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	query := `SELECT` + accountColumns + `FROM accounts WHERE email = $1`

	acct, err := scanAccount(r.pool.QueryRow(ctx, query, normalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to get account by email: %w", err)
	}
	return acct, nil
}

func createAccount(ctx context.Context, tx pgx.Tx, arg CreateAccountParams) (Account, error) {
	query := `
		INSERT INTO accounts (
			email, first_name, last_name, password_hash, is_active,
			date_of_birth, last_login_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) RETURNING` + accountColumns

	acct, err := scanAccount(tx.QueryRow(ctx, query,
		normalizeEmail(arg.Email),
		arg.FirstName,
		arg.LastName,
		arg.PasswordHash,
		arg.IsActive,
		arg.DateOfBirth,
		arg.LastLoginAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return Account{}, ErrEmailAlreadyExists{Email: arg.Email}
		}
		return Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	return acct, nil
}

func createLink(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, provider, providerKey string) (ExternalLoginLink, error) {
	query := `
		INSERT INTO external_login_links (provider, provider_key, account_id)
		VALUES ($1, $2, $3)
		RETURNING provider, provider_key, account_id, created_at
	`

	var link ExternalLoginLink
	err := tx.QueryRow(ctx, query, provider, providerKey, accountID).Scan(
		&link.Provider,
		&link.ProviderKey,
		&link.AccountID,
		&link.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ExternalLoginLink{}, ErrLinkAlreadyExists{Provider: provider, ProviderKey: providerKey}
		}
		return ExternalLoginLink{}, fmt.Errorf("failed to create external login link: %w", err)
	}
	return link, nil
}

// Create creates a new account.
func (r *PostgresAccountRepository) Create(ctx context.Context, arg CreateAccountParams) (Account, error) {
	var acct Account
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		acct, err = createAccount(ctx, tx, arg)
		return err
	})
	return acct, err
}

// CreateWithLink creates an account and its external login link inside a
// single transaction so a link failure never leaves an orphaned account.
func (r *PostgresAccountRepository) CreateWithLink(ctx context.Context, arg CreateAccountParams, provider, providerKey string) (Account, error) {
	var acct Account
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		acct, err = createAccount(ctx, tx, arg)
		if err != nil {
			return err
		}
		_, err = createLink(ctx, tx, acct.ID, provider, providerKey)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}

// UpdateLastLogin advances the account's last login timestamp. The WHERE
// clause keeps the timestamp monotonic.
func (r *PostgresAccountRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE accounts
		SET last_login_at = $2
		WHERE id = $1 AND (last_login_at IS NULL OR last_login_at <= $2)
	`

	_, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// GetLink retrieves an external login link by (provider, provider_key).
func (r *PostgresAccountRepository) GetLink(ctx context.Context, provider, providerKey string) (ExternalLoginLink, error) {
	query := `
		SELECT provider, provider_key, account_id, created_at
		FROM external_login_links
		WHERE provider = $1 AND provider_key = $2
	`

	var link ExternalLoginLink
	err := r.pool.QueryRow(ctx, query, provider, providerKey).Scan(
		&link.Provider,
		&link.ProviderKey,
		&link.AccountID,
		&link.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExternalLoginLink{}, ErrLinkNotFound
	}
	if err != nil {
		return ExternalLoginLink{}, fmt.Errorf("failed to get external login link: %w", err)
	}
	return link, nil
}

// CreateLink links an existing account to an external identity.
func (r *PostgresAccountRepository) CreateLink(ctx context.Context, accountID uuid.UUID, provider, providerKey string) (ExternalLoginLink, error) {
	var link ExternalLoginLink
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		link, err = createLink(ctx, tx, accountID, provider, providerKey)
		return err
	})
	return link, err
}

// ListLinksByAccountID returns all external login links for an account.
func (r *PostgresAccountRepository) ListLinksByAccountID(ctx context.Context, accountID uuid.UUID) ([]ExternalLoginLink, error) {
	query := `
		SELECT provider, provider_key, account_id, created_at
		FROM external_login_links
		WHERE account_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list external login links: %w", err)
	}
	defer rows.Close()

	var links []ExternalLoginLink
	for rows.Next() {
		var link ExternalLoginLink
		if err := rows.Scan(&link.Provider, &link.ProviderKey, &link.AccountID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan external login link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
