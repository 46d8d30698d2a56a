package externallogin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-sso/pkg/account"
	"github.com/tendant/simple-sso/pkg/notification"
)

// Default redirect targets.
const (
	DefaultDashboardPath = "/home/dashboard"
	AccessDeniedPath     = "/account/access-denied"
)

// SessionEstablisher issues an authenticated session for a resolved account.
// External sign-ins go through it directly: no password check, no lockout
// counting.
type SessionEstablisher interface {
	Establish(ctx context.Context, acct account.Account) error
}

// OutcomeKind classifies the terminal result of a callback.
type OutcomeKind int

const (
	// OutcomeLoginView re-presents the login view with Outcome.Err.
	OutcomeLoginView OutcomeKind = iota
	// OutcomeAccessDenied redirects to the access-denied view. No session.
	OutcomeAccessDenied
	// OutcomeRedirect redirects to Outcome.Target with a session established.
	OutcomeRedirect
)

// Outcome is the single terminal result of processing a callback: either a
// login view with an error, an access-denied redirect, or a redirect with a
// session established. Never both a view and a redirect.
type Outcome struct {
	Kind    OutcomeKind
	Target  string
	Err     error
	Account account.Account
}

// CallbackInput is the completed external authentication result handed to
// the processor: either a provider-reported failure or an assertion.
type CallbackInput struct {
	RemoteError string
	Assertion   *Assertion
	ReturnURL   string
}

// Processor decides what a completed external handshake means for the local
// account store: sign in an existing linked account, link a new external
// login to an account matched by email, or provision a brand-new account.
type Processor struct {
	accounts *account.AccountService
	notifier notification.Notifier
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithNotifier sets the notifier used for welcome messages on provisioning.
func WithNotifier(n notification.Notifier) ProcessorOption {
	return func(p *Processor) {
		p.notifier = n
	}
}

// NewProcessor creates a new callback processor.
func NewProcessor(accounts *account.AccountService, opts ...ProcessorOption) *Processor {
	p := &Processor{
		accounts: accounts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResolveReturnTarget returns the post-login redirect target. Only local
// paths are honored; anything absolute or scheme-relative falls back to the
// dashboard to prevent open redirects.
func ResolveReturnTarget(returnURL string) string {
	if returnURL == "" {
		return DefaultDashboardPath
	}
	if !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") || strings.HasPrefix(returnURL, "/\\") {
		return DefaultDashboardPath
	}
	u, err := url.Parse(returnURL)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return DefaultDashboardPath
	}
	return returnURL
}

// Process runs the callback decision tree. It must only be invoked after the
// external handshake has completed upstream.
func (p *Processor) Process(ctx context.Context, in CallbackInput, sessions SessionEstablisher) (Outcome, error) {
	if in.RemoteError != "" {
		slog.Warn("External provider reported error", "error", in.RemoteError)
		return Outcome{Kind: OutcomeLoginView, Err: ErrRemoteProvider{Code: in.RemoteError}}, nil
	}

	if in.Assertion == nil {
		slog.Warn("No external login information in callback")
		return Outcome{Kind: OutcomeLoginView, Err: ErrMissingAssertion}, nil
	}

	assertion := *in.Assertion
	target := ResolveReturnTarget(in.ReturnURL)

	// Existing link: sign straight in, subject to the active check.
	acct, err := p.accounts.FindByExternalLogin(ctx, assertion.Provider, assertion.ProviderKey)
	if err == nil {
		outcome, denied, err := p.checkActive(ctx, assertion)
		if err != nil {
			return Outcome{}, err
		}
		if denied {
			return outcome, nil
		}
		return p.signIn(ctx, acct, target, sessions)
	}
	if !errors.Is(err, account.ErrLinkNotFound) && !errors.Is(err, account.ErrAccountNotFound) {
		return Outcome{}, fmt.Errorf("failed to look up external login: %w", err)
	}

	if assertion.Email == "" {
		slog.Warn("External assertion has no email claim",
			"provider", assertion.Provider, "provider_key", assertion.ProviderKey)
		return Outcome{Kind: OutcomeLoginView, Err: ErrMissingEmailClaim}, nil
	}

	acct, err = p.accounts.FindByEmail(ctx, assertion.Email)
	switch {
	case err == nil:
		if !acct.IsActive {
			slog.Warn("External login matched inactive account", "email", assertion.Email)
			return Outcome{Kind: OutcomeAccessDenied, Target: AccessDeniedPath, Account: acct}, nil
		}
		if linkErr := p.accounts.LinkExternal(ctx, acct.ID, assertion.Provider, assertion.ProviderKey); linkErr != nil {
			var linkExists account.ErrLinkAlreadyExists
			if !errors.As(linkErr, &linkExists) {
				return Outcome{}, fmt.Errorf("failed to link external login: %w", linkErr)
			}
		}
	case errors.Is(err, account.ErrAccountNotFound):
		acct, err = p.provision(ctx, assertion)
		if err != nil {
			return Outcome{}, err
		}
		if !acct.IsActive {
			// A racing callback may have resolved to a disabled account.
			return Outcome{Kind: OutcomeAccessDenied, Target: AccessDeniedPath, Account: acct}, nil
		}
	default:
		return Outcome{}, fmt.Errorf("failed to look up account by email: %w", err)
	}

	return p.signIn(ctx, acct, target, sessions)
}

// checkActive applies the email-matched active check of the linked sign-in
// path. Reports true when the outcome is access-denied. A storage failure
// propagates; it must never default to allowing the sign-in.
func (p *Processor) checkActive(ctx context.Context, assertion Assertion) (Outcome, bool, error) {
	if assertion.Email == "" {
		return Outcome{}, false, nil
	}
	acct, err := p.accounts.FindByEmail(ctx, assertion.Email)
	if errors.Is(err, account.ErrAccountNotFound) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("failed to look up account by email: %w", err)
	}
	if !acct.IsActive {
		slog.Warn("Linked external login matched inactive account", "email", assertion.Email)
		return Outcome{Kind: OutcomeAccessDenied, Target: AccessDeniedPath, Account: acct}, true, nil
	}
	return Outcome{}, false, nil
}

func (p *Processor) provision(ctx context.Context, assertion Assertion) (account.Account, error) {
	now := time.Now().UTC()
	acct, err := p.accounts.ProvisionExternal(ctx, account.CreateAccountParams{
		Email:       assertion.Email,
		FirstName:   assertion.GivenName,
		LastName:    assertion.Surname,
		DateOfBirth: assertion.DateOfBirth(),
		LastLoginAt: &now,
	}, assertion.Provider, assertion.ProviderKey)
	if err != nil {
		return account.Account{}, err
	}

	if p.notifier != nil {
		if err := p.notifier.Send(notification.WelcomeNotice, notification.NotificationData{
			To:      acct.Email,
			Subject: "Welcome!",
			Data: map[string]string{
				"Name": acct.FullName(),
			},
		}); err != nil {
			slog.Error("Failed to send welcome notification", "email", acct.Email, "err", err)
		}
	}

	return acct, nil
}

func (p *Processor) signIn(ctx context.Context, acct account.Account, target string, sessions SessionEstablisher) (Outcome, error) {
	if err := sessions.Establish(ctx, acct); err != nil {
		return Outcome{}, fmt.Errorf("failed to establish session: %w", err)
	}

	if _, err := p.accounts.RecordLogin(ctx, acct, time.Now()); err != nil {
		slog.Error("Failed to record login time", "account_id", acct.ID, "err", err)
	}

	slog.Info("External login succeeded", "account_id", acct.ID, "target", target)
	return Outcome{Kind: OutcomeRedirect, Target: target, Account: acct}, nil
}
