package accountapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-sso/pkg/account"
	"github.com/tendant/simple-sso/pkg/externallogin"
	"github.com/tendant/simple-sso/pkg/externalprovider"
	"github.com/tendant/simple-sso/pkg/login"
	"github.com/tendant/simple-sso/pkg/session"
)

// LoginPath is where signed-out callers land.
const LoginPath = "/account/login"

// Handle serves the account HTTP surface: local login, external login
// challenge and callback, access-denied and signout.
type Handle struct {
	logins     *login.Service
	processor  *externallogin.Processor
	providers  *externalprovider.Service
	sessions   *session.Service
	cookies    session.CookieSetter
	localLogin bool
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithLocalLogin toggles the local credential login endpoint.
func WithLocalLogin(enabled bool) HandleOption {
	return func(h *Handle) {
		h.localLogin = enabled
	}
}

// WithCookieSetter overrides the cookie setter.
func WithCookieSetter(setter session.CookieSetter) HandleOption {
	return func(h *Handle) {
		h.cookies = setter
	}
}

// NewHandle creates a new account API handler.
func NewHandle(
	logins *login.Service,
	processor *externallogin.Processor,
	providers *externalprovider.Service,
	sessions *session.Service,
	opts ...HandleOption,
) *Handle {
	h := &Handle{
		logins:     logins,
		processor:  processor,
		providers:  providers,
		sessions:   sessions,
		cookies:    session.NewCookieSetter(true, true),
		localLogin: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the account endpoints on the router.
func (h *Handle) Routes(r chi.Router) {
	r.Route("/account", func(r chi.Router) {
		r.Get("/login", h.GetLogin)
		if h.localLogin {
			r.Post("/login", h.PostLogin)
		}
		r.Get("/external-login", h.ExternalLogin)
		r.Post("/external-login", h.ExternalLogin)
		r.Get("/external-login/callback", h.ExternalLoginCallback)
		r.Get("/access-denied", h.AccessDenied)
		r.Get("/signout", h.SignOut)
		r.Post("/signout", h.SignOut)
	})
}

// GetLogin serves the login view. An authenticated caller gets the greeting
// and dashboard redirect; everyone else gets the available login methods.
func (h *Handle) GetLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnURL := r.URL.Query().Get("return_url")

	methods := h.loginMethods(ctx)

	principal, ok := session.PrincipalFromContext(ctx)
	if !ok {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, LoginStatusResponse{
			ReturnURL:    externallogin.ResolveReturnTarget(returnURL),
			LoginMethods: methods,
		})
		return
	}

	status, err := h.logins.ResolveStatus(ctx, principal.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Message: "User is not found!"})
			return
		}
		h.internalError(w, r, "Failed to resolve login status", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginStatusResponse{
		Message:           status.GreetingMessage,
		RedirectPath:      externallogin.DefaultDashboardPath,
		ReturnURL:         externallogin.ResolveReturnTarget(returnURL),
		LoginMethods:      methods,
		GreetingMessage:   status.GreetingMessage,
		IsBirthday:        status.IsBirthday,
		IsFirstLoginToday: status.IsFirstLoginToday,
	})
}

// PostLogin handles local credential login.
func (h *Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Message: "Invalid request body"})
		return
	}

	result, err := h.logins.Login(ctx, req.Email, req.Password)
	if err != nil {
		var inactive account.ErrAccountInactive
		switch {
		case errors.Is(err, login.ErrInvalidCredentials):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Message: err.Error()})
		case errors.As(err, &inactive):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Message: inactive.Error()})
		default:
			h.internalError(w, r, "Login failed", err)
		}
		return
	}

	if err := h.establishSession(ctx, w, result.Account, req.RememberMe); err != nil {
		h.internalError(w, r, "Failed to establish session", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{
		Message:      result.Message,
		RedirectPath: externallogin.ResolveReturnTarget(r.URL.Query().Get("return_url")),
		Account:      toAccountInfo(result.Account),
	})
}

// ExternalLogin challenges the caller with a redirect to the chosen external
// provider.
func (h *Handle) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID := r.URL.Query().Get("provider")
	returnURL := r.URL.Query().Get("return_url")

	if providerID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Message: "Provider is required"})
		return
	}

	authURL, err := h.providers.InitiateFlow(ctx, providerID, returnURL)
	if err != nil {
		slog.Warn("Failed to initiate external login", "provider", providerID, "err", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Message: "Unknown or disabled provider"})
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// ExternalLoginCallback completes the external handshake and runs the
// callback decision tree.
func (h *Handle) ExternalLoginCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	input := externallogin.CallbackInput{
		RemoteError: query.Get("error"),
		ReturnURL:   query.Get("return_url"),
	}

	if input.RemoteError == "" {
		assertion, returnURL, err := h.providers.HandleCallback(ctx, query.Get("code"), query.Get("state"))
		if err != nil {
			// A failed exchange leaves no usable login information; the
			// processor renders the login view with the standard error.
			slog.Warn("External callback handshake failed", "err", err)
		} else {
			input.Assertion = assertion
			if input.ReturnURL == "" {
				input.ReturnURL = returnURL
			}
		}
	}

	outcome, err := h.processor.Process(ctx, input, &responseEstablisher{handle: h, w: w})
	if err != nil {
		h.internalError(w, r, "External callback processing failed", err)
		return
	}

	switch outcome.Kind {
	case externallogin.OutcomeRedirect:
		http.Redirect(w, r, outcome.Target, http.StatusFound)
	case externallogin.OutcomeAccessDenied:
		http.Redirect(w, r, outcome.Target, http.StatusFound)
	default:
		render.Status(r, http.StatusOK)
		render.JSON(w, r, LoginStatusResponse{
			LoginMethods: h.loginMethods(ctx),
			Error:        outcome.Err.Error(),
		})
	}
}

// AccessDenied serves the access-denied view.
func (h *Handle) AccessDenied(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, ErrorResponse{Message: "Access denied"})
}

// SignOut revokes the caller's session, clears the cookie and sends the
// caller back to the login view.
func (h *Handle) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if principal, ok := session.PrincipalFromContext(ctx); ok {
		if err := h.sessions.SignOut(ctx, principal.JTI); err != nil {
			slog.Error("Failed to revoke session", "jti", principal.JTI, "err", err)
		}
	}
	h.cookies.ClearCookie(w, session.CookieName)

	http.Redirect(w, r, LoginPath, http.StatusFound)
}

func (h *Handle) loginMethods(ctx context.Context) []LoginMethod {
	providers, err := h.providers.EnabledProviders(ctx)
	if err != nil {
		slog.Error("Failed to list enabled providers", "err", err)
		return []LoginMethod{}
	}
	return toLoginMethods(providers)
}

func (h *Handle) establishSession(ctx context.Context, w http.ResponseWriter, acct account.Account, persistent bool) error {
	token, sess, err := h.sessions.Establish(ctx, acct.ID, persistent)
	if err != nil {
		return err
	}
	return h.cookies.SetCookie(w, session.CookieName, token, sess.ExpiresAt)
}

func (h *Handle) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "err", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Message: "internal server error"})
}

// responseEstablisher issues a session and sets the cookie on the in-flight
// response. External sign-ins are never persistent.
type responseEstablisher struct {
	handle *Handle
	w      http.ResponseWriter
}

func (e *responseEstablisher) Establish(ctx context.Context, acct account.Account) error {
	return e.handle.establishSession(ctx, e.w, acct, false)
}
