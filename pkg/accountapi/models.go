package accountapi

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/tendant/simple-sso/pkg/account"
	"github.com/tendant/simple-sso/pkg/externalprovider"
)

// LoginRequest is the local credential login request body.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse is returned after a successful credential login.
type LoginResponse struct {
	Message      string      `json:"message"`
	RedirectPath string      `json:"redirect_path"`
	Account      AccountInfo `json:"account"`
}

// LoginStatusResponse describes the login view for the current caller.
type LoginStatusResponse struct {
	Message           string        `json:"message,omitempty"`
	RedirectPath      string        `json:"redirect_path,omitempty"`
	ReturnURL         string        `json:"return_url,omitempty"`
	LoginMethods      []LoginMethod `json:"login_methods"`
	GreetingMessage   string        `json:"greeting_message,omitempty"`
	IsBirthday        bool          `json:"is_birthday"`
	IsFirstLoginToday bool          `json:"is_first_login_today"`
	Error             string        `json:"error,omitempty"`
}

// LoginMethod describes an enabled external login method.
type LoginMethod struct {
	Provider    string `json:"provider"`
	DisplayName string `json:"display_name"`
	IconURL     string `json:"icon_url,omitempty"`
}

// AccountInfo is the public shape of an account.
type AccountInfo struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Message string `json:"message"`
}

func toAccountInfo(acct account.Account) AccountInfo {
	info := AccountInfo{}
	copier.Copy(&info, &acct)
	info.ID = acct.ID.String()
	return info
}

func toLoginMethods(providers []*externalprovider.Provider) []LoginMethod {
	methods := make([]LoginMethod, 0, len(providers))
	for _, provider := range providers {
		methods = append(methods, LoginMethod{
			Provider:    provider.ID,
			DisplayName: provider.DisplayName,
			IconURL:     provider.IconURL,
		})
	}
	return methods
}
