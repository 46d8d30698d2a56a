package account

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDateOfBirth is the sentinel used when an external provider reports
// no date of birth or one that cannot be parsed.
var DefaultDateOfBirth = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Account represents a local user account.
type Account struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PasswordHash []byte     `json:"-"`
	IsActive     bool       `json:"is_active"`
	DateOfBirth  time.Time  `json:"date_of_birth"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// ExternalLoginLink associates an account with an identity at an external
// provider. At most one account may hold a given (provider, provider_key)
// pair.
type ExternalLoginLink struct {
	Provider    string    `json:"provider"`
	ProviderKey string    `json:"provider_key"`
	AccountID   uuid.UUID `json:"account_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// FullName returns the display name used in greetings and error messages.
func (a Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// IsBirthday reports whether the account's date of birth falls on the same
// month and day as now, independent of year.
func (a Account) IsBirthday(now time.Time) bool {
	return a.DateOfBirth.Month() == now.Month() && a.DateOfBirth.Day() == now.Day()
}

// IsFirstLoginOfDay reports whether the account has not yet logged in on
// now's calendar date.
func (a Account) IsFirstLoginOfDay(now time.Time) bool {
	if a.LastLoginAt == nil {
		return true
	}
	y1, m1, d1 := a.LastLoginAt.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// GreetMessage builds the login greeting for the account.
func (a Account) GreetMessage(now time.Time) string {
	greeting := "Welcome back, " + a.FullName() + "!"
	if a.IsBirthday(now) {
		greeting += " Happy Birthday! 🎉"
	}
	return greeting
}
