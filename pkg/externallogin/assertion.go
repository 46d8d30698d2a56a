package externallogin

import (
	"time"

	"github.com/tendant/simple-sso/pkg/account"
)

// Assertion is the claims bundle returned by an external identity provider
// after a completed handshake. It is constructed once per callback and
// discarded after processing.
type Assertion struct {
	Provider       string
	ProviderKey    string
	Email          string
	GivenName      string
	Surname        string
	DateOfBirthRaw string
}

// dateOfBirthLayout matches the date-only form used by the OIDC birthdate
// claim and the Microsoft Graph birthday field.
const dateOfBirthLayout = "2006-01-02"

// DateOfBirth parses the provider-reported date of birth. A missing or
// unparseable value (including impossible calendar dates like 1990-02-30)
// falls back to account.DefaultDateOfBirth rather than an error.
func (a Assertion) DateOfBirth() time.Time {
	if a.DateOfBirthRaw == "" {
		return account.DefaultDateOfBirth
	}
	dob, err := time.Parse(dateOfBirthLayout, a.DateOfBirthRaw)
	if err != nil {
		return account.DefaultDateOfBirth
	}
	return dob
}
