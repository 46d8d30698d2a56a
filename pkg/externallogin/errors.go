package externallogin

import (
	"errors"
	"fmt"
)

// ErrRemoteProvider is returned when the identity provider itself reported a
// failure. User-facing, shown inline on the login view.
type ErrRemoteProvider struct {
	Code string
}

func (e ErrRemoteProvider) Error() string {
	return fmt.Sprintf("error from external provider: %s", e.Code)
}

// ErrMissingAssertion is returned when no external login information could
// be retrieved, typically because the handshake state was lost or expired.
// Retryable by re-attempting login.
var ErrMissingAssertion = errors.New("could not load external login information")

// ErrMissingEmailClaim is returned when the provider's assertion carries no
// email claim, so the account cannot be matched or provisioned.
var ErrMissingEmailClaim = errors.New("external login did not provide an email address")
