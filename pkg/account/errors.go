package account

import (
	"errors"
	"fmt"
)

// ErrAccountNotFound is returned when no account matches the lookup key.
var ErrAccountNotFound = errors.New("account not found")

// ErrLinkNotFound is returned when no external login link matches the
// (provider, provider_key) pair.
var ErrLinkNotFound = errors.New("external login link not found")

// ErrEmailAlreadyExists is returned when attempting to create an account
// with an email that already exists. During external provisioning it marks
// a recoverable race, never a user-facing failure.
type ErrEmailAlreadyExists struct {
	Email string
}

func (e ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already exists: %s", e.Email)
}

// ErrLinkAlreadyExists is returned when the (provider, provider_key) pair is
// already linked to an account.
type ErrLinkAlreadyExists struct {
	Provider    string
	ProviderKey string
}

func (e ErrLinkAlreadyExists) Error() string {
	return fmt.Sprintf("external login already linked: %s/%s", e.Provider, e.ProviderKey)
}

// ErrAccountInactive is returned when a disabled account attempts to sign in.
type ErrAccountInactive struct {
	Name string
}

func (e ErrAccountInactive) Error() string {
	return fmt.Sprintf("User %s is not active. Please contact Admin for more information!", e.Name)
}
