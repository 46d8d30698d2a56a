package login

import "errors"

// ErrInvalidCredentials is returned for both an unknown email and a wrong
// password so callers cannot probe which addresses have accounts.
var ErrInvalidCredentials = errors.New("Invalid credentials!")
