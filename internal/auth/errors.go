package auth

import "errors"

// Error taxonomy surfaced by the credential gateway. Validation errors are
// raised before any remote call; remote errors pass through as part of the
// uniform Result, never as panics.
var (
	ErrInvalidIdentifier     = errors.New("auth: identifier is neither email nor phone")
	ErrUserNotFound          = errors.New("auth: no account matches the identifier")
	ErrWrongCredentials      = errors.New("auth: wrong credentials")
	ErrWeakPassword          = errors.New("auth: password below minimum length")
	ErrPasswordMismatch      = errors.New("auth: password confirmation does not match")
	ErrProviderUnavailable   = errors.New("auth: identity provider unavailable")
	ErrProfileCreationFailed = errors.New("auth: profile creation failed")
	ErrNoActiveSession       = errors.New("auth: no active session")
)

// Message maps a gateway error onto the human-readable text shown to end
// users. Raw provider payloads are never surfaced verbatim.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidIdentifier):
		return "Enter a valid email address or phone number."
	case errors.Is(err, ErrUserNotFound):
		return "No account matches that identifier."
	case errors.Is(err, ErrWrongCredentials):
		return "The identifier or password is incorrect."
	case errors.Is(err, ErrWeakPassword):
		return "Choose a longer password."
	case errors.Is(err, ErrPasswordMismatch):
		return "The password confirmation does not match."
	case errors.Is(err, ErrProfileCreationFailed):
		return "Your account was created but the profile could not be saved. Try signing in again."
	case errors.Is(err, ErrNoActiveSession):
		return "Sign in to continue."
	default:
		return "The service is temporarily unavailable. Try again later."
	}
}
