package provider

import "time"

// Identity is the authenticated principal record held by the identity provider.
// Role and the profile attributes travel as user metadata; Role may be empty
// when the account was created without one, callers coerce it downstream.
type Identity struct {
	ID          string
	Email       string
	Phone       string
	Role        string
	FullName    string
	Affiliation string
}

// Session is the live proof of authentication tied to exactly one Identity.
// A session whose Identity is nil is not a valid session.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	Identity     *Identity
}

// Valid reports whether the session carries an identity and has not expired
// as of the supplied instant. A zero ExpiresAt means the provider did not
// communicate an expiry and the token is trusted until revoked.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Identity == nil || s.AccessToken == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(s.ExpiresAt)
}

// ChangeKind labels a session change pushed by or observed at the provider.
type ChangeKind string

const (
	ChangeSignedIn       ChangeKind = "signed-in"
	ChangeSignedOut      ChangeKind = "signed-out"
	ChangeTokenRefreshed ChangeKind = "token-refreshed"
	ChangeRevoked        ChangeKind = "revoked"
)

// Change describes one session transition event.
type Change struct {
	Kind    ChangeKind
	Session *Session
	At      time.Time
}

// UserAttributes is the partial attribute set accepted by sign-up and
// profile-update calls. Nil fields are left untouched by the provider.
type UserAttributes struct {
	FullName    *string
	Role        *string
	Affiliation *string
}
