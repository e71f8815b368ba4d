package authz

import "github.com/openscholar/journal-backend/internal/provider"

// Decision is the outcome of an access check for a protected view.
type Decision int

const (
	// Allow grants access to the requested view.
	Allow Decision = iota
	// RedirectToLogin means no authenticated identity is present.
	RedirectToLogin
	// RedirectToUnauthorized means the identity is authenticated but its
	// role sits below the requirement.
	RedirectToUnauthorized
)

// String names the decision for logs and responses.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToUnauthorized:
		return "redirect-to-unauthorized"
	default:
		return "unknown"
	}
}

// Authorize decides access for one identity against an optional role
// requirement. It is pure: callers re-evaluate it on every navigation and
// on every session change, never caching a decision across transitions.
//
// A nil identity with any requirement redirects to login; requiring
// RoleAuthor expresses "authentication alone", since every identity holds
// at least that role. A nil identity with no requirement at all is allowed.
// An identity whose role attribute is empty or unknown is coerced to
// author before comparing.
func Authorize(identity *provider.Identity, required *Role) Decision {
	if identity == nil {
		if required == nil {
			return Allow
		}
		return RedirectToLogin
	}
	if required == nil {
		return Allow
	}
	effective := ParseRole(identity.Role)
	if effective.AtLeast(*required) {
		return Allow
	}
	return RedirectToUnauthorized
}

// Require is a convenience for building role requirements in route tables.
func Require(role Role) *Role {
	return &role
}
