package authz

import "strings"

// Role is one member of the closed, totally ordered set of journal roles.
// The ordering author < reviewer < editor < admin is the single definition
// used by every access decision; roles are compared positionally and never
// matched against ad hoc membership lists.
type Role int

const (
	RoleAuthor Role = iota
	RoleReviewer
	RoleEditor
	RoleAdmin
)

const defaultRoleName = "author"

var roleNames = map[Role]string{
	RoleAuthor:   "author",
	RoleReviewer: "reviewer",
	RoleEditor:   "editor",
	RoleAdmin:    "admin",
}

var rolesByName = map[string]Role{
	"author":   RoleAuthor,
	"reviewer": RoleReviewer,
	"editor":   RoleEditor,
	"admin":    RoleAdmin,
}

// String returns the canonical lower-case role name.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return defaultRoleName
}

// AtLeast reports whether r sits at or above required in the role order.
func (r Role) AtLeast(required Role) bool {
	return r >= required
}

// ParseRole maps a stored role name onto the ordered set. Unknown or empty
// names coerce to RoleAuthor so an identity is never left without a role.
func ParseRole(name string) Role {
	if role, ok := rolesByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return role
	}
	return RoleAuthor
}
