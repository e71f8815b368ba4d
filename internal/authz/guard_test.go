package authz

import (
	"testing"

	"github.com/openscholar/journal-backend/internal/provider"
)

func TestRoleOrdering(t *testing.T) {
	ordered := []Role{RoleAuthor, RoleReviewer, RoleEditor, RoleAdmin}
	for i, lower := range ordered {
		for j, higher := range ordered {
			want := i >= j
			if got := lower.AtLeast(higher); got != want {
				t.Fatalf("%s.AtLeast(%s) = %v, want %v", lower, higher, got, want)
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Role
	}{
		{name: "author", raw: "author", want: RoleAuthor},
		{name: "reviewer", raw: "reviewer", want: RoleReviewer},
		{name: "editor", raw: "editor", want: RoleEditor},
		{name: "admin", raw: "admin", want: RoleAdmin},
		{name: "upper case", raw: "EDITOR", want: RoleEditor},
		{name: "padded", raw: " admin ", want: RoleAdmin},
		{name: "empty coerces to author", raw: "", want: RoleAuthor},
		{name: "unknown coerces to author", raw: "superuser", want: RoleAuthor},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := ParseRole(testCase.raw); got != testCase.want {
				t.Fatalf("ParseRole(%q) = %v, want %v", testCase.raw, got, testCase.want)
			}
		})
	}
}

func TestAuthorizeRoleMatrix(t *testing.T) {
	roles := []Role{RoleAuthor, RoleReviewer, RoleEditor, RoleAdmin}
	for _, held := range roles {
		for _, required := range roles {
			identity := &provider.Identity{ID: "user-1", Role: held.String()}
			decision := Authorize(identity, Require(required))

			want := RedirectToUnauthorized
			if held.AtLeast(required) {
				want = Allow
			}
			if decision != want {
				t.Fatalf("Authorize(role=%s, required=%s) = %v, want %v", held, required, decision, want)
			}
		}
	}
}

func TestAuthorizeAnonymous(t *testing.T) {
	roles := []Role{RoleAuthor, RoleReviewer, RoleEditor, RoleAdmin}
	for _, required := range roles {
		if decision := Authorize(nil, Require(required)); decision != RedirectToLogin {
			t.Fatalf("Authorize(nil, %s) = %v, want RedirectToLogin", required, decision)
		}
	}
	// A view with no requirement at all stays open to anonymous visitors.
	if decision := Authorize(nil, nil); decision != Allow {
		t.Fatalf("Authorize(nil, nil) = %v, want Allow", decision)
	}
}

func TestAuthorizeMissingRoleCoercesToAuthor(t *testing.T) {
	identity := &provider.Identity{ID: "user-2"}

	if decision := Authorize(identity, Require(RoleReviewer)); decision != RedirectToUnauthorized {
		t.Fatalf("expected RedirectToUnauthorized for roleless identity, got %v", decision)
	}
	if decision := Authorize(identity, Require(RoleAuthor)); decision != Allow {
		t.Fatalf("expected Allow at author level for roleless identity, got %v", decision)
	}
	if decision := Authorize(identity, nil); decision != Allow {
		t.Fatalf("expected Allow with no requirement, got %v", decision)
	}
}
