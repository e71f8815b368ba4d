package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testAPIKey = "anon-key"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		APIKey:  testAPIKey,
		Clock: func() time.Time {
			return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}
	return client, server
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(ClientConfig{APIKey: "key"}); !errors.Is(err, ErrInvalidClientConfig) {
		t.Fatalf("expected config error for missing base url, got %v", err)
	}
	if _, err := NewClient(ClientConfig{BaseURL: "https://example.test"}); !errors.Is(err, ErrInvalidClientConfig) {
		t.Fatalf("expected config error for missing api key, got %v", err)
	}
}

func TestSignInWithPassword(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
		}
		if r.Header.Get("apikey") != testAPIKey {
			t.Fatalf("missing api key header")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if body["email"] != "jane@example.com" {
			t.Fatalf("unexpected email: %v", body["email"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "token-abc",
			"refresh_token": "refresh-abc",
			"token_type":    "bearer",
			"expires_in":    3600,
			"user": map[string]any{
				"id":    "identity-1",
				"email": "jane@example.com",
				"user_metadata": map[string]string{
					"role":      "reviewer",
					"full_name": "Jane Doe",
				},
			},
		})
	})

	session, err := client.SignInWithPassword(context.Background(), "jane@example.com", "pw")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if session.AccessToken != "token-abc" || session.RefreshToken != "refresh-abc" {
		t.Fatalf("unexpected tokens: %+v", session)
	}
	wantExpiry := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	if !session.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("unexpected expiry: %v", session.ExpiresAt)
	}
	if session.Identity == nil || session.Identity.Role != "reviewer" || session.Identity.FullName != "Jane Doe" {
		t.Fatalf("unexpected identity: %+v", session.Identity)
	}
}

func TestSignInRejectedCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		})
	})

	if _, err := client.SignInWithPassword(context.Background(), "jane@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.SignInWithPassword(context.Background(), "jane@example.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSignInTransportFailure(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	if _, err := client.SignInWithPassword(context.Background(), "jane@example.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSignUpWithSession(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		data, _ := body["data"].(map[string]any)
		if data["role"] != "author" {
			t.Fatalf("expected role attribute, got %v", data)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-new",
			"expires_in":   3600,
			"user": map[string]any{
				"id":    "identity-9",
				"email": "new@example.com",
			},
		})
	})

	role := "author"
	identity, session, err := client.SignUp(context.Background(), SignUpParams{
		Email:      "new@example.com",
		Password:   "long-enough-pass",
		Attributes: UserAttributes{Role: &role},
	})
	if err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if identity == nil || identity.ID != "identity-9" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if session == nil || session.AccessToken != "token-new" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestSignUpVerificationPending(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// confirmation-required deployments answer with a bare user object.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "identity-9",
			"email": "new@example.com",
		})
	})

	identity, session, err := client.SignUp(context.Background(), SignUpParams{
		Email:    "new@example.com",
		Password: "long-enough-pass",
	})
	if err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if identity == nil || identity.ID != "identity-9" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if session != nil {
		t.Fatalf("expected nil session while verification is pending, got %+v", session)
	}
}

func TestSignOutTolerates401(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer dead-token" {
			t.Fatalf("missing bearer header")
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	if err := client.SignOut(context.Background(), "dead-token"); err != nil {
		t.Fatalf("revoking a dead token must not fail: %v", err)
	}
	if err := client.SignOut(context.Background(), ""); err != nil {
		t.Fatalf("sign-out without a token is a no-op: %v", err)
	}
}

func TestGetUser(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/auth/v1/user" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer live-token" {
			t.Fatalf("missing bearer header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "identity-1",
			"email": "jane@example.com",
			"user_metadata": map[string]string{
				"role":      "editor",
				"full_name": "Jane Doe",
			},
		})
	})

	identity, err := client.GetUser(context.Background(), "live-token")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if identity.ID != "identity-1" || identity.Role != "editor" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	if _, err := client.GetUser(context.Background(), " "); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable for blank token, got %v", err)
	}
}

func TestResetPasswordForEmail(t *testing.T) {
	var seen bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = true
		if r.URL.Path != "/auth/v1/recover" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.ResetPasswordForEmail(context.Background(), "jane@example.com", ""); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !seen {
		t.Fatalf("expected recover request")
	}
}

func TestResetPasswordEscapesRedirectURL(t *testing.T) {
	const redirect = "https://journal.example/reset?step=2&lang=en#form"

	var got string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("redirect_to")
		w.WriteHeader(http.StatusOK)
	})

	if err := client.ResetPasswordForEmail(context.Background(), "jane@example.com", redirect); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if got != redirect {
		t.Fatalf("redirect url corrupted in transit: got %q, want %q", got, redirect)
	}
}

func TestUpdateUser(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/auth/v1/user" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "identity-1",
			"email": "jane@example.com",
			"user_metadata": map[string]string{
				"full_name":   "Jane Q. Doe",
				"affiliation": "Example University",
			},
		})
	})

	fullName := "Jane Q. Doe"
	identity, err := client.UpdateUser(context.Background(), "token-abc", UserAttributes{FullName: &fullName})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if identity.FullName != "Jane Q. Doe" || identity.Affiliation != "Example University" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestSessionValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	identity := &Identity{ID: "identity-1"}

	cases := []struct {
		name    string
		session *Session
		want    bool
	}{
		{name: "nil session", session: nil, want: false},
		{name: "no identity", session: &Session{AccessToken: "t", ExpiresAt: now.Add(time.Hour)}, want: false},
		{name: "expired", session: &Session{AccessToken: "t", ExpiresAt: now.Add(-time.Minute), Identity: identity}, want: false},
		{name: "no expiry", session: &Session{AccessToken: "t", Identity: identity}, want: true},
		{name: "live", session: &Session{AccessToken: "t", ExpiresAt: now.Add(time.Hour), Identity: identity}, want: true},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.session.Valid(now); got != testCase.want {
				t.Fatalf("Valid() = %v, want %v", got, testCase.want)
			}
		})
	}
}
