package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	signupPath   = "/auth/v1/signup"
	tokenPath    = "/auth/v1/token"
	logoutPath   = "/auth/v1/logout"
	userPath     = "/auth/v1/user"
	recoverPath  = "/auth/v1/recover"
	apiKeyHeader = "apikey"

	grantPassword = "password"
	grantRefresh  = "refresh_token"
)

var (
	errMissingBaseURL   = errors.New("base url configuration required")
	errMissingAPIKey    = errors.New("api key configuration required")
	errMissingToken     = errors.New("access token must not be empty")
	errMissingEmail     = errors.New("email must not be empty")
	errMissingPassword  = errors.New("password must not be empty")
	errMissingSignUpKey = errors.New("sign-up requires an email or a phone")

	// ErrInvalidClientConfig reports unusable construction parameters.
	ErrInvalidClientConfig = errors.New("provider: invalid client config")
	// ErrInvalidCredentials is returned when the provider rejects the
	// supplied email/password pair.
	ErrInvalidCredentials = errors.New("provider: invalid credentials")
	// ErrUnavailable wraps transport failures and provider-side errors.
	// Callers treat it as terminal for the call; no retry happens here.
	ErrUnavailable = errors.New("provider: unavailable")
)

// ClientConfig bundles configuration required to instantiate a Client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Client is a typed HTTP client for the hosted identity provider. All
// methods surface transport failures as ErrUnavailable and never retry;
// timeouts belong to the injected http.Client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	clock      func() time.Time
}

// NewClient constructs a provider client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingBaseURL)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingAPIKey)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		clock:      clock,
	}, nil
}

// SignUpParams carries sign-up credentials plus the metadata attached to the
// created account. Email and Phone are mutually exclusive.
type SignUpParams struct {
	Email      string
	Phone      string
	Password   string
	Attributes UserAttributes
}

type userPayload struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	UserMetadata map[string]string `json:"user_metadata"`
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *userPayload `json:"user"`
}

type errorPayload struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"msg"`
}

// SignUp creates a credential at the provider. When the provider requires
// verification it returns the created identity with a nil session; callers
// must treat that as verification pending, not as failure.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (*Identity, *Session, error) {
	if params.Email == "" && params.Phone == "" {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, errMissingSignUpKey)
	}
	if params.Password == "" {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, errMissingPassword)
	}

	body := map[string]any{"password": params.Password}
	if params.Email != "" {
		body["email"] = params.Email
	} else {
		body["phone"] = params.Phone
	}
	if data := attributeMap(params.Attributes); len(data) > 0 {
		body["data"] = data
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, signupPath, "", body, &raw); err != nil {
		return nil, nil, err
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Confirmation-required deployments answer with a bare user object
	// instead of a session envelope.
	if payload.AccessToken == "" && payload.User == nil {
		var user userPayload
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if user.ID != "" {
			payload.User = &user
		}
	}
	identity := identityFromPayload(payload.User)
	session := c.sessionFromPayload(payload)
	return identity, session, nil
}

// SignInWithPassword performs a direct email/password sign-in.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, errMissingEmail)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, errMissingPassword)
	}

	body := map[string]any{"email": email, "password": password}
	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, tokenPath+"?grant_type="+grantPassword, "", body, &payload); err != nil {
		return nil, err
	}
	return c.sessionFromPayload(payload), nil
}

// SignOut revokes the supplied access token at the provider. Revoking an
// already-dead token is not an error.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, logoutPath, accessToken, nil, nil)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil
	}
	return err
}

// GetUser fetches the identity bound to the supplied access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, errMissingToken)
	}
	var user userPayload
	if err := c.do(ctx, http.MethodGet, userPath, accessToken, nil, &user); err != nil {
		return nil, err
	}
	return identityFromPayload(&user), nil
}

// RefreshSession exchanges a refresh token for a fresh session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, errMissingToken)
	}
	body := map[string]any{"refresh_token": refreshToken}
	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, tokenPath+"?grant_type="+grantRefresh, "", body, &payload); err != nil {
		return nil, err
	}
	return c.sessionFromPayload(payload), nil
}

// ResetPasswordForEmail triggers the provider's email-based reset flow. The
// outcome is deliberately generic: the provider answers the same way whether
// or not the email is registered.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	if email == "" {
		return fmt.Errorf("%w: %v", ErrUnavailable, errMissingEmail)
	}
	body := map[string]any{"email": email}
	path := recoverPath
	if redirectURL != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectURL)
	}
	return c.do(ctx, http.MethodPost, path, "", body, nil)
}

// UpdateUser merges the supplied attributes into the token's identity.
func (c *Client) UpdateUser(ctx context.Context, accessToken string, attributes UserAttributes) (*Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, errMissingToken)
	}
	body := map[string]any{"data": attributeMap(attributes)}
	var user userPayload
	if err := c.do(ctx, http.MethodPut, userPath, accessToken, body, &user); err != nil {
		return nil, err
	}
	return identityFromPayload(&user), nil
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	request.Header.Set(apiKeyHeader, c.apiKey)
	request.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("provider request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		var remote errorPayload
		_ = json.NewDecoder(response.Body).Decode(&remote)
		if response.StatusCode == http.StatusBadRequest || response.StatusCode == http.StatusUnauthorized {
			c.logger.Debug("provider rejected credentials",
				zap.String("path", path),
				zap.Int("status", response.StatusCode))
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, remote.message())
		}
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, response.StatusCode, remote.message())
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p errorPayload) message() string {
	switch {
	case p.Description != "":
		return p.Description
	case p.Message != "":
		return p.Message
	case p.Error != "":
		return p.Error
	default:
		return "no error detail"
	}
}

func identityFromPayload(user *userPayload) *Identity {
	if user == nil || user.ID == "" {
		return nil
	}
	return &Identity{
		ID:          user.ID,
		Email:       user.Email,
		Phone:       user.Phone,
		Role:        user.UserMetadata["role"],
		FullName:    user.UserMetadata["full_name"],
		Affiliation: user.UserMetadata["affiliation"],
	}
}

func (c *Client) sessionFromPayload(payload sessionPayload) *Session {
	if payload.AccessToken == "" {
		return nil
	}
	session := &Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		Identity:     identityFromPayload(payload.User),
	}
	switch {
	case payload.ExpiresIn > 0:
		session.ExpiresAt = c.clock().Add(time.Duration(payload.ExpiresIn) * time.Second)
	default:
		session.ExpiresAt = tokenExpiry(payload.AccessToken)
	}
	return session
}

// tokenExpiry reads the exp claim from the provider-issued JWT without
// verifying the signature; the signature is the provider's concern.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func attributeMap(attributes UserAttributes) map[string]string {
	data := map[string]string{}
	if attributes.FullName != nil {
		data["full_name"] = *attributes.FullName
	}
	if attributes.Role != nil {
		data["role"] = *attributes.Role
	}
	if attributes.Affiliation != nil {
		data["affiliation"] = *attributes.Affiliation
	}
	return data
}
