package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openscholar/journal-backend/internal/identifier"
	"github.com/openscholar/journal-backend/internal/provider"
	"github.com/openscholar/journal-backend/internal/users"
	"go.uber.org/zap"
)

const defaultMinPasswordLength = 8

var (
	errMissingProvider   = errors.New("gateway: identity provider dependency required")
	errMissingProfiles   = errors.New("gateway: profile service dependency required")
	errMissingSessions   = errors.New("gateway: session sink dependency required")
	errMissingClassifier = errors.New("gateway: classifier dependency required")
)

// IdentityProvider is the slice of the provider client the gateway consumes.
type IdentityProvider interface {
	SignUp(ctx context.Context, params provider.SignUpParams) (*provider.Identity, *provider.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*provider.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*provider.Identity, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	UpdateUser(ctx context.Context, accessToken string, attributes provider.UserAttributes) (*provider.Identity, error)
}

// ProfileService resolves phone numbers and provisions profile rows.
type ProfileService interface {
	EnsureProfile(ctx context.Context, identityID, email, displayName string) (users.User, error)
	EmailByPhone(ctx context.Context, normalizedPhone string) (string, error)
	SyncAttributes(ctx context.Context, identityID, email, phone, fullName, role, affiliation string) error
}

// SessionSink receives session transitions and exposes the live session.
// The session store is the only implementation; the gateway never mutates
// session state directly.
type SessionSink interface {
	Apply(change provider.Change)
	Session() *provider.Session
}

// Result is the uniform outcome shape shared by every gateway operation.
type Result struct {
	Identity *provider.Identity
	Session  *provider.Session
	Err      error
}

// GatewayConfig bundles the gateway's dependencies.
type GatewayConfig struct {
	Provider          IdentityProvider
	Profiles          ProfileService
	Sessions          SessionSink
	Classifier        *identifier.Classifier
	ResetRedirectURL  string
	MinPasswordLength int
	Logger            *zap.Logger
	Clock             func() time.Time
}

// Gateway drives sign-up, sign-in, sign-out, password reset and profile
// updates against the remote identity provider, routing every identifier
// through the classifier and funneling all session changes into the sink.
type Gateway struct {
	provider         IdentityProvider
	profiles         ProfileService
	sessions         SessionSink
	classifier       *identifier.Classifier
	resetRedirectURL string
	minPasswordLen   int
	logger           *zap.Logger
	clock            func() time.Time
}

// NewGateway constructs a gateway with validated dependencies.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Provider == nil {
		return nil, errMissingProvider
	}
	if cfg.Profiles == nil {
		return nil, errMissingProfiles
	}
	if cfg.Sessions == nil {
		return nil, errMissingSessions
	}
	if cfg.Classifier == nil {
		return nil, errMissingClassifier
	}
	minLength := cfg.MinPasswordLength
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Gateway{
		provider:         cfg.Provider,
		profiles:         cfg.Profiles,
		sessions:         cfg.Sessions,
		classifier:       cfg.Classifier,
		resetRedirectURL: cfg.ResetRedirectURL,
		minPasswordLen:   minLength,
		logger:           logger,
		clock:            clock,
	}, nil
}

// SignIn authenticates a raw identifier and password. Email identifiers go
// straight to the provider; phone identifiers are first resolved to their
// profile email. A phone with no matching profile fails as ErrUserNotFound
// without touching the password-verification endpoint, so the outcome never
// leaks whether an email exists via timing.
func (g *Gateway) SignIn(ctx context.Context, rawIdentifier, password string) Result {
	kind, normalized, err := g.classifier.ClassifyAndNormalize(rawIdentifier)
	if err != nil {
		return Result{Err: ErrInvalidIdentifier}
	}
	if password == "" {
		return Result{Err: ErrWrongCredentials}
	}

	email := normalized
	if kind == identifier.Phone {
		resolved, err := g.profiles.EmailByPhone(ctx, normalized)
		if errors.Is(err, users.ErrNoProfileForPhone) {
			return Result{Err: ErrUserNotFound}
		}
		if err != nil {
			return Result{Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, err)}
		}
		email = resolved
	}

	session, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return Result{Err: mapProviderError(err)}
	}

	g.sessions.Apply(provider.Change{Kind: provider.ChangeSignedIn, Session: session, At: g.clock()})
	g.logger.Info("sign-in succeeded", zap.String("kind", kind.String()))
	return Result{Identity: session.Identity, Session: session}
}

// SignUpParams carries the sign-up credential and profile metadata. The
// identifier is raw user input; exactly one of email or phone results from
// classification. PasswordConfirm is optional and checked when present.
type SignUpParams struct {
	Identifier      string
	Password        string
	PasswordConfirm string
	FullName        string
	Role            string
	Affiliation     string
}

// SignUp creates the credential at the provider and provisions the public
// profile row. A nil session on the result with a nil error means the
// provider requires verification before issuing one. A non-nil identity
// with ErrProfileCreationFailed means the credential exists but the profile
// row could not be written; callers may retry provisioning without
// re-creating the credential.
func (g *Gateway) SignUp(ctx context.Context, params SignUpParams) Result {
	kind, normalized, err := g.classifier.ClassifyAndNormalize(params.Identifier)
	if err != nil {
		return Result{Err: ErrInvalidIdentifier}
	}
	if len(params.Password) < g.minPasswordLen {
		return Result{Err: ErrWeakPassword}
	}
	if params.PasswordConfirm != "" && params.PasswordConfirm != params.Password {
		return Result{Err: ErrPasswordMismatch}
	}

	signUp := provider.SignUpParams{
		Password: params.Password,
		Attributes: provider.UserAttributes{
			FullName:    optional(params.FullName),
			Role:        optional(params.Role),
			Affiliation: optional(params.Affiliation),
		},
	}
	if kind == identifier.Email {
		signUp.Email = normalized
	} else {
		signUp.Phone = normalized
	}

	identity, session, err := g.provider.SignUp(ctx, signUp)
	if err != nil {
		return Result{Err: mapProviderError(err)}
	}
	if identity == nil && session != nil {
		identity = session.Identity
	}
	if identity == nil {
		return Result{Err: ErrProviderUnavailable}
	}

	if _, err := g.profiles.EnsureProfile(ctx, identity.ID, identity.Email, identity.FullName); err != nil {
		g.logger.Error("profile provisioning failed", zap.String("identity_id", identity.ID), zap.Error(err))
		return Result{Identity: identity, Session: session, Err: ErrProfileCreationFailed}
	}
	if err := g.profiles.SyncAttributes(ctx, identity.ID, identity.Email, identity.Phone, identity.FullName, identity.Role, identity.Affiliation); err != nil {
		g.logger.Warn("profile attribute sync failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}

	if session != nil {
		g.sessions.Apply(provider.Change{Kind: provider.ChangeSignedIn, Session: session, At: g.clock()})
	}
	return Result{Identity: identity, Session: session}
}

// SignOut revokes the live session at the provider and clears local state.
// Calling it with no active session is not an error. Local state is cleared
// even when the provider call fails.
func (g *Gateway) SignOut(ctx context.Context) Result {
	session := g.sessions.Session()
	if session == nil {
		return Result{}
	}

	err := g.provider.SignOut(ctx, session.AccessToken)
	g.sessions.Apply(provider.Change{Kind: provider.ChangeSignedOut, At: g.clock()})
	if err != nil {
		return Result{Err: mapProviderError(err)}
	}
	return Result{}
}

// ResetPassword triggers the provider's email reset flow for the raw
// identifier. Phone identifiers resolve through the profile store exactly
// like sign-in, but a phone with no profile row still reports the generic
// success: the outcome beyond validation never reveals whether an
// identifier is registered, matching how the provider answers for
// unregistered emails.
func (g *Gateway) ResetPassword(ctx context.Context, rawIdentifier string) Result {
	kind, normalized, err := g.classifier.ClassifyAndNormalize(rawIdentifier)
	if err != nil {
		return Result{Err: ErrInvalidIdentifier}
	}

	email := normalized
	if kind == identifier.Phone {
		resolved, err := g.profiles.EmailByPhone(ctx, normalized)
		if errors.Is(err, users.ErrNoProfileForPhone) {
			return Result{}
		}
		if err != nil {
			return Result{Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, err)}
		}
		email = resolved
	}

	if err := g.provider.ResetPasswordForEmail(ctx, email, g.resetRedirectURL); err != nil {
		return Result{Err: mapProviderError(err)}
	}
	return Result{}
}

// RefreshIdentity re-fetches the live session's identity from the provider
// and funnels the result through the session sink. This is the one path
// besides explicit profile updates through which a locally held Identity
// changes; attribute edits made elsewhere (an admin role grant, say) become
// visible here.
func (g *Gateway) RefreshIdentity(ctx context.Context) Result {
	session := g.sessions.Session()
	if session == nil || session.Identity == nil {
		return Result{Err: ErrNoActiveSession}
	}

	identity, err := g.provider.GetUser(ctx, session.AccessToken)
	if err != nil {
		return Result{Err: mapProviderError(err)}
	}

	refreshed := *session
	refreshed.Identity = identity
	g.sessions.Apply(provider.Change{Kind: provider.ChangeTokenRefreshed, Session: &refreshed, At: g.clock()})

	if err := g.profiles.SyncAttributes(ctx, identity.ID, identity.Email, identity.Phone, identity.FullName, identity.Role, identity.Affiliation); err != nil {
		g.logger.Warn("profile attribute sync failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}
	return Result{Identity: identity, Session: &refreshed}
}

// ProfileUpdate is the partial attribute set a signed-in user may change.
// Role is deliberately absent: role changes are a privileged operation not
// exposed through this path.
type ProfileUpdate struct {
	FullName    *string
	Affiliation *string
}

// UpdateProfile merges the supplied fields into the live identity at the
// provider and mirrors them onto the profile row.
func (g *Gateway) UpdateProfile(ctx context.Context, update ProfileUpdate) Result {
	session := g.sessions.Session()
	if session == nil || session.Identity == nil {
		return Result{Err: ErrNoActiveSession}
	}

	attributes := provider.UserAttributes{
		FullName:    update.FullName,
		Affiliation: update.Affiliation,
	}
	identity, err := g.provider.UpdateUser(ctx, session.AccessToken, attributes)
	if err != nil {
		return Result{Err: mapProviderError(err)}
	}

	refreshed := *session
	refreshed.Identity = identity
	g.sessions.Apply(provider.Change{Kind: provider.ChangeTokenRefreshed, Session: &refreshed, At: g.clock()})

	if err := g.profiles.SyncAttributes(ctx, identity.ID, identity.Email, identity.Phone, identity.FullName, identity.Role, identity.Affiliation); err != nil {
		g.logger.Warn("profile attribute sync failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}
	return Result{Identity: identity, Session: &refreshed}
}

func mapProviderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrInvalidCredentials):
		return ErrWrongCredentials
	default:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
