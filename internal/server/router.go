package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openscholar/journal-backend/internal/auth"
	"github.com/openscholar/journal-backend/internal/authz"
	"github.com/openscholar/journal-backend/internal/provider"
	"github.com/openscholar/journal-backend/internal/session"
	"github.com/openscholar/journal-backend/internal/users"
	"go.uber.org/zap"
)

const identityContextKey = "journal_identity"

var (
	errMissingGateway      = errors.New("credential gateway dependency required")
	errMissingSessionStore = errors.New("session store dependency required")
	errMissingProfiles     = errors.New("profile service dependency required")
)

// CredentialGateway is the slice of the auth gateway the router consumes.
type CredentialGateway interface {
	SignIn(ctx context.Context, rawIdentifier, password string) auth.Result
	SignUp(ctx context.Context, params auth.SignUpParams) auth.Result
	SignOut(ctx context.Context) auth.Result
	ResetPassword(ctx context.Context, rawIdentifier string) auth.Result
	UpdateProfile(ctx context.Context, update auth.ProfileUpdate) auth.Result
	RefreshIdentity(ctx context.Context) auth.Result
}

// SessionReader exposes the live session state to access checks.
type SessionReader interface {
	Current() session.Snapshot
}

// ProfileDirectory serves the admin and editorial views.
type ProfileDirectory interface {
	List(ctx context.Context) ([]users.User, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}

// Dependencies wires the HTTP surface to the auth core.
type Dependencies struct {
	Gateway  CredentialGateway
	Sessions SessionReader
	Profiles ProfileDirectory
	Logger   *zap.Logger
}

// NewHTTPHandler builds the journal API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Gateway == nil {
		return nil, errMissingGateway
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionStore
	}
	if deps.Profiles == nil {
		return nil, errMissingProfiles
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		gateway:  deps.Gateway,
		sessions: deps.Sessions,
		profiles: deps.Profiles,
		logger:   logger,
	}

	router.POST("/auth/signup", handler.handleSignUp)
	router.POST("/auth/signin", handler.handleSignIn)
	router.POST("/auth/signout", handler.handleSignOut)
	router.POST("/auth/reset-password", handler.handleResetPassword)
	router.GET("/auth/session", handler.handleSessionState)

	authenticated := router.Group("/")
	authenticated.Use(handler.requireRole(authz.Require(authz.RoleAuthor)))
	authenticated.PATCH("/auth/profile", handler.handleUpdateProfile)
	authenticated.POST("/auth/refresh", handler.handleRefreshIdentity)

	reviews := router.Group("/reviews")
	reviews.Use(handler.requireRole(authz.Require(authz.RoleReviewer)))
	reviews.GET("/queue", handler.handleReviewQueue)

	editorial := router.Group("/editorial")
	editorial.Use(handler.requireRole(authz.Require(authz.RoleEditor)))
	editorial.GET("/dashboard", handler.handleEditorialDashboard)

	admin := router.Group("/admin")
	admin.Use(handler.requireRole(authz.Require(authz.RoleAdmin)))
	admin.GET("/users", handler.handleListUsers)

	return router, nil
}

type httpHandler struct {
	gateway  CredentialGateway
	sessions SessionReader
	profiles ProfileDirectory
	logger   *zap.Logger
}

// requireRole gates a route group on the current session. The decision is
// recomputed on every request from the store's present snapshot; while the
// bootstrap query is still in flight the middleware answers 503 instead of
// deciding either way.
func (h *httpHandler) requireRole(required *authz.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := h.sessions.Current()
		if snapshot.State == session.Uninitialized || snapshot.State == session.Loading {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session_loading"})
			return
		}

		switch authz.Authorize(snapshot.Identity, required) {
		case authz.Allow:
			c.Set(identityContextKey, snapshot.Identity)
			c.Next()
		case authz.RedirectToLogin:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login_required"})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient_role"})
		}
	}
}

type signUpPayload struct {
	Identifier      string `json:"identifier"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FullName        string `json:"full_name"`
	Role            string `json:"role"`
	Affiliation     string `json:"affiliation"`
}

type signInPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type resetPayload struct {
	Identifier string `json:"identifier"`
}

type profilePayload struct {
	FullName    *string `json:"full_name"`
	Affiliation *string `json:"affiliation"`
}

type identityPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role"`
	FullName    string `json:"full_name,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request signUpPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result := h.gateway.SignUp(c.Request.Context(), auth.SignUpParams{
		Identifier:      request.Identifier,
		Password:        request.Password,
		PasswordConfirm: request.PasswordConfirm,
		FullName:        request.FullName,
		Role:            request.Role,
		Affiliation:     request.Affiliation,
	})
	if result.Err != nil {
		h.renderError(c, result.Err)
		return
	}

	response := gin.H{"identity": identityResponse(result)}
	if result.Session == nil {
		response["status"] = "verification_pending"
	} else {
		response["status"] = "signed_in"
	}
	c.JSON(http.StatusCreated, response)
}

func (h *httpHandler) handleSignIn(c *gin.Context) {
	var request signInPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result := h.gateway.SignIn(c.Request.Context(), request.Identifier, request.Password)
	if result.Err != nil {
		h.renderError(c, result.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identityResponse(result)})
}

func (h *httpHandler) handleSignOut(c *gin.Context) {
	result := h.gateway.SignOut(c.Request.Context())
	if result.Err != nil {
		h.renderError(c, result.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

func (h *httpHandler) handleResetPassword(c *gin.Context) {
	var request resetPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result := h.gateway.ResetPassword(c.Request.Context(), request.Identifier)
	if result.Err != nil {
		h.renderError(c, result.Err)
		return
	}
	// the outcome stays generic regardless of whether the email exists.
	c.JSON(http.StatusOK, gin.H{"status": "check_your_messages"})
}

func (h *httpHandler) handleSessionState(c *gin.Context) {
	snapshot := h.sessions.Current()
	response := gin.H{"state": snapshot.State.String()}
	if snapshot.Identity != nil {
		response["identity"] = identityPayload{
			ID:          snapshot.Identity.ID,
			Email:       snapshot.Identity.Email,
			Phone:       snapshot.Identity.Phone,
			Role:        authz.ParseRole(snapshot.Identity.Role).String(),
			FullName:    snapshot.Identity.FullName,
			Affiliation: snapshot.Identity.Affiliation,
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request profilePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result := h.gateway.UpdateProfile(c.Request.Context(), auth.ProfileUpdate{
		FullName:    request.FullName,
		Affiliation: request.Affiliation,
	})
	if result.Err != nil {
		h.renderError(c, result.Err)
		return
	}
	if actor := currentIdentity(c); actor != nil {
		h.logger.Info("profile updated", zap.String("identity_id", actor.ID))
	}
	c.JSON(http.StatusOK, gin.H{"identity": identityResponse(result)})
}

func (h *httpHandler) handleRefreshIdentity(c *gin.Context) {
	result := h.gateway.RefreshIdentity(c.Request.Context())
	if result.Err != nil {
		h.renderError(c, result.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identityResponse(result)})
}

func (h *httpHandler) handleReviewQueue(c *gin.Context) {
	profiles, err := h.profiles.List(c.Request.Context())
	if err != nil {
		h.logger.Error("review queue lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	authors := make([]gin.H, 0, len(profiles))
	for _, profile := range profiles {
		if authz.ParseRole(profile.Role) != authz.RoleAuthor {
			continue
		}
		authors = append(authors, gin.H{
			"identity_id": profile.IdentityID,
			"full_name":   profile.FullName,
			"affiliation": profile.Affiliation,
		})
	}
	c.JSON(http.StatusOK, gin.H{"authors": authors})
}

func (h *httpHandler) handleEditorialDashboard(c *gin.Context) {
	counts, err := h.profiles.CountByRole(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members_by_role": counts})
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	profiles, err := h.profiles.List(c.Request.Context())
	if err != nil {
		h.logger.Error("user listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	listed := make([]gin.H, 0, len(profiles))
	for _, profile := range profiles {
		listed = append(listed, gin.H{
			"identity_id": profile.IdentityID,
			"email":       profile.Email,
			"full_name":   profile.FullName,
			"role":        authz.ParseRole(profile.Role).String(),
			"affiliation": profile.Affiliation,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": listed})
}

func currentIdentity(c *gin.Context) *provider.Identity {
	value, ok := c.Get(identityContextKey)
	if !ok {
		return nil
	}
	identity, ok := value.(*provider.Identity)
	if !ok {
		return nil
	}
	return identity
}

func (h *httpHandler) renderError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	code := "provider_unavailable"
	switch {
	case errors.Is(err, auth.ErrInvalidIdentifier):
		status, code = http.StatusBadRequest, "invalid_identifier"
	case errors.Is(err, auth.ErrWeakPassword):
		status, code = http.StatusBadRequest, "weak_password"
	case errors.Is(err, auth.ErrPasswordMismatch):
		status, code = http.StatusBadRequest, "password_mismatch"
	case errors.Is(err, auth.ErrUserNotFound):
		status, code = http.StatusUnauthorized, "user_not_found"
	case errors.Is(err, auth.ErrWrongCredentials):
		status, code = http.StatusUnauthorized, "wrong_credentials"
	case errors.Is(err, auth.ErrNoActiveSession):
		status, code = http.StatusUnauthorized, "login_required"
	case errors.Is(err, auth.ErrProfileCreationFailed):
		status, code = http.StatusConflict, "profile_creation_failed"
	default:
		h.logger.Warn("provider operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code, "message": auth.Message(err)})
}

func identityResponse(result auth.Result) *identityPayload {
	if result.Identity == nil {
		return nil
	}
	return &identityPayload{
		ID:          result.Identity.ID,
		Email:       result.Identity.Email,
		Phone:       result.Identity.Phone,
		Role:        authz.ParseRole(result.Identity.Role).String(),
		FullName:    result.Identity.FullName,
		Affiliation: result.Identity.Affiliation,
	}
}
