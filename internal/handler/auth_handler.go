package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/logger"
	"github.com/HugPhiluu/PhilCard/internal/service"
)

// AuthCookieName is shared with the JWT middleware.
const AuthCookieName = "philcard_auth"

// ExpiresAtKey is where the JWT middleware stores the token expiry.
const ExpiresAtKey = "auth_expires_at"

type AuthHandler struct {
	service service.AuthService
	limiter *service.LoginLimiter
}

func NewAuthHandler(service service.AuthService, limiter *service.LoginLimiter) *AuthHandler {
	return &AuthHandler{service: service, limiter: limiter}
}

type authStatusResponse struct {
	Configured bool `json:"configured"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type meResponse struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// RegisterPublicRoutes registers routes that don't require authentication.
func (h *AuthHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/auth/status", h.GetStatus)
	g.POST("/auth/setup", h.Setup)
	g.POST("/auth/login", h.Login)
	g.POST("/auth/logout", h.Logout)
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *AuthHandler) RegisterProtectedRoutes(g *echo.Group) {
	g.GET("/auth/me", h.Me)
	g.POST("/auth/password", h.ChangePassword)
}

// GetStatus reports whether an admin password exists.
// @Summary Check auth status
// @Description Check if the admin password has been configured
// @Tags auth
// @Produce json
// @Success 200 {object} authStatusResponse
// @Failure 500 {object} errorResponse
// @Router /auth/status [get]
func (h *AuthHandler) GetStatus(c echo.Context) error {
	configured, err := h.service.IsConfigured(c.Request().Context())
	if err != nil {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to check status"})
	}
	return c.JSON(http.StatusOK, authStatusResponse{Configured: configured})
}

// Setup stores the first admin password.
// @Summary Set up admin password
// @Description Store the admin password; only allowed while none is configured
// @Tags auth
// @Accept json
// @Produce json
// @Param request body passwordRequest true "New password"
// @Success 200 {object} sessionResponse
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 429 {object} errorResponse
// @Router /auth/setup [post]
func (h *AuthHandler) Setup(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many attempts"})
	}
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	session, err := h.service.Setup(c.Request().Context(), req.Password)
	if err != nil {
		return h.handleAuthError(c, err)
	}
	logger.Info("admin password configured", "module", "handler", "action", "create", "resource", "auth", "result", "ok")
	return h.respondSession(c, session)
}

// Login exchanges the admin password for a token.
// @Summary Login
// @Description Authenticate with the admin password and get a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body passwordRequest true "Admin password"
// @Success 200 {object} sessionResponse
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Failure 429 {object} errorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	ip := c.RealIP()
	if !h.limiter.Allow(ip) {
		logger.Warn("login rate limited", "module", "handler", "action", "request", "resource", "auth", "result", "failed", "remote_ip", ip)
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many attempts"})
	}
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	session, err := h.service.Login(c.Request().Context(), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPassword) {
			logger.Warn("login failed", "module", "handler", "action", "request", "resource", "auth", "result", "failed", "remote_ip", ip)
		}
		return h.handleAuthError(c, err)
	}
	h.limiter.Reset(ip)
	return h.respondSession(c, session)
}

// Logout clears the authentication cookie.
// @Summary Logout
// @Description Clear the authentication cookie
// @Tags auth
// @Produce json
// @Success 200 {object} messageResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	clearAuthCookie(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Me confirms the caller holds a valid token.
// @Summary Current session
// @Description Report the expiry of the current admin token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} meResponse
// @Failure 401 {object} errorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	expiresAt, _ := c.Get(ExpiresAtKey).(time.Time)
	return c.JSON(http.StatusOK, meResponse{Authenticated: true, ExpiresAt: expiresAt})
}

// ChangePassword replaces the admin password and invalidates older tokens.
// @Summary Change password
// @Description Change the admin password; every previously issued token stops working
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body changePasswordRequest true "Current and new password"
// @Success 200 {object} sessionResponse
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Router /auth/password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	session, err := h.service.ChangePassword(c.Request().Context(), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return h.handleAuthError(c, err)
	}
	logger.Info("admin password changed", "module", "handler", "action", "update", "resource", "auth", "result", "ok")
	return h.respondSession(c, session)
}

func (h *AuthHandler) respondSession(c echo.Context, session *service.Session) error {
	// cookie for browser resource requests
	setAuthCookie(c, session)
	return c.JSON(http.StatusOK, sessionResponse{Token: session.Token, ExpiresAt: session.ExpiresAt})
}

func (h *AuthHandler) handleAuthError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrAlreadyConfigured):
		return c.JSON(http.StatusConflict, errorResponse{Error: "admin password already configured"})
	case errors.Is(err, service.ErrNotConfigured):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "admin password not configured"})
	case errors.Is(err, service.ErrInvalidPassword):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, service.ErrPasswordRequired):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "password is required"})
	case errors.Is(err, service.ErrPasswordTooShort), errors.Is(err, service.ErrPasswordTooLong):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func setAuthCookie(c echo.Context, session *service.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetCookie(&http.Cookie{
		Name:     AuthCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func clearAuthCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
