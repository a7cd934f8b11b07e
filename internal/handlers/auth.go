// Package handlers provides the HTTP API handlers of the helpdesk server.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/auth"
)

// AuthHandler serves /auth/* and issues JWTs.
type AuthHandler struct {
	accountService *accounts.Service
	activity       *activity.Service
	jwtSecret      string
	expiresIn      time.Duration
	loginLimiter   echo.MiddlewareFunc
	logger         *slog.Logger
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the success body (access_token, user info, expires_at).
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   string           `json:"expires_at"`
	User        accounts.Account `json:"user"`
}

// NewAuthHandler creates an auth handler. loginPerMinute caps login attempts per client IP;
// zero or less disables the limit.
func NewAuthHandler(log *slog.Logger, accountService *accounts.Service, activityService *activity.Service, jwtSecret string, expiresIn time.Duration, loginPerMinute int) *AuthHandler {
	h := &AuthHandler{
		accountService: accountService,
		activity:       activityService,
		jwtSecret:      jwtSecret,
		expiresIn:      expiresIn,
		logger:         log.With(slog.String("handler", "auth")),
	}
	if loginPerMinute > 0 {
		h.loginLimiter = middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(loginPerMinute) / 60),
				Burst:     loginPerMinute,
				ExpiresIn: 10 * time.Minute,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
			DenyHandler: func(echo.Context, string, error) error {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
			},
		})
	}
	return h
}

// Register mounts the auth routes on the Echo instance.
func (h *AuthHandler) Register(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.loginLimiter != nil {
		mw = append(mw, h.loginLimiter)
	}
	e.POST("/auth/login", h.Login, mw...)
	e.GET("/auth/me", h.Me)
	e.POST("/auth/change-password", h.ChangePassword)
	e.POST("/auth/logout", h.Logout)
}

// Login godoc
// @Summary Login
// @Description Validate staff credentials and issue a JWT
// @Tags auth
// @Param payload body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post].
func (h *AuthHandler) Login(c echo.Context) error {
	if h.accountService == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "account service not configured")
	}
	if strings.TrimSpace(h.jwtSecret) == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "jwt secret not configured")
	}
	if h.expiresIn <= 0 {
		return echo.NewHTTPError(http.StatusInternalServerError, "jwt expiry not configured")
	}

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.Password) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	account, err := h.accountService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			record(c, h.activity, "", "login_failed", "auth", req.Email)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		if errors.Is(err, accounts.ErrInactiveAccount) {
			return echo.NewHTTPError(http.StatusUnauthorized, "user is inactive")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	token, expiresAt, err := auth.GenerateToken(account.ID, account.Role, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	record(c, h.activity, account.ID, "login", "auth", account.ID)

	return c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		User:        account,
	})
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

// ChangePassword updates the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	var req accounts.UpdatePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.accountService.UpdatePassword(c.Request().Context(), account.ID, req); err != nil {
		switch {
		case errors.Is(err, accounts.ErrInvalidPassword):
			return echo.NewHTTPError(http.StatusBadRequest, "current password is incorrect")
		case errors.Is(err, accounts.ErrWeakPassword):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	record(c, h.activity, account.ID, "change_password", "user", account.ID)
	return c.NoContent(http.StatusNoContent)
}

// Logout is stateless; it only leaves an audit entry.
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	record(c, h.activity, userID, "logout", "auth", userID)
	return c.NoContent(http.StatusNoContent)
}
