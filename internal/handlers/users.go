package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
)

type UsersHandler struct {
	service  *accounts.Service
	activity *activity.Service
	logger   *slog.Logger
}

func NewUsersHandler(log *slog.Logger, service *accounts.Service, activityService *activity.Service) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		service:  service,
		activity: activityService,
		logger:   log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(e *echo.Echo) {
	g := e.Group("/users")
	g.GET("/me", h.GetMe)
	g.PUT("/me", h.UpdateMe)
	g.GET("", h.ListUsers)
	g.POST("", h.CreateUser)
	g.GET("/:id", h.GetUser)
	g.PUT("/:id", h.UpdateUser)
	g.PUT("/:id/password", h.ResetUserPassword)
	g.DELETE("/:id", h.DeleteUser)
}

// GetMe godoc
// @Summary Get current user
// @Tags users
// @Success 200 {object} accounts.Account
// @Router /users/me [get]
func (h *UsersHandler) GetMe(c echo.Context) error {
	account, err := currentAccount(c, h.service)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

// UpdateMe godoc
// @Summary Update current user profile
// @Description Staff may change their own name and phone only
// @Tags users
// @Param payload body accounts.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} accounts.Account
// @Router /users/me [put]
func (h *UsersHandler) UpdateMe(c echo.Context) error {
	account, err := currentAccount(c, h.service)
	if err != nil {
		return err
	}
	var req accounts.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	resp, err := h.service.UpdateProfile(c.Request().Context(), account.ID, req)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *UsersHandler) ListUsers(c echo.Context) error {
	if _, err := requireRole(c, h.service, accounts.RoleAdmin, accounts.RoleSupervisor); err != nil {
		return err
	}
	limit, offset := pageParams(c)
	resp, err := h.service.List(c.Request().Context(), accounts.ListAccountsRequest{
		Role:     c.QueryParam("role"),
		TeamID:   c.QueryParam("team_id"),
		IsActive: queryBool(c, "active"),
		Query:    c.QueryParam("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetUser returns any account to admins and supervisors, and only their own to agents.
func (h *UsersHandler) GetUser(c echo.Context) error {
	caller, err := currentAccount(c, h.service)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if caller.Role == accounts.RoleAgent && id != caller.ID {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
	}
	resp, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *UsersHandler) CreateUser(c echo.Context) error {
	admin, err := requireRole(c, h.service, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req accounts.CreateAccountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	resp, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "create", "user", resp.ID)
	return c.JSON(http.StatusCreated, resp)
}

func (h *UsersHandler) UpdateUser(c echo.Context) error {
	admin, err := requireRole(c, h.service, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req accounts.UpdateAccountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	resp, err := h.service.UpdateAdmin(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "update", "user", resp.ID)
	return c.JSON(http.StatusOK, resp)
}

func (h *UsersHandler) ResetUserPassword(c echo.Context) error {
	admin, err := requireRole(c, h.service, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req accounts.ResetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ResetPassword(c.Request().Context(), c.Param("id"), req); err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "reset_password", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser deactivates the account; accounts are never removed.
func (h *UsersHandler) DeleteUser(c echo.Context) error {
	admin, err := requireRole(c, h.service, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	if c.Param("id") == admin.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot deactivate your own account")
	}
	if _, err := h.service.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "deactivate", "user", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *UsersHandler) mapErr(err error) error {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, accounts.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, accounts.ErrInvalidRole), errors.Is(err, accounts.ErrWeakPassword), isInvalidID(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.logger.Error("users request failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
