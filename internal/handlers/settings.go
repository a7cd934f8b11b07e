package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/settings"
)

// SettingsHandler exposes the runtime settings table to admins.
type SettingsHandler struct {
	service        *settings.Service
	accountService *accounts.Service
	activity       *activity.Service
	logger         *slog.Logger
}

func NewSettingsHandler(log *slog.Logger, service *settings.Service, accountService *accounts.Service, activityService *activity.Service) *SettingsHandler {
	return &SettingsHandler{
		service:        service,
		accountService: accountService,
		activity:       activityService,
		logger:         log.With(slog.String("handler", "settings")),
	}
}

// PublicGeneralPath serves the business details without authentication.
const PublicGeneralPath = "/settings/public/general"

func (h *SettingsHandler) Register(e *echo.Echo) {
	e.GET(PublicGeneralPath, h.PublicGeneral)
	g := e.Group("/settings")
	g.GET("", h.List)
	g.GET("/:key", h.Get)
	g.PUT("/:key", h.Upsert)
}

func (h *SettingsHandler) List(c echo.Context) error {
	if _, err := requireRole(c, h.accountService, accounts.RoleAdmin); err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for i := range items {
		items[i] = settings.Masked(items[i])
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *SettingsHandler) Get(c echo.Context) error {
	if _, err := requireRole(c, h.accountService, accounts.RoleAdmin); err != nil {
		return err
	}
	item, err := h.service.Get(c.Request().Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, settings.ErrSettingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settings.Masked(item))
}

func (h *SettingsHandler) Upsert(c echo.Context) error {
	admin, err := requireRole(c, h.accountService, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req settings.UpsertRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, err := h.service.Upsert(c.Request().Context(), c.Param("key"), req)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidKey) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	record(c, h.activity, admin.ID, "update", "setting", item.Key)
	return c.JSON(http.StatusOK, settings.Masked(item))
}

// PublicGeneral returns the business name and hours to anyone.
func (h *SettingsHandler) PublicGeneral(c echo.Context) error {
	info, err := h.service.PublicGeneral(c.Request().Context())
	if err != nil {
		h.logger.Error("read public settings failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "settings unavailable")
	}
	return c.JSON(http.StatusOK, info)
}
