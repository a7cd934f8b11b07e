package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
)

// ActivityHandler serves the audit log. Admins see everyone; others see themselves.
type ActivityHandler struct {
	service        *activity.Service
	accountService *accounts.Service
	logger         *slog.Logger
}

func NewActivityHandler(log *slog.Logger, service *activity.Service, accountService *accounts.Service) *ActivityHandler {
	return &ActivityHandler{
		service:        service,
		accountService: accountService,
		logger:         log.With(slog.String("handler", "activity")),
	}
}

func (h *ActivityHandler) Register(e *echo.Echo) {
	e.GET("/activity", h.List)
}

func (h *ActivityHandler) List(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	userID := c.QueryParam("user_id")
	if !account.IsAdmin() {
		userID = account.ID
	}
	limit, offset := pageParams(c)
	items, err := h.service.List(c.Request().Context(), userID, limit, offset)
	if err != nil {
		if isInvalidID(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
