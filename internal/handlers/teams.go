package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/teams"
)

type TeamsHandler struct {
	service        *teams.Service
	accountService *accounts.Service
	activity       *activity.Service
	logger         *slog.Logger
}

func NewTeamsHandler(log *slog.Logger, service *teams.Service, accountService *accounts.Service, activityService *activity.Service) *TeamsHandler {
	return &TeamsHandler{
		service:        service,
		accountService: accountService,
		activity:       activityService,
		logger:         log.With(slog.String("handler", "teams")),
	}
}

func (h *TeamsHandler) Register(e *echo.Echo) {
	g := e.Group("/teams")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
}

func (h *TeamsHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context(), c.QueryParam("include_inactive") == "true")
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *TeamsHandler) Get(c echo.Context) error {
	team, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, team)
}

func (h *TeamsHandler) Create(c echo.Context) error {
	admin, err := requireRole(c, h.accountService, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req teams.CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	team, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "create", "team", team.ID)
	return c.JSON(http.StatusCreated, team)
}

func (h *TeamsHandler) Update(c echo.Context) error {
	admin, err := requireRole(c, h.accountService, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req teams.UpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	team, err := h.service.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "update", "team", team.ID)
	return c.JSON(http.StatusOK, team)
}

func (h *TeamsHandler) mapErr(err error) error {
	switch {
	case errors.Is(err, teams.ErrTeamNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, teams.ErrNameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case isInvalidID(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
