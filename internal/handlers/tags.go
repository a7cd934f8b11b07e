package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/tags"
)

type TagsHandler struct {
	service        *tags.Service
	accountService *accounts.Service
	activity       *activity.Service
	logger         *slog.Logger
}

func NewTagsHandler(log *slog.Logger, service *tags.Service, accountService *accounts.Service, activityService *activity.Service) *TagsHandler {
	return &TagsHandler{
		service:        service,
		accountService: accountService,
		activity:       activityService,
		logger:         log.With(slog.String("handler", "tags")),
	}
}

func (h *TagsHandler) Register(e *echo.Echo) {
	g := e.Group("/tags")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *TagsHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *TagsHandler) Create(c echo.Context) error {
	admin, err := requireRole(c, h.accountService, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req tags.CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tag, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "create", "tag", tag.ID)
	return c.JSON(http.StatusCreated, tag)
}

func (h *TagsHandler) Update(c echo.Context) error {
	admin, err := requireRole(c, h.accountService, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req tags.UpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tag, err := h.service.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "update", "tag", tag.ID)
	return c.JSON(http.StatusOK, tag)
}

func (h *TagsHandler) Delete(c echo.Context) error {
	admin, err := requireRole(c, h.accountService, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, admin.ID, "delete", "tag", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *TagsHandler) mapErr(err error) error {
	switch {
	case errors.Is(err, tags.ErrTagNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, tags.ErrNameTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case isInvalidID(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
