package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/contacts"
	"github.com/memohai/wadesk/internal/conversation"
)

type ContactsHandler struct {
	service        *contacts.Service
	conversations  *conversation.Service
	accountService *accounts.Service
	activity       *activity.Service
	logger         *slog.Logger
}

func NewContactsHandler(log *slog.Logger, service *contacts.Service, conversations *conversation.Service, accountService *accounts.Service, activityService *activity.Service) *ContactsHandler {
	return &ContactsHandler{
		service:        service,
		conversations:  conversations,
		accountService: accountService,
		activity:       activityService,
		logger:         log.With(slog.String("handler", "contacts")),
	}
}

func (h *ContactsHandler) Register(e *echo.Echo) {
	g := e.Group("/contacts")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/phone/:phone", h.GetByPhone)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/conversations", h.ListConversations)
}

// List godoc
// @Summary List contacts
// @Tags contacts
// @Param q query string false "Search name, phone, email or company"
// @Param type query string false "Contact type"
// @Success 200 {object} contacts.ListResponse
// @Router /contacts [get]
func (h *ContactsHandler) List(c echo.Context) error {
	limit, offset := pageParams(c)
	resp, err := h.service.List(c.Request().Context(), contacts.ListRequest{
		Query:           c.QueryParam("q"),
		ContactType:     c.QueryParam("type"),
		IncludeInactive: c.QueryParam("include_inactive") == "true",
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ContactsHandler) Get(c echo.Context) error {
	contact, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactsHandler) GetByPhone(c echo.Context) error {
	contact, err := h.service.GetByPhone(c.Request().Context(), c.Param("phone"))
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactsHandler) Create(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	var req contacts.CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	contact, err := h.service.Create(c.Request().Context(), account.ID, req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, account.ID, "create", "contact", contact.ID)
	return c.JSON(http.StatusCreated, contact)
}

func (h *ContactsHandler) Update(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	var req contacts.UpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	contact, err := h.service.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, account.ID, "update", "contact", contact.ID)
	return c.JSON(http.StatusOK, contact)
}

// Delete soft-deletes the contact. Restricted to admins and supervisors.
func (h *ContactsHandler) Delete(c echo.Context) error {
	account, err := requireRole(c, h.accountService, accounts.RoleAdmin, accounts.RoleSupervisor)
	if err != nil {
		return err
	}
	if _, err := h.service.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, account.ID, "deactivate", "contact", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// ListConversations returns the contact's conversations the caller may see.
func (h *ContactsHandler) ListConversations(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	items, err := h.conversations.ListByContact(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapErr(err)
	}
	viewer := viewerOf(account)
	visible := make([]conversation.Conversation, 0, len(items))
	for _, item := range items {
		if conversation.CanAccess(viewer, item) {
			visible = append(visible, item)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": visible})
}

func (h *ContactsHandler) mapErr(err error) error {
	switch {
	case errors.Is(err, contacts.ErrContactNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, contacts.ErrPhoneExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, contacts.ErrInvalidPhone), errors.Is(err, contacts.ErrInvalidType), isInvalidID(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.logger.Error("contacts request failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
