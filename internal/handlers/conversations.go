package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/contacts"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/message"
	"github.com/memohai/wadesk/internal/tags"
	"github.com/memohai/wadesk/internal/whatsapp"
)

// Sender delivers a text message to a phone number and returns the provider message id.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

type ConversationsHandler struct {
	service        *conversation.Service
	contacts       *contacts.Service
	messages       *message.Service
	tags           *tags.Service
	accountService *accounts.Service
	activity       *activity.Service
	sender         Sender
	logger         *slog.Logger
}

func NewConversationsHandler(
	log *slog.Logger,
	service *conversation.Service,
	contactService *contacts.Service,
	messageService *message.Service,
	tagService *tags.Service,
	accountService *accounts.Service,
	activityService *activity.Service,
	sender Sender,
) *ConversationsHandler {
	return &ConversationsHandler{
		service:        service,
		contacts:       contactService,
		messages:       messageService,
		tags:           tagService,
		accountService: accountService,
		activity:       activityService,
		sender:         sender,
		logger:         log.With(slog.String("handler", "conversations")),
	}
}

func (h *ConversationsHandler) Register(e *echo.Echo) {
	g := e.Group("/conversations")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.GET("/:id/messages", h.ListMessages)
	g.POST("/:id/messages", h.SendMessage)
	g.POST("/:id/read", h.MarkRead)
	g.GET("/:id/tags", h.ListTags)
	g.POST("/:id/tags", h.AddTag)
	g.DELETE("/:id/tags/:tag_id", h.RemoveTag)
}

// SendMessageRequest is the body for POST /conversations/:id/messages.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4096"`
}

// AddTagRequest is the body for POST /conversations/:id/tags.
type AddTagRequest struct {
	TagID string `json:"tag_id" validate:"required,uuid"`
}

// List godoc
// @Summary List conversations visible to the caller
// @Tags conversations
// @Param state query string false "Lifecycle state"
// @Param priority query string false "Priority"
// @Param q query string false "Search title or contact"
// @Success 200 {object} conversation.ListResponse
// @Router /conversations [get]
func (h *ConversationsHandler) List(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	resp, err := h.service.List(c.Request().Context(), viewerOf(account), conversation.ListRequest{
		State:    c.QueryParam("state"),
		Priority: c.QueryParam("priority"),
		TeamID:   c.QueryParam("team_id"),
		UserID:   c.QueryParam("user_id"),
		Query:    c.QueryParam("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ConversationsHandler) Create(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	var req conversation.CreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if _, err := h.contacts.Get(c.Request().Context(), req.ContactID); err != nil {
		return h.mapErr(err)
	}
	// Non-admins must be able to see what they open.
	if !account.IsAdmin() && req.TeamID == "" {
		req.TeamID = account.TeamID
		if req.TeamID == "" && req.UserID == "" {
			req.UserID = account.ID
		}
	}
	conv, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, account.ID, "create", "conversation", conv.ID)
	return c.JSON(http.StatusCreated, conv)
}

func (h *ConversationsHandler) Get(c echo.Context) error {
	_, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conv)
}

// Update changes state, priority, notes or assignment. Reassignment needs a
// supervisor or admin.
func (h *ConversationsHandler) Update(c echo.Context) error {
	account, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req conversation.UpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if (req.TeamID != nil || req.UserID != nil) && account.Role == accounts.RoleAgent {
		return echo.NewHTTPError(http.StatusForbidden, "only supervisors can reassign conversations")
	}
	updated, err := h.service.Update(c.Request().Context(), conv.ID, req)
	if err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, account.ID, "update", "conversation", updated.ID)
	return c.JSON(http.StatusOK, updated)
}

func (h *ConversationsHandler) ListMessages(c echo.Context) error {
	_, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	resp, err := h.messages.ListByConversation(c.Request().Context(), conv.ID, limit, offset)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SendMessage godoc
// @Summary Send a text message to the conversation's contact
// @Tags conversations
// @Param payload body SendMessageRequest true "Message"
// @Success 201 {object} message.Message
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /conversations/{id}/messages [post]
func (h *ConversationsHandler) SendMessage(c echo.Context) error {
	account, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	if !conv.State.IsOpen() {
		return echo.NewHTTPError(http.StatusConflict, "conversation is closed")
	}
	var req SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if h.sender == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "whatsapp sender not configured")
	}
	ctx := c.Request().Context()
	contact, err := h.contacts.Get(ctx, conv.ContactID)
	if err != nil {
		return h.mapErr(err)
	}
	externalID, err := h.sender.SendText(ctx, contact.Phone, content)
	if err != nil {
		return sendErr(h.logger, err)
	}
	// The provider accepted the message; persist even if the client went away.
	ctx = context.WithoutCancel(ctx)
	msg, err := h.messages.PersistOutbound(ctx, message.OutboundInput{
		ConversationID:    conv.ID,
		ExternalMessageID: externalID,
		SenderUserID:      account.ID,
		Content:           content,
	})
	if err != nil {
		return h.mapErr(err)
	}
	if _, err := h.service.Touch(ctx, conv.ID); err != nil {
		h.logger.Warn("touch conversation failed", slog.String("conversation_id", conv.ID), slog.Any("error", err))
	}
	record(c, h.activity, account.ID, "send_message", "conversation", conv.ID)
	return c.JSON(http.StatusCreated, msg)
}

func (h *ConversationsHandler) MarkRead(c echo.Context) error {
	_, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	n, err := h.messages.MarkConversationRead(c.Request().Context(), conv.ID)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}

func (h *ConversationsHandler) ListTags(c echo.Context) error {
	_, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	items, err := h.tags.ForConversation(c.Request().Context(), conv.ID)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *ConversationsHandler) AddTag(c echo.Context) error {
	account, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req AddTagRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.tags.Attach(c.Request().Context(), conv.ID, req.TagID, account.ID); err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, account.ID, "add_tag", "conversation", conv.ID)
	return c.NoContent(http.StatusNoContent)
}

func (h *ConversationsHandler) RemoveTag(c echo.Context) error {
	account, conv, err := h.authorize(c)
	if err != nil {
		return err
	}
	if err := h.tags.Detach(c.Request().Context(), conv.ID, c.Param("tag_id")); err != nil {
		return h.mapErr(err)
	}
	record(c, h.activity, account.ID, "remove_tag", "conversation", conv.ID)
	return c.NoContent(http.StatusNoContent)
}

// authorize loads the caller and the :id conversation, enforcing the access rule.
func (h *ConversationsHandler) authorize(c echo.Context) (accounts.Account, conversation.Conversation, error) {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return accounts.Account{}, conversation.Conversation{}, err
	}
	conv, err := h.service.GetForViewer(c.Request().Context(), viewerOf(account), c.Param("id"))
	if err != nil {
		return accounts.Account{}, conversation.Conversation{}, h.mapErr(err)
	}
	return account, conv, nil
}

func (h *ConversationsHandler) mapErr(err error) error {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, contacts.ErrContactNotFound), errors.Is(err, tags.ErrTagNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, conversation.ErrOpenConversation), errors.Is(err, conversation.ErrReopenClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, conversation.ErrInvalidState), errors.Is(err, conversation.ErrInvalidPriority),
		errors.Is(err, message.ErrEmptyContent), isInvalidID(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.logger.Error("conversations request failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// sendErr maps Outbound Sender failures.
func sendErr(log *slog.Logger, err error) error {
	if errors.Is(err, whatsapp.ErrNotConfigured) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	var apiErr *whatsapp.APIError
	if errors.As(err, &apiErr) {
		log.Warn("whatsapp api rejected message", slog.Int("status", apiErr.Status), slog.String("body", apiErr.Body))
		return echo.NewHTTPError(http.StatusBadGateway, "whatsapp api error: "+apiErr.Body)
	}
	log.Error("whatsapp send failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusBadGateway, "whatsapp send failed")
}
