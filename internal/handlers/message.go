package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/message"
)

// MessageHandler serves single-message routes; listing and sending live under /conversations.
type MessageHandler struct {
	service        *message.Service
	conversations  *conversation.Service
	accountService *accounts.Service
	logger         *slog.Logger
}

func NewMessageHandler(log *slog.Logger, service *message.Service, conversations *conversation.Service, accountService *accounts.Service) *MessageHandler {
	return &MessageHandler{
		service:        service,
		conversations:  conversations,
		accountService: accountService,
		logger:         log.With(slog.String("handler", "message")),
	}
}

func (h *MessageHandler) Register(e *echo.Echo) {
	g := e.Group("/messages")
	g.GET("/:id", h.Get)
	g.PUT("/:id/read", h.MarkRead)
}

func (h *MessageHandler) Get(c echo.Context) error {
	msg, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	msg, err := h.load(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkRead(c.Request().Context(), msg.ID)
	if err != nil {
		return h.mapErr(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// load fetches :id and checks the caller may see its conversation.
func (h *MessageHandler) load(c echo.Context) (message.Message, error) {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return message.Message{}, err
	}
	msg, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return message.Message{}, h.mapErr(err)
	}
	if _, err := h.conversations.GetForViewer(c.Request().Context(), viewerOf(account), msg.ConversationID); err != nil {
		return message.Message{}, h.mapErr(err)
	}
	return msg, nil
}

func (h *MessageHandler) mapErr(err error) error {
	switch {
	case errors.Is(err, message.ErrMessageNotFound), errors.Is(err, conversation.ErrConversationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	case errors.Is(err, conversation.ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case isInvalidID(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
