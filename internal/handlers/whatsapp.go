package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/contacts"
	"github.com/memohai/wadesk/internal/settings"
	"github.com/memohai/wadesk/internal/whatsapp"
)

// WebhookAck is the body returned for every accepted notification.
const WebhookAck = "EVENT_RECEIVED"

const maxWebhookBody = 4 << 20

// WebhookPaths are the public webhook routes.
var WebhookPaths = []string{"/webhook", "/api/whatsapp/webhook"}

// PublicPaths lists every route of this package the server must skip JWT auth on.
var PublicPaths = append(append([]string{}, WebhookPaths...), PublicGeneralPath)

// WhatsAppHandler receives provider webhooks and exposes the send and config routes.
type WhatsAppHandler struct {
	processor      *whatsapp.Processor
	config         *settings.WhatsAppConfigSource
	sender         Sender
	accountService *accounts.Service
	activity       *activity.Service
	logger         *slog.Logger
}

func NewWhatsAppHandler(
	log *slog.Logger,
	processor *whatsapp.Processor,
	configSource *settings.WhatsAppConfigSource,
	sender Sender,
	accountService *accounts.Service,
	activityService *activity.Service,
) *WhatsAppHandler {
	return &WhatsAppHandler{
		processor:      processor,
		config:         configSource,
		sender:         sender,
		accountService: accountService,
		activity:       activityService,
		logger:         log.With(slog.String("handler", "whatsapp")),
	}
}

func (h *WhatsAppHandler) Register(e *echo.Echo) {
	for _, path := range WebhookPaths {
		e.GET(path, h.Verify)
		e.POST(path, h.Receive)
	}
	e.POST("/whatsapp/send", h.Send)
	e.GET("/whatsapp/config", h.Config)
	e.PUT("/whatsapp/config", h.UpdateConfig)
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *WhatsAppHandler) Verify(c echo.Context) error {
	cfg := h.config.WhatsApp(c.Request().Context())
	err := whatsapp.CheckSubscription(c.QueryParam("hub.mode"), c.QueryParam("hub.verify_token"), cfg.VerifyToken)
	switch {
	case errors.Is(err, whatsapp.ErrMissingVerifyParams):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.Warn("webhook verification rejected", slog.String("mode", c.QueryParam("hub.mode")))
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	h.logger.Info("webhook verified")
	return c.String(http.StatusOK, c.QueryParam("hub.challenge"))
}

// Receive godoc
// @Summary WhatsApp webhook notification
// @Description Always acknowledges with 200 once the caller is authenticated, whatever happens to individual events
// @Tags whatsapp
// @Success 200 {string} string "EVENT_RECEIVED"
// @Failure 401 {object} ErrorResponse
// @Router /webhook [post]
func (h *WhatsAppHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Error("webhook body exceeds limit; notification dropped",
				slog.Int64("limit", tooLarge.Limit),
				slog.Int64("content_length", c.Request().ContentLength),
			)
		} else {
			h.logger.Warn("read webhook body failed", slog.Any("error", err))
		}
		return c.String(http.StatusOK, WebhookAck)
	}
	cfg := h.config.WhatsApp(c.Request().Context())
	if cfg.AppSecret != "" && !whatsapp.ValidSignature(body, c.Request().Header.Get(whatsapp.SignatureHeader), cfg.AppSecret) {
		h.logger.Warn("webhook signature rejected", slog.String("remote_ip", c.RealIP()))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}
	if h.processor == nil {
		h.logger.Error("webhook processor not configured")
		return c.String(http.StatusOK, WebhookAck)
	}

	// Events are processed to completion even if the provider hangs up.
	ctx := context.WithoutCancel(c.Request().Context())
	res, err := h.processor.HandleNotification(ctx, body)
	if err != nil {
		h.logger.Warn("malformed webhook payload", slog.Any("error", err), slog.Int("size", len(body)))
		return c.String(http.StatusOK, WebhookAck)
	}
	if !res.Ignored {
		h.logger.Info("webhook processed",
			slog.Int("received", res.Received),
			slog.Int("duplicates", res.Duplicates),
			slog.Int("statuses_applied", res.StatusesApplied),
			slog.Int("statuses_unknown", res.StatusesUnknown),
			slog.Int("failed", res.Failed),
		)
	}
	return c.String(http.StatusOK, WebhookAck)
}

// DirectSendRequest is the body for POST /whatsapp/send.
type DirectSendRequest struct {
	To      string `json:"to" validate:"required,max=32"`
	Message string `json:"message" validate:"required,max=4096"`
}

// DirectSendResponse reports the provider message id.
type DirectSendResponse struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
}

// Send delivers a text to an arbitrary number without creating a conversation.
func (h *WhatsAppHandler) Send(c echo.Context) error {
	account, err := requireRole(c, h.accountService, accounts.RoleAdmin, accounts.RoleSupervisor)
	if err != nil {
		return err
	}
	var req DirectSendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	to := contacts.NormalizePhone(req.To)
	if to == "" || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "to and message are required")
	}
	if h.sender == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "whatsapp sender not configured")
	}
	id, err := h.sender.SendText(c.Request().Context(), to, req.Message)
	if err != nil {
		return sendErr(h.logger, err)
	}
	record(c, h.activity, account.ID, "send_direct", "whatsapp", id)
	return c.JSON(http.StatusOK, DirectSendResponse{MessageID: id, To: to})
}

// Config reports the provider configuration with secrets masked. Admin only.
func (h *WhatsAppHandler) Config(c echo.Context) error {
	if _, err := requireRole(c, h.accountService, accounts.RoleAdmin); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings.DescribeWhatsApp(h.config.WhatsApp(c.Request().Context())))
}

// UpdateConfig godoc
// @Summary Update WhatsApp credentials
// @Description Stores access token, phone number id or verify token overrides; an empty value restores the file setting
// @Tags whatsapp
// @Param payload body settings.WhatsAppUpdate true "Fields to change"
// @Success 200 {object} settings.WhatsAppStatus
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /whatsapp/config [put]
func (h *WhatsAppHandler) UpdateConfig(c echo.Context) error {
	admin, err := requireRole(c, h.accountService, accounts.RoleAdmin)
	if err != nil {
		return err
	}
	var req settings.WhatsAppUpdate
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cfg, err := h.config.Update(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, settings.ErrEmptyUpdate) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("update whatsapp config: %v", err))
	}
	h.logger.Info("whatsapp config updated", slog.String("by", admin.ID))
	record(c, h.activity, admin.ID, "update", "whatsapp_config", "")
	return c.JSON(http.StatusOK, settings.DescribeWhatsApp(cfg))
}
