package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/message/event"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 20 * time.Second
	wsPongWait     = 2 * wsPingInterval

	// Assignment changes reach an open stream within this window.
	visibilityTTL = 15 * time.Second
)

// EventsHandler streams message events over a websocket at /ws/events.
type EventsHandler struct {
	hub            event.Subscriber
	conversations  *conversation.Service
	accountService *accounts.Service
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

func NewEventsHandler(log *slog.Logger, hub event.Subscriber, conversations *conversation.Service, accountService *accounts.Service) *EventsHandler {
	return &EventsHandler{
		hub:            hub,
		conversations:  conversations,
		accountService: accountService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The token is the credential; the dashboard may be served from another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.With(slog.String("handler", "events")),
	}
}

func (h *EventsHandler) Register(e *echo.Echo) {
	e.GET("/ws/events", h.Stream)
}

// Stream subscribes to one conversation (?conversation_id=) or to every
// conversation the caller may see.
func (h *EventsHandler) Stream(c echo.Context) error {
	account, err := currentAccount(c, h.accountService)
	if err != nil {
		return err
	}
	if h.hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event hub not configured")
	}
	viewer := viewerOf(account)
	scope := strings.TrimSpace(c.QueryParam("conversation_id"))
	if scope == "" {
		scope = event.AllConversations
	} else if _, err := h.conversations.GetForViewer(c.Request().Context(), viewer, scope); err != nil {
		switch {
		case errors.Is(err, conversation.ErrConversationNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, conversation.ErrAccessDenied):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case isInvalidID(err):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return nil
	}
	defer conn.Close()

	_, stream, cancel := h.hub.Subscribe(scope, event.DefaultBufferSize)
	defer cancel()

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ctx := context.WithoutCancel(c.Request().Context())
	allowed := newVisibilityCache(visibilityTTL, time.Now)
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case ev, ok := <-stream:
			if !ok {
				return nil
			}
			if scope == event.AllConversations && !h.visible(ctx, viewer, ev.ConversationID, allowed) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		}
	}
}

// readLoop consumes control frames and reports when the client goes away.
func (h *EventsHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type visibilityEntry struct {
	allowed bool
	checked time.Time
}

// visibilityCache remembers access decisions per conversation for ttl.
type visibilityCache struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]visibilityEntry
}

func newVisibilityCache(ttl time.Duration, now func() time.Time) *visibilityCache {
	return &visibilityCache{ttl: ttl, now: now, entries: map[string]visibilityEntry{}}
}

func (c *visibilityCache) lookup(conversationID string) (allowed, ok bool) {
	e, seen := c.entries[conversationID]
	if !seen || c.now().Sub(e.checked) >= c.ttl {
		return false, false
	}
	return e.allowed, true
}

func (c *visibilityCache) store(conversationID string, allowed bool) {
	c.entries[conversationID] = visibilityEntry{allowed: allowed, checked: c.now()}
}

func (h *EventsHandler) visible(ctx context.Context, viewer conversation.Viewer, conversationID string, cache *visibilityCache) bool {
	if viewer.Admin {
		return true
	}
	if allowed, ok := cache.lookup(conversationID); ok {
		return allowed
	}
	_, err := h.conversations.GetForViewer(ctx, viewer, conversationID)
	cache.store(conversationID, err == nil)
	return err == nil
}
