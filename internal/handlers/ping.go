package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/version"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHandler serves /ping, HEAD /health and /api/health.
type PingHandler struct {
	db     Pinger
	logger *slog.Logger
}

// NewPingHandler creates a ping handler. db may be nil.
func NewPingHandler(log *slog.Logger, db Pinger) *PingHandler {
	return &PingHandler{db: db, logger: log.With(slog.String("handler", "ping"))}
}

// Register mounts the liveness and health routes.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
	e.GET("/api/health", h.Health)
}

// Ping returns 200 JSON {"status":"ok"}.
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// PingHead returns 200 No Content for health checks.
func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports database connectivity; 503 when the database is unreachable.
func (h *PingHandler) Health(c echo.Context) error {
	resp := HealthResponse{
		Status:    "ok",
		Database:  "connected",
		Version:   version.GetInfo(),
		Timestamp: time.Now().UTC(),
	}
	if h.db == nil {
		resp.Database = "unknown"
		return c.JSON(http.StatusOK, resp)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check database ping failed", slog.Any("error", err))
		resp.Status = "degraded"
		resp.Database = "disconnected"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
