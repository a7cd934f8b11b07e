// Package server provides the HTTP server and Echo setup for the helpdesk API.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/memohai/wadesk/internal/auth"
)

// Server is the HTTP server (Echo) with JWT middleware and registered handlers.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Options configures NewServer.
type Options struct {
	Addr      string
	JWTSecret string
	// Active rejects tokens of deactivated users when set.
	Active auth.ActiveChecker
	// Validator is installed as the echo validator when set.
	Validator echo.Validator
	// PublicPaths skip authentication in addition to the built-in health and login routes.
	PublicPaths []string
}

var builtinPublic = []string{"/ping", "/health", "/api/health", "/auth/login"}

// NewServer builds the Echo server with recovery, request logging, CORS, JWT auth, and the given handlers.
func NewServer(log *slog.Logger, opts Options, handlers ...Handler) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	public := make(map[string]struct{}, len(builtinPublic)+len(opts.PublicPaths))
	for _, p := range append(append([]string{}, builtinPublic...), opts.PublicPaths...) {
		public[p] = struct{}{}
	}
	skipper := func(c echo.Context) bool {
		_, ok := public[c.Request().URL.Path]
		return ok
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.Validator != nil {
		e.Validator = opts.Validator
	}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(auth.JWTMiddleware(opts.JWTSecret, skipper))
	if opts.Active != nil {
		e.Use(auth.RequireActiveUser(opts.Active, skipper))
	}

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("component", "server")),
	}
}

// Handler exposes the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server (blocks until shutdown).
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
