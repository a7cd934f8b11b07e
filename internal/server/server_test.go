package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/auth"
)

type routes struct{}

func (routes) Register(e *echo.Echo) {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/ping", ok)
	e.POST("/hook", ok)
	e.GET("/private", ok)
	e.GET("/panic", func(echo.Context) error { panic("boom") })
}

type inactive map[string]bool

func (i inactive) CheckActive(_ context.Context, userID string) error {
	if i[userID] {
		return errors.New("inactive")
	}
	return nil
}

func newTestServer(active auth.ActiveChecker) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(log, Options{
		JWTSecret:   "secret",
		Active:      active,
		PublicPaths: []string{"/hook"},
	}, routes{}, nil).Handler()
}

func serve(h http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestPublicPathsSkipAuth(t *testing.T) {
	h := newTestServer(nil)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/ping", ""))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/hook", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/private", ""))
}

func TestProtectedRouteAcceptsToken(t *testing.T) {
	h := newTestServer(inactive{"u-2": true})

	token, _, err := auth.GenerateToken("u-1", "agent", "secret", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/private", token))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/private?token="+token, ""))

	other, _, err := auth.GenerateToken("u-1", "agent", "other-secret", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/private", other))

	deactivated, _, err := auth.GenerateToken("u-2", "agent", "secret", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/private", deactivated))
}

func TestRecoverFromPanic(t *testing.T) {
	h := newTestServer(nil)
	token, _, err := auth.GenerateToken("u-1", "agent", "secret", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/panic", token))
}
