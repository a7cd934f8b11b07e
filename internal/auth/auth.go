// Package auth issues and verifies staff JWTs.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// contextKey is where the verified token is stored on the echo context.
const contextKey = "user"

var ErrMissingToken = errors.New("missing or invalid token")

// Claims are the custom JWT claims; Subject holds the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for userID valid for expiresIn.
func GenerateToken(userID, role, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("user id is empty")
	}
	now := time.Now()
	expiresAt := now.Add(expiresIn)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// JWTMiddleware verifies bearer tokens on every route the skipper does not exempt.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		Skipper:     skipper,
		SigningKey:  []byte(secret),
		ContextKey:  contextKey,
		// Browsers cannot set headers on websocket upgrades.
		TokenLookup: "header:Authorization:Bearer ,query:token",
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		},
	})
}

// ClaimsFromContext returns the verified claims of the request.
func ClaimsFromContext(c echo.Context) (*Claims, error) {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, ErrMissingToken.Error())
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, ErrMissingToken.Error())
	}
	return claims, nil
}

// UserIDFromContext returns the user id of the verified token.
func UserIDFromContext(c echo.Context) (string, error) {
	claims, err := ClaimsFromContext(c)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ActiveChecker reports an error when the user may no longer call the API.
type ActiveChecker interface {
	CheckActive(ctx context.Context, userID string) error
}

// RequireActiveUser rejects tokens of users that were deleted or deactivated
// after the token was issued.
func RequireActiveUser(checker ActiveChecker, skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if checker == nil || (skipper != nil && skipper(c)) {
				return next(c)
			}
			userID, err := UserIDFromContext(c)
			if err != nil {
				return err
			}
			if err := checker.CheckActive(c.Request().Context(), userID); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "user is inactive or no longer exists")
			}
			return next(c)
		}
	}
}
