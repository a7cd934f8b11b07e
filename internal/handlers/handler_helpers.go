package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/auth"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/db"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate turns validation failures into a 400 listing the failing fields.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, strings.ToLower(fe.Field())+": failed "+fe.Tag())
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request: "+strings.Join(msgs, ", "))
}

// bindAndValidate binds the body into req and runs the echo validator when one is set.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// currentAccount loads the account of the verified token.
func currentAccount(c echo.Context, service *accounts.Service) (accounts.Account, error) {
	if service == nil {
		return accounts.Account{}, echo.NewHTTPError(http.StatusInternalServerError, "account service not configured")
	}
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return accounts.Account{}, err
	}
	account, err := service.Get(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return accounts.Account{}, echo.NewHTTPError(http.StatusUnauthorized, "user no longer exists")
		}
		return accounts.Account{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return account, nil
}

// requireRole loads the caller and fails with 403 unless it has one of roles.
func requireRole(c echo.Context, service *accounts.Service, roles ...string) (accounts.Account, error) {
	account, err := currentAccount(c, service)
	if err != nil {
		return accounts.Account{}, err
	}
	for _, role := range roles {
		if account.Role == role {
			return account, nil
		}
	}
	return accounts.Account{}, echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
}

func viewerOf(account accounts.Account) conversation.Viewer {
	return conversation.Viewer{
		UserID: account.ID,
		TeamID: account.TeamID,
		Admin:  account.IsAdmin(),
	}
}

// pageParams reads limit and offset, or page and limit as the web client sends them.
func pageParams(c echo.Context) (int, int) {
	limit := queryInt(c, "limit", 0)
	if offset := queryInt(c, "offset", -1); offset >= 0 {
		return limit, offset
	}
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return limit, 0
	}
	return limit, (page - 1) * limit
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryBool(c echo.Context, name string) *bool {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

// record writes an activity entry detached from request cancellation.
func record(c echo.Context, log *activity.Service, userID, action, resource, resourceID string) {
	if log == nil {
		return
	}
	log.Record(context.WithoutCancel(c.Request().Context()), activity.Record{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})
}

// isInvalidID reports errors from parsing a path or body UUID.
func isInvalidID(err error) bool {
	return errors.Is(err, db.ErrInvalidUUID)
}
