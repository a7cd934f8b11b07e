// Package settings exposes the key/value runtime settings table.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

var (
	ErrSettingNotFound = errors.New("setting not found")
	ErrInvalidKey      = errors.New("invalid setting key")
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,99}$`)

type Queries interface {
	ListSettings(ctx context.Context) ([]store.Setting, error)
	GetSetting(ctx context.Context, key string) (store.Setting, error)
	UpsertSetting(ctx context.Context, arg store.UpsertSettingParams) (store.Setting, error)
}

type Service struct {
	queries Queries
	logger  *slog.Logger
}

func NewService(log *slog.Logger, queries Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "settings")),
	}
}

func (s *Service) List(ctx context.Context) ([]Setting, error) {
	rows, err := s.queries.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Setting, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSetting(row))
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, key string) (Setting, error) {
	row, err := s.queries.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Setting{}, ErrSettingNotFound
		}
		return Setting{}, err
	}
	return toSetting(row), nil
}

func (s *Service) Upsert(ctx context.Context, key string, req UpsertRequest) (Setting, error) {
	key = strings.TrimSpace(key)
	if !keyPattern.MatchString(key) {
		return Setting{}, ErrInvalidKey
	}
	row, err := s.queries.UpsertSetting(ctx, store.UpsertSettingParams{
		Key:         key,
		Value:       req.Value,
		Description: db.Text(req.Description),
	})
	if err != nil {
		return Setting{}, err
	}
	s.logger.Info("setting updated", slog.String("key", key))
	return toSetting(row), nil
}

// PublicGeneral returns the business details shown without authentication.
// Keys that were never stored read as empty.
func (s *Service) PublicGeneral(ctx context.Context) (PublicGeneral, error) {
	rows, err := s.queries.ListSettings(ctx)
	if err != nil {
		return PublicGeneral{}, err
	}
	var out PublicGeneral
	for _, row := range rows {
		switch row.Key {
		case KeyBusinessName:
			out.BusinessName = row.Value
		case KeyBusinessHours:
			out.BusinessHours = row.Value
		}
	}
	return out, nil
}

// Masked returns item with its value hidden when the key holds a secret.
func Masked(item Setting) Setting {
	if IsSecretKey(item.Key) {
		item.Value = Mask(item.Value)
	}
	return item
}

func toSetting(row store.Setting) Setting {
	return Setting{
		Key:         row.Key,
		Value:       row.Value,
		Description: db.TextToString(row.Description),
		UpdatedAt:   db.TimeFromPg(row.UpdatedAt),
	}
}
