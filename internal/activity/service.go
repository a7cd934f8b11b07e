// Package activity records the audit trail of staff mutations.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

// Entry describes one recorded action.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record is the input of Service.Record.
type Record struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	IPAddress  string
	UserAgent  string
}

type Queries interface {
	CreateActivityLog(ctx context.Context, arg store.CreateActivityLogParams) error
	ListActivityLogs(ctx context.Context, arg store.ListActivityLogsParams) ([]store.ActivityLog, error)
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
		logger:  log.With(slog.String("service", "activity")),
	}
}

// Record stores r. Failures are logged and swallowed so auditing never fails a request.
func (s *Service) Record(ctx context.Context, r Record) {
	if s == nil || s.queries == nil {
		return
	}
	userID, err := db.ParseOptionalUUID(r.UserID)
	if err != nil {
		s.logger.Warn("activity user id invalid", slog.String("user_id", r.UserID))
	}
	err = s.queries.CreateActivityLog(ctx, store.CreateActivityLogParams{
		UserID:     userID,
		Action:     r.Action,
		Resource:   r.Resource,
		ResourceID: db.Text(r.ResourceID),
		IpAddress:  db.Text(r.IPAddress),
		UserAgent:  db.Text(truncate(r.UserAgent, 500)),
	})
	if err != nil {
		s.logger.Error("record activity failed",
			slog.String("action", r.Action),
			slog.String("resource", r.Resource),
			slog.Any("error", err),
		)
	}
}

// List returns recent entries, optionally only those of userID.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	pgUser, err := db.ParseOptionalUUID(userID)
	if err != nil {
		return nil, err
	}
	l, o := db.ClampPage(limit, offset)
	rows, err := s.queries.ListActivityLogs(ctx, store.ListActivityLogsParams{UserID: pgUser, Limit: l, Offset: o})
	if err != nil {
		return nil, err
	}
	items := make([]Entry, 0, len(rows))
	for _, row := range rows {
		items = append(items, Entry{
			ID:         db.UUIDString(row.ID),
			UserID:     db.UUIDString(row.UserID),
			Action:     row.Action,
			Resource:   row.Resource,
			ResourceID: db.TextToString(row.ResourceID),
			IPAddress:  db.TextToString(row.IpAddress),
			UserAgent:  db.TextToString(row.UserAgent),
			CreatedAt:  db.TimeFromPg(row.CreatedAt),
		})
	}
	return items, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
