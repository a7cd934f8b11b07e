// Package conversation threads a contact's messages into conversations and
// enforces that a contact has at most one open conversation.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

// Queries is the subset of store.Queries used by the service.
type Queries interface {
	GetConversationByID(ctx context.Context, id pgtype.UUID) (store.Conversation, error)
	GetOpenConversationByContact(ctx context.Context, contactID pgtype.UUID) (store.Conversation, error)
	ListConversationsByContact(ctx context.Context, contactID pgtype.UUID) ([]store.Conversation, error)
	CreateConversation(ctx context.Context, arg store.CreateConversationParams) (store.Conversation, error)
	TouchConversationActivity(ctx context.Context, arg store.TouchConversationActivityParams) (store.Conversation, error)
	UpdateConversation(ctx context.Context, arg store.UpdateConversationParams) (store.Conversation, error)
	ListConversations(ctx context.Context, arg store.ListConversationsParams) ([]store.ListConversationsRow, error)
	CountConversations(ctx context.Context, arg store.ListConversationsParams) (int64, error)
	CloseStaleResolvedConversations(ctx context.Context, before pgtype.Timestamptz) (int64, error)
}

type Service struct {
	queries Queries
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(log *slog.Logger, queries Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "conversation")),
		now:     time.Now,
	}
}

// DefaultTitle is the title given to conversations opened by an inbound message.
func DefaultTitle(phone string) string {
	return "Conversation with " + phone
}

// ResolveOpen returns the contact's most recently active open conversation,
// opening a new one in state "new" when there is none, and advances its last
// activity. A concurrent creator winning the insert is picked up by re-reading.
func (s *Service) ResolveOpen(ctx context.Context, contactID, title string) (Conversation, error) {
	pgContactID, err := db.ParseUUID(contactID)
	if err != nil {
		return Conversation{}, err
	}
	now := db.Timestamptz(s.now())

	row, err := s.queries.GetOpenConversationByContact(ctx, pgContactID)
	switch {
	case err == nil:
		return s.touch(ctx, row.ID, now)
	case !errors.Is(err, pgx.ErrNoRows):
		return Conversation{}, fmt.Errorf("get open conversation: %w", err)
	}

	row, err = s.queries.CreateConversation(ctx, store.CreateConversationParams{
		ContactID:      pgContactID,
		State:          string(StateNew),
		Priority:       string(PriorityMedium),
		Title:          title,
		LastActivityAt: now,
	})
	if err == nil {
		s.logger.Info("conversation opened",
			slog.String("conversation_id", db.UUIDString(row.ID)),
			slog.String("contact_id", contactID),
		)
		return toConversation(row), nil
	}
	if !db.IsUniqueViolation(err) {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	row, err = s.queries.GetOpenConversationByContact(ctx, pgContactID)
	if err != nil {
		return Conversation{}, fmt.Errorf("refetch open conversation after conflict: %w", err)
	}
	return s.touch(ctx, row.ID, now)
}

// Touch advances a conversation's last activity to now.
func (s *Service) Touch(ctx context.Context, conversationID string) (Conversation, error) {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return Conversation{}, err
	}
	return s.touch(ctx, pgID, db.Timestamptz(s.now()))
}

func (s *Service) touch(ctx context.Context, id pgtype.UUID, at pgtype.Timestamptz) (Conversation, error) {
	row, err := s.queries.TouchConversationActivity(ctx, store.TouchConversationActivityParams{
		ID:             id,
		LastActivityAt: at,
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("touch conversation: %w", notFound(err))
	}
	return toConversation(row), nil
}

func (s *Service) Get(ctx context.Context, conversationID string) (Conversation, error) {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return Conversation{}, err
	}
	row, err := s.queries.GetConversationByID(ctx, pgID)
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return toConversation(row), nil
}

// GetForViewer is Get plus the access rule.
func (s *Service) GetForViewer(ctx context.Context, viewer Viewer, conversationID string) (Conversation, error) {
	c, err := s.Get(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	if !CanAccess(viewer, c) {
		return Conversation{}, ErrAccessDenied
	}
	return c, nil
}

// CanAccess grants admins everything and other staff the conversations of
// their team or assigned to them.
func CanAccess(viewer Viewer, c Conversation) bool {
	if viewer.Admin {
		return true
	}
	if viewer.UserID != "" && c.UserID == viewer.UserID {
		return true
	}
	return viewer.TeamID != "" && c.TeamID == viewer.TeamID
}

func (s *Service) ListByContact(ctx context.Context, contactID string) ([]Conversation, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListConversationsByContact(ctx, pgID)
	if err != nil {
		return nil, err
	}
	items := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		items = append(items, toConversation(row))
	}
	return items, nil
}

// Create opens a conversation on behalf of staff.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Conversation, error) {
	contactID, err := db.ParseUUID(req.ContactID)
	if err != nil {
		return Conversation{}, err
	}
	teamID, err := db.ParseOptionalUUID(req.TeamID)
	if err != nil {
		return Conversation{}, err
	}
	userID, err := db.ParseOptionalUUID(req.UserID)
	if err != nil {
		return Conversation{}, err
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Conversation{}, ErrInvalidPriority
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New conversation"
	}
	state := StateNew
	if userID.Valid {
		state = StateInProgress
	}
	row, err := s.queries.CreateConversation(ctx, store.CreateConversationParams{
		ContactID:      contactID,
		TeamID:         teamID,
		UserID:         userID,
		State:          string(state),
		Priority:       string(priority),
		Title:          title,
		Description:    db.Text(req.Description),
		LastActivityAt: db.Timestamptz(s.now()),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Conversation{}, ErrOpenConversation
		}
		return Conversation{}, err
	}
	return toConversation(row), nil
}

// Update applies a staff change. Closing stamps closed_at; a closed
// conversation never leaves the closed state.
func (s *Service) Update(ctx context.Context, conversationID string, req UpdateRequest) (Conversation, error) {
	current, err := s.Get(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	pgID, err := db.ParseUUID(current.ID)
	if err != nil {
		return Conversation{}, err
	}
	params := store.UpdateConversationParams{ID: pgID}

	if req.State != nil {
		next := *req.State
		if !next.Valid() {
			return Conversation{}, ErrInvalidState
		}
		if current.State == StateClosed && next != StateClosed {
			return Conversation{}, ErrReopenClosed
		}
		params.State = pgtype.Text{String: string(next), Valid: true}
		if next == StateClosed && current.State != StateClosed {
			params.SetClosedAt = true
			params.ClosedAt = db.Timestamptz(s.now())
		}
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return Conversation{}, ErrInvalidPriority
		}
		params.Priority = pgtype.Text{String: string(*req.Priority), Valid: true}
	}
	if req.Title != nil {
		params.Title = db.Text(*req.Title)
	}
	if req.Description != nil {
		params.Description = pgtype.Text{String: *req.Description, Valid: true}
	}
	if req.InternalNotes != nil {
		params.InternalNotes = pgtype.Text{String: *req.InternalNotes, Valid: true}
	}
	if req.TeamID != nil {
		if params.TeamID, err = db.ParseOptionalUUID(*req.TeamID); err != nil {
			return Conversation{}, err
		}
		params.SetTeam = true
	}
	if req.UserID != nil {
		if params.UserID, err = db.ParseOptionalUUID(*req.UserID); err != nil {
			return Conversation{}, err
		}
		params.SetUser = true
	}

	row, err := s.queries.UpdateConversation(ctx, params)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Conversation{}, ErrOpenConversation
		}
		return Conversation{}, notFound(err)
	}
	return toConversation(row), nil
}

// List returns conversations matching req that viewer may see.
func (s *Service) List(ctx context.Context, viewer Viewer, req ListRequest) (ListResponse, error) {
	limit, offset := db.ClampPage(req.Limit, req.Offset)
	params := store.ListConversationsParams{
		State:    db.Text(req.State),
		Priority: db.Text(req.Priority),
		Query:    db.LikePattern(req.Query),
		Limit:    limit,
		Offset:   offset,
	}
	var err error
	if params.TeamID, err = db.ParseOptionalUUID(req.TeamID); err != nil {
		return ListResponse{}, err
	}
	if params.UserID, err = db.ParseOptionalUUID(req.UserID); err != nil {
		return ListResponse{}, err
	}
	if !viewer.Admin {
		if params.VisibleUserID, err = db.ParseOptionalUUID(viewer.UserID); err != nil {
			return ListResponse{}, err
		}
		if params.VisibleTeamID, err = db.ParseOptionalUUID(viewer.TeamID); err != nil {
			return ListResponse{}, err
		}
		if !params.VisibleUserID.Valid && !params.VisibleTeamID.Valid {
			return ListResponse{Items: []Conversation{}}, nil
		}
	}

	rows, err := s.queries.ListConversations(ctx, params)
	if err != nil {
		return ListResponse{}, err
	}
	total, err := s.queries.CountConversations(ctx, params)
	if err != nil {
		return ListResponse{}, err
	}
	items := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		c := toConversation(row.Conversation)
		c.ContactName = row.ContactName
		c.ContactPhone = row.ContactPhone
		c.MessageCount = row.MessageCount
		c.UnreadCount = row.UnreadCount
		items = append(items, c)
	}
	return ListResponse{Items: items, Total: total}, nil
}

// CloseStaleResolved closes resolved conversations idle since before.
func (s *Service) CloseStaleResolved(ctx context.Context, before time.Time) (int64, error) {
	return s.queries.CloseStaleResolvedConversations(ctx, db.Timestamptz(before))
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConversationNotFound
	}
	return err
}

func toConversation(row store.Conversation) Conversation {
	return Conversation{
		ID:             db.UUIDString(row.ID),
		ContactID:      db.UUIDString(row.ContactID),
		TeamID:         db.UUIDString(row.TeamID),
		UserID:         db.UUIDString(row.UserID),
		State:          State(row.State),
		Priority:       Priority(row.Priority),
		Title:          row.Title,
		Description:    db.TextToString(row.Description),
		InternalNotes:  db.TextToString(row.InternalNotes),
		StartedAt:      db.TimeFromPg(row.StartedAt),
		LastActivityAt: db.TimeFromPg(row.LastActivityAt),
		ClosedAt:       db.TimePtrFromPg(row.ClosedAt),
		CreatedAt:      db.TimeFromPg(row.CreatedAt),
		UpdatedAt:      db.TimeFromPg(row.UpdatedAt),
	}
}
