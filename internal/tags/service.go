// Package tags manages conversation labels.
package tags

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
)

var (
	ErrTagNotFound = errors.New("tag not found")
	ErrNameTaken   = errors.New("tag name already in use")
)

type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type UpdateRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type Queries interface {
	ListTags(ctx context.Context) ([]store.Tag, error)
	GetTagByID(ctx context.Context, id pgtype.UUID) (store.Tag, error)
	CreateTag(ctx context.Context, arg store.CreateTagParams) (store.Tag, error)
	UpdateTag(ctx context.Context, arg store.UpdateTagParams) (store.Tag, error)
	DeleteTag(ctx context.Context, id pgtype.UUID) (int64, error)
	AddConversationTag(ctx context.Context, arg store.AddConversationTagParams) error
	RemoveConversationTag(ctx context.Context, arg store.RemoveConversationTagParams) (int64, error)
	ListConversationTags(ctx context.Context, conversationID pgtype.UUID) ([]store.Tag, error)
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
		logger:  log.With(slog.String("service", "tags")),
	}
}

func (s *Service) List(ctx context.Context) ([]Tag, error) {
	rows, err := s.queries.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	return toTags(rows), nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Tag, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Tag{}, errors.New("name is required")
	}
	row, err := s.queries.CreateTag(ctx, store.CreateTagParams{Name: name, Color: db.Text(req.Color)})
	if err != nil {
		return Tag{}, mapErr(err)
	}
	return toTag(row), nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Tag, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Tag{}, err
	}
	params := store.UpdateTagParams{ID: pgID}
	if req.Name != nil {
		params.Name = db.Text(*req.Name)
	}
	if req.Color != nil {
		params.Color = pgtype.Text{String: strings.TrimSpace(*req.Color), Valid: true}
	}
	row, err := s.queries.UpdateTag(ctx, params)
	if err != nil {
		return Tag{}, mapErr(err)
	}
	return toTag(row), nil
}

// Delete removes a tag and, through the foreign key, its conversation links.
func (s *Service) Delete(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	n, err := s.queries.DeleteTag(ctx, pgID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTagNotFound
	}
	return nil
}

// Attach links a tag to a conversation. Attaching twice is a no-op.
func (s *Service) Attach(ctx context.Context, conversationID, tagID, userID string) error {
	convID, err := db.ParseUUID(conversationID)
	if err != nil {
		return err
	}
	pgTagID, err := db.ParseUUID(tagID)
	if err != nil {
		return err
	}
	if _, err := s.queries.GetTagByID(ctx, pgTagID); err != nil {
		return mapErr(err)
	}
	addedBy, err := db.ParseOptionalUUID(userID)
	if err != nil {
		return err
	}
	return s.queries.AddConversationTag(ctx, store.AddConversationTagParams{
		ConversationID: convID,
		TagID:          pgTagID,
		AddedBy:        addedBy,
	})
}

func (s *Service) Detach(ctx context.Context, conversationID, tagID string) error {
	convID, err := db.ParseUUID(conversationID)
	if err != nil {
		return err
	}
	pgTagID, err := db.ParseUUID(tagID)
	if err != nil {
		return err
	}
	n, err := s.queries.RemoveConversationTag(ctx, store.RemoveConversationTagParams{ConversationID: convID, TagID: pgTagID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (s *Service) ForConversation(ctx context.Context, conversationID string) ([]Tag, error) {
	convID, err := db.ParseUUID(conversationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListConversationTags(ctx, convID)
	if err != nil {
		return nil, err
	}
	return toTags(rows), nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrTagNotFound
	case db.IsUniqueViolation(err):
		return ErrNameTaken
	}
	return err
}

func toTags(rows []store.Tag) []Tag {
	items := make([]Tag, 0, len(rows))
	for _, row := range rows {
		items = append(items, toTag(row))
	}
	return items
}

func toTag(row store.Tag) Tag {
	return Tag{
		ID:        db.UUIDString(row.ID),
		Name:      row.Name,
		Color:     db.TextToString(row.Color),
		CreatedAt: db.TimeFromPg(row.CreatedAt),
	}
}
