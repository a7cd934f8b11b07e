// Package message persists conversation messages and their delivery state.
package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
	"github.com/memohai/wadesk/internal/message/event"
)

// Queries is the subset of store.Queries used by the service.
type Queries interface {
	CreateMessage(ctx context.Context, arg store.CreateMessageParams) (store.Message, error)
	GetMessageByID(ctx context.Context, id pgtype.UUID) (store.Message, error)
	GetMessageByExternalID(ctx context.Context, externalMessageID string) (store.Message, error)
	ApplyMessageStatus(ctx context.Context, arg store.ApplyMessageStatusParams) (store.Message, error)
	ListMessagesByConversation(ctx context.Context, arg store.ListMessagesByConversationParams) ([]store.Message, error)
	CountMessagesByConversation(ctx context.Context, conversationID pgtype.UUID) (int64, error)
	MarkMessageRead(ctx context.Context, arg store.MarkMessageReadParams) (store.Message, error)
	MarkConversationRead(ctx context.Context, arg store.MarkConversationReadParams) (int64, error)
}

// Service persists and reads conversation messages.
type Service struct {
	queries   Queries
	logger    *slog.Logger
	publisher event.Publisher
	now       func() time.Time
}

// NewService creates a message service. Created messages and status changes
// are announced on the first publisher, when given.
func NewService(log *slog.Logger, queries Queries, publishers ...event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	var publisher event.Publisher
	if len(publishers) > 0 {
		publisher = publishers[0]
	}
	return &Service{
		queries:   queries,
		logger:    log.With(slog.String("service", "message")),
		publisher: publisher,
		now:       time.Now,
	}
}

// PersistInbound stores a provider message once. A repeated external id is
// not an error: the stored message is returned with created=false.
func (s *Service) PersistInbound(ctx context.Context, in InboundInput) (Message, bool, error) {
	externalID := strings.TrimSpace(in.ExternalMessageID)
	if externalID == "" {
		return Message{}, false, errors.New("external message id is required")
	}
	conversationID, err := db.ParseUUID(in.ConversationID)
	if err != nil {
		return Message{}, false, fmt.Errorf("invalid conversation id: %w", err)
	}
	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}
	metadata := []byte(in.Metadata)
	if len(metadata) == 0 || !json.Valid(metadata) {
		metadata = []byte("{}")
	}
	kind := in.Kind
	if kind == "" {
		kind = KindOther
	}

	params := store.CreateMessageParams{
		ConversationID:    conversationID,
		ExternalMessageID: pgtype.Text{String: externalID, Valid: true},
		Direction:         string(DirectionInbound),
		Kind:              string(kind),
		Content:           in.Content,
		Metadata:          metadata,
		SentAt:            db.Timestamptz(sentAt),
	}
	if a := in.Attachment; a != nil {
		params.AttachmentFileID = db.Text(a.FileID)
		params.AttachmentFilename = db.Text(a.Filename)
		params.AttachmentMimeType = db.Text(a.MimeType)
		if a.Size > 0 {
			params.AttachmentSize = pgtype.Int8{Int64: a.Size, Valid: true}
		}
	}

	row, err := s.queries.CreateMessage(ctx, params)
	if err != nil {
		if !db.IsUniqueViolation(err) {
			return Message{}, false, fmt.Errorf("create message: %w", err)
		}
		existing, getErr := s.queries.GetMessageByExternalID(ctx, externalID)
		if getErr != nil {
			return Message{}, false, fmt.Errorf("get duplicate message: %w", getErr)
		}
		return toMessage(existing), false, nil
	}

	msg := toMessage(row)
	s.publish(event.TypeMessageReceived, msg.ConversationID, msg)
	return msg, true, nil
}

// PersistOutbound stores a staff message the provider accepted.
func (s *Service) PersistOutbound(ctx context.Context, in OutboundInput) (Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return Message{}, ErrEmptyContent
	}
	conversationID, err := db.ParseUUID(in.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid conversation id: %w", err)
	}
	sender, err := db.ParseOptionalUUID(in.SenderUserID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid sender user id: %w", err)
	}
	row, err := s.queries.CreateMessage(ctx, store.CreateMessageParams{
		ConversationID:    conversationID,
		ExternalMessageID: db.Text(in.ExternalMessageID),
		Direction:         string(DirectionOutbound),
		Kind:              string(KindText),
		Content:           in.Content,
		SenderUserID:      sender,
		Metadata:          []byte("{}"),
		DeliveryStatus:    pgtype.Text{String: string(StatusSent), Valid: true},
		SentAt:            db.Timestamptz(s.now()),
	})
	if err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	msg := toMessage(row)
	s.publish(event.TypeMessageSent, msg.ConversationID, msg)
	return msg, nil
}

// ApplyStatus records a provider status for the message with externalID.
// The stored status only moves forward (sent, delivered, read); a late
// lower status keeps the higher one. delivered and read stamp their own
// timestamp the first time they arrive; failed clears both. A message that
// is not stored here is skipped with found=false.
func (s *Service) ApplyStatus(ctx context.Context, externalID string, status Status) (Message, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Message{}, false, errors.New("external message id is required")
	}
	params := store.ApplyMessageStatusParams{
		ExternalMessageID: externalID,
		DeliveryStatus:    string(status),
		At:                db.Timestamptz(s.now()),
	}
	switch status {
	case StatusSent:
		params.StatusRank = 1
	case StatusDelivered:
		params.StatusRank, params.StampDelivered = 2, true
	case StatusRead:
		params.StatusRank, params.StampRead = 3, true
	case StatusFailed:
		params.Clear = true
	default:
		return Message{}, false, fmt.Errorf("unknown status %q", status)
	}

	row, err := s.queries.ApplyMessageStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, false, nil
		}
		return Message{}, false, fmt.Errorf("apply message status: %w", err)
	}
	msg := toMessage(row)
	s.publish(event.TypeMessageStatus, msg.ConversationID, StatusChange{
		MessageID:         msg.ID,
		ExternalMessageID: msg.ExternalMessageID,
		Status:            status,
		DeliveredAt:       msg.DeliveredAt,
		ReadAt:            msg.ReadAt,
	})
	return msg, true, nil
}

// FindByExternalID looks up a provider message id. found is false when no
// message carries it.
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (Message, bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Message{}, false, nil
	}
	row, err := s.queries.GetMessageByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, false, nil
		}
		return Message{}, false, fmt.Errorf("get message by external id: %w", err)
	}
	return toMessage(row), true, nil
}

func (s *Service) Get(ctx context.Context, messageID string) (Message, error) {
	pgID, err := db.ParseUUID(messageID)
	if err != nil {
		return Message{}, err
	}
	row, err := s.queries.GetMessageByID(ctx, pgID)
	if err != nil {
		return Message{}, notFound(err)
	}
	return toMessage(row), nil
}

// ListByConversation returns a page of messages, oldest first.
func (s *Service) ListByConversation(ctx context.Context, conversationID string, limit, offset int) (ListResponse, error) {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return ListResponse{}, err
	}
	l, o := db.ClampPage(limit, offset)
	rows, err := s.queries.ListMessagesByConversation(ctx, store.ListMessagesByConversationParams{
		ConversationID: pgID,
		Limit:          l,
		Offset:         o,
	})
	if err != nil {
		return ListResponse{}, err
	}
	total, err := s.queries.CountMessagesByConversation(ctx, pgID)
	if err != nil {
		return ListResponse{}, err
	}
	items := make([]Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, toMessage(row))
	}
	return ListResponse{Items: items, Total: total}, nil
}

func (s *Service) MarkRead(ctx context.Context, messageID string) (Message, error) {
	pgID, err := db.ParseUUID(messageID)
	if err != nil {
		return Message{}, err
	}
	row, err := s.queries.MarkMessageRead(ctx, store.MarkMessageReadParams{ID: pgID, ReadAt: db.Timestamptz(s.now())})
	if err != nil {
		return Message{}, notFound(err)
	}
	return toMessage(row), nil
}

// MarkConversationRead flags every unread inbound message of a conversation.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return 0, err
	}
	return s.queries.MarkConversationRead(ctx, store.MarkConversationReadParams{
		ConversationID: pgID,
		ReadAt:         db.Timestamptz(s.now()),
	})
}

func (s *Service) publish(t event.Type, conversationID string, data any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event.New(t, conversationID, data))
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMessageNotFound
	}
	return err
}

func toMessage(row store.Message) Message {
	m := Message{
		ID:                db.UUIDString(row.ID),
		ConversationID:    db.UUIDString(row.ConversationID),
		ExternalMessageID: db.TextToString(row.ExternalMessageID),
		Direction:         Direction(row.Direction),
		Kind:              Kind(row.Kind),
		Content:           row.Content,
		SenderUserID:      db.UUIDString(row.SenderUserID),
		DeliveryStatus:    db.TextToString(row.DeliveryStatus),
		IsRead:            row.IsRead,
		SentAt:            db.TimeFromPg(row.SentAt),
		DeliveredAt:       db.TimePtrFromPg(row.DeliveredAt),
		ReadAt:            db.TimePtrFromPg(row.ReadAt),
		CreatedAt:         db.TimeFromPg(row.CreatedAt),
	}
	if len(row.Metadata) > 0 && string(row.Metadata) != "{}" {
		m.Metadata = json.RawMessage(row.Metadata)
	}
	if row.AttachmentFileID.Valid {
		m.Attachment = &Attachment{
			FileID:   row.AttachmentFileID.String,
			Filename: db.TextToString(row.AttachmentFilename),
			MimeType: db.TextToString(row.AttachmentMimeType),
		}
		if row.AttachmentSize.Valid {
			m.Attachment.Size = row.AttachmentSize.Int64
		}
	}
	return m
}
