package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const messageColumns = `id, conversation_id, external_message_id, direction, kind, content, sender_user_id,
  attachment_file_id, attachment_filename, attachment_mime_type, attachment_size, metadata, delivery_status,
  is_read, is_active, sent_at, delivered_at, read_at, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var i Message
	err := row.Scan(
		&i.ID,
		&i.ConversationID,
		&i.ExternalMessageID,
		&i.Direction,
		&i.Kind,
		&i.Content,
		&i.SenderUserID,
		&i.AttachmentFileID,
		&i.AttachmentFilename,
		&i.AttachmentMimeType,
		&i.AttachmentSize,
		&i.Metadata,
		&i.DeliveryStatus,
		&i.IsRead,
		&i.IsActive,
		&i.SentAt,
		&i.DeliveredAt,
		&i.ReadAt,
		&i.CreatedAt,
	)
	return i, err
}

const createMessage = `
INSERT INTO messages (
  conversation_id, external_message_id, direction, kind, content, sender_user_id,
  attachment_file_id, attachment_filename, attachment_mime_type, attachment_size,
  metadata, delivery_status, sent_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + messageColumns

type CreateMessageParams struct {
	ConversationID     pgtype.UUID
	ExternalMessageID  pgtype.Text
	Direction          string
	Kind               string
	Content            string
	SenderUserID       pgtype.UUID
	AttachmentFileID   pgtype.Text
	AttachmentFilename pgtype.Text
	AttachmentMimeType pgtype.Text
	AttachmentSize     pgtype.Int8
	Metadata           []byte
	DeliveryStatus     pgtype.Text
	SentAt             pgtype.Timestamptz
}

// CreateMessage fails with a unique violation when the external message id was already stored.
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, createMessage,
		arg.ConversationID,
		arg.ExternalMessageID,
		arg.Direction,
		arg.Kind,
		arg.Content,
		arg.SenderUserID,
		arg.AttachmentFileID,
		arg.AttachmentFilename,
		arg.AttachmentMimeType,
		arg.AttachmentSize,
		arg.Metadata,
		arg.DeliveryStatus,
		arg.SentAt,
	))
}

const getMessageByID = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

func (q *Queries) GetMessageByID(ctx context.Context, id pgtype.UUID) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, getMessageByID, id))
}

const getMessageByExternalID = `SELECT ` + messageColumns + ` FROM messages WHERE external_message_id = $1`

func (q *Queries) GetMessageByExternalID(ctx context.Context, externalMessageID string) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, getMessageByExternalID, externalMessageID))
}

const applyMessageStatus = `
UPDATE messages SET
  delivery_status = CASE
    WHEN $7::bool OR $3::int >= (CASE delivery_status WHEN 'read' THEN 3 WHEN 'delivered' THEN 2 WHEN 'sent' THEN 1 ELSE 0 END)
    THEN $2 ELSE delivery_status END,
  delivered_at = CASE WHEN $7::bool THEN NULL WHEN $4::bool THEN COALESCE(delivered_at, $6) ELSE delivered_at END,
  read_at = CASE WHEN $7::bool THEN NULL WHEN $5::bool THEN COALESCE(read_at, $6) ELSE read_at END
WHERE external_message_id = $1
RETURNING ` + messageColumns

// ApplyMessageStatusParams moves DeliveryStatus forward only: it is written when
// StatusRank is at least the rank of the stored status (sent 1, delivered 2,
// read 3) or when Clear is set. StampDelivered and StampRead set their
// timestamp to At unless already set; Clear nulls both.
type ApplyMessageStatusParams struct {
	ExternalMessageID string
	DeliveryStatus    string
	StatusRank        int32
	StampDelivered    bool
	StampRead         bool
	At                pgtype.Timestamptz
	Clear             bool
}

// ApplyMessageStatus returns pgx.ErrNoRows when no message carries the external id.
func (q *Queries) ApplyMessageStatus(ctx context.Context, arg ApplyMessageStatusParams) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, applyMessageStatus,
		arg.ExternalMessageID,
		arg.DeliveryStatus,
		arg.StatusRank,
		arg.StampDelivered,
		arg.StampRead,
		arg.At,
		arg.Clear,
	))
}

const listMessagesByConversation = `SELECT ` + messageColumns + `
FROM messages
WHERE conversation_id = $1 AND is_active
ORDER BY sent_at ASC, created_at ASC
LIMIT $2 OFFSET $3`

type ListMessagesByConversationParams struct {
	ConversationID pgtype.UUID
	Limit          int32
	Offset         int32
}

func (q *Queries) ListMessagesByConversation(ctx context.Context, arg ListMessagesByConversationParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessagesByConversation, arg.ConversationID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMessage)
}

const countMessagesByConversation = `SELECT count(*) FROM messages WHERE conversation_id = $1 AND is_active`

func (q *Queries) CountMessagesByConversation(ctx context.Context, conversationID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countMessagesByConversation, conversationID).Scan(&count)
	return count, err
}

const markMessageRead = `
UPDATE messages SET is_read = true, read_at = COALESCE(read_at, $2)
WHERE id = $1
RETURNING ` + messageColumns

type MarkMessageReadParams struct {
	ID     pgtype.UUID
	ReadAt pgtype.Timestamptz
}

func (q *Queries) MarkMessageRead(ctx context.Context, arg MarkMessageReadParams) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, markMessageRead, arg.ID, arg.ReadAt))
}

const markConversationRead = `
UPDATE messages SET is_read = true, read_at = COALESCE(read_at, $2)
WHERE conversation_id = $1 AND direction = 'inbound' AND NOT is_read`

type MarkConversationReadParams struct {
	ConversationID pgtype.UUID
	ReadAt         pgtype.Timestamptz
}

func (q *Queries) MarkConversationRead(ctx context.Context, arg MarkConversationReadParams) (int64, error) {
	tag, err := q.db.Exec(ctx, markConversationRead, arg.ConversationID, arg.ReadAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
