package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const conversationColumns = `id, contact_id, team_id, user_id, state, priority, title, description, internal_notes,
  started_at, last_activity_at, closed_at, created_at, updated_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.ContactID,
		&i.TeamID,
		&i.UserID,
		&i.State,
		&i.Priority,
		&i.Title,
		&i.Description,
		&i.InternalNotes,
		&i.StartedAt,
		&i.LastActivityAt,
		&i.ClosedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getConversationByID = `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

func (q *Queries) GetConversationByID(ctx context.Context, id pgtype.UUID) (Conversation, error) {
	return scanConversation(q.db.QueryRow(ctx, getConversationByID, id))
}

const getOpenConversationByContact = `SELECT ` + conversationColumns + `
FROM conversations
WHERE contact_id = $1 AND state <> 'closed'
ORDER BY last_activity_at DESC
LIMIT 1`

func (q *Queries) GetOpenConversationByContact(ctx context.Context, contactID pgtype.UUID) (Conversation, error) {
	return scanConversation(q.db.QueryRow(ctx, getOpenConversationByContact, contactID))
}

const listConversationsByContact = `SELECT ` + conversationColumns + `
FROM conversations WHERE contact_id = $1 ORDER BY last_activity_at DESC`

func (q *Queries) ListConversationsByContact(ctx context.Context, contactID pgtype.UUID) ([]Conversation, error) {
	rows, err := q.db.Query(ctx, listConversationsByContact, contactID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanConversation)
}

const createConversation = `
INSERT INTO conversations (contact_id, team_id, user_id, state, priority, title, description, last_activity_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + conversationColumns

type CreateConversationParams struct {
	ContactID      pgtype.UUID
	TeamID         pgtype.UUID
	UserID         pgtype.UUID
	State          string
	Priority       string
	Title          string
	Description    pgtype.Text
	LastActivityAt pgtype.Timestamptz
}

// CreateConversation fails with a unique violation when the contact already has an open conversation.
func (q *Queries) CreateConversation(ctx context.Context, arg CreateConversationParams) (Conversation, error) {
	return scanConversation(q.db.QueryRow(ctx, createConversation,
		arg.ContactID,
		arg.TeamID,
		arg.UserID,
		arg.State,
		arg.Priority,
		arg.Title,
		arg.Description,
		arg.LastActivityAt,
	))
}

const touchConversationActivity = `
UPDATE conversations SET last_activity_at = GREATEST(last_activity_at, $2), updated_at = now()
WHERE id = $1
RETURNING ` + conversationColumns

type TouchConversationActivityParams struct {
	ID             pgtype.UUID
	LastActivityAt pgtype.Timestamptz
}

func (q *Queries) TouchConversationActivity(ctx context.Context, arg TouchConversationActivityParams) (Conversation, error) {
	return scanConversation(q.db.QueryRow(ctx, touchConversationActivity, arg.ID, arg.LastActivityAt))
}

const updateConversation = `
UPDATE conversations SET
  state = COALESCE($2, state),
  priority = COALESCE($3, priority),
  title = COALESCE($4, title),
  description = COALESCE($5, description),
  internal_notes = COALESCE($6, internal_notes),
  team_id = CASE WHEN $7::bool THEN $8 ELSE team_id END,
  user_id = CASE WHEN $9::bool THEN $10 ELSE user_id END,
  closed_at = CASE WHEN $11::bool THEN $12 ELSE closed_at END,
  updated_at = now()
WHERE id = $1
RETURNING ` + conversationColumns

// UpdateConversationParams leaves text columns untouched when NULL; nullable
// references change only when their Set flag is true.
type UpdateConversationParams struct {
	ID            pgtype.UUID
	State         pgtype.Text
	Priority      pgtype.Text
	Title         pgtype.Text
	Description   pgtype.Text
	InternalNotes pgtype.Text
	SetTeam       bool
	TeamID        pgtype.UUID
	SetUser       bool
	UserID        pgtype.UUID
	SetClosedAt   bool
	ClosedAt      pgtype.Timestamptz
}

func (q *Queries) UpdateConversation(ctx context.Context, arg UpdateConversationParams) (Conversation, error) {
	return scanConversation(q.db.QueryRow(ctx, updateConversation,
		arg.ID,
		arg.State,
		arg.Priority,
		arg.Title,
		arg.Description,
		arg.InternalNotes,
		arg.SetTeam,
		arg.TeamID,
		arg.SetUser,
		arg.UserID,
		arg.SetClosedAt,
		arg.ClosedAt,
	))
}

const conversationFilter = `
FROM conversations c
JOIN contacts ct ON ct.id = c.contact_id
WHERE ($1::text IS NULL OR c.state = $1)
  AND ($2::text IS NULL OR c.priority = $2)
  AND ($3::uuid IS NULL OR c.team_id = $3)
  AND ($4::uuid IS NULL OR c.user_id = $4)
  AND ($5::text IS NULL OR c.title ILIKE $5 OR ct.name ILIKE $5 OR ct.phone ILIKE $5)
  AND (($6::uuid IS NULL AND $7::uuid IS NULL) OR c.team_id = $6 OR c.user_id = $7)`

const listConversations = `
SELECT c.id, c.contact_id, c.team_id, c.user_id, c.state, c.priority, c.title, c.description, c.internal_notes,
  c.started_at, c.last_activity_at, c.closed_at, c.created_at, c.updated_at,
  ct.name, ct.phone,
  (SELECT count(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count,
  (SELECT count(*) FROM messages m WHERE m.conversation_id = c.id AND m.direction = 'inbound' AND NOT m.is_read) AS unread_count
` + conversationFilter + `
ORDER BY c.last_activity_at DESC
LIMIT $8 OFFSET $9`

// ListConversationsParams filters are ignored when NULL. VisibleTeamID/VisibleUserID
// restrict the result to conversations of that team or assigned to that user.
type ListConversationsParams struct {
	State         pgtype.Text
	Priority      pgtype.Text
	TeamID        pgtype.UUID
	UserID        pgtype.UUID
	Query         pgtype.Text
	VisibleTeamID pgtype.UUID
	VisibleUserID pgtype.UUID
	Limit         int32
	Offset        int32
}

type ListConversationsRow struct {
	Conversation
	ContactName  string
	ContactPhone string
	MessageCount int64
	UnreadCount  int64
}

func (q *Queries) ListConversations(ctx context.Context, arg ListConversationsParams) ([]ListConversationsRow, error) {
	rows, err := q.db.Query(ctx, listConversations,
		arg.State,
		arg.Priority,
		arg.TeamID,
		arg.UserID,
		arg.Query,
		arg.VisibleTeamID,
		arg.VisibleUserID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (ListConversationsRow, error) {
		var i ListConversationsRow
		err := row.Scan(
			&i.ID,
			&i.ContactID,
			&i.TeamID,
			&i.UserID,
			&i.State,
			&i.Priority,
			&i.Title,
			&i.Description,
			&i.InternalNotes,
			&i.StartedAt,
			&i.LastActivityAt,
			&i.ClosedAt,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.ContactName,
			&i.ContactPhone,
			&i.MessageCount,
			&i.UnreadCount,
		)
		return i, err
	})
}

const countConversations = `SELECT count(*) ` + conversationFilter

func (q *Queries) CountConversations(ctx context.Context, arg ListConversationsParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countConversations,
		arg.State,
		arg.Priority,
		arg.TeamID,
		arg.UserID,
		arg.Query,
		arg.VisibleTeamID,
		arg.VisibleUserID,
	).Scan(&count)
	return count, err
}

const closeStaleResolvedConversations = `
UPDATE conversations SET state = 'closed', closed_at = now(), updated_at = now()
WHERE state = 'resolved' AND last_activity_at < $1`

func (q *Queries) CloseStaleResolvedConversations(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	tag, err := q.db.Exec(ctx, closeStaleResolvedConversations, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
