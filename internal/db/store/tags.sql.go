package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tagColumns = `id, name, color, created_at`

func scanTag(row pgx.Row) (Tag, error) {
	var i Tag
	err := row.Scan(&i.ID, &i.Name, &i.Color, &i.CreatedAt)
	return i, err
}

const listTags = `SELECT ` + tagColumns + ` FROM tags ORDER BY name ASC`

func (q *Queries) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := q.db.Query(ctx, listTags)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTag)
}

const getTagByID = `SELECT ` + tagColumns + ` FROM tags WHERE id = $1`

func (q *Queries) GetTagByID(ctx context.Context, id pgtype.UUID) (Tag, error) {
	return scanTag(q.db.QueryRow(ctx, getTagByID, id))
}

const createTag = `INSERT INTO tags (name, color) VALUES ($1, $2) RETURNING ` + tagColumns

type CreateTagParams struct {
	Name  string
	Color pgtype.Text
}

func (q *Queries) CreateTag(ctx context.Context, arg CreateTagParams) (Tag, error) {
	return scanTag(q.db.QueryRow(ctx, createTag, arg.Name, arg.Color))
}

const updateTag = `
UPDATE tags SET name = COALESCE($2, name), color = COALESCE($3, color)
WHERE id = $1
RETURNING ` + tagColumns

type UpdateTagParams struct {
	ID    pgtype.UUID
	Name  pgtype.Text
	Color pgtype.Text
}

func (q *Queries) UpdateTag(ctx context.Context, arg UpdateTagParams) (Tag, error) {
	return scanTag(q.db.QueryRow(ctx, updateTag, arg.ID, arg.Name, arg.Color))
}

const deleteTag = `DELETE FROM tags WHERE id = $1`

func (q *Queries) DeleteTag(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteTag, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const addConversationTag = `
INSERT INTO conversation_tags (conversation_id, tag_id, added_by) VALUES ($1, $2, $3)
ON CONFLICT (conversation_id, tag_id) DO NOTHING`

type AddConversationTagParams struct {
	ConversationID pgtype.UUID
	TagID          pgtype.UUID
	AddedBy        pgtype.UUID
}

func (q *Queries) AddConversationTag(ctx context.Context, arg AddConversationTagParams) error {
	_, err := q.db.Exec(ctx, addConversationTag, arg.ConversationID, arg.TagID, arg.AddedBy)
	return err
}

const removeConversationTag = `DELETE FROM conversation_tags WHERE conversation_id = $1 AND tag_id = $2`

type RemoveConversationTagParams struct {
	ConversationID pgtype.UUID
	TagID          pgtype.UUID
}

func (q *Queries) RemoveConversationTag(ctx context.Context, arg RemoveConversationTagParams) (int64, error) {
	tag, err := q.db.Exec(ctx, removeConversationTag, arg.ConversationID, arg.TagID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listConversationTags = `
SELECT t.id, t.name, t.color, t.created_at
FROM conversation_tags ct JOIN tags t ON t.id = ct.tag_id
WHERE ct.conversation_id = $1
ORDER BY t.name ASC`

func (q *Queries) ListConversationTags(ctx context.Context, conversationID pgtype.UUID) ([]Tag, error) {
	rows, err := q.db.Query(ctx, listConversationTags, conversationID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTag)
}
