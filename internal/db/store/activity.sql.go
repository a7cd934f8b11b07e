package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const activityColumns = `id, user_id, action, resource, resource_id, ip_address, user_agent, created_at`

func scanActivityLog(row pgx.Row) (ActivityLog, error) {
	var i ActivityLog
	err := row.Scan(&i.ID, &i.UserID, &i.Action, &i.Resource, &i.ResourceID, &i.IpAddress, &i.UserAgent, &i.CreatedAt)
	return i, err
}

const createActivityLog = `
INSERT INTO activity_logs (user_id, action, resource, resource_id, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6)`

type CreateActivityLogParams struct {
	UserID     pgtype.UUID
	Action     string
	Resource   string
	ResourceID pgtype.Text
	IpAddress  pgtype.Text
	UserAgent  pgtype.Text
}

func (q *Queries) CreateActivityLog(ctx context.Context, arg CreateActivityLogParams) error {
	_, err := q.db.Exec(ctx, createActivityLog, arg.UserID, arg.Action, arg.Resource, arg.ResourceID, arg.IpAddress, arg.UserAgent)
	return err
}

const listActivityLogs = `SELECT ` + activityColumns + `
FROM activity_logs
WHERE ($1::uuid IS NULL OR user_id = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListActivityLogsParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListActivityLogs(ctx context.Context, arg ListActivityLogsParams) ([]ActivityLog, error) {
	rows, err := q.db.Query(ctx, listActivityLogs, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanActivityLog)
}
