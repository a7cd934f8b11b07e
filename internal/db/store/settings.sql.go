package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const settingColumns = `key, value, description, updated_at`

func scanSetting(row pgx.Row) (Setting, error) {
	var i Setting
	err := row.Scan(&i.Key, &i.Value, &i.Description, &i.UpdatedAt)
	return i, err
}

const listSettings = `SELECT ` + settingColumns + ` FROM settings ORDER BY key ASC`

func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.Query(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSetting)
}

const getSetting = `SELECT ` + settingColumns + ` FROM settings WHERE key = $1`

func (q *Queries) GetSetting(ctx context.Context, key string) (Setting, error) {
	return scanSetting(q.db.QueryRow(ctx, getSetting, key))
}

const upsertSetting = `
INSERT INTO settings (key, value, description) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  description = COALESCE(EXCLUDED.description, settings.description),
  updated_at = now()
RETURNING ` + settingColumns

type UpsertSettingParams struct {
	Key         string
	Value       string
	Description pgtype.Text
}

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) (Setting, error) {
	return scanSetting(q.db.QueryRow(ctx, upsertSetting, arg.Key, arg.Value, arg.Description))
}
