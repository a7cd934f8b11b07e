package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const teamColumns = `id, name, description, color, is_active, created_at, updated_at`

func scanTeam(row pgx.Row) (Team, error) {
	var i Team
	err := row.Scan(&i.ID, &i.Name, &i.Description, &i.Color, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getTeamByID = `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

func (q *Queries) GetTeamByID(ctx context.Context, id pgtype.UUID) (Team, error) {
	return scanTeam(q.db.QueryRow(ctx, getTeamByID, id))
}

const listTeams = `SELECT ` + teamColumns + ` FROM teams WHERE ($1::bool OR is_active) ORDER BY name ASC`

func (q *Queries) ListTeams(ctx context.Context, includeInactive bool) ([]Team, error) {
	rows, err := q.db.Query(ctx, listTeams, includeInactive)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTeam)
}

const createTeam = `
INSERT INTO teams (name, description, color) VALUES ($1, $2, $3)
RETURNING ` + teamColumns

type CreateTeamParams struct {
	Name        string
	Description pgtype.Text
	Color       pgtype.Text
}

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error) {
	return scanTeam(q.db.QueryRow(ctx, createTeam, arg.Name, arg.Description, arg.Color))
}

const updateTeam = `
UPDATE teams SET
  name = COALESCE($2, name),
  description = COALESCE($3, description),
  color = COALESCE($4, color),
  is_active = COALESCE($5, is_active),
  updated_at = now()
WHERE id = $1
RETURNING ` + teamColumns

type UpdateTeamParams struct {
	ID          pgtype.UUID
	Name        pgtype.Text
	Description pgtype.Text
	Color       pgtype.Text
	IsActive    pgtype.Bool
}

func (q *Queries) UpdateTeam(ctx context.Context, arg UpdateTeamParams) (Team, error) {
	return scanTeam(q.db.QueryRow(ctx, updateTeam, arg.ID, arg.Name, arg.Description, arg.Color, arg.IsActive))
}
