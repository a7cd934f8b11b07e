package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, name, email, phone, password_hash, role, team_id, is_active, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.PasswordHash,
		&i.Role,
		&i.TeamID,
		&i.IsActive,
		&i.LastLoginAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const countUsers = `SELECT count(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countUsers).Scan(&count)
	return count, err
}

const createUser = `
INSERT INTO users (name, email, phone, password_hash, role, team_id, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns

type CreateUserParams struct {
	Name         string
	Email        string
	Phone        pgtype.Text
	PasswordHash string
	Role         string
	TeamID       pgtype.UUID
	IsActive     bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.PasswordHash,
		arg.Role,
		arg.TeamID,
		arg.IsActive,
	))
}

const updateUser = `
UPDATE users SET
  name = COALESCE($2, name),
  email = COALESCE($3, email),
  phone = COALESCE($4, phone),
  role = COALESCE($5, role),
  team_id = CASE WHEN $6::bool THEN $7 ELSE team_id END,
  is_active = COALESCE($8, is_active),
  updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type UpdateUserParams struct {
	ID       pgtype.UUID
	Name     pgtype.Text
	Email    pgtype.Text
	Phone    pgtype.Text
	Role     pgtype.Text
	SetTeam  bool
	TeamID   pgtype.UUID
	IsActive pgtype.Bool
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUser,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.Role,
		arg.SetTeam,
		arg.TeamID,
		arg.IsActive,
	))
}

const updateUserPassword = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`

type UpdateUserPasswordParams struct {
	ID           pgtype.UUID
	PasswordHash string
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.Exec(ctx, updateUserPassword, arg.ID, arg.PasswordHash)
	return err
}

const touchUserLastLogin = `UPDATE users SET last_login_at = now() WHERE id = $1`

func (q *Queries) TouchUserLastLogin(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, touchUserLastLogin, id)
	return err
}

const userFilter = `
WHERE ($1::text IS NULL OR role = $1)
  AND ($2::uuid IS NULL OR team_id = $2)
  AND ($3::bool IS NULL OR is_active = $3)
  AND ($4::text IS NULL OR name ILIKE $4 OR email ILIKE $4)`

const listUsers = `SELECT ` + userColumns + ` FROM users` + userFilter + `
ORDER BY name ASC
LIMIT $5 OFFSET $6`

type ListUsersParams struct {
	Role     pgtype.Text
	TeamID   pgtype.UUID
	IsActive pgtype.Bool
	Query    pgtype.Text
	Limit    int32
	Offset   int32
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, arg.Role, arg.TeamID, arg.IsActive, arg.Query, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

const countFilteredUsers = `SELECT count(*) FROM users` + userFilter

func (q *Queries) CountFilteredUsers(ctx context.Context, arg ListUsersParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countFilteredUsers, arg.Role, arg.TeamID, arg.IsActive, arg.Query).Scan(&count)
	return count, err
}
