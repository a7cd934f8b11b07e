package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const contactColumns = `id, phone, name, email, contact_type, company, notes, metadata, is_active, created_by,
  first_contact_at, last_interaction_at, created_at, updated_at`

func scanContact(row pgx.Row) (Contact, error) {
	var i Contact
	err := row.Scan(
		&i.ID,
		&i.Phone,
		&i.Name,
		&i.Email,
		&i.ContactType,
		&i.Company,
		&i.Notes,
		&i.Metadata,
		&i.IsActive,
		&i.CreatedBy,
		&i.FirstContactAt,
		&i.LastInteractionAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getContactByID = `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

func (q *Queries) GetContactByID(ctx context.Context, id pgtype.UUID) (Contact, error) {
	return scanContact(q.db.QueryRow(ctx, getContactByID, id))
}

const getContactByPhone = `SELECT ` + contactColumns + ` FROM contacts WHERE phone = $1`

func (q *Queries) GetContactByPhone(ctx context.Context, phone string) (Contact, error) {
	return scanContact(q.db.QueryRow(ctx, getContactByPhone, phone))
}

const createContact = `
INSERT INTO contacts (phone, name, email, contact_type, company, notes, metadata, created_by, first_contact_at, last_interaction_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), $10)
RETURNING ` + contactColumns

type CreateContactParams struct {
	Phone             string
	Name              string
	Email             pgtype.Text
	ContactType       string
	Company           pgtype.Text
	Notes             pgtype.Text
	Metadata          []byte
	CreatedBy         pgtype.UUID
	FirstContactAt    pgtype.Timestamptz
	LastInteractionAt pgtype.Timestamptz
}

// CreateContact fails with a unique violation when the phone already exists.
func (q *Queries) CreateContact(ctx context.Context, arg CreateContactParams) (Contact, error) {
	return scanContact(q.db.QueryRow(ctx, createContact,
		arg.Phone,
		arg.Name,
		arg.Email,
		arg.ContactType,
		arg.Company,
		arg.Notes,
		arg.Metadata,
		arg.CreatedBy,
		arg.FirstContactAt,
		arg.LastInteractionAt,
	))
}

const touchContactInteraction = `
UPDATE contacts SET last_interaction_at = $2, updated_at = now()
WHERE id = $1
RETURNING ` + contactColumns

type TouchContactInteractionParams struct {
	ID                pgtype.UUID
	LastInteractionAt pgtype.Timestamptz
}

func (q *Queries) TouchContactInteraction(ctx context.Context, arg TouchContactInteractionParams) (Contact, error) {
	return scanContact(q.db.QueryRow(ctx, touchContactInteraction, arg.ID, arg.LastInteractionAt))
}

const updateContact = `
UPDATE contacts SET
  name = COALESCE($2, name),
  email = COALESCE($3, email),
  contact_type = COALESCE($4, contact_type),
  company = COALESCE($5, company),
  notes = COALESCE($6, notes),
  metadata = COALESCE($7, metadata),
  is_active = COALESCE($8, is_active),
  updated_at = now()
WHERE id = $1
RETURNING ` + contactColumns

// UpdateContactParams leaves a column untouched when its value is NULL.
type UpdateContactParams struct {
	ID          pgtype.UUID
	Name        pgtype.Text
	Email       pgtype.Text
	ContactType pgtype.Text
	Company     pgtype.Text
	Notes       pgtype.Text
	Metadata    []byte
	IsActive    pgtype.Bool
}

func (q *Queries) UpdateContact(ctx context.Context, arg UpdateContactParams) (Contact, error) {
	return scanContact(q.db.QueryRow(ctx, updateContact,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.ContactType,
		arg.Company,
		arg.Notes,
		arg.Metadata,
		arg.IsActive,
	))
}

const contactFilter = `
WHERE ($1::text IS NULL OR name ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1 OR company ILIKE $1)
  AND ($2::text IS NULL OR contact_type = $2)
  AND ($3::bool OR is_active)`

const listContacts = `SELECT ` + contactColumns + ` FROM contacts` + contactFilter + `
ORDER BY COALESCE(last_interaction_at, created_at) DESC
LIMIT $4 OFFSET $5`

type ListContactsParams struct {
	Query           pgtype.Text
	ContactType     pgtype.Text
	IncludeInactive bool
	Limit           int32
	Offset          int32
}

func (q *Queries) ListContacts(ctx context.Context, arg ListContactsParams) ([]Contact, error) {
	rows, err := q.db.Query(ctx, listContacts, arg.Query, arg.ContactType, arg.IncludeInactive, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanContact)
}

const countContacts = `SELECT count(*) FROM contacts` + contactFilter

func (q *Queries) CountContacts(ctx context.Context, arg ListContactsParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countContacts, arg.Query, arg.ContactType, arg.IncludeInactive).Scan(&count)
	return count, err
}
