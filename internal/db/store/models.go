package store

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Team struct {
	ID          pgtype.UUID
	Name        string
	Description pgtype.Text
	Color       pgtype.Text
	IsActive    bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type User struct {
	ID           pgtype.UUID
	Name         string
	Email        string
	Phone        pgtype.Text
	PasswordHash string
	Role         string
	TeamID       pgtype.UUID
	IsActive     bool
	LastLoginAt  pgtype.Timestamptz
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

type Contact struct {
	ID                pgtype.UUID
	Phone             string
	Name              string
	Email             pgtype.Text
	ContactType       string
	Company           pgtype.Text
	Notes             pgtype.Text
	Metadata          []byte
	IsActive          bool
	CreatedBy         pgtype.UUID
	FirstContactAt    pgtype.Timestamptz
	LastInteractionAt pgtype.Timestamptz
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

type Conversation struct {
	ID             pgtype.UUID
	ContactID      pgtype.UUID
	TeamID         pgtype.UUID
	UserID         pgtype.UUID
	State          string
	Priority       string
	Title          string
	Description    pgtype.Text
	InternalNotes  pgtype.Text
	StartedAt      pgtype.Timestamptz
	LastActivityAt pgtype.Timestamptz
	ClosedAt       pgtype.Timestamptz
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

type Message struct {
	ID                 pgtype.UUID
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
	IsRead             bool
	IsActive           bool
	SentAt             pgtype.Timestamptz
	DeliveredAt        pgtype.Timestamptz
	ReadAt             pgtype.Timestamptz
	CreatedAt          pgtype.Timestamptz
}

type Tag struct {
	ID        pgtype.UUID
	Name      string
	Color     pgtype.Text
	CreatedAt pgtype.Timestamptz
}

type Setting struct {
	Key         string
	Value       string
	Description pgtype.Text
	UpdatedAt   pgtype.Timestamptz
}

type ActivityLog struct {
	ID         pgtype.UUID
	UserID     pgtype.UUID
	Action     string
	Resource   string
	ResourceID pgtype.Text
	IpAddress  pgtype.Text
	UserAgent  pgtype.Text
	CreatedAt  pgtype.Timestamptz
}
