package contacts

import (
	"errors"
	"time"
)

// Contact types.
const (
	TypeCustomer = "customer"
	TypeProspect = "prospect"
	TypeSupplier = "supplier"
	TypeOther    = "other"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrPhoneExists     = errors.New("a contact with this phone already exists")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidType     = errors.New("invalid contact type")
)

type Contact struct {
	ID                string         `json:"id"`
	Phone             string         `json:"phone"`
	Name              string         `json:"name"`
	Email             string         `json:"email,omitempty"`
	ContactType       string         `json:"contact_type"`
	Company           string         `json:"company,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	IsActive          bool           `json:"is_active"`
	CreatedBy         string         `json:"created_by,omitempty"`
	FirstContactAt    time.Time      `json:"first_contact_at"`
	LastInteractionAt time.Time      `json:"last_interaction_at,omitzero"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type CreateRequest struct {
	Phone       string         `json:"phone" validate:"required,max=32"`
	Name        string         `json:"name" validate:"required,max=200"`
	Email       string         `json:"email,omitempty" validate:"omitempty,email"`
	ContactType string         `json:"contact_type,omitempty" validate:"omitempty,oneof=customer prospect supplier other"`
	Company     string         `json:"company,omitempty" validate:"max=200"`
	Notes       string         `json:"notes,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type UpdateRequest struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email       *string        `json:"email,omitempty" validate:"omitempty,email"`
	ContactType *string        `json:"contact_type,omitempty" validate:"omitempty,oneof=customer prospect supplier other"`
	Company     *string        `json:"company,omitempty" validate:"omitempty,max=200"`
	Notes       *string        `json:"notes,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
}

type ListRequest struct {
	Query           string
	ContactType     string
	IncludeInactive bool
	Limit           int
	Offset          int
}

type ListResponse struct {
	Items []Contact `json:"items"`
	Total int64     `json:"total"`
}
