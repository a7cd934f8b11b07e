package conversation

import (
	"errors"
	"time"
)

// State is the lifecycle stage of a conversation. Closed is terminal.
type State string

const (
	StateNew        State = "new"
	StateInProgress State = "in_progress"
	StatePending    State = "pending"
	StateResolved   State = "resolved"
	StateClosed     State = "closed"
)

func (s State) Valid() bool {
	switch s {
	case StateNew, StateInProgress, StatePending, StateResolved, StateClosed:
		return true
	}
	return false
}

// IsOpen reports whether messages for the contact still route to this conversation.
func (s State) IsOpen() bool { return s != StateClosed }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrOpenConversation     = errors.New("contact already has an open conversation")
	ErrInvalidState         = errors.New("invalid conversation state")
	ErrInvalidPriority      = errors.New("invalid conversation priority")
	ErrReopenClosed         = errors.New("closed conversations cannot be reopened")
	ErrAccessDenied         = errors.New("conversation access denied")
)

type Conversation struct {
	ID             string     `json:"id"`
	ContactID      string     `json:"contact_id"`
	TeamID         string     `json:"team_id,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	State          State      `json:"state"`
	Priority       Priority   `json:"priority"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	InternalNotes  string     `json:"internal_notes,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	MessageCount int64  `json:"message_count"`
	UnreadCount  int64  `json:"unread_count"`
}

// Viewer is the staff member a request acts for.
type Viewer struct {
	UserID string
	TeamID string
	Admin  bool
}

type CreateRequest struct {
	ContactID   string   `json:"contact_id" validate:"required,uuid"`
	TeamID      string   `json:"team_id,omitempty" validate:"omitempty,uuid"`
	UserID      string   `json:"user_id,omitempty" validate:"omitempty,uuid"`
	Priority    Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Title       string   `json:"title,omitempty" validate:"max=200"`
	Description string   `json:"description,omitempty"`
}

// UpdateRequest changes only the fields that are set. An empty TeamID or
// UserID unassigns.
type UpdateRequest struct {
	State         *State    `json:"state,omitempty" validate:"omitempty,oneof=new in_progress pending resolved closed"`
	Priority      *Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Title         *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string   `json:"description,omitempty"`
	InternalNotes *string   `json:"internal_notes,omitempty"`
	TeamID        *string   `json:"team_id,omitempty" validate:"omitempty,uuid|len=0"`
	UserID        *string   `json:"user_id,omitempty" validate:"omitempty,uuid|len=0"`
}

type ListRequest struct {
	State    string
	Priority string
	TeamID   string
	UserID   string
	Query    string
	Limit    int
	Offset   int
}

type ListResponse struct {
	Items []Conversation `json:"items"`
	Total int64          `json:"total"`
}
