package message

import (
	"encoding/json"
	"errors"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Kind is the stored message kind.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindLocation Kind = "location"
	KindOther    Kind = "other"
)

// Status is a provider delivery status.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// ParseStatus accepts only the four provider statuses.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return st, true
	}
	return "", false
}

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyContent    = errors.New("message content is required")
)

// Attachment references a provider-hosted media file.
type Attachment struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type Message struct {
	ID                string          `json:"id"`
	ConversationID    string          `json:"conversation_id"`
	ExternalMessageID string          `json:"external_message_id,omitempty"`
	Direction         Direction       `json:"direction"`
	Kind              Kind            `json:"kind"`
	Content           string          `json:"content"`
	SenderUserID      string          `json:"sender_user_id,omitempty"`
	Attachment        *Attachment     `json:"attachment,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	DeliveryStatus    string          `json:"delivery_status,omitempty"`
	IsRead            bool            `json:"is_read"`
	SentAt            time.Time       `json:"sent_at"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	ReadAt            *time.Time      `json:"read_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// InboundInput is one provider message to store.
type InboundInput struct {
	ConversationID    string
	ExternalMessageID string
	Kind              Kind
	Content           string
	Attachment        *Attachment
	Metadata          json.RawMessage
	SentAt            time.Time
}

// OutboundInput is one staff message already accepted by the provider.
type OutboundInput struct {
	ConversationID    string
	ExternalMessageID string
	SenderUserID      string
	Content           string
}

type ListResponse struct {
	Items []Message `json:"items"`
	Total int64     `json:"total"`
}

// StatusChange is the payload published for message.status events.
type StatusChange struct {
	MessageID         string     `json:"message_id"`
	ExternalMessageID string     `json:"external_message_id"`
	Status            Status     `json:"status"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	ReadAt            *time.Time `json:"read_at,omitempty"`
}
