package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/wadesk/internal/attachment"
	"github.com/memohai/wadesk/internal/message"
)

// ErrInvalidEvent marks a message or status event that fails validation.
var ErrInvalidEvent = errors.New("invalid event")

// Content is the kind-specific payload of an inbound message. The set of
// implementations is closed: TextContent, MediaContent, LocationContent and
// OtherContent.
type Content interface {
	Kind() message.Kind
	// Summary is the human-readable text stored as the message content.
	Summary() string
	// Attachment is the media reference, nil for non-media kinds.
	Attachment() *message.Attachment
	sealed()
}

type TextContent struct {
	Body string
}

func (TextContent) Kind() message.Kind { return message.KindText }
func (c TextContent) Summary() string { return c.Body }
func (TextContent) Attachment() *message.Attachment { return nil }
func (TextContent) sealed() {}

// MediaContent covers image, document, audio and video messages.
type MediaContent struct {
	MediaKind message.Kind
	FileID    string
	MimeType  string
	Caption   string
	Filename  string
}

func (c MediaContent) Kind() message.Kind { return c.MediaKind }

func (c MediaContent) Summary() string {
	switch c.MediaKind {
	case message.KindImage:
		return firstNonEmpty(c.Caption, "Image")
	case message.KindDocument:
		return firstNonEmpty(c.Caption, c.Filename, "Document")
	case message.KindAudio:
		return "Audio message"
	case message.KindVideo:
		return firstNonEmpty(c.Caption, "Video")
	}
	return firstNonEmpty(c.Caption, string(c.MediaKind))
}

func (c MediaContent) Attachment() *message.Attachment {
	return &message.Attachment{FileID: c.FileID, Filename: c.Filename, MimeType: c.MimeType}
}

func (MediaContent) sealed() {}

type LocationContent struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

func (LocationContent) Kind() message.Kind { return message.KindLocation }

func (c LocationContent) Summary() string {
	return "Location: " + formatCoord(c.Latitude) + ", " + formatCoord(c.Longitude)
}

func (LocationContent) Attachment() *message.Attachment { return nil }
func (LocationContent) sealed() {}

// OtherContent is any message type without dedicated handling; Type keeps
// the provider's type string verbatim.
type OtherContent struct {
	Type string
}

func (OtherContent) Kind() message.Kind { return message.KindOther }
func (c OtherContent) Summary() string { return "Message of type: " + c.Type }
func (OtherContent) Attachment() *message.Attachment { return nil }
func (OtherContent) sealed() {}

// InboundMessage is a validated message event.
type InboundMessage struct {
	ID      string
	From    string
	SentAt  time.Time
	Content Content
	Raw     json.RawMessage
}

// ParseMessageEvent validates one raw message event.
func ParseMessageEvent(raw json.RawMessage) (InboundMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return InboundMessage{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	w.ID = strings.TrimSpace(w.ID)
	w.From = strings.TrimSpace(w.From)
	w.Type = strings.TrimSpace(w.Type)
	switch {
	case w.ID == "":
		return InboundMessage{}, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	case w.From == "":
		return InboundMessage{}, fmt.Errorf("%w: missing from", ErrInvalidEvent)
	case w.Type == "":
		return InboundMessage{}, fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}

	content, err := parseContent(w)
	if err != nil {
		return InboundMessage{}, err
	}
	return InboundMessage{
		ID:      w.ID,
		From:    w.From,
		SentAt:  parseUnix(w.Timestamp),
		Content: content,
		Raw:     raw,
	}, nil
}

func parseContent(w wireMessage) (Content, error) {
	switch message.Kind(w.Type) {
	case message.KindText:
		if w.Text == nil {
			return nil, fmt.Errorf("%w: text message without text payload", ErrInvalidEvent)
		}
		return TextContent{Body: w.Text.Body}, nil
	case message.KindImage:
		return mediaContent(message.KindImage, w.Image)
	case message.KindDocument:
		return mediaContent(message.KindDocument, w.Document)
	case message.KindAudio:
		return mediaContent(message.KindAudio, w.Audio)
	case message.KindVideo:
		return mediaContent(message.KindVideo, w.Video)
	case message.KindLocation:
		if w.Location == nil || w.Location.Latitude == nil || w.Location.Longitude == nil {
			return nil, fmt.Errorf("%w: location message without coordinates", ErrInvalidEvent)
		}
		return LocationContent{
			Latitude:  *w.Location.Latitude,
			Longitude: *w.Location.Longitude,
			Name:      w.Location.Name,
			Address:   w.Location.Address,
		}, nil
	default:
		return OtherContent{Type: w.Type}, nil
	}
}

func mediaContent(kind message.Kind, m *wireMedia) (Content, error) {
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return nil, fmt.Errorf("%w: %s message without media id", ErrInvalidEvent, kind)
	}
	return MediaContent{
		MediaKind: kind,
		FileID:    m.ID,
		MimeType:  attachment.ResolveMime(kind, m.MimeType),
		Caption:   m.Caption,
		Filename:  attachment.CleanFilename(m.Filename),
	}, nil
}

// StatusUpdate is a validated status event.
type StatusUpdate struct {
	MessageID string
	Status    message.Status
	Recipient string
}

// ParseStatusEvent validates one raw status event.
func ParseStatusEvent(raw json.RawMessage) (StatusUpdate, error) {
	var w wireStatus
	if err := json.Unmarshal(raw, &w); err != nil {
		return StatusUpdate{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(w.ID) == "" {
		return StatusUpdate{}, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	status, ok := message.ParseStatus(strings.TrimSpace(w.Status))
	if !ok {
		return StatusUpdate{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, w.Status)
	}
	return StatusUpdate{MessageID: strings.TrimSpace(w.ID), Status: status, Recipient: w.RecipientID}, nil
}

func parseUnix(ts string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
