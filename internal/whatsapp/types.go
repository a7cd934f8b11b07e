package whatsapp

import "encoding/json"

// ObjectWhatsAppBusinessAccount is the only notification object processed.
const ObjectWhatsAppBusinessAccount = "whatsapp_business_account"

// FieldMessages is the only change field processed.
const FieldMessages = "messages"

// Notification is the top-level webhook delivery.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents one business account entry.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps a single change notification. Value is decoded lazily so a
// malformed value only costs its own change.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// ChangeValue keeps every message, status and contact hint undecoded so
// each one is validated on its own.
type ChangeValue struct {
	Metadata json.RawMessage   `json:"metadata,omitempty"`
	Contacts []json.RawMessage `json:"contacts,omitempty"`
	Messages []json.RawMessage `json:"messages,omitempty"`
	Statuses []json.RawMessage `json:"statuses,omitempty"`
}

// Metadata about the receiving phone number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// PhoneNumberID returns the receiving phone number id, or "" when the
// metadata is absent or unreadable.
func (v ChangeValue) PhoneNumberID() string {
	var md Metadata
	if len(v.Metadata) == 0 || json.Unmarshal(v.Metadata, &md) != nil {
		return ""
	}
	return md.PhoneNumberID
}

// Contact is the sender profile the provider attaches to a batch.
type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

// NameFor returns the profile name of from, falling back to the first
// readable contact of the batch. Hints that do not decode are skipped.
func (v ChangeValue) NameFor(from string) string {
	var first string
	seen := false
	for _, raw := range v.Contacts {
		var c Contact
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		if c.WaID != "" && c.WaID == from {
			return c.Profile.Name
		}
		if !seen {
			first, seen = c.Profile.Name, true
		}
	}
	return first
}

type wireMessage struct {
	ID        string        `json:"id"`
	From      string        `json:"from"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Text      *wireText     `json:"text,omitempty"`
	Image     *wireMedia    `json:"image,omitempty"`
	Document  *wireMedia    `json:"document,omitempty"`
	Audio     *wireMedia    `json:"audio,omitempty"`
	Video     *wireMedia    `json:"video,omitempty"`
	Location  *wireLocation `json:"location,omitempty"`
}

type wireText struct {
	Body string `json:"body"`
}

type wireMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type wireLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name,omitempty"`
	Address   string   `json:"address,omitempty"`
}

type wireStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// SendMessageRequest is the Cloud API payload for a text message.
type SendMessageRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             wireText `json:"text"`
}

// SendMessageResponse is the Cloud API answer to a send.
type SendMessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
