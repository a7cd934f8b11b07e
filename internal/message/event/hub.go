// Package event provides the in-process hub that fans message events out to
// live subscribers.
package event

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBufferSize is the default per-subscriber channel buffer.
	DefaultBufferSize = 64
	// AllConversations subscribes to every conversation.
	AllConversations = "*"
)

// Type identifies the event category. It doubles as the broker routing key.
type Type string

const (
	TypeMessageReceived Type = "message.received"
	TypeMessageSent     Type = "message.sent"
	TypeMessageStatus   Type = "message.status"
)

// Event is the payload emitted for a conversation.
type Event struct {
	ID             string          `json:"id"`
	Type           Type            `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Time           time.Time       `json:"time"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// New builds an event with a fresh id, marshaling data.
func New(t Type, conversationID string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = nil
	}
	return Event{
		ID:             uuid.NewString(),
		Type:           t,
		ConversationID: conversationID,
		Time:           time.Now().UTC(),
		Data:           raw,
	}
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(event Event)
}

// Subscriber subscribes to conversation-scoped events.
type Subscriber interface {
	Subscribe(conversationID string, buffer int) (string, <-chan Event, func())
}

// Multi publishes to every non-nil publisher in order.
type Multi []Publisher

func (m Multi) Publish(event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(event)
		}
	}
}

// Hub is an in-process pub/sub dispatcher keyed by conversation id.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{
		streams: map[string]map[string]chan Event{},
	}
}

// Publish delivers event to the subscribers of its conversation and of
// AllConversations. Slow subscribers miss events instead of blocking.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	conversationID := strings.TrimSpace(event.ConversationID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conversationID != "" && conversationID != AllConversations {
		h.deliver(conversationID, event)
	}
	h.deliver(AllConversations, event)
}

// SubscriberCount returns the number of live subscribers of a conversation id.
func (h *Hub) SubscriberCount(conversationID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[strings.TrimSpace(conversationID)])
}

func (h *Hub) deliver(key string, event Event) {
	for _, ch := range h.streams[key] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers one subscriber for a conversation id (or AllConversations).
// It returns a stream ID, read-only event channel, and a cancel function.
func (h *Hub) Subscribe(conversationID string, buffer int) (string, <-chan Event, func()) {
	conversationID = strings.TrimSpace(conversationID)
	if h == nil || conversationID == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[conversationID]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[conversationID] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			streams := h.streams[conversationID]
			if current, ok := streams[streamID]; ok {
				delete(streams, streamID)
				close(current)
			}
			if len(streams) == 0 {
				delete(h.streams, conversationID)
			}
			h.mu.Unlock()
		})
	}

	return streamID, ch, cancel
}
