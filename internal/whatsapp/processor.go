// Package whatsapp integrates the WhatsApp Business Cloud API: webhook
// payload decoding, the inbound event processor and the outbound client.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/memohai/wadesk/internal/contacts"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/message"
)

// ErrMalformedPayload is returned when the notification itself cannot be decoded.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// ContactResolver finds or creates the contact behind a phone number.
type ContactResolver interface {
	ResolveByPhone(ctx context.Context, phone, hint string) (contacts.Contact, error)
}

// ConversationResolver finds or opens the contact's open conversation.
type ConversationResolver interface {
	ResolveOpen(ctx context.Context, contactID, title string) (conversation.Conversation, error)
}

// MessageStore persists inbound messages and applies delivery statuses.
type MessageStore interface {
	FindByExternalID(ctx context.Context, externalID string) (message.Message, bool, error)
	PersistInbound(ctx context.Context, in message.InboundInput) (message.Message, bool, error)
	ApplyStatus(ctx context.Context, externalID string, status message.Status) (message.Message, bool, error)
}

// Result counts what happened to the events of one notification.
type Result struct {
	Ignored         bool
	Received        int
	Duplicates      int
	StatusesApplied int
	StatusesUnknown int
	Failed          int
}

// Processor turns webhook notifications into contacts, conversations and
// messages. Every event is handled on its own: a failure is logged and the
// remaining events of the batch still run.
type Processor struct {
	contacts      ContactResolver
	conversations ConversationResolver
	messages      MessageStore
	logger        *slog.Logger
}

func NewProcessor(log *slog.Logger, contactResolver ContactResolver, conversationResolver ConversationResolver, messages MessageStore) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		contacts:      contactResolver,
		conversations: conversationResolver,
		messages:      messages,
		logger:        log.With(slog.String("service", "whatsapp_processor")),
	}
}

// HandleNotification processes every message and status event in body.
// Only a body that is not a notification at all yields an error; objects
// and fields other than WhatsApp messages are ignored.
func (p *Processor) HandleNotification(ctx context.Context, body []byte) (Result, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.Object != ObjectWhatsAppBusinessAccount {
		return Result{Ignored: true}, nil
	}

	var res Result
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			if change.Field != FieldMessages {
				continue
			}
			var value ChangeValue
			if err := json.Unmarshal(change.Value, &value); err != nil {
				res.Failed++
				p.logger.Warn("skip malformed change value", slog.String("entry_id", entry.ID), slog.Any("error", err))
				continue
			}
			for _, raw := range value.Messages {
				p.handleMessage(ctx, raw, value, &res)
			}
			for _, raw := range value.Statuses {
				p.handleStatus(ctx, raw, &res)
			}
		}
	}
	return res, nil
}

func (p *Processor) handleMessage(ctx context.Context, raw json.RawMessage, value ChangeValue, res *Result) {
	defer p.recoverEvent("message", res)

	msg, err := ParseMessageEvent(raw)
	if err != nil {
		res.Failed++
		p.logger.Warn("skip invalid message event", slog.Any("error", err), slog.String("event", truncate(raw)))
		return
	}
	log := p.logger.With(
		slog.String("external_id", msg.ID),
		slog.String("from", msg.From),
		slog.String("kind", string(msg.Content.Kind())),
		slog.String("phone_number_id", value.PhoneNumberID()),
	)

	created, err := p.HandleMessage(ctx, msg, value.NameFor(msg.From))
	if err != nil {
		res.Failed++
		log.Error("handle message failed", slog.Any("error", err))
		return
	}
	if !created {
		res.Duplicates++
		log.Debug("duplicate message ignored")
		return
	}
	res.Received++
}

// HandleMessage resolves the sender's contact and open conversation and
// stores msg. created is false when msg was already stored; a redelivery
// of a stored message touches neither contact nor conversation.
func (p *Processor) HandleMessage(ctx context.Context, msg InboundMessage, contactHint string) (bool, error) {
	if _, found, err := p.messages.FindByExternalID(ctx, msg.ID); err != nil {
		return false, fmt.Errorf("lookup message: %w", err)
	} else if found {
		return false, nil
	}
	contact, err := p.contacts.ResolveByPhone(ctx, msg.From, contactHint)
	if err != nil {
		return false, fmt.Errorf("resolve contact: %w", err)
	}
	conv, err := p.conversations.ResolveOpen(ctx, contact.ID, conversation.DefaultTitle(msg.From))
	if err != nil {
		return false, fmt.Errorf("resolve conversation: %w", err)
	}
	_, created, err := p.messages.PersistInbound(ctx, message.InboundInput{
		ConversationID:    conv.ID,
		ExternalMessageID: msg.ID,
		Kind:              msg.Content.Kind(),
		Content:           msg.Content.Summary(),
		Attachment:        msg.Content.Attachment(),
		Metadata:          msg.Raw,
		SentAt:            msg.SentAt,
	})
	if err != nil {
		return false, fmt.Errorf("persist message: %w", err)
	}
	return created, nil
}

func (p *Processor) handleStatus(ctx context.Context, raw json.RawMessage, res *Result) {
	defer p.recoverEvent("status", res)

	st, err := ParseStatusEvent(raw)
	if err != nil {
		res.Failed++
		p.logger.Warn("skip invalid status event", slog.Any("error", err), slog.String("event", truncate(raw)))
		return
	}
	_, found, err := p.messages.ApplyStatus(ctx, st.MessageID, st.Status)
	if err != nil {
		res.Failed++
		p.logger.Error("apply status failed",
			slog.String("external_id", st.MessageID),
			slog.String("status", string(st.Status)),
			slog.Any("error", err),
		)
		return
	}
	if !found {
		res.StatusesUnknown++
		p.logger.Debug("status for unknown message", slog.String("external_id", st.MessageID))
		return
	}
	res.StatusesApplied++
}

func (p *Processor) recoverEvent(kind string, res *Result) {
	if r := recover(); r != nil {
		res.Failed++
		p.logger.Error("event handler panicked", slog.String("event_kind", kind), slog.Any("panic", r))
	}
}

func truncate(raw []byte) string {
	const limit = 512
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}
