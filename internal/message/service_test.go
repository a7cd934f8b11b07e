package message

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
	"github.com/memohai/wadesk/internal/db/store/storetest"
	"github.com/memohai/wadesk/internal/message/event"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func seedConversation(t *testing.T, mem *storetest.Store) string {
	t.Helper()
	ctx := context.Background()
	c, err := mem.CreateContact(ctx, store.CreateContactParams{Phone: "5215512345678", Name: "Ana", ContactType: "prospect"})
	require.NoError(t, err)
	conv, err := mem.CreateConversation(ctx, store.CreateConversationParams{ContactID: c.ID, State: "new", Priority: "medium", Title: "t"})
	require.NoError(t, err)
	return db.UUIDString(conv.ID)
}

func TestPersistInboundIsIdempotent(t *testing.T) {
	mem := storetest.New()
	rec := &recorder{}
	svc := NewService(nil, mem, rec)
	ctx := context.Background()
	convID := seedConversation(t, mem)

	in := InboundInput{
		ConversationID:    convID,
		ExternalMessageID: "wamid.123",
		Kind:              KindText,
		Content:           "Hola",
		Metadata:          json.RawMessage(`{"id":"wamid.123"}`),
	}
	first, created, err := svc.PersistInbound(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DirectionInbound, first.Direction)
	assert.JSONEq(t, `{"id":"wamid.123"}`, string(first.Metadata))

	again, created, err := svc.PersistInbound(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	assert.Len(t, mem.Messages(), 1)
	assert.Equal(t, []event.Type{event.TypeMessageReceived}, rec.types())
}

func TestPersistInboundAttachment(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	msg, _, err := svc.PersistInbound(context.Background(), InboundInput{
		ConversationID:    seedConversation(t, mem),
		ExternalMessageID: "wamid.doc",
		Kind:              KindDocument,
		Content:           "invoice.pdf",
		Attachment:        &Attachment{FileID: "media-1", Filename: "invoice.pdf", MimeType: "application/pdf"},
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "media-1", msg.Attachment.FileID)
	assert.Equal(t, "application/pdf", msg.Attachment.MimeType)
	assert.Nil(t, msg.Metadata)
}

func TestPersistInboundRequiresExternalID(t *testing.T) {
	mem := storetest.New()
	_, _, err := NewService(nil, mem).PersistInbound(context.Background(), InboundInput{ConversationID: seedConversation(t, mem)})
	assert.Error(t, err)
	assert.Empty(t, mem.Messages())
}

func TestPersistInboundStoreError(t *testing.T) {
	mem := storetest.New()
	convID := seedConversation(t, mem)
	mem.Fail = func(op string) error {
		if op == "CreateMessage" {
			return errors.New("db down")
		}
		return nil
	}
	_, _, err := NewService(nil, mem).PersistInbound(context.Background(), InboundInput{ConversationID: convID, ExternalMessageID: "x"})
	assert.ErrorContains(t, err, "db down")
}

func TestApplyStatusTransitions(t *testing.T) {
	mem := storetest.New()
	rec := &recorder{}
	svc := NewService(nil, mem, rec)
	ctx := context.Background()
	_, _, err := svc.PersistInbound(ctx, InboundInput{ConversationID: seedConversation(t, mem), ExternalMessageID: "wamid.1", Kind: KindText, Content: "x"})
	require.NoError(t, err)

	msg, found, err := svc.ApplyStatus(ctx, "wamid.1", StatusDelivered)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotNil(t, msg.DeliveredAt)
	assert.Nil(t, msg.ReadAt)

	msg, _, err = svc.ApplyStatus(ctx, "wamid.1", StatusRead)
	require.NoError(t, err)
	assert.NotNil(t, msg.DeliveredAt)
	assert.NotNil(t, msg.ReadAt)
	assert.Equal(t, "read", msg.DeliveryStatus)

	msg, _, err = svc.ApplyStatus(ctx, "wamid.1", StatusFailed)
	require.NoError(t, err)
	assert.Nil(t, msg.DeliveredAt)
	assert.Nil(t, msg.ReadAt)
	assert.Equal(t, "failed", msg.DeliveryStatus)

	assert.Equal(t, []event.Type{
		event.TypeMessageReceived,
		event.TypeMessageStatus,
		event.TypeMessageStatus,
		event.TypeMessageStatus,
	}, rec.types())
}

func TestApplyStatusReadBeforeDelivered(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	_, _, err := svc.PersistInbound(ctx, InboundInput{ConversationID: seedConversation(t, mem), ExternalMessageID: "wamid.2", Kind: KindText, Content: "x"})
	require.NoError(t, err)

	msg, _, err := svc.ApplyStatus(ctx, "wamid.2", StatusRead)
	require.NoError(t, err)
	assert.NotNil(t, msg.ReadAt)
	assert.Nil(t, msg.DeliveredAt)

	msg, _, err = svc.ApplyStatus(ctx, "wamid.2", StatusDelivered)
	require.NoError(t, err)
	assert.NotNil(t, msg.ReadAt)
	assert.NotNil(t, msg.DeliveredAt)
}

func TestApplyStatusNeverMovesBackward(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	_, _, err := svc.PersistInbound(ctx, InboundInput{ConversationID: seedConversation(t, mem), ExternalMessageID: "wamid.3", Kind: KindText, Content: "x"})
	require.NoError(t, err)

	first := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	_, _, err = svc.ApplyStatus(ctx, "wamid.3", StatusDelivered)
	require.NoError(t, err)
	_, _, err = svc.ApplyStatus(ctx, "wamid.3", StatusRead)
	require.NoError(t, err)

	svc.now = func() time.Time { return first.Add(time.Hour) }
	msg, _, err := svc.ApplyStatus(ctx, "wamid.3", StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, "read", msg.DeliveryStatus)
	require.NotNil(t, msg.DeliveredAt)
	assert.True(t, msg.DeliveredAt.Equal(first))

	msg, _, err = svc.ApplyStatus(ctx, "wamid.3", StatusSent)
	require.NoError(t, err)
	assert.Equal(t, "read", msg.DeliveryStatus)
	require.NotNil(t, msg.ReadAt)
	assert.True(t, msg.ReadAt.Equal(first))
}

func TestFindByExternalID(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	stored, _, err := svc.PersistInbound(ctx, InboundInput{ConversationID: seedConversation(t, mem), ExternalMessageID: "wamid.4", Kind: KindText, Content: "x"})
	require.NoError(t, err)

	got, found, err := svc.FindByExternalID(ctx, "wamid.4")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, stored.ID, got.ID)

	_, found, err = svc.FindByExternalID(ctx, "wamid.none")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestApplyStatusUnknownMessage(t *testing.T) {
	mem := storetest.New()
	rec := &recorder{}
	svc := NewService(nil, mem, rec)
	_, found, err := svc.ApplyStatus(context.Background(), "wamid.nope", StatusDelivered)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, mem.Messages())
	assert.Empty(t, rec.types())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"sent", "delivered", "read", "failed"} {
		_, ok := ParseStatus(s)
		assert.True(t, ok, s)
	}
	_, ok := ParseStatus("deleted")
	assert.False(t, ok)
}

func TestOutboundListAndRead(t *testing.T) {
	mem := storetest.New()
	svc := NewService(nil, mem)
	ctx := context.Background()
	convID := seedConversation(t, mem)

	_, _, err := svc.PersistInbound(ctx, InboundInput{ConversationID: convID, ExternalMessageID: "in.1", Kind: KindText, Content: "hi"})
	require.NoError(t, err)
	out, err := svc.PersistOutbound(ctx, OutboundInput{ConversationID: convID, ExternalMessageID: "out.1", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, DirectionOutbound, out.Direction)
	assert.Equal(t, "sent", out.DeliveryStatus)

	_, err = svc.PersistOutbound(ctx, OutboundInput{ConversationID: convID, Content: "  "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	list, err := svc.ListByConversation(ctx, convID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	n, err := svc.MarkConversationRead(ctx, convID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := svc.Get(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)

	_, err = svc.MarkRead(ctx, "0b7c1f5e-7a51-4a4a-9df1-0d1b0a3c9e11")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
