package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/contacts"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
	"github.com/memohai/wadesk/internal/db/store/storetest"
	"github.com/memohai/wadesk/internal/message"
)

type fixture struct {
	mem       *storetest.Store
	processor *Processor
}

func newFixture() fixture {
	mem := storetest.New()
	return fixture{
		mem: mem,
		processor: NewProcessor(nil,
			contacts.NewService(nil, mem),
			conversation.NewService(nil, mem),
			message.NewService(nil, mem),
		),
	}
}

func (f fixture) deliver(t *testing.T, body string) Result {
	t.Helper()
	res, err := f.processor.HandleNotification(context.Background(), []byte(body))
	require.NoError(t, err)
	return res
}

func notification(messages, statuses []string, contactName string) string {
	value := map[string]any{"messaging_product": "whatsapp"}
	if len(messages) > 0 {
		value["messages"] = rawList(messages)
	}
	if len(statuses) > 0 {
		value["statuses"] = rawList(statuses)
	}
	if contactName != "" {
		value["contacts"] = []map[string]any{{"profile": map[string]string{"name": contactName}}}
	}
	body, _ := json.Marshal(map[string]any{
		"object": ObjectWhatsAppBusinessAccount,
		"entry": []map[string]any{{
			"id":      "waba-1",
			"changes": []map[string]any{{"field": FieldMessages, "value": value}},
		}},
	})
	return string(body)
}

func rawList(items []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, s := range items {
		out = append(out, json.RawMessage(s))
	}
	return out
}

func textEvent(id, from, body string) string {
	return fmt.Sprintf(`{"id":%q,"from":%q,"type":"text","text":{"body":%q}}`, id, from, body)
}

func statusEvent(id, status string) string {
	return fmt.Sprintf(`{"id":%q,"status":%q}`, id, status)
}

func messagesByExternalID(mem *storetest.Store, id string) []store.Message {
	var out []store.Message
	for _, m := range mem.Messages() {
		if m.ExternalMessageID.String == id {
			out = append(out, m)
		}
	}
	return out
}

func TestIdempotentIngestionAcrossCalls(t *testing.T) {
	f := newFixture()
	body := notification([]string{textEvent("wamid.123", "5215512345678", "Hola")}, nil, "")

	first := f.deliver(t, body)
	second := f.deliver(t, body)

	assert.Equal(t, 1, first.Received)
	assert.Equal(t, 1, second.Duplicates)
	assert.Zero(t, second.Failed)
	assert.Len(t, messagesByExternalID(f.mem, "wamid.123"), 1)
}

func TestIdempotentIngestionWithinBatch(t *testing.T) {
	f := newFixture()
	ev := textEvent("wamid.dup", "5215512345678", "Hola")
	res := f.deliver(t, notification([]string{ev, ev}, nil, ""))

	assert.Equal(t, 1, res.Received)
	assert.Equal(t, 1, res.Duplicates)
	assert.Len(t, f.mem.Messages(), 1)
}

func TestNewContactNewConversation(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.1", "5215512345678", "Hola")}, nil, "Ana"))

	cs := f.mem.Contacts()
	require.Len(t, cs, 1)
	assert.Equal(t, "5215512345678", cs[0].Phone)
	assert.Equal(t, "Ana", cs[0].Name)
	assert.Equal(t, contacts.TypeProspect, cs[0].ContactType)
	assert.True(t, cs[0].LastInteractionAt.Valid)

	convs := f.mem.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, cs[0].ID, convs[0].ContactID)
	assert.Equal(t, string(conversation.StateNew), convs[0].State)
	assert.Equal(t, "Conversation with 5215512345678", convs[0].Title)

	msgs := f.mem.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, convs[0].ID, msgs[0].ConversationID)
	assert.Equal(t, "inbound", msgs[0].Direction)
	assert.Equal(t, "Hola", msgs[0].Content)
	assert.JSONEq(t, textEvent("wamid.1", "5215512345678", "Hola"), string(msgs[0].Metadata))
}

func TestContactNameFallsBackToPhone(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.1", "5215512345678", "Hola")}, nil, ""))
	require.Len(t, f.mem.Contacts(), 1)
	assert.Equal(t, "5215512345678", f.mem.Contacts()[0].Name)
}

func TestConversationReuse(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.1", "5215512345678", "uno")}, nil, ""))
	before := f.mem.Conversations()
	require.Len(t, before, 1)

	time.Sleep(2 * time.Millisecond)
	f.deliver(t, notification([]string{textEvent("wamid.2", "5215512345678", "dos")}, nil, ""))

	after := f.mem.Conversations()
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.True(t, after[0].LastActivityAt.Time.After(before[0].LastActivityAt.Time))
	assert.Len(t, f.mem.Messages(), 2)
	for _, m := range f.mem.Messages() {
		assert.Equal(t, after[0].ID, m.ConversationID)
	}
}

func TestConversationReopensAfterClose(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.1", "5215512345678", "uno")}, nil, ""))
	first := f.mem.Conversations()[0]
	f.mem.SetConversationState(first.ID, string(conversation.StateClosed))

	f.deliver(t, notification([]string{textEvent("wamid.2", "5215512345678", "dos")}, nil, ""))

	convs := f.mem.Conversations()
	require.Len(t, convs, 2)
	var open store.Conversation
	for _, c := range convs {
		if c.ID != first.ID {
			open = c
		}
	}
	assert.Equal(t, string(conversation.StateNew), open.State)
	m := messagesByExternalID(f.mem, "wamid.2")
	require.Len(t, m, 1)
	assert.Equal(t, open.ID, m[0].ConversationID)
}

func TestRedeliveryAfterCloseOpensNothing(t *testing.T) {
	f := newFixture()
	body := notification([]string{textEvent("wamid.1", "5215512345678", "uno")}, nil, "")
	f.deliver(t, body)
	f.mem.SetConversationState(f.mem.Conversations()[0].ID, string(conversation.StateClosed))

	res := f.deliver(t, body)

	assert.Equal(t, 1, res.Duplicates)
	assert.Len(t, f.mem.Conversations(), 1)
	assert.Len(t, f.mem.Messages(), 1)
}

func TestMalformedContactHintKeepsSiblings(t *testing.T) {
	f := newFixture()
	body := `{"object":"whatsapp_business_account","entry":[{"id":"waba-1","changes":[{"field":"messages","value":{` +
		`"metadata":{"phone_number_id":42},` +
		`"contacts":[{"profile":{"name":123}}],` +
		`"messages":[` + textEvent("wamid.1", "5215512345678", "hola") + `],` +
		`"statuses":[` + statusEvent("wamid.1", "delivered") + `]}}]}]}`

	res := f.deliver(t, body)

	assert.Equal(t, 1, res.Received)
	assert.Equal(t, 1, res.StatusesApplied)
	assert.Zero(t, res.Failed)
	require.Len(t, f.mem.Contacts(), 1)
	assert.Equal(t, "5215512345678", f.mem.Contacts()[0].Name)
	assert.Len(t, messagesByExternalID(f.mem, "wamid.1"), 1)
}

func TestStatusDeliveredThenRead(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.1", "5215512345678", "x")}, nil, ""))

	res := f.deliver(t, notification(nil, []string{statusEvent("wamid.1", "delivered")}, ""))
	assert.Equal(t, 1, res.StatusesApplied)
	f.deliver(t, notification(nil, []string{statusEvent("wamid.1", "read")}, ""))

	m := messagesByExternalID(f.mem, "wamid.1")[0]
	assert.True(t, m.DeliveredAt.Valid)
	assert.True(t, m.ReadAt.Valid)
}

func TestStatusReadBeforeDelivered(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.1", "5215512345678", "x")}, nil, ""))

	f.deliver(t, notification(nil, []string{statusEvent("wamid.1", "read")}, ""))
	m := messagesByExternalID(f.mem, "wamid.1")[0]
	assert.True(t, m.ReadAt.Valid)
	assert.False(t, m.DeliveredAt.Valid)

	f.deliver(t, notification(nil, []string{statusEvent("wamid.1", "delivered")}, ""))
	m = messagesByExternalID(f.mem, "wamid.1")[0]
	assert.True(t, m.ReadAt.Valid)
	assert.True(t, m.DeliveredAt.Valid)
}

func TestStatusFailedClearsTimestamps(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.1", "5215512345678", "x")}, nil, ""))
	f.deliver(t, notification(nil, []string{statusEvent("wamid.1", "delivered"), statusEvent("wamid.1", "read")}, ""))
	f.deliver(t, notification(nil, []string{statusEvent("wamid.1", "failed")}, ""))

	m := messagesByExternalID(f.mem, "wamid.1")[0]
	assert.False(t, m.DeliveredAt.Valid)
	assert.False(t, m.ReadAt.Valid)
	assert.Equal(t, "failed", m.DeliveryStatus.String)
}

func TestStatusForUnknownMessage(t *testing.T) {
	f := newFixture()
	f.deliver(t, notification([]string{textEvent("wamid.known", "5215512345678", "x")}, nil, ""))

	res := f.deliver(t, notification(nil, []string{statusEvent("wamid.unknown", "delivered")}, ""))
	assert.Equal(t, 1, res.StatusesUnknown)
	assert.Zero(t, res.Failed)

	require.Len(t, f.mem.Messages(), 1)
	known := f.mem.Messages()[0]
	assert.False(t, known.DeliveredAt.Valid)
	assert.False(t, known.DeliveryStatus.Valid)
}

func TestConcurrentFirstContact(t *testing.T) {
	f := newFixture()
	const phone = "5215599999999"

	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := notification([]string{textEvent(fmt.Sprintf("wamid.race.%d", i), phone, "hola")}, nil, "")
			_, err := f.processor.HandleNotification(context.Background(), []byte(body))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cs := f.mem.Contacts()
	require.Len(t, cs, 1)
	convs := f.mem.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, cs[0].ID, convs[0].ContactID)

	msgs := f.mem.Messages()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, convs[0].ID, m.ConversationID)
	}
}

func TestBatchFailureIsolation(t *testing.T) {
	f := newFixture()
	malformed := `{"id":"wamid.bad","type":"text","text":{"body":"no sender"}}`
	good := textEvent("wamid.good", "5215512345678", "ok")

	res := f.deliver(t, notification([]string{malformed, `"not an object"`, good}, []string{`{"status":"read"}`}, ""))

	assert.Equal(t, 1, res.Received)
	assert.Equal(t, 3, res.Failed)
	assert.Len(t, messagesByExternalID(f.mem, "wamid.good"), 1)
	assert.Empty(t, messagesByExternalID(f.mem, "wamid.bad"))
}

func TestStoreFailureIsIsolatedPerEvent(t *testing.T) {
	f := newFixture()
	var calls int
	var mu sync.Mutex
	f.mem.Fail = func(op string) error {
		if op != "CreateMessage" {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	res := f.deliver(t, notification([]string{
		textEvent("wamid.a", "5215511111111", "a"),
		textEvent("wamid.b", "5215522222222", "b"),
	}, nil, ""))

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Received)
	assert.Empty(t, messagesByExternalID(f.mem, "wamid.a"))
	assert.Len(t, messagesByExternalID(f.mem, "wamid.b"), 1)
}

func TestIgnoresOtherObjectsAndFields(t *testing.T) {
	f := newFixture()
	res := f.deliver(t, `{"object":"page","entry":[{"changes":[{"field":"messages","value":{"messages":[`+textEvent("w", "1", "x")+`]}}]}]}`)
	assert.True(t, res.Ignored)

	res = f.deliver(t, `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"account_update","value":{"messages":[`+textEvent("w", "1", "x")+`]}}]}]}`)
	assert.False(t, res.Ignored)
	assert.Zero(t, res.Received)
	assert.Empty(t, f.mem.Messages())
}

func TestMalformedTopLevelPayload(t *testing.T) {
	f := newFixture()
	_, err := f.processor.HandleNotification(context.Background(), []byte(`{"object":`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	res, err := f.processor.HandleNotification(context.Background(), []byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":"oops"}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
}

type panickingStore struct{ MessageStore }

func (panickingStore) PersistInbound(context.Context, message.InboundInput) (message.Message, bool, error) {
	panic("boom")
}

func TestPanicInOneEventDoesNotAbortBatch(t *testing.T) {
	mem := storetest.New()
	msgs := message.NewService(nil, mem)
	p := NewProcessor(nil, contacts.NewService(nil, mem), conversation.NewService(nil, mem), panickingStore{msgs})

	res, err := p.HandleNotification(context.Background(), []byte(notification(
		[]string{textEvent("wamid.1", "1", "x")},
		[]string{statusEvent("wamid.none", "read")},
		"",
	)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.StatusesUnknown)
}

func TestHandleMessageStoresAttachment(t *testing.T) {
	f := newFixture()
	raw := `{"id":"wamid.doc","from":"5215512345678","type":"document","document":{"id":"media-9","mime_type":"application/pdf","filename":"cv.pdf"}}`
	f.deliver(t, notification([]string{raw}, nil, ""))

	m := messagesByExternalID(f.mem, "wamid.doc")
	require.Len(t, m, 1)
	assert.Equal(t, "document", m[0].Kind)
	assert.Equal(t, "cv.pdf", m[0].Content)
	assert.Equal(t, "media-9", m[0].AttachmentFileID.String)
	assert.Equal(t, "application/pdf", m[0].AttachmentMimeType.String)
	assert.True(t, strings.Contains(string(m[0].Metadata), "media-9"))
	assert.Equal(t, db.UUIDString(f.mem.Conversations()[0].ID), db.UUIDString(m[0].ConversationID))
}
