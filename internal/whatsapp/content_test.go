package whatsapp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/message"
)

func TestParseMessageEventContent(t *testing.T) {
	cases := []struct {
		name       string
		raw        string
		kind       message.Kind
		summary    string
		attachment *message.Attachment
	}{
		{
			name:    "text",
			raw:     `{"id":"w1","from":"5215512345678","type":"text","text":{"body":"Hola"}}`,
			kind:    message.KindText,
			summary: "Hola",
		},
		{
			name:       "image with caption",
			raw:        `{"id":"w2","from":"1","type":"image","image":{"id":"m1","mime_type":"image/jpeg","caption":"look"}}`,
			kind:       message.KindImage,
			summary:    "look",
			attachment: &message.Attachment{FileID: "m1", MimeType: "image/jpeg"},
		},
		{
			name:       "image without caption",
			raw:        `{"id":"w3","from":"1","type":"image","image":{"id":"m1","mime_type":"image/png"}}`,
			kind:       message.KindImage,
			summary:    "Image",
			attachment: &message.Attachment{FileID: "m1", MimeType: "image/png"},
		},
		{
			name:       "document falls back to filename",
			raw:        `{"id":"w4","from":"1","type":"document","document":{"id":"d1","mime_type":"application/pdf","filename":"invoice.pdf"}}`,
			kind:       message.KindDocument,
			summary:    "invoice.pdf",
			attachment: &message.Attachment{FileID: "d1", Filename: "invoice.pdf", MimeType: "application/pdf"},
		},
		{
			name:       "bare document",
			raw:        `{"id":"w5","from":"1","type":"document","document":{"id":"d1","mime_type":"application/pdf"}}`,
			kind:       message.KindDocument,
			summary:    "Document",
			attachment: &message.Attachment{FileID: "d1", MimeType: "application/pdf"},
		},
		{
			name:       "audio",
			raw:        `{"id":"w6","from":"1","type":"audio","audio":{"id":"a1","mime_type":"audio/ogg"}}`,
			kind:       message.KindAudio,
			summary:    "Audio message",
			attachment: &message.Attachment{FileID: "a1", MimeType: "audio/ogg"},
		},
		{
			name:       "video",
			raw:        `{"id":"w7","from":"1","type":"video","video":{"id":"v1","mime_type":"video/mp4"}}`,
			kind:       message.KindVideo,
			summary:    "Video",
			attachment: &message.Attachment{FileID: "v1", MimeType: "video/mp4"},
		},
		{
			name:    "location",
			raw:     `{"id":"w8","from":"1","type":"location","location":{"latitude":19.4326,"longitude":-99.1332}}`,
			kind:    message.KindLocation,
			summary: "Location: 19.4326, -99.1332",
		},
		{
			name:    "unknown type kept verbatim",
			raw:     `{"id":"w9","from":"1","type":"sticker","sticker":{"id":"s1"}}`,
			kind:    message.KindOther,
			summary: "Message of type: sticker",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseMessageEvent(json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, msg.Content.Kind())
			assert.Equal(t, tc.summary, msg.Content.Summary())
			assert.Equal(t, tc.attachment, msg.Content.Attachment())
		})
	}
}

func TestParseMessageEventInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":          `[1,2]`,
		"missing id":        `{"from":"1","type":"text","text":{"body":"x"}}`,
		"missing from":      `{"id":"w","type":"text","text":{"body":"x"}}`,
		"missing type":      `{"id":"w","from":"1"}`,
		"text no payload":   `{"id":"w","from":"1","type":"text"}`,
		"image no media id": `{"id":"w","from":"1","type":"image","image":{"mime_type":"image/png"}}`,
		"location no coord": `{"id":"w","from":"1","type":"location","location":{"latitude":1}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessageEvent(json.RawMessage(raw))
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestParseMessageEventTimestamp(t *testing.T) {
	msg, err := ParseMessageEvent(json.RawMessage(`{"id":"w","from":"1","timestamp":"1700000000","type":"text","text":{"body":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), msg.SentAt.Unix())

	msg, err = ParseMessageEvent(json.RawMessage(`{"id":"w","from":"1","timestamp":"soon","type":"text","text":{"body":"x"}}`))
	require.NoError(t, err)
	assert.True(t, msg.SentAt.IsZero())
}

func TestParseStatusEvent(t *testing.T) {
	st, err := ParseStatusEvent(json.RawMessage(`{"id":"wamid.1","status":"read","recipient_id":"521"}`))
	require.NoError(t, err)
	assert.Equal(t, message.StatusRead, st.Status)
	assert.Equal(t, "wamid.1", st.MessageID)

	_, err = ParseStatusEvent(json.RawMessage(`{"id":"wamid.1","status":"deleted"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = ParseStatusEvent(json.RawMessage(`{"status":"read"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestNameFor(t *testing.T) {
	v := ChangeValue{Contacts: rawList([]string{
		`{"wa_id":"111","profile":{"name":"Ana"}}`,
		`{"wa_id":"222","profile":{"name":"Luis"}}`,
	})}
	assert.Equal(t, "Luis", v.NameFor("222"))
	assert.Equal(t, "Ana", v.NameFor("999"))
	assert.Empty(t, ChangeValue{}.NameFor("1"))

	broken := ChangeValue{Contacts: rawList([]string{
		`{"wa_id":"111","profile":{"name":123}}`,
		`{"wa_id":"333","profile":{"name":"Eva"}}`,
	})}
	assert.Equal(t, "Eva", broken.NameFor("111"))
}

func TestPhoneNumberID(t *testing.T) {
	v := ChangeValue{Metadata: json.RawMessage(`{"display_phone_number":"15550001","phone_number_id":"pn-1"}`)}
	assert.Equal(t, "pn-1", v.PhoneNumberID())
	assert.Empty(t, ChangeValue{Metadata: json.RawMessage(`{"phone_number_id":7}`)}.PhoneNumberID())
	assert.Empty(t, ChangeValue{}.PhoneNumberID())
}
