package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/config"
)

func TestSendText(t *testing.T) {
	var got SendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v17.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.out"}]}`))
	}))
	defer srv.Close()

	client := NewClient(nil, config.WhatsAppConfig{
		APIBaseURL:    srv.URL + "/",
		APIVersion:    "v17.0",
		AccessToken:   "token",
		PhoneNumberID: "12345",
	})
	id, err := client.SendText(context.Background(), "5215512345678", "hola")
	require.NoError(t, err)
	assert.Equal(t, "wamid.out", id)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "5215512345678", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "hola", got.Text.Body)
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}))
	defer srv.Close()

	client := NewClient(nil, config.WhatsAppConfig{APIBaseURL: srv.URL, APIVersion: "v17.0", AccessToken: "t", PhoneNumberID: "1"})
	_, err := client.SendText(context.Background(), "1", "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid recipient")
}

func TestSendTextNotConfigured(t *testing.T) {
	client := NewClient(nil, config.WhatsAppConfig{AccessToken: "t"})
	assert.False(t, client.Configured(context.Background()))
	_, err := client.SendText(context.Background(), "1", "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type switchableConfig struct{ cfg config.WhatsAppConfig }

func (s *switchableConfig) WhatsApp(context.Context) config.WhatsAppConfig { return s.cfg }

func TestSendTextReadsConfigPerCall(t *testing.T) {
	var paths, auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		auths = append(auths, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	}))
	defer srv.Close()

	src := &switchableConfig{cfg: config.WhatsAppConfig{APIBaseURL: srv.URL, APIVersion: "v17.0"}}
	client := NewClient(nil, config.WhatsAppConfig{}, src)
	ctx := context.Background()

	_, err := client.SendText(ctx, "1", "x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	src.cfg.AccessToken, src.cfg.PhoneNumberID = "first", "111"
	_, err = client.SendText(ctx, "1", "x")
	require.NoError(t, err)
	src.cfg.AccessToken, src.cfg.PhoneNumberID = "second", "222"
	_, err = client.SendText(ctx, "1", "x")
	require.NoError(t, err)

	assert.Equal(t, []string{"/v17.0/111/messages", "/v17.0/222/messages"}, paths)
	assert.Equal(t, []string{"Bearer first", "Bearer second"}, auths)
}
