package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/contacts"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store/storetest"
	"github.com/memohai/wadesk/internal/message"
	"github.com/memohai/wadesk/internal/message/event"
	"github.com/memohai/wadesk/internal/server"
	"github.com/memohai/wadesk/internal/settings"
	"github.com/memohai/wadesk/internal/tags"
	"github.com/memohai/wadesk/internal/teams"
	"github.com/memohai/wadesk/internal/whatsapp"
)

const testSecret = "test-jwt-secret"

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, to+":"+body)
	return fmt.Sprintf("wamid.out.%d", len(f.sent)), nil
}

type env struct {
	mem      *storetest.Store
	accounts *accounts.Service
	hub      *event.Hub
	sender   *fakeSender
	handler  http.Handler
}

type envOptions struct {
	appSecret      string
	loginPerMinute int
	logs           io.Writer
}

func newEnv(t *testing.T, opts envOptions) *env {
	t.Helper()
	if opts.logs == nil {
		opts.logs = io.Discard
	}
	log := slog.New(slog.NewTextHandler(opts.logs, nil))
	mem := storetest.New()
	hub := event.NewHub()

	contactSvc := contacts.NewService(log, mem)
	convSvc := conversation.NewService(log, mem)
	msgSvc := message.NewService(log, mem, hub)
	accountSvc := accounts.NewService(log, mem)
	activitySvc := activity.NewService(log, mem)
	teamSvc := teams.NewService(log, mem)
	tagSvc := tags.NewService(log, mem)
	settingsSvc := settings.NewService(log, mem)
	processor := whatsapp.NewProcessor(log, contactSvc, convSvc, msgSvc)
	sender := &fakeSender{}
	waConfig := settings.NewWhatsAppConfigSource(log, config.WhatsAppConfig{VerifyToken: "verify-me", AppSecret: opts.appSecret}, settingsSvc)

	srv := server.NewServer(log, server.Options{
		JWTSecret:   testSecret,
		Active:      accountSvc,
		Validator:   NewValidator(),
		PublicPaths: PublicPaths,
	},
		NewPingHandler(log, nil),
		NewAuthHandler(log, accountSvc, activitySvc, testSecret, time.Hour, opts.loginPerMinute),
		NewUsersHandler(log, accountSvc, activitySvc),
		NewTeamsHandler(log, teamSvc, accountSvc, activitySvc),
		NewContactsHandler(log, contactSvc, convSvc, accountSvc, activitySvc),
		NewConversationsHandler(log, convSvc, contactSvc, msgSvc, tagSvc, accountSvc, activitySvc, sender),
		NewMessageHandler(log, msgSvc, convSvc, accountSvc),
		NewTagsHandler(log, tagSvc, accountSvc, activitySvc),
		NewSettingsHandler(log, settingsSvc, accountSvc, activitySvc),
		NewActivityHandler(log, activitySvc, accountSvc),
		NewEventsHandler(log, hub, convSvc, accountSvc),
		NewWhatsAppHandler(log, processor, waConfig, sender, accountSvc, activitySvc),
	)
	return &env{mem: mem, accounts: accountSvc, hub: hub, sender: sender, handler: srv.Handler()}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) createAccount(t *testing.T, email, role string) accounts.Account {
	t.Helper()
	account, err := e.accounts.Create(context.Background(), accounts.CreateAccountRequest{
		Name:     strings.Split(email, "@")[0],
		Email:    email,
		Password: "password123",
		Role:     role,
	})
	require.NoError(t, err)
	return account
}

func (e *env) login(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func inboundText(id, from, body string) string {
	return fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"waba","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","contacts":[{"profile":{"name":"Ana"}}],"messages":[{"id":%q,"from":%q,"type":"text","text":{"body":%q}}]}}]}]}`, id, from, body)
}

func TestWebhookVerify(t *testing.T) {
	e := newEnv(t, envOptions{})

	rec := e.do(t, http.MethodGet, "/webhook?hub.challenge=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=abc", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, path := range WebhookPaths {
		rec = e.do(t, http.MethodGet, path+"?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1158201444", rec.Body.String())
	}
}

func TestWebhookReceiveStoresMessage(t *testing.T) {
	e := newEnv(t, envOptions{})

	body := inboundText("wamid.in.1", "5215550001", "hola")
	rec := e.do(t, http.MethodPost, "/webhook", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WebhookAck, rec.Body.String())

	// Redelivery is acknowledged without a second row.
	rec = e.do(t, http.MethodPost, "/api/whatsapp/webhook", "", body)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := e.mem.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", msgs[0].Content)
	require.Len(t, e.mem.Contacts(), 1)
	assert.Equal(t, "Ana", e.mem.Contacts()[0].Name)
	require.Len(t, e.mem.Conversations(), 1)
}

func TestWebhookMalformedBodyIsAcknowledged(t *testing.T) {
	e := newEnv(t, envOptions{})

	for _, body := range []string{"not json", `{"object":"page","entry":[]}`, `{}`} {
		rec := e.do(t, http.MethodPost, "/webhook", "", body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.Equal(t, WebhookAck, rec.Body.String())
	}
	assert.Empty(t, e.mem.Messages())
}

func TestWebhookSignature(t *testing.T) {
	e := newEnv(t, envOptions{appSecret: "app-secret"})
	body := inboundText("wamid.sig.1", "5215550002", "signed")

	rec := e.do(t, http.MethodPost, "/webhook", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(whatsapp.SignatureHeader, "sha256=deadbeef")
	bad := httptest.NewRecorder()
	e.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
	assert.Empty(t, e.mem.Messages())

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(whatsapp.SignatureHeader, whatsapp.Sign([]byte(body), "app-secret"))
	good := httptest.NewRecorder()
	e.handler.ServeHTTP(good, req)
	assert.Equal(t, http.StatusOK, good.Code)
	assert.Len(t, e.mem.Messages(), 1)
}

func TestLoginAndMe(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.createAccount(t, "admin@example.com", accounts.RoleAdmin)

	rec := e.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "admin@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := e.login(t, "admin@example.com")
	rec = e.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me accounts.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "admin@example.com", me.Email)
	assert.Equal(t, accounts.RoleAdmin, me.Role)
}

func TestDeactivatedTokenRejected(t *testing.T) {
	e := newEnv(t, envOptions{})
	agent := e.createAccount(t, "agent@example.com", accounts.RoleAgent)
	token := e.login(t, "agent@example.com")

	_, err := e.accounts.Deactivate(context.Background(), agent.ID)
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	e := newEnv(t, envOptions{loginPerMinute: 2})
	creds := LoginRequest{Email: "nobody@example.com", Password: "whatever1"}

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusTooManyRequests, e.do(t, http.MethodPost, "/auth/login", "", creds).Code)
}

func TestSendMessage(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.createAccount(t, "admin@example.com", accounts.RoleAdmin)
	token := e.login(t, "admin@example.com")

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/webhook", "", inboundText("wamid.in.2", "5215550003", "need help")).Code)
	require.Len(t, e.mem.Conversations(), 1)
	convID := conversationID(t, e)

	rec := e.do(t, http.MethodPost, "/conversations/"+convID+"/messages", token, SendMessageRequest{Content: "on it"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg message.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, message.DirectionOutbound, msg.Direction)
	assert.Equal(t, "wamid.out.1", msg.ExternalMessageID)
	assert.Equal(t, []string{"5215550003:on it"}, e.sender.sent)

	rec = e.do(t, http.MethodGet, "/conversations/"+convID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list message.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 2, list.Total)

	rec = e.do(t, http.MethodPost, "/conversations/"+convID+"/messages", token, SendMessageRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageProviderFailure(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.createAccount(t, "admin@example.com", accounts.RoleAdmin)
	token := e.login(t, "admin@example.com")
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/webhook", "", inboundText("wamid.in.3", "5215550004", "hi")).Code)
	convID := conversationID(t, e)

	e.sender.err = &whatsapp.APIError{Status: http.StatusBadRequest, Body: `{"error":"bad"}`}
	rec := e.do(t, http.MethodPost, "/conversations/"+convID+"/messages", token, SendMessageRequest{Content: "x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	e.sender.err = whatsapp.ErrNotConfigured
	rec = e.do(t, http.MethodPost, "/conversations/"+convID+"/messages", token, SendMessageRequest{Content: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	e.sender.err = errors.New("dial tcp: timeout")
	rec = e.do(t, http.MethodPost, "/conversations/"+convID+"/messages", token, SendMessageRequest{Content: "x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	assert.Len(t, e.mem.Messages(), 1)
}

func TestAgentCannotSeeUnassignedConversation(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.createAccount(t, "agent@example.com", accounts.RoleAgent)
	token := e.login(t, "agent@example.com")
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/webhook", "", inboundText("wamid.in.4", "5215550005", "hi")).Code)
	convID := conversationID(t, e)

	rec := e.do(t, http.MethodGet, "/conversations/"+convID, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/conversations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list conversation.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Items)
}

func TestHealthWithoutDatabase(t *testing.T) {
	e := newEnv(t, envOptions{})

	rec := e.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "unknown", resp.Database)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/ping", "", nil).Code)
}

func conversationID(t *testing.T, e *env) string {
	t.Helper()
	convs := e.mem.Conversations()
	require.NotEmpty(t, convs)
	return db.UUIDString(convs[0].ID)
}
