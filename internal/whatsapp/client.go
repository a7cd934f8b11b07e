package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/version"
)

// ErrNotConfigured is returned when the access token or phone number id is missing.
var ErrNotConfigured = errors.New("whatsapp api not configured")

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error (status %d): %s", e.Status, e.Body)
}

// ConfigSource yields the provider configuration for one call.
type ConfigSource interface {
	WhatsApp(ctx context.Context) config.WhatsAppConfig
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig config.WhatsAppConfig

func (s StaticConfig) WhatsApp(context.Context) config.WhatsAppConfig {
	return config.WhatsAppConfig(s)
}

// Client sends messages through the Cloud API. Credentials are read from
// its ConfigSource on every send.
type Client struct {
	source     ConfigSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client over cfg. A source, when given, replaces cfg for
// credential lookups; cfg still sets the HTTP timeout.
func NewClient(log *slog.Logger, cfg config.WhatsAppConfig, sources ...ConfigSource) *Client {
	if log == nil {
		log = slog.Default()
	}
	var source ConfigSource = StaticConfig(cfg)
	if len(sources) > 0 && sources[0] != nil {
		source = sources[0]
	}
	return &Client{
		source:     source,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     log.With(slog.String("client", "whatsapp")),
	}
}

// Configured reports whether sending is possible.
func (c *Client) Configured(ctx context.Context) bool {
	return configured(c.source.WhatsApp(ctx))
}

func configured(cfg config.WhatsAppConfig) bool {
	return strings.TrimSpace(cfg.AccessToken) != "" && strings.TrimSpace(cfg.PhoneNumberID) != ""
}

// SendText sends body to the phone number to and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	cfg := c.source.WhatsApp(ctx)
	if !configured(cfg) {
		return "", ErrNotConfigured
	}
	payload, err := json.Marshal(SendMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             wireText{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages",
		strings.TrimRight(cfg.APIBaseURL, "/"),
		strings.Trim(cfg.APIVersion, "/"),
		cfg.PhoneNumberID,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("send rejected", slog.Int("status", resp.StatusCode), slog.String("to", to))
		return "", &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var out SendMessageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", errors.New("whatsapp api response carries no message id")
	}
	return out.Messages[0].ID, nil
}
