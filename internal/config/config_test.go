package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultPGDatabase, cfg.Postgres.Database)
	assert.Equal(t, DefaultWhatsAppAPIVersion, cfg.WhatsApp.APIVersion)
	assert.Equal(t, 24*time.Hour, cfg.Auth.ExpiresIn())
	assert.Empty(t, cfg.RabbitMQ.URL)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[auth]
jwt_secret = "s3cret"
jwt_expires_in = "2h"

[whatsapp]
access_token = "token"
phone_number_id = "12345"
verify_token = "verify"

[sweeper]
schedule = ""
resolved_ttl = "bogus"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.ExpiresIn())
	assert.Equal(t, "12345", cfg.WhatsApp.PhoneNumberID)
	assert.Equal(t, DefaultWhatsAppAPIBaseURL, cfg.WhatsApp.APIBaseURL)
	assert.Empty(t, cfg.Sweeper.Schedule)
	assert.Equal(t, 72*time.Hour, cfg.Sweeper.TTL())
}

func TestLoadInvalidToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestWhatsAppTimeout(t *testing.T) {
	assert.Equal(t, 15*time.Second, WhatsAppConfig{}.Timeout())
	assert.Equal(t, 3*time.Second, WhatsAppConfig{TimeoutSeconds: 3}.Timeout())
}
