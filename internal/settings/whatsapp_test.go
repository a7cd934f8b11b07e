package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/db/store"
)

type brokenSettings struct{ fakeSettings }

func (brokenSettings) ListSettings(context.Context) ([]store.Setting, error) {
	return nil, errors.New("db down")
}

func TestWhatsAppConfigSourceOverlay(t *testing.T) {
	base := config.WhatsAppConfig{APIVersion: "v17.0", AccessToken: "file-token", PhoneNumberID: "111", VerifyToken: "file-verify"}
	svc := NewService(nil, fakeSettings{})
	src := NewWhatsAppConfigSource(nil, base, svc)
	ctx := context.Background()

	assert.Equal(t, base, src.WhatsApp(ctx))

	token, phone := "db-token", " 222 "
	cfg, err := src.Update(ctx, WhatsAppUpdate{AccessToken: &token, PhoneNumberID: &phone})
	require.NoError(t, err)
	assert.Equal(t, "db-token", cfg.AccessToken)
	assert.Equal(t, "222", cfg.PhoneNumberID)
	assert.Equal(t, "file-verify", cfg.VerifyToken)
	assert.Equal(t, "v17.0", cfg.APIVersion)

	cleared := ""
	cfg, err = src.Update(ctx, WhatsAppUpdate{AccessToken: &cleared})
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.AccessToken)
	assert.Equal(t, "222", cfg.PhoneNumberID)

	_, err = src.Update(ctx, WhatsAppUpdate{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestWhatsAppConfigSourceFallsBackOnReadError(t *testing.T) {
	base := config.WhatsAppConfig{AccessToken: "file-token"}
	src := NewWhatsAppConfigSource(nil, base, NewService(nil, brokenSettings{fakeSettings{}}))
	assert.Equal(t, base, src.WhatsApp(context.Background()))
}

func TestPublicGeneral(t *testing.T) {
	svc := NewService(nil, fakeSettings{
		KeyBusinessName:        {Key: KeyBusinessName, Value: "Tienda Sol"},
		KeyBusinessHours:       {Key: KeyBusinessHours, Value: "9-18"},
		KeyWhatsAppAccessToken: {Key: KeyWhatsAppAccessToken, Value: "secret-token-abcd"},
		"auto_reply_message":   {Key: "auto_reply_message", Value: "later"},
	})
	got, err := svc.PublicGeneral(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PublicGeneral{BusinessName: "Tienda Sol", BusinessHours: "9-18"}, got)
}

func TestMaskedHidesSecretKeys(t *testing.T) {
	assert.Equal(t, "****abcd", Masked(Setting{Key: KeyWhatsAppAccessToken, Value: "secret-token-abcd"}).Value)
	assert.Equal(t, "9-18", Masked(Setting{Key: KeyBusinessHours, Value: "9-18"}).Value)
}
