package settings

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/memohai/wadesk/internal/config"
)

const (
	KeyBusinessName  = "business_name"
	KeyBusinessHours = "business_hours"

	KeyWhatsAppAccessToken   = "whatsapp.access_token"
	KeyWhatsAppPhoneNumberID = "whatsapp.phone_number_id"
	KeyWhatsAppVerifyToken   = "whatsapp.verify_token"
)

// ErrEmptyUpdate is returned when a WhatsApp update sets no field.
var ErrEmptyUpdate = errors.New("no whatsapp setting to update")

// IsSecretKey reports whether key stores a credential.
func IsSecretKey(key string) bool {
	return key == KeyWhatsAppAccessToken || key == KeyWhatsAppVerifyToken
}

// WhatsAppConfigSource overlays the provider credentials edited by admins on
// the file configuration. Lookups happen on every call so an update applies
// to the next send or handshake without a restart.
type WhatsAppConfigSource struct {
	base     config.WhatsAppConfig
	settings *Service
	logger   *slog.Logger
}

func NewWhatsAppConfigSource(log *slog.Logger, base config.WhatsAppConfig, service *Service) *WhatsAppConfigSource {
	if log == nil {
		log = slog.Default()
	}
	return &WhatsAppConfigSource{
		base:     base,
		settings: service,
		logger:   log.With(slog.String("service", "whatsapp_config")),
	}
}

// WhatsApp returns the configuration in effect. A settings read failure
// falls back to the file configuration.
func (s *WhatsAppConfigSource) WhatsApp(ctx context.Context) config.WhatsAppConfig {
	cfg := s.base
	if s.settings == nil {
		return cfg
	}
	rows, err := s.settings.List(ctx)
	if err != nil {
		s.logger.Warn("read whatsapp overrides failed", slog.Any("error", err))
		return cfg
	}
	for _, row := range rows {
		value := strings.TrimSpace(row.Value)
		if value == "" {
			continue
		}
		switch row.Key {
		case KeyWhatsAppAccessToken:
			cfg.AccessToken = value
		case KeyWhatsAppPhoneNumberID:
			cfg.PhoneNumberID = value
		case KeyWhatsAppVerifyToken:
			cfg.VerifyToken = value
		}
	}
	return cfg
}

// Update stores the non-nil fields of req. An empty string removes the
// override and restores the file value.
func (s *WhatsAppConfigSource) Update(ctx context.Context, req WhatsAppUpdate) (config.WhatsAppConfig, error) {
	if s.settings == nil {
		return config.WhatsAppConfig{}, errors.New("settings store not configured")
	}
	fields := []struct {
		key   string
		value *string
		desc  string
	}{
		{KeyWhatsAppAccessToken, req.AccessToken, "Cloud API access token"},
		{KeyWhatsAppPhoneNumberID, req.PhoneNumberID, "Sending phone number id"},
		{KeyWhatsAppVerifyToken, req.VerifyToken, "Webhook verify token"},
	}
	changed := 0
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if _, err := s.settings.Upsert(ctx, f.key, UpsertRequest{Value: strings.TrimSpace(*f.value), Description: f.desc}); err != nil {
			return config.WhatsAppConfig{}, err
		}
		changed++
	}
	if changed == 0 {
		return config.WhatsAppConfig{}, ErrEmptyUpdate
	}
	return s.WhatsApp(ctx), nil
}

// DescribeWhatsApp summarizes the provider config without leaking secrets.
func DescribeWhatsApp(cfg config.WhatsAppConfig) WhatsAppStatus {
	return WhatsAppStatus{
		Configured:    cfg.AccessToken != "" && cfg.PhoneNumberID != "",
		APIBaseURL:    cfg.APIBaseURL,
		APIVersion:    cfg.APIVersion,
		PhoneNumberID: cfg.PhoneNumberID,
		AccessToken:   Mask(cfg.AccessToken),
		VerifyToken:   Mask(cfg.VerifyToken),
		AppSecret:     Mask(cfg.AppSecret),
	}
}

// Mask keeps the last four characters of long secrets and hides short ones entirely.
func Mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
