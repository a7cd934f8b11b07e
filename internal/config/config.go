// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultJWTExpiresIn       = "24h"
	DefaultLoginRatePerMinute = 10
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "wadesk"
	DefaultPGSSLMode          = "disable"
	DefaultWhatsAppAPIBaseURL = "https://graph.facebook.com"
	DefaultWhatsAppAPIVersion = "v17.0"
	DefaultWhatsAppTimeout    = 15
	DefaultRabbitMQExchange   = "wadesk.events"
	DefaultSweeperSchedule    = "@every 1h"
	DefaultSweeperResolvedTTL = "72h"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	Sweeper  SweeperConfig  `toml:"sweeper"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AdminConfig holds the initial admin account (name, password, email).
type AdminConfig struct {
	Name     string `toml:"name"`
	Password string `toml:"password"`
	Email    string `toml:"email"`
}

// AuthConfig holds JWT secret, token expiry (e.g. 24h) and the login rate limit.
type AuthConfig struct {
	JWTSecret          string `toml:"jwt_secret"`
	JWTExpiresIn       string `toml:"jwt_expires_in"`
	LoginRatePerMinute int    `toml:"login_rate_per_minute"`
}

// ExpiresIn parses JWTExpiresIn, falling back to the default on error.
func (c AuthConfig) ExpiresIn() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.JWTExpiresIn))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultJWTExpiresIn)
	}
	return d
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// WhatsAppConfig holds the Cloud API credentials and webhook secrets.
type WhatsAppConfig struct {
	APIBaseURL     string `toml:"api_base_url"`
	APIVersion     string `toml:"api_version"`
	AccessToken    string `toml:"access_token"`
	PhoneNumberID  string `toml:"phone_number_id"`
	VerifyToken    string `toml:"verify_token"`
	AppSecret      string `toml:"app_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the outbound request timeout.
func (c WhatsAppConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultWhatsAppTimeout * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RabbitMQConfig holds the broker URL and topic exchange. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

// SweeperConfig controls the job that closes stale resolved conversations.
type SweeperConfig struct {
	Schedule    string `toml:"schedule"`
	ResolvedTTL string `toml:"resolved_ttl"`
}

// TTL parses ResolvedTTL, falling back to the default on error.
func (c SweeperConfig) TTL() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.ResolvedTTL))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSweeperResolvedTTL)
	}
	return d
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Name:     "admin",
			Password: "change-your-password-here",
			Email:    "admin@example.com",
		},
		Auth: AuthConfig{
			JWTExpiresIn:       DefaultJWTExpiresIn,
			LoginRatePerMinute: DefaultLoginRatePerMinute,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL:     DefaultWhatsAppAPIBaseURL,
			APIVersion:     DefaultWhatsAppAPIVersion,
			TimeoutSeconds: DefaultWhatsAppTimeout,
		},
		RabbitMQ: RabbitMQConfig{
			Exchange: DefaultRabbitMQExchange,
		},
		Sweeper: SweeperConfig{
			Schedule:    DefaultSweeperSchedule,
			ResolvedTTL: DefaultSweeperResolvedTTL,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
