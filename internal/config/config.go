// Package config provides centralized configuration management for the poller.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source  SourceConfig
	Rules   RulesConfig
	Store   StoreConfig
	Notify  NotifyConfig
	SMTP    SMTPConfig
	Status  StatusConfig
	Logging LoggingConfig
}

// SourceConfig describes the remote CSV export.
type SourceConfig struct {
	// URL is the remote CSV endpoint (required)
	URL string `env:"SOURCE_URL" required:"true"`

	// Encoding overrides the charset declared by the server (default: from Content-Type)
	Encoding string `env:"SOURCE_ENCODING"`

	// Timeout bounds the whole fetch (default: 30s)
	Timeout time.Duration `env:"SOURCE_TIMEOUT" default:"30s"`

	// MaxBytes caps the response body size (default: 50MB)
	MaxBytes int64 `env:"SOURCE_MAX_BYTES" default:"52428800"`

	// UserAgent is sent with every request
	UserAgent string `env:"SOURCE_USER_AGENT" default:"ceespwatch/1.0"`

	// Delimiter is ",", ";", "tab" or "auto" (default: auto)
	Delimiter string `env:"CSV_DELIMITER" default:"auto"`

	// PollInterval is the delay between runs in watch mode (default: 1h)
	PollInterval time.Duration `env:"POLL_INTERVAL" default:"1h"`

	// AllowEmptyTable accepts a header-only table as a valid state (default: false)
	AllowEmptyTable bool `env:"ALLOW_EMPTY_TABLE" default:"false"`
}

// RulesConfig selects the role rules used to resolve columns.
type RulesConfig struct {
	// Profile is the registered profile name (default: ceesp)
	Profile string `env:"ROLE_PROFILE" default:"ceesp"`

	// File replaces the registered profile with one read from TOML
	File string `env:"ROLE_RULES_FILE"`

	// IdentityRoles overrides the profile's identity roles, in order
	IdentityRoles []string `env:"IDENTITY_ROLES"`
}

// StoreConfig selects the snapshot store.
type StoreConfig struct {
	// Driver is file, sqlite or postgres (default: file)
	Driver string `env:"STORE_DRIVER" default:"file"`

	// Path is the history file or SQLite database (default: history.csv)
	Path string `env:"STORE_PATH" default:"history.csv"`

	// DatabaseURL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`
}

// NotifyConfig selects and configures the notification channel.
type NotifyConfig struct {
	// Kind is log, teams, webhook or email (default: log)
	Kind string `env:"NOTIFIER" default:"log"`

	// WebhookURL is the Teams or generic webhook endpoint
	WebhookURL string `env:"NOTIFY_WEBHOOK_URL" envAlt:"TEAMS_WEBHOOK"`

	// Timeout bounds a single delivery, retries included (default: 15s)
	Timeout time.Duration `env:"NOTIFY_TIMEOUT" default:"15s"`

	// RetryCount is the number of retries for HTTP notifiers (default: 2)
	RetryCount int `env:"NOTIFY_RETRY_COUNT" default:"2"`
}

// SMTPConfig holds mail settings for the email notifier.
type SMTPConfig struct {
	Host     string   `env:"SMTP_HOST" default:"smtp.office365.com"`
	Port     int      `env:"SMTP_PORT" default:"587"`
	User     string   `env:"SMTP_USER"`
	Password string   `env:"SMTP_PASS"`
	From     string   `env:"SMTP_FROM"`
	To       []string `env:"EMAIL_TO"`
}

// StatusConfig holds settings for the read-only status server.
type StatusConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"STATUS_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"STATUS_PORT" default:"8080"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"STATUS_SHUTDOWN_TIMEOUT" default:"10s"`

	// TrustedProxies are CIDRs or addresses allowed to set X-Real-IP / X-Forwarded-For
	TrustedProxies []string `env:"STATUS_TRUSTED_PROXIES"`

	// APIKeys protect /api/* when set; clients send one in X-API-Key
	APIKeys []string `env:"STATUS_API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *StatusConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Addr returns the SMTP server address in host:port format.
func (c *SMTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DelimiterRune returns the configured field separator, or 0 for auto-detection.
func (c *SourceConfig) DelimiterRune() (rune, bool) {
	switch c.Delimiter {
	case "", "auto":
		return 0, true
	case ",":
		return ',', true
	case ";":
		return ';', true
	case "tab", "\t", `\t`:
		return '\t', true
	case "|":
		return '|', true
	default:
		return 0, false
	}
}
