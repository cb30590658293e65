package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Comma-separated, whitespace trimmed, empties dropped
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Source validation
	if !strings.HasPrefix(c.Source.URL, "http://") && !strings.HasPrefix(c.Source.URL, "https://") {
		errs = append(errs, fmt.Sprintf("SOURCE_URL (%q) must be an http or https URL", c.Source.URL))
	}
	if c.Source.PollInterval <= 0 {
		errs = append(errs, "POLL_INTERVAL must be positive")
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, "SOURCE_TIMEOUT must be positive")
	}
	if c.Source.MaxBytes <= 0 {
		errs = append(errs, "SOURCE_MAX_BYTES must be positive")
	}
	if _, ok := c.Source.DelimiterRune(); !ok {
		errs = append(errs, fmt.Sprintf("CSV_DELIMITER (%q) must be one of: auto, \",\", \";\", \"|\", tab", c.Source.Delimiter))
	}

	// Rules validation
	if c.Rules.Profile == "" && c.Rules.File == "" {
		errs = append(errs, "ROLE_PROFILE or ROLE_RULES_FILE is required")
	}

	// Store validation
	switch strings.ToLower(c.Store.Driver) {
	case "file", "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Sprintf("STORE_PATH is required when STORE_DRIVER=%s", c.Store.Driver))
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: file, sqlite, postgres", c.Store.Driver))
	}

	// Notifier validation
	switch strings.ToLower(c.Notify.Kind) {
	case "log":
	case "teams", "webhook":
		if c.Notify.WebhookURL == "" {
			errs = append(errs, fmt.Sprintf("NOTIFY_WEBHOOK_URL is required when NOTIFIER=%s", c.Notify.Kind))
		}
	case "email":
		if c.SMTP.Host == "" {
			errs = append(errs, "SMTP_HOST is required when NOTIFIER=email")
		}
		if c.SMTP.From == "" && c.SMTP.User == "" {
			errs = append(errs, "SMTP_FROM or SMTP_USER is required when NOTIFIER=email")
		}
		if len(c.SMTP.To) == 0 {
			errs = append(errs, "EMAIL_TO is required when NOTIFIER=email")
		}
	default:
		errs = append(errs, fmt.Sprintf("NOTIFIER (%q) must be one of: log, teams, webhook, email", c.Notify.Kind))
	}
	if c.Notify.Timeout <= 0 {
		errs = append(errs, "NOTIFY_TIMEOUT must be positive")
	}
	if c.Notify.RetryCount < 0 {
		errs = append(errs, "NOTIFY_RETRY_COUNT must be non-negative")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SMTP_PORT (%d) must be 1-65535", c.SMTP.Port))
	}

	// Status server validation
	if c.Status.Port <= 0 || c.Status.Port > 65535 {
		errs = append(errs, fmt.Sprintf("STATUS_PORT (%d) must be 1-65535", c.Status.Port))
	}
	if c.Status.ShutdownTimeout <= 0 {
		errs = append(errs, "STATUS_SHUTDOWN_TIMEOUT must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Webhook URLs, SMTP passwords and database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Source: {URL: %q, Timeout: %s, Delimiter: %q}, ",
		c.Source.URL, c.Source.Timeout, c.Source.Delimiter))
	b.WriteString(fmt.Sprintf("Rules: {Profile: %q, File: %q, IdentityRoles: %v}, ",
		c.Rules.Profile, c.Rules.File, c.Rules.IdentityRoles))
	b.WriteString(fmt.Sprintf("Store: {Driver: %q, Path: %q, DatabaseURL: %s}, ",
		c.Store.Driver, c.Store.Path, mask(c.Store.DatabaseURL)))
	b.WriteString(fmt.Sprintf("Notify: {Kind: %q, WebhookURL: %s, Timeout: %s}, ",
		c.Notify.Kind, mask(c.Notify.WebhookURL), c.Notify.Timeout))
	b.WriteString(fmt.Sprintf("SMTP: {Host: %q, Port: %d, User: %q, Password: %s, To: %v}, ",
		c.SMTP.Host, c.SMTP.Port, c.SMTP.User, mask(c.SMTP.Password), c.SMTP.To))
	b.WriteString(fmt.Sprintf("Status: {Host: %q, Port: %d, APIKeys: %d configured}, ", c.Status.Host, c.Status.Port, len(c.Status.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
