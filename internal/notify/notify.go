// Package notify delivers new-record alerts to Teams, generic webhooks,
// email or the log.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/ceespwatch/internal/config"
	"github.com/JonMunkholm/ceespwatch/internal/core"
)

// New builds the notifier selected by cfg.Notify.Kind.
func New(cfg *config.Config) (core.Notifier, error) {
	httpOpts := HTTPOptions{
		Timeout:    cfg.Notify.Timeout,
		RetryCount: cfg.Notify.RetryCount,
	}

	switch strings.ToLower(cfg.Notify.Kind) {
	case "", "log":
		return NewLogNotifier(slog.Default()), nil
	case "teams":
		return NewTeamsNotifier(cfg.Notify.WebhookURL, httpOpts), nil
	case "webhook":
		return NewWebhookNotifier(cfg.Notify.WebhookURL, httpOpts), nil
	case "email":
		return NewEmailNotifier(EmailOptions{
			Addr:     cfg.SMTP.Addr(),
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
		}), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notify.Kind)
	}
}
