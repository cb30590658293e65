package notify

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/ceespwatch/internal/core"
	"github.com/JonMunkholm/ceespwatch/internal/logging"
)

var _ core.Notifier = (*LogNotifier)(nil)

// LogNotifier writes new records to the structured log. Useful for local
// runs and as a fallback when no channel is configured.
type LogNotifier struct {
	logger *slog.Logger // nil means logging.FromContext
}

// NewLogNotifier creates a notifier writing through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements core.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, msg core.Notification) error {
	logger := n.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	logger.Info(alertPrefix+msg.Title, "count", len(msg.Records))
	for _, rec := range msg.Records {
		args := []any{"key", string(rec.Key)}
		for _, r := range msg.VisibleRoles() {
			args = append(args, string(r), rec.Row[r])
		}
		logger.Info("new record", args...)
	}
	return nil
}
