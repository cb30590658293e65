package notify

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var _ core.Notifier = (*TeamsNotifier)(nil)

// TeamsNotifier posts a markdown message to a Teams incoming webhook.
type TeamsNotifier struct {
	client *resty.Client
	url    string
}

// NewTeamsNotifier creates a notifier for the given webhook URL.
func NewTeamsNotifier(url string, opts HTTPOptions) *TeamsNotifier {
	return &TeamsNotifier{client: newHTTPClient(opts), url: url}
}

type teamsMessage struct {
	Text string `json:"text"`
}

// Notify implements core.Notifier.
func (n *TeamsNotifier) Notify(ctx context.Context, msg core.Notification) error {
	return postJSON(ctx, n.client, n.url, teamsMessage{Text: Markdown(msg)})
}
