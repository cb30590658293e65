package notify

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var _ core.Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier posts the new records as JSON to a generic endpoint.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier creates a notifier for the given endpoint.
func NewWebhookNotifier(url string, opts HTTPOptions) *WebhookNotifier {
	return &WebhookNotifier{client: newHTTPClient(opts), url: url}
}

// WebhookPayload is the JSON document sent by WebhookNotifier.
type WebhookPayload struct {
	Title   string              `json:"title"`
	RunID   string              `json:"run_id"`
	Count   int                 `json:"count"`
	Records []map[string]string `json:"records"`
}

// NewWebhookPayload builds the payload for msg. Only resolved display roles
// appear in each record; the identity key is included as "_key".
func NewWebhookPayload(msg core.Notification) WebhookPayload {
	roles := msg.VisibleRoles()
	p := WebhookPayload{
		Title:   msg.Title,
		RunID:   msg.RunID,
		Count:   len(msg.Records),
		Records: make([]map[string]string, 0, len(msg.Records)),
	}
	for _, rec := range msg.Records {
		m := make(map[string]string, len(roles)+1)
		m["_key"] = string(rec.Key)
		for _, r := range roles {
			m[string(r)] = rec.Row[r]
		}
		p.Records = append(p.Records, m)
	}
	return p
}

// Notify implements core.Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, msg core.Notification) error {
	return postJSON(ctx, n.client, n.url, NewWebhookPayload(msg))
}
