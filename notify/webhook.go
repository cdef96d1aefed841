package notify

import (
	"context"
	"fmt"

	devhttp "github.com/randalmurphal/storyflow/http"
)

// =============================================================================
// WebhookNotifier
// =============================================================================

// WebhookNotifier posts events as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	URL    string
	client *devhttp.Client
}

// NewWebhookNotifier creates a webhook notifier. Headers are sent with
// every request.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL: url,
		client: devhttp.NewClient(devhttp.ClientConfig{
			BaseURL:     url,
			ServiceName: "webhook",
			Headers:     headers,
		}),
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.client.Post(ctx, "", event, nil); err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	return nil
}
