package notify

import (
	"context"
	"fmt"
	"sort"

	devhttp "github.com/randalmurphal/storyflow/http"
)

// =============================================================================
// SlackNotifier
// =============================================================================

// SlackNotifier sends notifications to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Username   string

	client *devhttp.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{
		WebhookURL: webhookURL,
		Username:   "storyflow",
	}
	for _, opt := range opts {
		opt(n)
	}
	n.client = devhttp.NewClient(devhttp.ClientConfig{
		BaseURL:     webhookURL,
		ServiceName: "slack",
	})
	return n
}

// SlackOption configures SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the channel to post to.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

// WithSlackUsername sets the bot username.
func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.client.Post(ctx, "", n.payload(event), nil); err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	return nil
}

func (n *SlackNotifier) payload(event Event) slackPayload {
	title := fmt.Sprintf("%s %s", emojiForEvent(event.Type), event.Type)
	att := slackAttachment{
		Color:     colorForSeverity(event.Severity),
		Title:     title,
		TitleLink: event.IssueURL,
		Text:      event.Message,
		Footer:    fmt.Sprintf("Flow: %s | Run: %s", event.FlowID, event.RunID),
		Timestamp: event.Timestamp.Unix(),
		Fields:    fieldsFromMetadata(event.Metadata),
	}
	if event.IssueKey != "" {
		att.Fields = append([]slackField{{Title: "issue", Value: event.IssueKey, Short: true}}, att.Fields...)
	}
	return slackPayload{
		Username:    n.Username,
		Channel:     n.Channel,
		Attachments: []slackAttachment{att},
	}
}

func emojiForEvent(t EventType) string {
	switch t {
	case EventStoryCreated, EventSubtasksCreated:
		return ":white_check_mark:"
	case EventStoryRejected:
		return ":no_entry_sign:"
	case EventSubtasksPartial:
		return ":warning:"
	case EventRunFailed, EventSubtasksFailed:
		return ":x:"
	default:
		return ":loudspeaker:"
	}
}

func colorForSeverity(severity string) string {
	switch severity {
	case SeverityError:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

// fieldsFromMetadata returns one short field per key, sorted by key.
func fieldsFromMetadata(metadata map[string]any) []slackField {
	if len(metadata) == 0 {
		return nil
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]slackField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slackField{
			Title: k,
			Value: fmt.Sprintf("%v", metadata[k]),
			Short: true,
		})
	}
	return fields
}

// Slack webhook payload types
type slackPayload struct {
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title"`
	TitleLink string       `json:"title_link,omitempty"`
	Text      string       `json:"text"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
