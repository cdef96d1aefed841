// Package notify delivers workflow events to people and systems.
//
// Core types:
//   - Notifier: Interface for sending notifications
//   - Event: Notification event with type, issue, message, and metadata
//   - EventType: story_created, story_rejected, run_failed, subtasks_*
//
// Implementations:
//   - SlackNotifier: Slack incoming webhooks
//   - WebhookNotifier: Generic JSON webhooks
//   - NATSNotifier: JetStream subjects under storyflow.events
//   - LogNotifier: slog output
//   - MultiNotifier: Fans out to several notifiers
//   - NopNotifier: Discards everything
//
// Example usage:
//
//	notifier := notify.NewMultiNotifier(
//	    notify.NewLogNotifier(logger),
//	    notify.NewSlackNotifier(webhookURL, notify.WithSlackChannel("#stories")),
//	)
//	ctx = notify.WithNotifier(ctx, notifier)
package notify
