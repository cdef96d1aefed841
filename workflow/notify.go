package workflow

import (
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/notify"
)

// NotifyNode reports the outcome of the run.
//
// Every story graph ends here once the run is decided or has failed. Without a notifier in the
// context it does nothing, and notification errors are logged, never
// returned.
//
// Updates: None
func NotifyNode(ctx flowgraph.Context, state State) (State, error) {
	notifier := notify.NotifierFromContext(ctx)
	if notifier == nil {
		return state, nil
	}

	event := outcomeEvent(state)
	if err := notifier.Notify(ctx, event); err != nil {
		sfcontext.Logger(ctx).Warn("notification failed",
			"run_id", state.RunID,
			"event_type", event.Type,
			"error", err,
		)
	}
	return state, nil
}

// NotifySubtasksNode reports the outcome of a subtask fan-out.
//
// Updates: None
func NotifySubtasksNode(ctx flowgraph.Context, state State) (State, error) {
	notifier := notify.NotifierFromContext(ctx)
	if notifier == nil {
		return state, nil
	}

	event := subtaskEvent(state, state.ParentKey)
	if err := notifier.Notify(ctx, event); err != nil {
		sfcontext.Logger(ctx).Warn("notification failed",
			"run_id", state.RunID,
			"event_type", event.Type,
			"error", err,
		)
	}
	return state, nil
}

// outcomeEvent builds the event describing how the run ended.
func outcomeEvent(state State) notify.Event {
	event := notify.Event{
		RunID:     state.RunID,
		FlowID:    state.FlowID,
		Timestamp: time.Now(),
		Metadata:  buildMetadata(state),
	}

	switch {
	case state.HasError():
		event.Type = notify.EventRunFailed
		event.Severity = notify.SeverityError
		event.Message = state.Error
	case state.Approval == ApprovalRejected:
		event.Type = notify.EventStoryRejected
		event.Severity = notify.SeverityInfo
		event.Message = "Story creation rejected: " + state.Title
	default:
		event.Type = notify.EventStoryCreated
		event.Severity = notify.SeverityInfo
		event.Message = state.Title
		if created, ok := state.LastCreated(); ok {
			event.IssueKey = created.Key
			event.IssueURL = created.URL
		}
	}
	return event
}

// subtaskEvent builds the event for a finished subtask fan-out.
func subtaskEvent(state State, parentKey string) notify.Event {
	event := notify.Event{
		RunID:     state.RunID,
		FlowID:    state.FlowID,
		IssueKey:  parentKey,
		Timestamp: time.Now(),
		Metadata:  buildMetadata(state),
	}
	event.Metadata["created"] = len(state.CreatedIssues)
	event.Metadata["failed"] = len(state.Failures)

	switch {
	case state.HasError():
		event.Type = notify.EventSubtasksFailed
		event.Severity = notify.SeverityError
		event.Message = state.Error
	case len(state.Failures) > 0:
		event.Type = notify.EventSubtasksPartial
		event.Severity = notify.SeverityWarning
		event.Message = "Some subtasks could not be created"
	default:
		event.Type = notify.EventSubtasksCreated
		event.Severity = notify.SeverityInfo
		event.Message = "Subtasks created"
	}
	return event
}

func buildMetadata(state State) map[string]any {
	meta := map[string]any{
		"tokensIn":  state.TotalTokensIn,
		"tokensOut": state.TotalTokensOut,
	}
	if state.Topic != "" {
		meta["topic"] = state.Topic
	}
	if state.ParentKey != "" {
		meta["parentKey"] = state.ParentKey
	}
	return meta
}
