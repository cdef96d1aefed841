package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/tracker"
)

// Node names used in the graphs, logs and metrics.
const (
	NodeGenerate         = "generate"
	NodePreview          = "preview"
	NodeApprove          = "approve"
	NodeCreate           = "create"
	NodeNotify           = "notify"
	NodeGenerateSubtasks = "generate_subtasks"
	NodeFanOut           = "fan_out"
	NodeNotifySubtasks   = "notify_subtasks"
)

// Trace roles.
const (
	RoleUser   = "user"
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleError  = "error"
)

// Graph nodes record failures in State.Error and return a nil error so the
// routers can end the run. A non-nil error means a required service is
// missing from the context.

// GenerateNode turns the topic into a story.
//
// Prerequisites: state.Topic
// Updates: story fields, token totals, Trace
func GenerateNode(ctx flowgraph.Context, state State) (out State, err error) {
	defer observe(ctx, state, NodeGenerate, time.Now(), &out)

	gen := sfcontext.Generator(ctx)
	if gen == nil {
		return state, errNoGenerator
	}

	if err := state.Validate(RequireTopic); err != nil {
		return Merge(state, errorUpdate(err)), nil
	}

	st, usage, err := gen.GenerateStoryWithUsage(ctx, state.Topic)
	if err != nil {
		u := errorUpdate(err)
		u.Trace = []TraceEntry{{Role: RoleError, Message: err.Error()}}
		return Merge(state, u), nil
	}

	sfcontext.Metrics(ctx).Tokens(usage.InputTokens, usage.OutputTokens)
	return Merge(state, Update{
		Story:     &st,
		TokensIn:  usage.InputTokens,
		TokensOut: usage.OutputTokens,
		Trace: []TraceEntry{
			{Role: RoleUser, Message: state.Topic},
			{Role: RoleSystem, Message: "Generated story: " + st.Title},
		},
	}), nil
}

// PreviewNode formats the story for review and opens the approval gate.
//
// Prerequisites: complete story
// Updates: Preview, Approval=pending, Trace
func PreviewNode(ctx flowgraph.Context, state State) (out State, err error) {
	defer observe(ctx, state, NodePreview, time.Now(), &out)

	if err := state.Validate(RequireStory); err != nil {
		return Merge(state, errorUpdate(err)), nil
	}

	site, _ := sfcontext.SiteFrom(ctx)
	return Merge(state, Update{
		Preview:  ptr(FormatPreview(state.Story(), site)),
		Approval: ApprovalPending,
		Trace:    []TraceEntry{{Role: RoleSystem, Message: "Story formatted and ready for approval"}},
	}), nil
}

// ApproveNode resolves the approval gate.
//
// The decision comes from state.Decision when set, otherwise from the
// Approver in the context. With neither, the gate stays pending and the
// router loops back here until MaxApprovalAttempts, then rejects.
func ApproveNode(ctx flowgraph.Context, state State) (out State, err error) {
	defer observe(ctx, state, NodeApprove, time.Now(), &out)

	if state.Approval.Final() {
		return state, nil
	}

	attempts := state.ApprovalAttempts + 1
	decision, err := decisionFor(ctx, state)
	switch {
	case err == nil:
		return Merge(state, Update{
			Approval:         ParseDecision(decision),
			Decision:         ptr(""),
			ApprovalAttempts: &attempts,
			Trace:            []TraceEntry{{Role: RoleHuman, Message: describeDecision(decision)}},
		}), nil

	case errors.Is(err, ErrNoDecision):
		if attempts >= MaxApprovalAttempts {
			return Merge(state, Update{
				Approval:         ApprovalRejected,
				ApprovalAttempts: &attempts,
				Trace:            []TraceEntry{{Role: RoleSystem, Message: "No decision received, rejecting"}},
			}), nil
		}
		return Merge(state, Update{ApprovalAttempts: &attempts}), nil

	default:
		u := errorUpdate(err)
		u.ApprovalAttempts = &attempts
		return Merge(state, u), nil
	}
}

func decisionFor(ctx flowgraph.Context, state State) (string, error) {
	if state.Decision != "" {
		return state.Decision, nil
	}
	approver := ApproverFromContext(ctx)
	if approver == nil {
		return "", ErrNoDecision
	}
	return approver.Decide(ctx, state.Preview)
}

// CreateNode creates the issue for the current story. With ParentKey set
// the issue is a subtask.
//
// Prerequisites: complete story
// Updates: CreatedIssues, Trace
func CreateNode(ctx flowgraph.Context, state State) (out State, err error) {
	defer observe(ctx, state, NodeCreate, time.Now(), &out)

	issues := sfcontext.Issues(ctx)
	if issues == nil {
		return state, errNoTracker
	}

	u := createUpdate(ctx, issues, state)
	return Merge(state, u), nil
}

// createUpdate is the create step shared by CreateNode and subtask branches.
func createUpdate(ctx context.Context, issues tracker.IssueClient, state State) Update {
	if err := state.Validate(RequireStory); err != nil {
		return errorUpdate(err)
	}

	created, err := issues.CreateIssue(ctx, tracker.IssueFields{
		Title:              state.Title,
		Description:        state.Description,
		AcceptanceCriteria: state.AcceptanceCriteria,
		ParentKey:          state.ParentKey,
	})
	if err != nil {
		u := errorUpdate(err)
		u.Trace = []TraceEntry{{Role: RoleError, Message: err.Error()}}
		return u
	}

	kind := "story"
	if state.ParentKey != "" {
		kind = "subtask"
	}
	sfcontext.Metrics(ctx).IssueCreated(kind)

	return Update{
		CreatedIssues: []tracker.CreatedIssue{created},
		Trace:         []TraceEntry{{Role: RoleSystem, Message: "Jira " + kind + " created: " + created.Key}},
	}
}

// observe logs and records a finished stage. result points at the node's
// named result so the deferred call sees the returned state.
func observe(ctx context.Context, in State, node string, start time.Time, result *State) {
	elapsed := time.Since(start)
	failed := result.HasError() && !in.HasError()

	sfcontext.Metrics(ctx).ObserveStage(node, elapsed, failed)

	logger := sfcontext.Logger(ctx)
	attrs := []any{
		"run_id", in.RunID,
		"flow_id", in.FlowID,
		"node", node,
		"duration", elapsed,
	}
	if failed {
		logger.Warn("stage failed", append(attrs, "error", result.Error)...)
		return
	}
	logger.Log(ctx, slog.LevelDebug, "stage done", attrs...)
}
