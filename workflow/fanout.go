package workflow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
	"golang.org/x/sync/errgroup"

	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
)

// DefaultFanOutLimit caps concurrent subtask creations.
const DefaultFanOutLimit = story.MaxSubtasks

type fanOutLimitKey struct{}

// WithFanOutLimit sets how many subtask creations FanOutNode runs at once.
func WithFanOutLimit(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, fanOutLimitKey{}, n)
}

func fanOutLimit(ctx context.Context) int {
	if n, ok := ctx.Value(fanOutLimitKey{}).(int); ok && n > 0 {
		return n
	}
	return DefaultFanOutLimit
}

// GenerateSubtasksNode splits the parent story into subtasks.
//
// Prerequisites: complete story, ParentKey
// Updates: Subtasks, token totals, Trace
func GenerateSubtasksNode(ctx flowgraph.Context, state State) (out State, err error) {
	defer observe(ctx, state, NodeGenerateSubtasks, time.Now(), &out)

	gen := sfcontext.Generator(ctx)
	if gen == nil {
		return state, errNoGenerator
	}

	if err := state.Validate(RequireStory, RequireParentKey); err != nil {
		return Merge(state, errorUpdate(err)), nil
	}

	items, usage, err := gen.GenerateSubtasksWithUsage(ctx, state.Story())
	if err != nil {
		u := errorUpdate(err)
		u.Trace = []TraceEntry{{Role: RoleError, Message: err.Error()}}
		u.TokensIn, u.TokensOut = usage.InputTokens, usage.OutputTokens
		return Merge(state, u), nil
	}

	sfcontext.Metrics(ctx).Tokens(usage.InputTokens, usage.OutputTokens)
	return Merge(state, Update{
		Subtasks:  items,
		TokensIn:  usage.InputTokens,
		TokensOut: usage.OutputTokens,
		Trace:     []TraceEntry{{Role: RoleSystem, Message: subtaskCountMessage(len(items))}},
	}), nil
}

func subtaskCountMessage(n int) string {
	if n == 1 {
		return "Generated 1 subtask"
	}
	return "Generated " + strconv.Itoa(n) + " subtasks"
}

// FanOutNode creates every subtask concurrently and gathers the results.
//
// Each branch works on its own copy of the state with the story replaced by
// the subtask and ParentKey kept. A failed branch becomes a SubtaskFailure;
// it never cancels its siblings and never sets State.Error.
//
// Updates: CreatedIssues, Failures, Trace
func FanOutNode(ctx flowgraph.Context, state State) (out State, err error) {
	defer observe(ctx, state, NodeFanOut, time.Now(), &out)

	issues := sfcontext.Issues(ctx)
	if issues == nil {
		return state, errNoTracker
	}

	updates := scatter(ctx, issues, state, state.Subtasks, fanOutLimit(ctx))
	return MergeAll(state, updates...), nil
}

// scatter runs one create branch per item and returns one Update per
// branch, indexed like items.
func scatter(ctx context.Context, issues tracker.IssueClient, parent State, items []story.SubtaskItem, limit int) []Update {
	updates := make([]Update, len(items))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		branch := branchState(parent, item)
		g.Go(func() error {
			updates[i] = runBranch(ctx, issues, branch)
			return nil
		})
	}
	_ = g.Wait()

	return updates
}

// branchState is the independent state a subtask branch works on.
func branchState(parent State, item story.SubtaskItem) State {
	b := parent.WithStory(item)
	b.CreatedIssues = nil
	b.Failures = nil
	b.Trace = nil
	b.Subtasks = nil
	return b
}

func runBranch(ctx context.Context, issues tracker.IssueClient, branch State) Update {
	u := createUpdate(ctx, issues, branch)
	if u.Error == nil {
		return u
	}

	msg := *u.Error
	sfcontext.Metrics(ctx).SubtaskFailed()
	sfcontext.Logger(ctx).Warn("subtask creation failed",
		"run_id", branch.RunID,
		"parent_key", branch.ParentKey,
		"title", branch.Title,
		"error", msg,
	)
	return Update{
		Failures: []SubtaskFailure{{Title: branch.Title, Error: msg}},
		Trace:    []TraceEntry{{Role: RoleError, Message: "Subtask failed: " + branch.Title + ": " + msg}},
	}
}

// =============================================================================
// Subtask Result
// =============================================================================

// SubtaskResult is the outcome of a subtask fan-out. Created is in no
// particular order.
type SubtaskResult struct {
	ParentKey string                 `json:"parentKey"`
	Created   []tracker.CreatedIssue `json:"created"`
	Failures  []SubtaskFailure       `json:"failures,omitempty"`
}

// Partial reports whether some subtasks failed while others were created.
func (r SubtaskResult) Partial() bool {
	return len(r.Failures) > 0 && len(r.Created) > 0
}

// subtaskResult collects the result from a finished subtask run.
func subtaskResult(s State) SubtaskResult {
	return SubtaskResult{
		ParentKey: s.ParentKey,
		Created:   s.CreatedIssues,
		Failures:  s.Failures,
	}
}

// IsSubtaskCountError reports whether err is a subtask count failure.
func IsSubtaskCountError(err error) bool {
	return errors.Is(err, story.ErrSubtaskCount)
}
