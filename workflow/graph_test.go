package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	llm "github.com/randalmurphal/llmkit/claude"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/storyflow/checkpoint"
	"github.com/randalmurphal/storyflow/notify"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
)

// TestGraphConstruction verifies that every graph compiles.
func TestGraphConstruction(t *testing.T) {
	for name, build := range map[string]func() (RunFunc, error){
		"story":    NewStoryGraph,
		"preview":  NewPreviewGraph,
		"finalize": NewFinalizeGraph,
		"subtasks": NewSubtaskGraph,
	} {
		t.Run(name, func(t *testing.T) {
			run, err := build()
			require.NoError(t, err, "graph should compile")
			assert.NotNil(t, run)
		})
	}
}

type notificationCapture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *notificationCapture) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner()
	require.NoError(t, err)
	return r
}

// =============================================================================
// Main workflow scenarios
// =============================================================================

func TestRunMainWorkflow_Created(t *testing.T) {
	var calls atomic.Int32
	issues := issueFunc(func(ctx context.Context, f tracker.IssueFields) (tracker.CreatedIssue, error) {
		calls.Add(1)
		return fixedKey("KAN-12")(ctx, f)
	})
	captured := &notificationCapture{}
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   issues,
		approver: answer("y"),
	})

	result := newRunner(t).RunMainWorkflow(notify.WithNotifier(ctx, captured), "dark mode toggle")

	assert.Equal(t, OutcomeCreated, result.Outcome())
	assert.Equal(t, "KAN-12", result.Key)
	assert.Equal(t, "https://acme.atlassian.net/browse/KAN-12", result.URL)
	assert.Empty(t, result.Error)
	assert.False(t, result.Rejected)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, darkModeTitle, result.State.Title)

	require.Len(t, captured.events, 1)
	assert.Equal(t, notify.EventStoryCreated, captured.events[0].Type)
	assert.Equal(t, "KAN-12", captured.events[0].IssueKey)
}

func TestRunMainWorkflow_EmptyDecisionRejects(t *testing.T) {
	mock := tracker.NewMock("KAN")
	captured := &notificationCapture{}
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   mock,
		approver: answer(""),
	})

	result := newRunner(t).RunMainWorkflow(notify.WithNotifier(ctx, captured), "dark mode toggle")

	assert.Equal(t, OutcomeRejected, result.Outcome())
	assert.True(t, result.Rejected)
	assert.Empty(t, result.Key)
	assert.Zero(t, mock.CallCount(), "no Create call on rejection")

	require.Len(t, captured.events, 1)
	assert.Equal(t, notify.EventStoryRejected, captured.events[0].Type)
}

func TestRunMainWorkflow_GenerationFailure(t *testing.T) {
	mock := tracker.NewMock("KAN")
	captured := &notificationCapture{}
	var asked atomic.Bool
	ctx := newTestContext(t, testEnv{
		storyLLM: failingLLM("rate limited"),
		issues:   mock,
		approver: ApproverFunc(func(context.Context, string) (string, error) {
			asked.Store(true)
			return "y", nil
		}),
	})

	result := newRunner(t).RunMainWorkflow(notify.WithNotifier(ctx, captured), "dark mode toggle")

	assert.Equal(t, OutcomeFailed, result.Outcome())
	assert.Contains(t, result.Error, "rate limited")
	assert.ErrorIs(t, result.Err(), story.ErrGeneration)
	assert.Empty(t, result.State.Preview, "preview must not run")
	assert.False(t, asked.Load(), "approve must not run")
	assert.Zero(t, mock.CallCount(), "create must not run")

	require.Len(t, captured.events, 1)
	assert.Equal(t, notify.EventRunFailed, captured.events[0].Type)
	assert.Contains(t, captured.events[0].Message, "rate limited")
}

func TestPreview_FailureNotifies(t *testing.T) {
	captured := &notificationCapture{}
	ctx := newTestContext(t, testEnv{storyLLM: failingLLM("down")})

	_, err := newRunner(t).Preview(notify.WithNotifier(ctx, captured), "dark mode toggle")
	require.Error(t, err)

	require.Len(t, captured.events, 1)
	assert.Equal(t, notify.EventRunFailed, captured.events[0].Type)
}

func TestRunMainWorkflow_NoApproverFailsClosed(t *testing.T) {
	mock := tracker.NewMock("KAN")
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   mock,
	})

	result := newRunner(t).RunMainWorkflow(ctx, "dark mode toggle")

	assert.Equal(t, OutcomeRejected, result.Outcome())
	assert.Equal(t, MaxApprovalAttempts, result.State.ApprovalAttempts)
	assert.Zero(t, mock.CallCount())
}

func TestRunMainWorkflow_CreateFailure(t *testing.T) {
	mock := tracker.NewMock("KAN").FailFor(darkModeTitle, errors.New("401 unauthorized"))
	captured := &notificationCapture{}
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   mock,
		approver: answer("yes"),
	})

	result := newRunner(t).RunMainWorkflow(notify.WithNotifier(ctx, captured), "dark mode toggle")

	assert.Equal(t, OutcomeFailed, result.Outcome())
	assert.ErrorIs(t, result.Err(), tracker.ErrIssueCreation)
	require.Len(t, captured.events, 1)
	assert.Equal(t, notify.EventRunFailed, captured.events[0].Type)
}

func TestRunMainWorkflow_TraceOrder(t *testing.T) {
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   tracker.NewMock("KAN"),
		approver: answer("y"),
	})

	result := newRunner(t).RunMainWorkflow(ctx, "dark mode toggle")

	var messages []string
	for _, e := range result.State.Trace {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{
		"dark mode toggle",
		"Generated story: " + darkModeTitle,
		"Story formatted and ready for approval",
		"Approved",
		"Jira story created: KAN-1",
	}, messages)
}

// =============================================================================
// Two-call API
// =============================================================================

func TestPreviewFinalize(t *testing.T) {
	mock := tracker.NewMock("KAN")
	store := checkpoint.NewMemory(0)
	runner, err := NewRunner(WithCheckpointStore(store))
	require.NoError(t, err)

	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   mock,
	})

	previewed, err := runner.Preview(ctx, "dark mode toggle")
	require.NoError(t, err)
	assert.NotEmpty(t, previewed.RunID)
	assert.Equal(t, darkModeTitle, previewed.Story.Title)
	assert.Contains(t, previewed.Preview, "JIRA STORY PREVIEW")
	assert.Zero(t, mock.CallCount(), "preview must not create anything")

	pending, err := runner.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{previewed.RunID}, pending)

	result := runner.Finalize(ctx, previewed, "yes")
	assert.Equal(t, OutcomeCreated, result.Outcome())
	assert.Equal(t, "KAN-1", result.Key)
	assert.Equal(t, previewed.RunID, result.RunID)

	_, err = store.Load(ctx, previewed.RunID)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound, "checkpoint is removed after finalize")
}

func TestResume_FromCheckpoint(t *testing.T) {
	store := checkpoint.NewMemory(0)
	mock := tracker.NewMock("KAN")
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   mock,
	})

	first, err := NewRunner(WithCheckpointStore(store))
	require.NoError(t, err)
	previewed, err := first.Preview(ctx, "dark mode toggle")
	require.NoError(t, err)

	// A second runner sharing the store stands in for another process.
	second, err := NewRunner(WithCheckpointStore(store))
	require.NoError(t, err)

	result, err := second.Resume(ctx, previewed.RunID, "n")
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Zero(t, mock.CallCount())

	_, err = second.Resume(ctx, previewed.RunID, "y")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestResume_EmptyDecisionRejects(t *testing.T) {
	runner := newRunner(t)
	mock := tracker.NewMock("KAN")
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   mock,
	})

	previewed, err := runner.Preview(ctx, "dark mode toggle")
	require.NoError(t, err)

	result, err := runner.Resume(ctx, previewed.RunID, "   ")
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Equal(t, 1, result.State.ApprovalAttempts)
	assert.Zero(t, mock.CallCount())
}

func TestResume_UnknownRun(t *testing.T) {
	_, err := newRunner(t).Resume(context.Background(), "nope", "y")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFinalize_DecodedPreview(t *testing.T) {
	runner := newRunner(t)
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   tracker.NewMock("KAN"),
	})

	previewed, err := runner.Preview(ctx, "dark mode toggle")
	require.NoError(t, err)

	// Only the exported fields survive a round trip through a client.
	decoded := PreviewedStory{RunID: previewed.RunID, Story: previewed.Story, Preview: previewed.Preview}
	result := runner.Finalize(ctx, decoded, "y")
	assert.Equal(t, OutcomeCreated, result.Outcome())
}

func TestFinalize_OnlyOnce(t *testing.T) {
	runner := newRunner(t)
	mock := tracker.NewMock("KAN")
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
		issues:   mock,
	})

	previewed, err := runner.Preview(ctx, "dark mode toggle")
	require.NoError(t, err)

	first := runner.Finalize(ctx, previewed, "y")
	assert.Equal(t, OutcomeCreated, first.Outcome())

	second := runner.Finalize(ctx, previewed, "y")
	assert.Equal(t, OutcomeFailed, second.Outcome())
	assert.Contains(t, second.Error, ErrRunNotFound.Error())
	assert.Equal(t, 1, mock.CallCount())
}

func TestResume_ConcurrentDecisions(t *testing.T) {
	stores := map[string]func(t *testing.T) checkpoint.Store{
		"memory": func(*testing.T) checkpoint.Store { return checkpoint.NewMemory(0) },
		"redis": func(t *testing.T) checkpoint.Store {
			mr := miniredis.RunT(t)
			client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return checkpoint.NewRedisFromClient(client)
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			release := make(chan struct{})
			blocked := issueFunc(func(ctx context.Context, f tracker.IssueFields) (tracker.CreatedIssue, error) {
				calls.Add(1)
				<-release
				return fixedKey("KAN-1")(ctx, f)
			})
			ctx := newTestContext(t, testEnv{
				storyLLM: llm.NewMockClient(storyReply(darkModeStory)),
				issues:   blocked,
			})

			runner, err := NewRunner(WithCheckpointStore(newStore(t)))
			require.NoError(t, err)
			previewed, err := runner.Preview(ctx, "dark mode toggle")
			require.NoError(t, err)

			const decisions = 4
			results := make([]TerminalState, decisions)
			errs := make([]error, decisions)
			done := make(chan struct{}, decisions)
			var wg sync.WaitGroup
			for i := range decisions {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[i], errs[i] = runner.Resume(ctx, previewed.RunID, "y")
					done <- struct{}{}
				}()
			}
			// The winner is held inside CreateIssue until every other
			// decision has returned.
			for range decisions - 1 {
				select {
				case <-done:
				case <-time.After(5 * time.Second):
					t.Fatal("decisions did not return while the run was claimed")
				}
			}
			close(release)
			wg.Wait()

			var created int
			for i := range decisions {
				if errs[i] != nil {
					assert.ErrorIs(t, errs[i], ErrNotPending)
					continue
				}
				created++
				assert.Equal(t, "KAN-1", results[i].Key)
			}
			assert.Equal(t, 1, created, "exactly one decision wins")
			assert.Equal(t, int32(1), calls.Load(), "one issue per run")
		})
	}
}

func TestPreview_GenerationFailure(t *testing.T) {
	store := checkpoint.NewMemory(0)
	runner, err := NewRunner(WithCheckpointStore(store))
	require.NoError(t, err)
	ctx := newTestContext(t, testEnv{storyLLM: failingLLM("down")})

	_, err = runner.Preview(ctx, "dark mode toggle")
	assert.ErrorIs(t, err, story.ErrGeneration)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "failed previews are not checkpointed")
}

// =============================================================================
// Subtask fan-out
// =============================================================================

func TestRunSubtaskWorkflow_PartialSuccess(t *testing.T) {
	mock := tracker.NewMock("KAN").FailFor("Persist choice", nil)
	captured := &notificationCapture{}
	ctx := newTestContext(t, testEnv{
		storyLLM:   llm.NewMockClient("story client unused"),
		subtaskLLM: llm.NewMockClient(subtasksReply("Toggle UI", "Persist choice", "Theme tokens", "System default")),
		issues:     mock,
	})

	result, err := newRunner(t).RunSubtaskWorkflow(notify.WithNotifier(ctx, captured), darkModeStory, "KAN-12")
	require.NoError(t, err, "branch failures are not a graph-level error")

	assert.Equal(t, 4, mock.CallCount(), "every subtask is attempted")
	assert.Len(t, result.Created, 3)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Persist choice", result.Failures[0].Title)
	assert.True(t, result.Partial())
	for _, c := range result.Created {
		assert.Equal(t, "KAN-12", c.ParentKey)
	}
	for _, call := range mock.Calls() {
		assert.Equal(t, "KAN-12", call.ParentKey)
	}

	require.Len(t, captured.events, 1)
	assert.Equal(t, notify.EventSubtasksPartial, captured.events[0].Type)
}

func TestRunSubtaskWorkflow_TooFewSubtasks(t *testing.T) {
	mock := tracker.NewMock("KAN")
	ctx := newTestContext(t, testEnv{
		storyLLM:   llm.NewMockClient("unused"),
		subtaskLLM: llm.NewMockClient(subtasksReply("Only one", "And two")),
		issues:     mock,
	})

	result, err := newRunner(t).RunSubtaskWorkflow(ctx, darkModeStory, "KAN-12")

	require.Error(t, err)
	assert.True(t, IsSubtaskCountError(err))
	var countErr *story.SubtaskCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 2, countErr.Got)
	assert.Zero(t, mock.CallCount(), "no Create calls dispatched")
	assert.Empty(t, result.Created)
}

func TestRunSubtaskWorkflow_CapsAtMax(t *testing.T) {
	mock := tracker.NewMock("KAN")
	ctx := newTestContext(t, testEnv{
		storyLLM:   llm.NewMockClient("unused"),
		subtaskLLM: llm.NewMockClient(subtasksReply("a", "b", "c", "d", "e", "f", "g")),
		issues:     mock,
	})

	result, err := newRunner(t).RunSubtaskWorkflow(ctx, darkModeStory, "KAN-12")
	require.NoError(t, err)
	assert.Len(t, result.Created, story.MaxSubtasks)
	assert.False(t, result.Partial())
}

func TestRunSubtaskWorkflow_MissingParentKey(t *testing.T) {
	ctx := newTestContext(t, testEnv{
		storyLLM: llm.NewMockClient(subtasksReply("a", "b", "c")),
		issues:   tracker.NewMock("KAN"),
	})

	_, err := newRunner(t).RunSubtaskWorkflow(ctx, darkModeStory, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parentKey", verr.Field)
}

func TestFanOutNode_RunsBranchesConcurrently(t *testing.T) {
	const n = 4
	var arrived sync.WaitGroup
	arrived.Add(n)
	release := make(chan struct{})

	var mu sync.Mutex
	next := 0
	issues := issueFunc(func(ctx context.Context, f tracker.IssueFields) (tracker.CreatedIssue, error) {
		arrived.Done()
		select {
		case <-release:
		case <-ctx.Done():
			return tracker.CreatedIssue{}, ctx.Err()
		}
		mu.Lock()
		next++
		key := "KAN-" + string(rune('0'+next))
		mu.Unlock()
		return tracker.CreatedIssue{Key: key, ParentKey: f.ParentKey}, nil
	})

	go func() {
		// Every branch must be in flight at once before any may finish.
		arrived.Wait()
		close(release)
	}()

	ctx := newTestContext(t, testEnv{issues: issues})
	state := NewState(FlowSubtasks).WithStory(darkModeStory).WithParentKey("KAN-12")
	for _, title := range []string{"a", "b", "c", "d"} {
		state.Subtasks = append(state.Subtasks, story.SubtaskItem{
			Title: title, Description: "d", AcceptanceCriteria: []string{"c"},
		})
	}

	done := make(chan State, 1)
	go func() {
		got, err := FanOutNode(ctx, state)
		assert.NoError(t, err)
		done <- got
	}()

	select {
	case got := <-done:
		assert.Len(t, got.CreatedIssues, n)
		assert.Len(t, got.Trace, n)
		assert.Empty(t, got.Failures)
		assert.False(t, got.HasError())
	case <-time.After(5 * time.Second):
		t.Fatal("branches did not run concurrently")
	}
}

func TestFanOutNode_LimitOne(t *testing.T) {
	var inFlight, peak atomic.Int32
	issues := issueFunc(func(_ context.Context, f tracker.IssueFields) (tracker.CreatedIssue, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return tracker.CreatedIssue{Key: f.Title}, nil
	})

	ctx := newTestContext(t, testEnv{issues: issues, fanOutLimit: 1})
	state := NewState(FlowSubtasks).WithStory(darkModeStory).WithParentKey("KAN-12")
	for _, title := range []string{"a", "b", "c"} {
		state.Subtasks = append(state.Subtasks, story.SubtaskItem{
			Title: title, Description: "d", AcceptanceCriteria: []string{"c"},
		})
	}

	got, err := FanOutNode(ctx, state)
	require.NoError(t, err)
	assert.Len(t, got.CreatedIssues, 3)
	assert.Equal(t, int32(1), peak.Load())
}

func TestFanOutNode_BranchStatesAreIndependent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]tracker.IssueFields{}
	issues := issueFunc(func(_ context.Context, f tracker.IssueFields) (tracker.CreatedIssue, error) {
		mu.Lock()
		seen[f.Title] = f
		mu.Unlock()
		return tracker.CreatedIssue{Key: "K-" + f.Title}, nil
	})

	ctx := newTestContext(t, testEnv{issues: issues})
	state := NewState(FlowSubtasks).WithStory(darkModeStory).WithParentKey("KAN-12")
	state.Subtasks = []story.SubtaskItem{
		{Title: "a", Description: "da", AcceptanceCriteria: []string{"ca"}},
		{Title: "b", Description: "db", AcceptanceCriteria: []string{"cb"}},
		{Title: "c", Description: "dc", AcceptanceCriteria: []string{"cc"}},
	}

	got, err := FanOutNode(ctx, state)
	require.NoError(t, err)

	for _, item := range state.Subtasks {
		f := seen[item.Title]
		assert.Equal(t, item.Description, f.Description)
		assert.Equal(t, item.AcceptanceCriteria, f.AcceptanceCriteria)
		assert.Equal(t, "KAN-12", f.ParentKey)
	}
	assert.Equal(t, darkModeTitle, got.Title, "parent story is untouched")
}
