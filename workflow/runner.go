package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/storyflow/checkpoint"
	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/story"
)

// Flow IDs used in run IDs and events.
const (
	FlowStory    = "story"
	FlowSubtasks = "subtasks"
)

// Outcomes reported by TerminalState.Outcome.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// =============================================================================
// Results
// =============================================================================

// PreviewedStory is a run suspended at the approval gate.
type PreviewedStory struct {
	RunID   string      `json:"runId"`
	Story   story.Story `json:"story"`
	Preview string      `json:"preview"`
}

// TerminalState is how a story run ended: created, rejected or failed.
type TerminalState struct {
	RunID    string `json:"runId"`
	Key      string `json:"key,omitempty"`
	URL      string `json:"url,omitempty"`
	Rejected bool   `json:"rejected,omitempty"`
	Error    string `json:"error,omitempty"`

	State State `json:"-"`
}

// Outcome classifies the run. An error wins over everything else.
func (t TerminalState) Outcome() string {
	switch {
	case t.Error != "":
		return OutcomeFailed
	case t.Rejected:
		return OutcomeRejected
	default:
		return OutcomeCreated
	}
}

// Err returns the run's error, or nil.
func (t TerminalState) Err() error {
	if t.Error == "" {
		return nil
	}
	return t.State.Err()
}

func terminalFrom(s State) TerminalState {
	t := TerminalState{RunID: s.RunID, State: s}
	switch {
	case s.HasError():
		t.Error = s.Error
	case s.Approval == ApprovalRejected:
		t.Rejected = true
	default:
		if created, ok := s.LastCreated(); ok {
			t.Key = created.Key
			t.URL = created.URL
		} else {
			t.Error = "run ended without creating an issue"
		}
	}
	return t
}

// =============================================================================
// Runner
// =============================================================================

// Runner owns the compiled graphs and the checkpoint store.
type Runner struct {
	full     RunFunc
	preview  RunFunc
	finalize RunFunc
	subtasks RunFunc

	store  checkpoint.Store
	logger *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckpointStore sets where suspended runs are kept. The default is
// an in-memory store.
func WithCheckpointStore(s checkpoint.Store) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithRunnerLogger sets the logger for run lifecycle messages.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner compiles all graphs.
func NewRunner(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		store:  checkpoint.NewMemory(0),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	if r.full, err = NewStoryGraph(); err != nil {
		return nil, err
	}
	if r.preview, err = NewPreviewGraph(); err != nil {
		return nil, err
	}
	if r.finalize, err = NewFinalizeGraph(); err != nil {
		return nil, err
	}
	if r.subtasks, err = NewSubtaskGraph(); err != nil {
		return nil, err
	}
	return r, nil
}

// RunMainWorkflow runs topic through the whole graph in one call. The
// decision comes from the Approver in ctx; without one the gate rejects.
func (r *Runner) RunMainWorkflow(ctx context.Context, topic string) TerminalState {
	state := NewState(FlowStory).WithTopic(topic)
	final := r.run(ctx, r.full, state)
	return r.finish(ctx, final)
}

// Preview generates and formats a story, then checkpoints the run so
// Finalize or Resume can complete it.
func (r *Runner) Preview(ctx context.Context, topic string) (PreviewedStory, error) {
	state := NewState(FlowStory).WithTopic(topic)
	state = r.run(ctx, r.preview, state)
	if state.HasError() {
		r.record(ctx, state, OutcomeFailed)
		return PreviewedStory{}, state.Err()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return PreviewedStory{}, fmt.Errorf("encode run %s: %w", state.RunID, err)
	}
	if err := r.store.Save(ctx, state.RunID, data); err != nil {
		return PreviewedStory{}, fmt.Errorf("checkpoint run %s: %w", state.RunID, err)
	}

	r.logger.Info("run awaiting approval", "run_id", state.RunID, "title", state.Title)
	return PreviewedStory{
		RunID:   state.RunID,
		Story:   state.Story(),
		Preview: state.Preview,
	}, nil
}

// Finalize resumes a previewed run with the human decision. The run is
// claimed from its checkpoint, so a PreviewedStory finalizes at most once.
func (r *Runner) Finalize(ctx context.Context, previewed PreviewedStory, decision string) TerminalState {
	t, err := r.Resume(ctx, previewed.RunID, decision)
	if err != nil {
		return TerminalState{RunID: previewed.RunID, Error: err.Error()}
	}
	return t
}

// Resume claims the checkpoint for runID and finishes it with decision.
// Only one caller can resume a run; the others get ErrNotPending.
func (r *Runner) Resume(ctx context.Context, runID, decision string) (TerminalState, error) {
	data, err := r.store.Claim(ctx, runID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		return TerminalState{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	case errors.Is(err, checkpoint.ErrClaimed):
		return TerminalState{}, fmt.Errorf("%w: %s is already being finalized", ErrNotPending, runID)
	case err != nil:
		return TerminalState{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		r.discard(ctx, runID)
		return TerminalState{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	if state.Approval != ApprovalPending {
		r.discard(ctx, runID)
		return TerminalState{}, fmt.Errorf("%w: %s is %q", ErrNotPending, runID, state.Approval)
	}
	return r.resume(ctx, state, decision), nil
}

// Pending lists runs waiting for a decision.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

func (r *Runner) resume(ctx context.Context, state State, decision string) TerminalState {
	// The decision is answered through the gate's Approver so that an
	// empty answer still resolves it, as a rejection.
	ctx = WithApprover(ctx, ApproverFunc(func(context.Context, string) (string, error) {
		return decision, nil
	}))

	final := r.run(ctx, r.finalize, state)
	r.discard(ctx, state.RunID)
	return r.finish(ctx, final)
}

// discard deletes a claimed checkpoint.
func (r *Runner) discard(ctx context.Context, runID string) {
	if err := r.store.Delete(ctx, runID); err != nil {
		r.logger.Warn("delete checkpoint failed", "run_id", runID, "error", err)
	}
}

// RunSubtaskWorkflow splits parent into subtasks and creates them under
// parentKey. A generation failure returns an error and creates nothing;
// per-subtask failures are reported in the result.
func (r *Runner) RunSubtaskWorkflow(ctx context.Context, parent story.Story, parentKey string) (SubtaskResult, error) {
	state := NewState(FlowSubtasks).WithStory(parent).WithParentKey(parentKey)
	final := r.run(ctx, r.subtasks, state)

	result := subtaskResult(final)
	if final.HasError() {
		r.record(ctx, final, OutcomeFailed)
		return result, final.Err()
	}

	r.logger.Info("subtasks finished",
		"run_id", final.RunID,
		"parent_key", parentKey,
		"created", len(result.Created),
		"failed", len(result.Failures),
	)
	return result, nil
}

// run executes a graph, turning a graph-level failure into State.Error.
func (r *Runner) run(ctx context.Context, graph RunFunc, state State) State {
	fctx := flowContext(ctx)
	final, err := graph(fctx, state)
	if err != nil {
		// Node errors come back with the state as it was on entry.
		if final.RunID == "" {
			final = state
		}
		final.SetError(err)
	}
	final.FinalizeDuration()
	return final
}

func (r *Runner) finish(ctx context.Context, final State) TerminalState {
	t := terminalFrom(final)
	r.record(ctx, final, t.Outcome())
	r.logger.Info("run finished",
		"run_id", final.RunID,
		"outcome", t.Outcome(),
		"key", t.Key,
		"duration", final.TotalDuration,
	)
	return t
}

func (r *Runner) record(ctx context.Context, s State, outcome string) {
	sfcontext.Metrics(ctx).RunFinished(outcome)
	if outcome == OutcomeFailed {
		r.logger.Warn("run failed", "run_id", s.RunID, "error", s.Error)
	}
}

// flowContext reuses ctx when it already is a flowgraph.Context.
func flowContext(ctx context.Context) flowgraph.Context {
	if fctx, ok := ctx.(flowgraph.Context); ok {
		return fctx
	}
	return flowgraph.NewContext(ctx)
}
