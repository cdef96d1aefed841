package workflow

import (
	"fmt"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
)

// RunFunc executes a compiled graph.
type RunFunc func(ctx flowgraph.Context, state State) (State, error)

// =============================================================================
// Routers
// =============================================================================

// continueUnlessError routes to next, or to onError once an error is set.
func continueUnlessError(next, onError string) func(flowgraph.Context, State) string {
	return func(_ flowgraph.Context, s State) string {
		if s.HasError() {
			return onError
		}
		return next
	}
}

// routeApproval is the gate branch. Errors and rejections go straight to
// notify; a pending gate loops.
func routeApproval(_ flowgraph.Context, s State) string {
	switch {
	case s.HasError():
		return NodeNotify
	case s.Approval == ApprovalApproved:
		return NodeCreate
	case s.Approval == ApprovalRejected:
		return NodeNotify
	default:
		return NodeApprove
	}
}

// routeSubtasks skips the fan-out on error or when nothing was generated.
func routeSubtasks(_ flowgraph.Context, s State) string {
	if s.HasError() || len(s.Subtasks) == 0 {
		return NodeNotifySubtasks
	}
	return NodeFanOut
}

// =============================================================================
// Graphs
// =============================================================================

// NewStoryGraph compiles the single-shot graph:
//
//	generate -> preview -> approve -{approved}-> create -> notify
//	                          |-{rejected}-> notify
//	                          |-{pending}--> approve
//
// An error in generate or preview skips straight to notify.
func NewStoryGraph() (RunFunc, error) {
	compiled, err := flowgraph.NewGraph[State]().
		AddNode(NodeGenerate, GenerateNode).
		AddNode(NodePreview, PreviewNode).
		AddNode(NodeApprove, ApproveNode).
		AddNode(NodeCreate, CreateNode).
		AddNode(NodeNotify, NotifyNode).
		AddConditionalEdge(NodeGenerate, continueUnlessError(NodePreview, NodeNotify)).
		AddConditionalEdge(NodePreview, continueUnlessError(NodeApprove, NodeNotify)).
		AddConditionalEdge(NodeApprove, routeApproval).
		AddEdge(NodeCreate, NodeNotify).
		AddEdge(NodeNotify, flowgraph.END).
		SetEntry(NodeGenerate).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile story graph: %w", err)
	}
	return func(ctx flowgraph.Context, s State) (State, error) {
		return compiled.Run(ctx, s)
	}, nil
}

// NewPreviewGraph compiles the first half of the two-call API:
// generate -> preview. A failed run is reported through notify.
func NewPreviewGraph() (RunFunc, error) {
	compiled, err := flowgraph.NewGraph[State]().
		AddNode(NodeGenerate, GenerateNode).
		AddNode(NodePreview, PreviewNode).
		AddNode(NodeNotify, NotifyNode).
		AddConditionalEdge(NodeGenerate, continueUnlessError(NodePreview, NodeNotify)).
		AddConditionalEdge(NodePreview, continueUnlessError(flowgraph.END, NodeNotify)).
		AddEdge(NodeNotify, flowgraph.END).
		SetEntry(NodeGenerate).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile preview graph: %w", err)
	}
	return func(ctx flowgraph.Context, s State) (State, error) {
		return compiled.Run(ctx, s)
	}, nil
}

// NewFinalizeGraph compiles the second half: approve -> create -> notify.
func NewFinalizeGraph() (RunFunc, error) {
	compiled, err := flowgraph.NewGraph[State]().
		AddNode(NodeApprove, ApproveNode).
		AddNode(NodeCreate, CreateNode).
		AddNode(NodeNotify, NotifyNode).
		AddConditionalEdge(NodeApprove, routeApproval).
		AddEdge(NodeCreate, NodeNotify).
		AddEdge(NodeNotify, flowgraph.END).
		SetEntry(NodeApprove).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile finalize graph: %w", err)
	}
	return func(ctx flowgraph.Context, s State) (State, error) {
		return compiled.Run(ctx, s)
	}, nil
}

// NewSubtaskGraph compiles generate_subtasks -> fan_out -> notify_subtasks.
func NewSubtaskGraph() (RunFunc, error) {
	compiled, err := flowgraph.NewGraph[State]().
		AddNode(NodeGenerateSubtasks, GenerateSubtasksNode).
		AddNode(NodeFanOut, FanOutNode).
		AddNode(NodeNotifySubtasks, NotifySubtasksNode).
		AddConditionalEdge(NodeGenerateSubtasks, routeSubtasks).
		AddEdge(NodeFanOut, NodeNotifySubtasks).
		AddEdge(NodeNotifySubtasks, flowgraph.END).
		SetEntry(NodeGenerateSubtasks).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile subtask graph: %w", err)
	}
	return func(ctx flowgraph.Context, s State) (State, error) {
		return compiled.Run(ctx, s)
	}, nil
}
