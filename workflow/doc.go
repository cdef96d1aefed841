// Package workflow turns a topic into a Jira story through a flowgraph
// pipeline with a human approval gate, and fans approved stories out into
// subtasks.
//
// Core types:
//   - State: Run state with the story, approval gate, created issues and trace
//   - Update: Partial state change applied with Merge
//   - Runner: Compiled graphs plus the checkpoint store for suspended runs
//   - TerminalState: Created, rejected or failed
//   - SubtaskResult: Created subtasks and per-subtask failures
//
// Nodes:
//   - GenerateNode: Topic to story through the story generator
//   - PreviewNode: Validates the story and formats the preview
//   - ApproveNode: Resolves the gate from State.Decision or an Approver
//   - CreateNode: Creates the issue, as a subtask when ParentKey is set
//   - NotifyNode: Reports the outcome
//   - GenerateSubtasksNode, FanOutNode: Subtask scatter/gather
//
// Services are read from the context (see the storyflow context package).
//
// Example usage:
//
//	runner, err := workflow.NewRunner(workflow.WithCheckpointStore(store))
//	previewed, err := runner.Preview(ctx, "dark mode toggle")
//	fmt.Println(previewed.Preview)
//	result := runner.Finalize(ctx, previewed, "yes")
package workflow
