package workflow

import (
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
)

// Approval is the state of the human gate.
type Approval string

const (
	ApprovalUnset    Approval = ""
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Final reports whether the gate has been resolved.
func (a Approval) Final() bool {
	return a == ApprovalApproved || a == ApprovalRejected
}

// Update is a partial state change produced by a node. Nil pointers and nil
// slices mean "absent"; an absent field never changes the state.
type Update struct {
	Topic     *string
	Story     *story.Story
	ParentKey *string
	Subtasks  []story.SubtaskItem

	Approval         Approval
	Decision         *string
	ApprovalAttempts *int
	Preview          *string

	Error *string
	cause error

	// Appended, never replaced.
	CreatedIssues []tracker.CreatedIssue
	Failures      []SubtaskFailure
	Trace         []TraceEntry

	// Added to the running totals.
	TokensIn  int
	TokensOut int
}

// Merge applies u to s and returns the result.
//
// Scalars and the story are replaced when present. CreatedIssues, Failures
// and Trace are concatenated. A resolved approval never changes again, and a
// non-empty error is never cleared.
func Merge(s State, u Update) State {
	if u.Topic != nil {
		s.Topic = *u.Topic
	}
	if u.Story != nil {
		s.Title = u.Story.Title
		s.Description = u.Story.Description
		s.AcceptanceCriteria = append([]string(nil), u.Story.AcceptanceCriteria...)
	}
	if u.ParentKey != nil {
		s.ParentKey = *u.ParentKey
	}
	if u.Subtasks != nil {
		s.Subtasks = append([]story.SubtaskItem(nil), u.Subtasks...)
	}

	if u.Approval != ApprovalUnset && !s.Approval.Final() {
		s.Approval = u.Approval
	}
	if u.Decision != nil {
		s.Decision = *u.Decision
	}
	if u.ApprovalAttempts != nil {
		s.ApprovalAttempts = *u.ApprovalAttempts
	}
	if u.Preview != nil {
		s.Preview = *u.Preview
	}

	if u.Error != nil && *u.Error != "" {
		s.Error = *u.Error
		s.cause = u.cause
	}

	// Copy before appending so states that share a backing array (branch
	// copies of one parent) never write into each other.
	s.CreatedIssues = concat(s.CreatedIssues, u.CreatedIssues)
	s.Failures = concat(s.Failures, u.Failures)
	s.Trace = concat(s.Trace, u.Trace)

	s.TotalTokensIn += u.TokensIn
	s.TotalTokensOut += u.TokensOut
	return s
}

// MergeAll folds updates into s in order.
func MergeAll(s State, updates ...Update) State {
	for _, u := range updates {
		s = Merge(s, u)
	}
	return s
}

func concat[T any](base, extra []T) []T {
	if len(extra) == 0 {
		return base
	}
	out := make([]T, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// errorUpdate is the Update that records err.
func errorUpdate(err error) Update {
	msg := err.Error()
	return Update{Error: &msg, cause: err}
}

func ptr[T any](v T) *T {
	return &v
}
