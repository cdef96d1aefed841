package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
)

// =============================================================================
// Embeddable State Components
// =============================================================================

// StoryState holds the generated story. The three content fields are set
// together or not at all.
type StoryState struct {
	Title              string   `json:"title,omitempty"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`

	// ParentKey makes the created issue a subtask of this key.
	ParentKey string `json:"parentKey,omitempty"`
}

// ApprovalState tracks the human gate.
type ApprovalState struct {
	Approval         Approval `json:"approval,omitempty"`
	Decision         string   `json:"decision,omitempty"`
	ApprovalAttempts int      `json:"approvalAttempts,omitempty"`
	Preview          string   `json:"preview,omitempty"`
}

// MetricsState tracks execution metrics
type MetricsState struct {
	TotalTokensIn  int           `json:"totalTokensIn"`
	TotalTokensOut int           `json:"totalTokensOut"`
	StartTime      time.Time     `json:"startTime"`
	TotalDuration  time.Duration `json:"totalDuration"`
}

// TraceEntry is one line of the run's message log.
type TraceEntry struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Message string `json:"message"`
}

// SubtaskFailure records a subtask branch that could not create its issue.
type SubtaskFailure struct {
	Title string `json:"title"`
	Error string `json:"error"`
}

// =============================================================================
// State - Full Workflow State
// =============================================================================

// State is the complete state of a story run.
type State struct {
	// Identification
	RunID  string `json:"runId"`
	FlowID string `json:"flowId"`

	// Input
	Topic string `json:"topic,omitempty"`

	StoryState
	ApprovalState
	MetricsState

	Subtasks      []story.SubtaskItem    `json:"subtasks,omitempty"`
	CreatedIssues []tracker.CreatedIssue `json:"createdIssues,omitempty"`
	Failures      []SubtaskFailure       `json:"failures,omitempty"`
	Trace         []TraceEntry           `json:"trace,omitempty"`

	// Error tracking
	Error string `json:"error,omitempty"`
	cause error
}

// NewState creates a new story workflow state
func NewState(flowID string) State {
	return State{
		RunID:  generateRunID(flowID),
		FlowID: flowID,
		MetricsState: MetricsState{
			StartTime: time.Now(),
		},
	}
}

// WithTopic sets the topic.
func (s State) WithTopic(topic string) State {
	s.Topic = strings.TrimSpace(topic)
	return s
}

// WithStory sets the story fields.
func (s State) WithStory(st story.Story) State {
	s.Title = st.Title
	s.Description = st.Description
	s.AcceptanceCriteria = append([]string(nil), st.AcceptanceCriteria...)
	return s
}

// WithParentKey makes the run create a subtask of key.
func (s State) WithParentKey(key string) State {
	s.ParentKey = key
	return s
}

// Story returns the story fields as a story.Story.
func (s State) Story() story.Story {
	return story.Story{
		Title:              s.Title,
		Description:        s.Description,
		AcceptanceCriteria: s.AcceptanceCriteria,
	}
}

// HasStory reports whether a complete story is present.
func (s State) HasStory() bool {
	return s.Story().Complete()
}

// LastCreated returns the most recently created issue, if any.
func (s State) LastCreated() (tracker.CreatedIssue, bool) {
	if len(s.CreatedIssues) == 0 {
		return tracker.CreatedIssue{}, false
	}
	return s.CreatedIssues[len(s.CreatedIssues)-1], true
}

// AddTokens updates token metrics
func (s *State) AddTokens(in, out int) {
	s.TotalTokensIn += in
	s.TotalTokensOut += out
}

// FinalizeDuration sets total duration from start time
func (s *State) FinalizeDuration() {
	s.TotalDuration = time.Since(s.StartTime)
}

// SetError sets the error state
func (s *State) SetError(err error) {
	if err != nil {
		s.Error = err.Error()
		s.cause = err
	}
}

// Err returns the recorded error, or nil. The original error value is kept
// within one process; a state restored from a checkpoint only has the
// message.
func (s State) Err() error {
	switch {
	case s.cause != nil:
		return s.cause
	case s.Error != "":
		return errors.New(s.Error)
	}
	return nil
}

// HasError returns true if state has an error
func (s State) HasError() bool {
	return s.Error != ""
}

// =============================================================================
// State Validation
// =============================================================================

// StateRequirement defines a state prerequisite
type StateRequirement string

const (
	RequireTopic     StateRequirement = "topic"
	RequireStory     StateRequirement = "story"
	RequireParentKey StateRequirement = "parentKey"
)

// Validate checks if state has required fields. Failures are
// *ValidationError values naming the field.
func (s State) Validate(requirements ...StateRequirement) error {
	for _, req := range requirements {
		switch req {
		case RequireTopic:
			if s.Topic == "" {
				return &ValidationError{Field: "topic"}
			}
		case RequireStory:
			switch {
			case strings.TrimSpace(s.Title) == "":
				return &ValidationError{Field: "title"}
			case strings.TrimSpace(s.Description) == "":
				return &ValidationError{Field: "description"}
			case !s.HasStory():
				return &ValidationError{Field: "acceptanceCriteria"}
			}
		case RequireParentKey:
			if s.ParentKey == "" {
				return &ValidationError{Field: "parentKey"}
			}
		default:
			return fmt.Errorf("unknown requirement: %s", req)
		}
	}
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

const (
	runIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	runIDLength   = 10
)

// generateRunID creates a unique run ID. nanoid only fails on an invalid
// alphabet or size, and both are constants here.
func generateRunID(flowID string) string {
	timestamp := time.Now().Format("2006-01-02")
	suffix := nanoid.MustGenerate(runIDAlphabet, runIDLength)
	return fmt.Sprintf("%s-%s-%s", timestamp, flowID, suffix)
}

// =============================================================================
// State Summary
// =============================================================================

// Summary returns a human-readable summary of the state
func (s State) Summary() string {
	var status string
	switch {
	case s.Error != "":
		status = "failed"
	case len(s.CreatedIssues) > 0:
		status = "created"
	case s.Approval == ApprovalRejected:
		status = "rejected"
	case s.Approval == ApprovalPending:
		status = "awaiting approval"
	case s.Title != "":
		status = "generated"
	default:
		status = "pending"
	}

	return fmt.Sprintf("Run %s [%s]: %s (issues: %d, tokens: %d in, %d out)",
		s.RunID, status, s.FlowID,
		len(s.CreatedIssues), s.TotalTokensIn, s.TotalTokensOut)
}
