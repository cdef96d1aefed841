// Package story turns a topic into a structured Jira story, and an approved
// story into subtasks, by prompting an LLM and parsing its JSON reply.
//
// Parsing is forgiving: a reply without usable JSON still yields a complete
// story built from defaults. Only a failed LLM call is an error.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"

	llm "github.com/randalmurphal/llmkit/claude"
)

// Subtask bounds and title limit.
const (
	MinSubtasks    = 3
	MaxSubtasks    = 5
	MaxTitleLength = 100
)

// Sentinel errors.
var (
	ErrGeneration   = errors.New("story generation failed")
	ErrSubtaskCount = errors.New("subtask count out of range")
	ErrEmptyTopic   = errors.New("topic is required")
)

// Story is a generated Jira story.
type Story struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// Complete reports whether every field carries content.
func (s Story) Complete() bool {
	if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Description) == "" {
		return false
	}
	for _, c := range s.AcceptanceCriteria {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// SubtaskItem is one generated subtask of an approved story.
type SubtaskItem = Story

// Usage is the token accounting of one LLM call.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Completer is the slice of an LLM client the generator needs. flowgraph's
// llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// GenerationError reports a failed LLM call.
type GenerationError struct {
	Stage string // "story" or "subtasks"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Stage, e.Err)
}

// Unwrap exposes both ErrGeneration and the cause.
func (e *GenerationError) Unwrap() []error {
	return []error{ErrGeneration, e.Err}
}

// SubtaskCountError reports that fewer than MinSubtasks usable subtasks
// came back.
type SubtaskCountError struct {
	Got int
}

func (e *SubtaskCountError) Error() string {
	return fmt.Sprintf("expected %d-%d subtasks, got %d", MinSubtasks, MaxSubtasks, e.Got)
}

func (e *SubtaskCountError) Unwrap() error {
	return ErrSubtaskCount
}
