// Package tracker creates stories and subtasks in an issue tracker.
//
// The workflow depends only on IssueClient; Jira is the production
// implementation and Mock backs tests and dry runs.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrMissingContent is returned before any network call when the title,
	// description, or acceptance criteria are empty.
	ErrMissingContent = errors.New("missing story content")

	// ErrIssueCreation marks every failure to create an issue.
	ErrIssueCreation = errors.New("issue creation failed")
)

// IssueFields is the content of an issue to create.
type IssueFields struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`

	// Optional fields.
	ParentKey string   `json:"parentKey,omitempty"`
	DueDate   string   `json:"dueDate,omitempty"`   // YYYY-MM-DD
	StartDate string   `json:"startDate,omitempty"` // YYYY-MM-DD
	Labels    []string `json:"labels,omitempty"`
}

// IsSubtask reports whether the issue will be created under a parent.
func (f IssueFields) IsSubtask() bool {
	return f.ParentKey != ""
}

// Validate checks the required content.
func (f IssueFields) Validate() error {
	if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.Description) == "" {
		return ErrMissingContent
	}
	for _, c := range f.AcceptanceCriteria {
		if strings.TrimSpace(c) != "" {
			return nil
		}
	}
	return ErrMissingContent
}

// CreatedIssue identifies an issue the tracker accepted.
type CreatedIssue struct {
	Key       string `json:"jiraKey"`
	URL       string `json:"jiraUrl"`
	ParentKey string `json:"parentKey,omitempty"`
	ParentURL string `json:"parentUrl,omitempty"`
}

// IssueClient creates issues.
type IssueClient interface {
	CreateIssue(ctx context.Context, fields IssueFields) (CreatedIssue, error)
}

// IssueCreationError wraps a failed create with the title it was for.
type IssueCreationError struct {
	Title string
	Err   error
}

func (e *IssueCreationError) Error() string {
	if e.Title == "" {
		return fmt.Sprintf("%v: %v", ErrIssueCreation, e.Err)
	}
	return fmt.Sprintf("%v for %q: %v", ErrIssueCreation, e.Title, e.Err)
}

// Unwrap exposes both ErrIssueCreation and the cause to errors.Is.
func (e *IssueCreationError) Unwrap() []error {
	return []error{ErrIssueCreation, e.Err}
}
