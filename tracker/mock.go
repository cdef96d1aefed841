package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMockFailure is the cause recorded for titles configured to fail.
var ErrMockFailure = errors.New("mock tracker failure")

// Mock is an in-memory IssueClient. Keys are PREFIX-1, PREFIX-2, ... in call
// order; it is safe for concurrent use.
type Mock struct {
	Prefix  string
	BaseURL string

	mu      sync.Mutex
	failFor map[string]error
	calls   []IssueFields
	next    int
}

// NewMock creates a mock that issues keys under prefix.
func NewMock(prefix string) *Mock {
	return &Mock{
		Prefix:  prefix,
		BaseURL: "https://example.atlassian.net",
		failFor: make(map[string]error),
	}
}

// FailFor makes CreateIssue fail for the given title. A nil err uses
// ErrMockFailure.
func (m *Mock) FailFor(title string, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = ErrMockFailure
	}
	m.failFor[title] = err
	return m
}

// CreateIssue implements IssueClient.
func (m *Mock) CreateIssue(_ context.Context, fields IssueFields) (CreatedIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, fields)

	if err := fields.Validate(); err != nil {
		return CreatedIssue{}, err
	}
	if err, ok := m.failFor[fields.Title]; ok {
		return CreatedIssue{}, &IssueCreationError{Title: fields.Title, Err: err}
	}

	m.next++
	key := fmt.Sprintf("%s-%d", m.Prefix, m.next)
	created := CreatedIssue{Key: key, URL: m.BaseURL + "/browse/" + key}
	if fields.ParentKey != "" {
		created.ParentKey = fields.ParentKey
		created.ParentURL = m.BaseURL + "/browse/" + fields.ParentKey
	}
	return created, nil
}

// Calls returns a copy of every request received.
func (m *Mock) Calls() []IssueFields {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]IssueFields, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of CreateIssue calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
