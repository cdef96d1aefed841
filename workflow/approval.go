package workflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxApprovalAttempts bounds how many times the gate waits for a decision
// before it resolves to rejected.
const MaxApprovalAttempts = 3

// ApprovalPrompt is the question asked by ReaderApprover.
const ApprovalPrompt = "Do you want to create this story in Jira? (yes/no): "

// ParseDecision maps human input to an approval. Only "y" and "yes"
// (trimmed, any case) approve; everything else rejects.
func ParseDecision(input string) Approval {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return ApprovalApproved
	default:
		return ApprovalRejected
	}
}

// describeDecision is the trace message for a decision.
func describeDecision(input string) string {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return "Approved"
	case "n", "no":
		return "Rejected"
	case "":
		return "Rejected (no input)"
	default:
		return "Unrecognized: " + strings.TrimSpace(input)
	}
}

// Approver asks a human for a decision on a preview. It returns
// ErrNoDecision when nobody answered yet.
type Approver interface {
	Decide(ctx context.Context, preview string) (string, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, preview string) (string, error)

// Decide implements Approver.
func (f ApproverFunc) Decide(ctx context.Context, preview string) (string, error) {
	return f(ctx, preview)
}

// ReaderApprover prompts on W and reads one line from R.
type ReaderApprover struct {
	W io.Writer

	mu sync.Mutex
	r  *bufio.Reader
}

// NewReaderApprover creates an approver over r and w. The reader is
// buffered once so repeated prompts do not lose input.
func NewReaderApprover(r io.Reader, w io.Writer) *ReaderApprover {
	return &ReaderApprover{W: w, r: bufio.NewReader(r)}
}

// Decide implements Approver. End of input counts as an empty answer,
// which ParseDecision rejects.
func (a *ReaderApprover) Decide(ctx context.Context, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.W != nil {
		if _, err := fmt.Fprint(a.W, ApprovalPrompt); err != nil {
			return "", err
		}
	}

	line, err := a.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadLine reads one trimmed line, for prompts other than approval.
func (a *ReaderApprover) ReadLine() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	line, err := a.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type approverContextKey struct{}

// WithApprover adds an Approver to the context.
func WithApprover(ctx context.Context, a Approver) context.Context {
	return context.WithValue(ctx, approverContextKey{}, a)
}

// ApproverFromContext extracts the Approver, or nil.
func ApproverFromContext(ctx context.Context) Approver {
	if a, ok := ctx.Value(approverContextKey{}).(Approver); ok {
		return a
	}
	return nil
}
