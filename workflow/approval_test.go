package workflow

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		input string
		want  Approval
	}{
		{"y", ApprovalApproved},
		{"yes", ApprovalApproved},
		{"YES", ApprovalApproved},
		{"  Yes \n", ApprovalApproved},
		{"Y", ApprovalApproved},
		{"", ApprovalRejected},
		{"   ", ApprovalRejected},
		{"n", ApprovalRejected},
		{"no", ApprovalRejected},
		{"yes please", ApprovalRejected},
		{"yeah", ApprovalRejected},
		{"sure", ApprovalRejected},
		{"ok", ApprovalRejected},
		{"y e s", ApprovalRejected},
		{"1", ApprovalRejected},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseDecision(tt.input); got != tt.want {
				t.Errorf("ParseDecision(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDescribeDecision(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"yes", "Approved"},
		{"No", "Rejected"},
		{"", "Rejected (no input)"},
		{" maybe ", "Unrecognized: maybe"},
	}

	for _, tt := range tests {
		if got := describeDecision(tt.input); got != tt.want {
			t.Errorf("describeDecision(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestReaderApprover(t *testing.T) {
	var out bytes.Buffer
	a := NewReaderApprover(strings.NewReader("yes\nno\n"), &out)
	ctx := context.Background()

	first, err := a.Decide(ctx, "preview")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	second, err := a.Decide(ctx, "preview")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	if first != "yes" || second != "no" {
		t.Errorf("answers = %q, %q, want yes, no", first, second)
	}
	if got := strings.Count(out.String(), ApprovalPrompt); got != 2 {
		t.Errorf("prompt written %d times, want 2", got)
	}
}

func TestReaderApprover_EOF(t *testing.T) {
	a := NewReaderApprover(strings.NewReader(""), nil)

	got, err := a.Decide(context.Background(), "preview")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if got != "" {
		t.Errorf("Decide() = %q, want empty", got)
	}
	if ParseDecision(got) != ApprovalRejected {
		t.Error("end of input must reject")
	}
}

func TestReaderApprover_NoTrailingNewline(t *testing.T) {
	a := NewReaderApprover(strings.NewReader("y"), nil)

	got, err := a.Decide(context.Background(), "")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if got != "y" {
		t.Errorf("Decide() = %q, want y", got)
	}
}

func TestReaderApprover_CanceledContext(t *testing.T) {
	a := NewReaderApprover(strings.NewReader("yes\n"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Decide(ctx, ""); err == nil {
		t.Error("Decide() should fail on a canceled context")
	}
}

func TestApproverContext(t *testing.T) {
	ctx := context.Background()
	if ApproverFromContext(ctx) != nil {
		t.Error("ApproverFromContext should be nil without injection")
	}

	ctx = WithApprover(ctx, ApproverFunc(func(context.Context, string) (string, error) {
		return "y", nil
	}))
	a := ApproverFromContext(ctx)
	if a == nil {
		t.Fatal("ApproverFromContext returned nil after injection")
	}
	if got, _ := a.Decide(ctx, ""); got != "y" {
		t.Errorf("Decide() = %q, want y", got)
	}
}
