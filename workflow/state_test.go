package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/randalmurphal/storyflow/checkpoint"
)

func TestState_Validate(t *testing.T) {
	complete := NewState(FlowStory).WithTopic("dark mode").WithStory(darkModeStory)

	tests := []struct {
		name  string
		state State
		req   StateRequirement
		field string
	}{
		{"topic ok", complete, RequireTopic, ""},
		{"topic missing", NewState(FlowStory).WithTopic("   "), RequireTopic, "topic"},
		{"story ok", complete, RequireStory, ""},
		{"title missing", NewState(FlowStory), RequireStory, "title"},
		{"parent missing", complete, RequireParentKey, "parentKey"},
		{"parent ok", complete.WithParentKey("KAN-1"), RequireParentKey, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate(tt.req)
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("error does not unwrap to ErrValidation")
			}
		})
	}
}

func TestState_ErrSurvivesOnlyInProcess(t *testing.T) {
	s := NewState(FlowStory)
	cause := errors.New("boom")
	s.SetError(cause)

	if !errors.Is(s.Err(), cause) {
		t.Errorf("Err() = %v, want the original error", s.Err())
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var restored State
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if restored.Err() == nil || restored.Err().Error() != "boom" {
		t.Errorf("restored Err() = %v, want boom", restored.Err())
	}
}

func TestRunID(t *testing.T) {
	a, b := NewState(FlowStory).RunID, NewState(FlowStory).RunID
	if a == b {
		t.Errorf("run IDs collide: %s", a)
	}
	if !strings.Contains(a, "-"+FlowStory+"-") {
		t.Errorf("run ID %q does not name the flow", a)
	}
	suffix := a[strings.LastIndex(a, "-")+1:]
	if len(suffix) != runIDLength || strings.Trim(suffix, runIDAlphabet) != "" {
		t.Errorf("run ID suffix %q, want %d chars from the run ID alphabet", suffix, runIDLength)
	}
}

func TestState_Summary(t *testing.T) {
	s := NewState(FlowStory).WithStory(darkModeStory)
	s.Approval = ApprovalPending
	if got := s.Summary(); !strings.Contains(got, "awaiting approval") {
		t.Errorf("Summary() = %q", got)
	}
}

func TestResume_NotPending(t *testing.T) {
	store := checkpoint.NewMemory(0)
	r, err := NewRunner(WithCheckpointStore(store))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	s := NewState(FlowStory).WithTopic("dark mode").WithStory(darkModeStory)
	s.Approval = ApprovalApproved
	data, _ := json.Marshal(s)
	if err := store.Save(context.Background(), s.RunID, data); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := r.Resume(context.Background(), s.RunID, "yes"); !errors.Is(err, ErrNotPending) {
		t.Errorf("Resume() = %v, want ErrNotPending", err)
	}
}
