package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
	"github.com/randalmurphal/storyflow/workflow"
)

// Error messages returned on bad input.
const (
	msgInvalidTopic   = "Missing or invalid topic"
	msgMissingContent = "Missing title, description, or acceptanceCriteria"
	msgInvalidBody    = "Invalid request body"
)

// TopicRequest carries the topic to turn into a story.
type TopicRequest struct {
	Topic string `json:"topic" validate:"notblank"`
}

// StoryResponse wraps a generated story.
type StoryResponse struct {
	Story story.Story `json:"story"`
}

// OptionalFields are the optional issue fields of CreateRequest.
type OptionalFields struct {
	ParentKey string   `json:"parentKey" validate:"omitempty,jirakey"`
	DueDate   string   `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	StartDate string   `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	Labels    []string `json:"labels" validate:"omitempty,dive,notblank"`
}

// CreateRequest is the body of POST /create-jira.
type CreateRequest struct {
	Title              string         `json:"title" validate:"notblank"`
	Description        string         `json:"description" validate:"notblank"`
	AcceptanceCriteria []string       `json:"acceptanceCriteria" validate:"required,min=1"`
	OptionalFields     OptionalFields `json:"optionalFields"`
}

// DecisionRequest is the body of POST /runs/{runID}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

// SubtasksRequest is the body of POST /subtasks.
type SubtasksRequest struct {
	Parent    story.Story `json:"parent"`
	ParentKey string      `json:"parentKey" validate:"jirakey"`
}

// SubtasksResponse reports a subtask fan-out.
type SubtasksResponse struct {
	workflow.SubtaskResult
	Partial bool `json:"partial"`
}

// RunsResponse lists runs awaiting a decision.
type RunsResponse struct {
	Pending []string `json:"pending"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) generateStory(w http.ResponseWriter, r *http.Request) {
	var req TopicRequest
	if !s.decode(w, r, &req, msgInvalidTopic) {
		return
	}

	gen := sfcontext.Generator(r.Context())
	if gen == nil {
		writeError(w, http.StatusServiceUnavailable, "story generator not configured")
		return
	}

	st, err := gen.GenerateStory(r.Context(), strings.TrimSpace(req.Topic))
	if err != nil {
		s.fail(w, r, "generate story", err)
		return
	}
	writeJSON(w, http.StatusOK, StoryResponse{Story: st})
}

func (s *Server) createJira(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !s.decode(w, r, &req, msgMissingContent) {
		return
	}

	issues := sfcontext.Issues(r.Context())
	if issues == nil {
		writeError(w, http.StatusServiceUnavailable, "issue tracker not configured")
		return
	}

	created, err := issues.CreateIssue(r.Context(), tracker.IssueFields{
		Title:              req.Title,
		Description:        req.Description,
		AcceptanceCriteria: req.AcceptanceCriteria,
		ParentKey:          req.OptionalFields.ParentKey,
		DueDate:            req.OptionalFields.DueDate,
		StartDate:          req.OptionalFields.StartDate,
		Labels:             req.OptionalFields.Labels,
	})
	if err != nil {
		if errors.Is(err, tracker.ErrMissingContent) {
			writeError(w, http.StatusBadRequest, msgMissingContent)
			return
		}
		s.fail(w, r, "create issue", err)
		return
	}

	kind := "story"
	if req.OptionalFields.ParentKey != "" {
		kind = "subtask"
	}
	s.metrics.IssueCreated(kind)
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.runner.Pending(r.Context())
	if err != nil {
		s.fail(w, r, "list runs", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, RunsResponse{Pending: ids})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req TopicRequest
	if !s.decode(w, r, &req, msgInvalidTopic) {
		return
	}

	previewed, err := s.runner.Preview(r.Context(), strings.TrimSpace(req.Topic))
	if err != nil {
		s.fail(w, r, "preview run", err)
		return
	}
	writeJSON(w, http.StatusCreated, previewed)
}

func (s *Server) decideRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var req DecisionRequest
	if !s.decode(w, r, &req, msgInvalidBody) {
		return
	}

	result, err := s.runner.Resume(r.Context(), runID, req.Decision)
	switch {
	case errors.Is(err, workflow.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, workflow.ErrNotPending):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.fail(w, r, "resume run", err)
		return
	}

	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func (s *Server) createSubtasks(w http.ResponseWriter, r *http.Request) {
	var req SubtasksRequest
	if !s.decode(w, r, &req, msgInvalidBody) {
		return
	}
	if !req.Parent.Complete() {
		writeError(w, http.StatusBadRequest, msgMissingContent)
		return
	}

	result, err := s.runner.RunSubtaskWorkflow(r.Context(), req.Parent, req.ParentKey)
	if err != nil {
		if workflow.IsSubtaskCountError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.fail(w, r, "create subtasks", err)
		return
	}

	status := http.StatusOK
	switch {
	case result.Partial():
		status = http.StatusMultiStatus
	case len(result.Created) == 0 && len(result.Failures) > 0:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, SubtasksResponse{SubtaskResult: result, Partial: result.Partial()})
}

// decode reads a JSON body into v and validates it. On failure it writes
// a 400 with msg and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, msg string) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		sfcontext.Logger(r.Context()).Debug("request rejected", "error", err)
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	sfcontext.Logger(r.Context()).Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
