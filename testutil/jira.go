package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/randalmurphal/storyflow/jira"
)

// FakeJira is an in-process Jira REST API. It serves serverInfo, project
// and issue creation for both API versions and records every create
// request.
type FakeJira struct {
	Server     *httptest.Server
	ProjectKey string
	IssueTypes []jira.IssueType
	Deployment string // "Cloud" unless set

	mu        sync.Mutex
	created   []map[string]any
	next      int
	failCode  int
	failMsg   string
	failCount int
}

// NewFakeJira starts a fake for projectKey. It is closed when the test
// ends.
func NewFakeJira(t *testing.T, projectKey string) *FakeJira {
	t.Helper()

	f := &FakeJira{
		ProjectKey: projectKey,
		IssueTypes: []jira.IssueType{
			{ID: "10001", Name: "Story"},
			{ID: "10003", Name: "Sub-task", Subtask: true},
		},
		Deployment: "Cloud",
	}

	r := chi.NewRouter()
	r.Get("/rest/api/{version}/serverInfo", f.serverInfo)
	r.Get("/rest/api/{version}/project/{key}", f.project)
	r.Post("/rest/api/{version}/issue", f.createIssue)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL of the fake.
func (f *FakeJira) URL() string {
	return f.Server.URL
}

// Config returns a client config pointing at the fake.
func (f *FakeJira) Config() *jira.Config {
	return &jira.Config{
		URL:        f.Server.URL,
		APIVersion: jira.APIVersionV3,
		Auth: jira.AuthConfig{
			Type:  jira.AuthAPIToken,
			Email: "bot@example.com",
			Token: "token",
		},
	}
}

// FailNext makes the next n create requests fail with status and msg.
func (f *FakeJira) FailNext(n, status int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCount, f.failCode, f.failMsg = n, status, msg
}

// SetNext makes the next created issue PROJECT-n.
func (f *FakeJira) SetNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = n - 1
}

// Created returns the "fields" object of every accepted create request.
func (f *FakeJira) Created() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.created))
	copy(out, f.created)
	return out
}

func (f *FakeJira) serverInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, jira.ServerInfo{
		BaseURL:        f.Server.URL,
		Version:        "1001.0.0",
		DeploymentType: f.Deployment,
		ServerTitle:    "Fake Jira",
	})
}

func (f *FakeJira) project(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key != f.ProjectKey {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"errorMessages": []string{fmt.Sprintf("No project could be found with key '%s'.", key)},
		})
		return
	}
	writeJSON(w, http.StatusOK, jira.Project{
		ID:         "10000",
		Key:        f.ProjectKey,
		Name:       "Fake project",
		IssueTypes: f.IssueTypes,
	})
}

func (f *FakeJira) createIssue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{err.Error()}})
		return
	}

	f.mu.Lock()
	if f.failCount > 0 {
		f.failCount--
		code, msg := f.failCode, f.failMsg
		f.mu.Unlock()
		writeJSON(w, code, map[string]any{"errorMessages": []string{msg}})
		return
	}
	f.next++
	n := f.next
	f.created = append(f.created, body.Fields)
	f.mu.Unlock()

	key := fmt.Sprintf("%s-%d", f.ProjectKey, n)
	writeJSON(w, http.StatusCreated, jira.CreateIssueResponse{
		ID:   fmt.Sprint(10000 + n),
		Key:  key,
		Self: f.Server.URL + "/rest/api/3/issue/" + key,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
