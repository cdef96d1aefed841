package context

import (
	"context"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/randalmurphal/storyflow/checkpoint"
	"github.com/randalmurphal/storyflow/config"
	"github.com/randalmurphal/storyflow/jira"
	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/notify"
	"github.com/randalmurphal/storyflow/tracker"
)

func testSettings() *config.Settings {
	cfg := jira.DefaultConfig()
	cfg.URL = "https://acme.atlassian.net/"
	cfg.Auth = jira.AuthConfig{Type: jira.AuthAPIToken, Email: "dev@acme.io", Token: "t"}
	return &config.Settings{
		Jira: config.JiraSettings{
			Client:        cfg,
			ProjectKey:    "KAN",
			StoryTypeID:   "10001",
			SubtaskTypeID: "10003",
		},
		LLM:      config.LLMSettings{Provider: config.ProviderClaude},
		Subtasks: 5,
	}
}

func TestAccessors_Empty(t *testing.T) {
	ctx := context.Background()

	if Generator(ctx) != nil {
		t.Error("Generator should be nil")
	}
	if Issues(ctx) != nil {
		t.Error("Issues should be nil")
	}
	if Prompt(ctx) != nil {
		t.Error("Prompt should be nil")
	}
	if Metrics(ctx) != nil {
		t.Error("Metrics should be nil")
	}
	if Logger(ctx) == nil {
		t.Error("Logger should fall back to slog.Default")
	}
	if _, ok := SiteFrom(ctx); ok {
		t.Error("SiteFrom should report absent")
	}
	Metrics(ctx).IssueCreated("story")
}

func TestMustGenerator_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustGenerator should panic without a generator")
		}
	}()
	MustGenerator(context.Background())
}

func TestMustIssues_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustIssues should panic without a client")
		}
	}()
	MustIssues(context.Background())
}

func TestNewServices_WithOverrides(t *testing.T) {
	mock := tracker.NewMock("KAN")
	rec := metrics.New()

	s, err := NewServices(context.Background(), Config{
		Settings:   testSettings(),
		Metrics:    rec,
		StoryLLM:   llm.NewMockClient(`{"title":"T"}`),
		SubtaskLLM: llm.NewMockClient(`[]`),
		Issues:     mock,
		Notifier:   notify.NopNotifier{},
	})
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	defer s.Close()

	if _, ok := s.Checkpoints.(*checkpoint.Memory); !ok {
		t.Errorf("Checkpoints = %T, want *checkpoint.Memory", s.Checkpoints)
	}
	if s.Site.ProjectKey != "KAN" || s.Site.BaseURL != "https://acme.atlassian.net" {
		t.Errorf("Site = %+v", s.Site)
	}

	ctx := s.InjectAll(context.Background())
	if MustGenerator(ctx) != s.Generator {
		t.Error("generator not injected")
	}
	if Issues(ctx) != tracker.IssueClient(mock) {
		t.Error("issues not injected")
	}
	if Metrics(ctx) != rec {
		t.Error("metrics not injected")
	}
	if notify.NotifierFromContext(ctx) == nil {
		t.Error("notifier not injected")
	}
	if site, ok := SiteFrom(ctx); !ok || site.ProjectKey != "KAN" {
		t.Errorf("SiteFrom = %+v, %v", site, ok)
	}
}

func TestNewServices_BuildsJiraTracker(t *testing.T) {
	set := testSettings()
	set.Notify.WebhookURL = "http://127.0.0.1:1/hook"

	s, err := NewServices(context.Background(), Config{
		Settings:   set,
		StoryLLM:   llm.NewMockClient("{}"),
		SubtaskLLM: llm.NewMockClient("[]"),
	})
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	defer s.Close()

	j, ok := s.Issues.(*tracker.Jira)
	if !ok {
		t.Fatalf("Issues = %T, want *tracker.Jira", s.Issues)
	}
	if j.ProjectKey() != "KAN" {
		t.Errorf("ProjectKey = %q", j.ProjectKey())
	}
	if _, ok := s.Notifier.(*notify.MultiNotifier); !ok {
		t.Errorf("Notifier = %T, want *notify.MultiNotifier", s.Notifier)
	}
}

func TestNewServices_RequiresSettings(t *testing.T) {
	if _, err := NewServices(context.Background(), Config{}); err == nil {
		t.Error("expected error without settings")
	}
}
