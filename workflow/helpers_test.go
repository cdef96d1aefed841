package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
	llm "github.com/randalmurphal/llmkit/claude"

	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
)

const darkModeTitle = "As a user, I want to toggle dark mode"

var darkModeStory = story.Story{
	Title:       darkModeTitle,
	Description: "As a user, I want to toggle dark mode so that the app is easier on my eyes at night.",
	AcceptanceCriteria: []string{
		"Given settings, when I flip the toggle, then the theme changes",
		"Given a reload, when the app starts, then my choice is kept",
		"Given system dark mode, when no choice is saved, then it is followed",
	},
}

func storyReply(s story.Story) string {
	data, _ := json.Marshal(map[string]any{
		"title":              s.Title,
		"description":        s.Description,
		"acceptanceCriteria": s.AcceptanceCriteria,
	})
	return "Here you go:\n" + string(data)
}

func subtasksReply(titles ...string) string {
	items := make([]map[string]any, 0, len(titles))
	for _, title := range titles {
		items = append(items, map[string]any{
			"title":              title,
			"description":        "Implement " + title,
			"acceptanceCriteria": []string{title + " works"},
		})
	}
	data, _ := json.Marshal(items)
	return string(data)
}

// issueFunc adapts a function to tracker.IssueClient.
type issueFunc func(ctx context.Context, f tracker.IssueFields) (tracker.CreatedIssue, error)

func (f issueFunc) CreateIssue(ctx context.Context, fields tracker.IssueFields) (tracker.CreatedIssue, error) {
	return f(ctx, fields)
}

// fixedKey returns an issue client that always creates key.
func fixedKey(key string) issueFunc {
	return func(_ context.Context, f tracker.IssueFields) (tracker.CreatedIssue, error) {
		if err := f.Validate(); err != nil {
			return tracker.CreatedIssue{}, err
		}
		return tracker.CreatedIssue{Key: key, URL: "https://acme.atlassian.net/browse/" + key}, nil
	}
}

type testEnv struct {
	storyLLM    story.Completer
	subtaskLLM  story.Completer
	issues      tracker.IssueClient
	approver    Approver
	fanOutLimit int
	metrics     *metrics.Recorder
	logger      *slog.Logger
}

// newTestContext builds a flowgraph context with the given services.
func newTestContext(t *testing.T, env testEnv) flowgraph.Context {
	t.Helper()

	ctx := context.Background()
	if env.storyLLM != nil {
		opts := []story.GeneratorOption{}
		if env.subtaskLLM != nil {
			opts = append(opts, story.WithSubtaskCompleter(env.subtaskLLM))
		}
		ctx = sfcontext.WithGenerator(ctx, story.NewGenerator(env.storyLLM, opts...))
	}
	if env.issues != nil {
		ctx = sfcontext.WithIssues(ctx, env.issues)
	}
	if env.approver != nil {
		ctx = WithApprover(ctx, env.approver)
	}
	if env.fanOutLimit > 0 {
		ctx = WithFanOutLimit(ctx, env.fanOutLimit)
	}
	if env.metrics != nil {
		ctx = sfcontext.WithMetrics(ctx, env.metrics)
	}
	if env.logger != nil {
		ctx = sfcontext.WithLogger(ctx, env.logger)
	}
	ctx = sfcontext.WithSite(ctx, sfcontext.Site{ProjectKey: "KAN", BaseURL: "https://acme.atlassian.net"})

	return flowgraph.NewContext(ctx)
}

func answer(decision string) Approver {
	return ApproverFunc(func(context.Context, string) (string, error) {
		return decision, nil
	})
}

func failingLLM(msg string) story.Completer {
	return llm.NewMockClient("").WithCompleteFunc(func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, fmt.Errorf("%s", msg)
	})
}
