// Package integrationtest runs storyflow end to end against an in-process
// Jira and Redis.
package integrationtest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/storyflow/config"
	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/logging"
	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/testutil"
	"github.com/randalmurphal/storyflow/workflow"
)

const projectKey = "KAN"

var darkMode = story.Story{
	Title:       "As a user, I want to toggle dark mode",
	Description: "As a user, I want to toggle dark mode so that the app is easier on my eyes at night.",
	AcceptanceCriteria: []string{
		"Given settings, when I flip the toggle, then the theme changes",
		"Given a reload, when the app starts, then my choice is kept",
	},
}

type env struct {
	jira     *testutil.FakeJira
	redis    *miniredis.Miniredis
	settings *config.Settings
	services *sfcontext.Services
	runner   *workflow.Runner
	logger   *slog.Logger
}

type envOpts struct {
	storyLLM   story.Completer
	subtaskLLM story.Completer
}

// newEnv wires real services to a fake Jira and a miniredis checkpoint
// store. Only the LLM is mocked.
func newEnv(t *testing.T, opts envOpts) *env {
	t.Helper()

	fake := testutil.NewFakeJira(t, projectKey)
	mr := miniredis.RunT(t)

	if opts.storyLLM == nil {
		opts.storyLLM = llm.NewMockClient(testutil.StoryReply(darkMode))
	}
	if opts.subtaskLLM == nil {
		opts.subtaskLLM = llm.NewMockClient(testutil.SubtasksReply(4))
	}

	settings := &config.Settings{
		Jira: config.JiraSettings{
			Client:        fake.Config(),
			ProjectKey:    projectKey,
			StoryTypeID:   "10001",
			SubtaskTypeID: "10003",
		},
		LLM:      config.LLMSettings{Provider: config.ProviderClaude},
		Redis:    config.RedisSettings{Addr: mr.Addr(), TTL: time.Hour},
		Subtasks: 5,
		LogLevel: slog.LevelDebug,
	}
	logger := logging.NewNop()

	services, err := sfcontext.NewServices(testutil.TestContext(t), sfcontext.Config{
		Settings:   settings,
		Logger:     logger,
		Metrics:    metrics.New(),
		StoryLLM:   opts.storyLLM,
		SubtaskLLM: opts.subtaskLLM,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })

	return &env{
		jira:     fake,
		redis:    mr,
		settings: settings,
		services: services,
		runner:   newRunner(t, services, logger),
		logger:   logger,
	}
}

func newRunner(t *testing.T, services *sfcontext.Services, logger *slog.Logger) *workflow.Runner {
	t.Helper()
	runner, err := workflow.NewRunner(
		workflow.WithCheckpointStore(services.Checkpoints),
		workflow.WithRunnerLogger(logger),
	)
	require.NoError(t, err)
	return runner
}

// ctx returns a test context carrying the services.
func (e *env) ctx(t *testing.T) context.Context {
	t.Helper()
	return workflow.WithFanOutLimit(testutil.ServicesContext(t, e.services), e.settings.Subtasks)
}
