package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/storyflow/config"
	sfcontext "github.com/randalmurphal/storyflow/context"
	sferrors "github.com/randalmurphal/storyflow/errors"
	"github.com/randalmurphal/storyflow/logging"
	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/tracker"
	"github.com/randalmurphal/storyflow/workflow"
)

// app holds everything a command needs after configuration is loaded.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	services *sfcontext.Services
	runner   *workflow.Runner
}

// configureServices is applied to the services config before it is
// built. Tests replace it to swap the LLM and tracker.
var configureServices = func(cfg sfcontext.Config) sfcontext.Config { return cfg }

// loadSettings resolves configuration from files, environment and the
// global flags.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	rc := config.StoryflowResolver(configFile)
	rc.ErrWriter = cmd.ErrOrStderr()

	flags := map[string]string{config.KeyLogLevel: logLevel}
	resolved := config.NewResolver(rc).ResolveWithFlags(flags)

	settings, err := config.Load(resolved)
	switch {
	case errors.Is(err, config.ErrProjectKeyRequired):
		return nil, sferrors.NewNotConfiguredError(config.KeyJiraProjectKey)
	case err != nil:
		return nil, fmt.Errorf("load config: %w", err)
	}
	return settings, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewFormat(cmd.ErrOrStderr(), settings.LogFormat, settings.LogLevel)

	cfg := sfcontext.Config{
		Settings: settings,
		Logger:   logger,
		Metrics:  metrics.New(),
	}
	if dryRun {
		cfg.Issues = tracker.NewMock(settings.Jira.ProjectKey)
	}

	services, err := sfcontext.NewServices(cmd.Context(), configureServices(cfg))
	if err != nil {
		return nil, err
	}

	runner, err := workflow.NewRunner(
		workflow.WithCheckpointStore(services.Checkpoints),
		workflow.WithRunnerLogger(logger),
	)
	if err != nil {
		_ = services.Close()
		return nil, err
	}

	return &app{settings: settings, logger: logger, services: services, runner: runner}, nil
}

// Close releases the services.
func (a *app) Close() {
	if err := a.services.Close(); err != nil {
		a.logger.Warn("close services", "error", err)
	}
}

// context returns ctx with the services and fan-out limit applied.
func (a *app) context(ctx context.Context) context.Context {
	ctx = a.services.InjectAll(ctx)
	return workflow.WithFanOutLimit(ctx, a.settings.Subtasks)
}

// explain turns workflow errors into user-facing CLI errors.
func (a *app) explain(err error) error {
	if errors.Is(err, story.ErrGeneration) {
		return sferrors.WrapLLMError(err, a.settings.LLM.Provider)
	}
	return sferrors.Explain(err, a.services.Site.BaseURL, a.settings.Jira.ProjectKey)
}
