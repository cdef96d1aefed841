package context

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/randalmurphal/storyflow/checkpoint"
	"github.com/randalmurphal/storyflow/config"
	"github.com/randalmurphal/storyflow/jira"
	"github.com/randalmurphal/storyflow/llmclient"
	"github.com/randalmurphal/storyflow/metrics"
	"github.com/randalmurphal/storyflow/notify"
	"github.com/randalmurphal/storyflow/prompt"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/task"
	"github.com/randalmurphal/storyflow/tracker"
)

// Services wraps all storyflow services for convenient initialization
type Services struct {
	Generator   *story.Generator
	Issues      tracker.IssueClient
	Prompts     *prompt.Loader
	Notifier    notify.Notifier // Optional notification service
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
	Site        Site
	Checkpoints checkpoint.Store

	closers []io.Closer
}

// InjectAll adds all configured services to the context
func (s *Services) InjectAll(ctx context.Context) context.Context {
	if s.Generator != nil {
		ctx = WithGenerator(ctx, s.Generator)
	}
	if s.Issues != nil {
		ctx = WithIssues(ctx, s.Issues)
	}
	if s.Prompts != nil {
		ctx = WithPrompt(ctx, s.Prompts)
	}
	if s.Notifier != nil {
		ctx = notify.WithNotifier(ctx, s.Notifier)
	}
	if s.Metrics != nil {
		ctx = WithMetrics(ctx, s.Metrics)
	}
	if s.Logger != nil {
		ctx = WithLogger(ctx, s.Logger)
	}
	if s.Site != (Site{}) {
		ctx = WithSite(ctx, s.Site)
	}
	return ctx
}

// Close releases connections opened by NewServices.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Config configures NewServices
type Config struct {
	Settings *config.Settings // required
	Logger   *slog.Logger     // default: slog.Default()
	Metrics  *metrics.Recorder

	// Overrides, mainly for tests. Nil builds from Settings.
	StoryLLM   story.Completer
	SubtaskLLM story.Completer
	Issues     tracker.IssueClient
	Notifier   notify.Notifier
}

// NewServices creates Services from settings. Remote sinks that fail to
// connect are fatal so misconfiguration shows up at startup.
func NewServices(ctx context.Context, cfg Config) (*Services, error) {
	if cfg.Settings == nil {
		return nil, errors.New("storyflow/context: settings are required")
	}
	set := cfg.Settings

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Services{
		Logger:  logger,
		Metrics: cfg.Metrics,
		Prompts: prompt.NewLoader("."),
	}
	if set.LLM.PromptDir != "" {
		s.Prompts.AddSearchDir(set.LLM.PromptDir)
	}

	if err := s.buildGenerator(cfg, logger); err != nil {
		return nil, err
	}
	if err := s.buildTracker(cfg, logger); err != nil {
		return nil, err
	}
	if err := s.buildNotifier(ctx, cfg, logger); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.buildCheckpoints(ctx, set.Redis); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Services) buildGenerator(cfg Config, logger *slog.Logger) error {
	storyLLM := cfg.StoryLLM
	if storyLLM == nil {
		c, err := llmclient.New(cfg.Settings.LLM, task.GenerateStory, logger)
		if err != nil {
			return fmt.Errorf("story llm: %w", err)
		}
		storyLLM = c
	}

	subtaskLLM := cfg.SubtaskLLM
	if subtaskLLM == nil {
		c, err := llmclient.New(cfg.Settings.LLM, task.GenerateSubtasks, logger)
		if err != nil {
			return fmt.Errorf("subtask llm: %w", err)
		}
		subtaskLLM = c
	}

	s.Generator = story.NewGenerator(storyLLM,
		story.WithSubtaskCompleter(subtaskLLM),
		story.WithPromptLoader(s.Prompts),
		story.WithLogger(logger),
	)
	return nil
}

func (s *Services) buildTracker(cfg Config, logger *slog.Logger) error {
	js := cfg.Settings.Jira
	s.Site = Site{ProjectKey: js.ProjectKey}
	if js.Client != nil {
		s.Site.BaseURL = jira.CloudURL(js.Client.URL)
	}

	if cfg.Issues != nil {
		s.Issues = cfg.Issues
		return nil
	}

	client, err := jira.NewClient(js.Client)
	if err != nil {
		return fmt.Errorf("jira client: %w", err)
	}
	s.Site.BaseURL = client.BaseURL()

	fallback := tracker.StaticTypeResolver{StoryID: js.StoryTypeID, SubtaskID: js.SubtaskTypeID}
	s.Issues = tracker.NewJira(client, js.ProjectKey,
		tracker.WithIssueTypeResolver(tracker.NewProjectTypeResolver(client, js.ProjectKey, fallback, logger)),
		tracker.WithStartDateField(js.StartDateField),
		tracker.WithLogger(logger),
	)
	return nil
}

func (s *Services) buildNotifier(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if cfg.Notifier != nil {
		s.Notifier = cfg.Notifier
		return nil
	}

	ns := cfg.Settings.Notify
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}

	if ns.SlackWebhookURL != "" {
		var opts []notify.SlackOption
		if ns.SlackChannel != "" {
			opts = append(opts, notify.WithSlackChannel(ns.SlackChannel))
		}
		notifiers = append(notifiers, notify.NewSlackNotifier(ns.SlackWebhookURL, opts...))
	}
	if ns.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(ns.WebhookURL, nil))
	}
	if ns.NATSURL != "" {
		n, err := notify.ConnectNATS(ctx, ns.NATSURL, ns.NATSSubject, logger)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		s.closers = append(s.closers, n)
		notifiers = append(notifiers, n)
	}

	if len(notifiers) == 1 {
		s.Notifier = notifiers[0]
		return nil
	}
	multi := notify.NewMultiNotifier(notifiers...)
	multi.Logger = logger
	s.Notifier = multi
	return nil
}

func (s *Services) buildCheckpoints(ctx context.Context, rs config.RedisSettings) error {
	if rs.Addr == "" {
		s.Checkpoints = checkpoint.NewMemory(rs.TTL)
		return nil
	}

	store := checkpoint.NewRedis(rs.Addr, rs.Password, rs.DB, checkpoint.WithTTL(rs.TTL))
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("redis %s: %w", rs.Addr, err)
	}
	s.closers = append(s.closers, store)
	s.Checkpoints = store
	return nil
}
