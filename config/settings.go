package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/storyflow/jira"
)

// Configuration keys.
const (
	KeyJiraURL            = "jira_url"
	KeyJiraDomain         = "jira_domain"
	KeyJiraEmail          = "jira_email"
	KeyJiraToken          = "jira_token"
	KeyJiraAuthType       = "jira_auth_type"
	KeyJiraUsername       = "jira_username"
	KeyJiraPassword       = "jira_password"
	KeyJiraClientID       = "jira_client_id"
	KeyJiraClientSecret   = "jira_client_secret"
	KeyJiraRefreshToken   = "jira_refresh_token"
	KeyJiraProjectKey     = "jira_project_key"
	KeyJiraAPIVersion     = "jira_api_version"
	KeyJiraStoryTypeID    = "jira_story_type_id"
	KeyJiraSubtaskTypeID  = "jira_subtask_type_id"
	KeyJiraStartDateField = "jira_start_date_field"

	KeyLLMProvider   = "llm_provider"
	KeyLLMModel      = "llm_model"
	KeyOpenAIAPIKey  = "openai_api_key"
	KeyOpenAIBaseURL = "openai_base_url"
	KeyPromptDir     = "prompt_dir"

	KeyRedisAddr     = "redis_addr"
	KeyRedisPassword = "redis_password"
	KeyRedisDB       = "redis_db"
	KeyCheckpointTTL = "checkpoint_ttl"

	KeyServerAddr       = "server_addr"
	KeyServerPort       = "port"
	KeyServerAPIKeyHash = "server_api_key_hash"
	KeyServerJWTSecret  = "server_jwt_secret"

	KeySlackWebhookURL = "slack_webhook_url"
	KeySlackChannel    = "slack_channel"
	KeyWebhookURL      = "webhook_url"
	KeyNATSURL         = "nats_url"
	KeyNATSSubject     = "nats_subject"

	KeySubtaskConcurrency = "subtask_concurrency"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
)

// LLM providers.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Sentinel errors returned by Load.
var (
	ErrProjectKeyRequired = errors.New("jira project key is required")
	ErrUnknownProvider    = errors.New("unknown llm provider")
	ErrOpenAIKeyRequired  = errors.New("openai api key is required for provider openai")
	ErrInvalidNumber      = errors.New("invalid numeric value")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
)

// Defaults are the built-in values, lowest priority.
var Defaults = map[string]string{
	KeyJiraAuthType:       string(jira.AuthAPIToken),
	KeyJiraAPIVersion:     string(jira.APIVersionAuto),
	KeyJiraStoryTypeID:    "10001",
	KeyJiraSubtaskTypeID:  "10003",
	KeyJiraStartDateField: "customfield_10015",
	KeyLLMProvider:        ProviderClaude,
	KeyRedisDB:            "0",
	KeyCheckpointTTL:      "24h",
	KeyServerAddr:         ":3001",
	KeyNATSSubject:        "storyflow.events",
	KeySubtaskConcurrency: "5",
	KeyLogLevel:           "info",
	KeyLogFormat:          "text",
}

// EnvAliases maps keys to the unprefixed variables the service has always
// been configured with.
var EnvAliases = map[string]string{
	KeyJiraDomain:     "JIRA_DOMAIN",
	KeyJiraEmail:      "JIRA_EMAIL",
	KeyJiraToken:      "JIRA_API_TOKEN",
	KeyJiraProjectKey: "JIRA_PROJECT_KEY",
	KeyOpenAIAPIKey:   "OPENAI_API_KEY",
	KeyServerPort:     "PORT",
	KeyRedisAddr:      "REDIS_ADDR",
	KeyNATSURL:        "NATS_URL",
}

// ValidKeys lists every key accepted in config files and by config set.
var ValidKeys = func() []string {
	return []string{
		KeyJiraURL, KeyJiraDomain, KeyJiraEmail, KeyJiraToken, KeyJiraAuthType,
		KeyJiraUsername, KeyJiraPassword, KeyJiraClientID, KeyJiraClientSecret,
		KeyJiraRefreshToken, KeyJiraProjectKey, KeyJiraAPIVersion,
		KeyJiraStoryTypeID, KeyJiraSubtaskTypeID, KeyJiraStartDateField,
		KeyLLMProvider, KeyLLMModel, KeyOpenAIAPIKey, KeyOpenAIBaseURL, KeyPromptDir,
		KeyRedisAddr, KeyRedisPassword, KeyRedisDB, KeyCheckpointTTL,
		KeyServerAddr, KeyServerPort, KeyServerAPIKeyHash, KeyServerJWTSecret,
		KeySlackWebhookURL, KeySlackChannel, KeyWebhookURL, KeyNATSURL, KeyNATSSubject,
		KeySubtaskConcurrency, KeyLogLevel, KeyLogFormat,
	}
}()

// StoryflowResolver returns the resolver configuration for storyflow.
// configFile is the --config flag and may be empty.
func StoryflowResolver(configFile string) ResolverConfig {
	return ResolverConfig{
		EnvPrefix:       "STORYFLOW_",
		EnvAliases:      EnvAliases,
		GlobalConfigDir: "storyflow",
		LocalConfigName: ".storyflow.yaml",
		ConfigFile:      configFile,
		Defaults:        Defaults,
		ValidKeys:       ValidKeys,
	}
}

// Settings is the typed view of a resolved configuration.
type Settings struct {
	Jira      JiraSettings
	LLM       LLMSettings
	Redis     RedisSettings
	Server    ServerSettings
	Notify    NotifySettings
	Subtasks  int
	LogLevel  slog.Level
	LogFormat string
}

// JiraSettings holds the tracker connection and issue defaults.
type JiraSettings struct {
	Client         *jira.Config
	ProjectKey     string
	StoryTypeID    string
	SubtaskTypeID  string
	StartDateField string
}

// LLMSettings selects and configures the completer.
type LLMSettings struct {
	Provider      string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	PromptDir     string
}

// RedisSettings configures the checkpoint store. An empty Addr selects the
// in-memory store.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ServerSettings configures the HTTP entry point.
type ServerSettings struct {
	Addr       string
	APIKeyHash string
	JWTSecret  string
}

// AuthEnabled reports whether requests must authenticate.
func (s ServerSettings) AuthEnabled() bool {
	return s.APIKeyHash != "" || s.JWTSecret != ""
}

// NotifySettings lists the enabled notification sinks.
type NotifySettings struct {
	SlackWebhookURL string
	SlackChannel    string
	WebhookURL      string
	NATSURL         string
	NATSSubject     string
}

// Load converts resolved values into Settings.
func Load(c *Resolved) (*Settings, error) {
	s := &Settings{LogFormat: strings.ToLower(c.Get(KeyLogFormat))}

	js, err := loadJira(c)
	if err != nil {
		return nil, err
	}
	s.Jira = js

	s.LLM = LLMSettings{
		Provider:      strings.ToLower(c.Get(KeyLLMProvider)),
		Model:         c.Get(KeyLLMModel),
		OpenAIKey:     c.Get(KeyOpenAIAPIKey),
		OpenAIBaseURL: c.Get(KeyOpenAIBaseURL),
		PromptDir:     c.Get(KeyPromptDir),
	}
	switch s.LLM.Provider {
	case ProviderClaude:
	case ProviderOpenAI:
		if s.LLM.OpenAIKey == "" {
			return nil, ErrOpenAIKeyRequired
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, s.LLM.Provider)
	}

	db, err := intValue(c, KeyRedisDB)
	if err != nil {
		return nil, err
	}
	ttl, err := durationValue(c, KeyCheckpointTTL)
	if err != nil {
		return nil, err
	}
	s.Redis = RedisSettings{
		Addr:     c.Get(KeyRedisAddr),
		Password: c.Get(KeyRedisPassword),
		DB:       db,
		TTL:      ttl,
	}

	s.Server = ServerSettings{
		Addr:       serverAddr(c),
		APIKeyHash: c.Get(KeyServerAPIKeyHash),
		JWTSecret:  c.Get(KeyServerJWTSecret),
	}

	s.Notify = NotifySettings{
		SlackWebhookURL: c.Get(KeySlackWebhookURL),
		SlackChannel:    c.Get(KeySlackChannel),
		WebhookURL:      c.Get(KeyWebhookURL),
		NATSURL:         c.Get(KeyNATSURL),
		NATSSubject:     c.Get(KeyNATSSubject),
	}

	if s.Subtasks, err = intValue(c, KeySubtaskConcurrency); err != nil {
		return nil, err
	}
	if s.Subtasks < 1 {
		return nil, fmt.Errorf("%w: %s must be at least 1", ErrInvalidNumber, KeySubtaskConcurrency)
	}

	if err := s.LogLevel.UnmarshalText([]byte(c.Get(KeyLogLevel))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return nil, ErrInvalidLogFormat
	}

	return s, nil
}

func loadJira(c *Resolved) (JiraSettings, error) {
	cfg := jira.DefaultConfig()
	cfg.URL = c.Get(KeyJiraURL)
	if cfg.URL == "" {
		cfg.URL = jira.CloudURL(c.Get(KeyJiraDomain))
	}
	cfg.APIVersion = jira.APIVersion(c.Get(KeyJiraAPIVersion))
	cfg.Auth = jira.AuthConfig{
		Type:         jira.AuthType(c.Get(KeyJiraAuthType)),
		Email:        c.Get(KeyJiraEmail),
		Token:        c.Get(KeyJiraToken),
		Username:     c.Get(KeyJiraUsername),
		Password:     c.Get(KeyJiraPassword),
		ClientID:     c.Get(KeyJiraClientID),
		ClientSecret: c.Get(KeyJiraClientSecret),
		RefreshToken: c.Get(KeyJiraRefreshToken),
	}
	if err := cfg.Validate(); err != nil {
		return JiraSettings{}, err
	}

	js := JiraSettings{
		Client:         cfg,
		ProjectKey:     strings.ToUpper(strings.TrimSpace(c.Get(KeyJiraProjectKey))),
		StoryTypeID:    c.Get(KeyJiraStoryTypeID),
		SubtaskTypeID:  c.Get(KeyJiraSubtaskTypeID),
		StartDateField: c.Get(KeyJiraStartDateField),
	}
	if js.ProjectKey == "" {
		return JiraSettings{}, ErrProjectKeyRequired
	}
	return js, nil
}

// serverAddr prefers an explicit address over the legacy PORT variable.
func serverAddr(c *Resolved) string {
	if port := c.Get(KeyServerPort); port != "" && c.Source(KeyServerAddr) == SourceDefault {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return c.Get(KeyServerAddr)
}

func intValue(c *Resolved, key string) (int, error) {
	raw := c.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, key, raw)
	}
	return n, nil
}

func durationValue(c *Resolved, key string) (time.Duration, error) {
	raw := c.Get(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, raw)
	}
	return d, nil
}
