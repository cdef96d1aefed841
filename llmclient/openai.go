package llmclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// Sentinel errors.
var (
	ErrNoAPIKey      = errors.New("openai api key is required")
	ErrEmptyResponse = errors.New("openai returned no choices")
)

// OpenAIConfig configures an OpenAI completer.
type OpenAIConfig struct {
	APIKey string

	// BaseURL points at an OpenAI-compatible API, e.g. a local proxy.
	// Empty uses api.openai.com.
	BaseURL string

	Model  string
	Logger *slog.Logger
}

// OpenAI completes requests through the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI completer.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	cfg.Logger.Debug("initializing openai client", "model", cfg.Model)
	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: cfg.Logger,
	}, nil
}

// Model returns the model requests are sent to.
func (o *OpenAI) Model() string {
	return o.model
}

// Complete implements story.Completer.
func (o *OpenAI) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleAssistant
		if m.Role == llm.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	o.logger.Debug("openai completion",
		"model", o.model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.Content}
	out.Usage.InputTokens = resp.Usage.PromptTokens
	out.Usage.OutputTokens = resp.Usage.CompletionTokens
	return out, nil
}
