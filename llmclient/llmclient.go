// Package llmclient builds the completers the story generator talks to.
//
// Two providers are supported: the Claude CLI through flowgraph's llm
// package, and any OpenAI-compatible chat completion endpoint.
package llmclient

import (
	"fmt"
	"log/slog"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/randalmurphal/storyflow/config"
	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/task"
)

// New returns the completer for one stage, choosing the model through the
// task package.
func New(cfg config.LLMSettings, stage task.Type, logger *slog.Logger) (story.Completer, error) {
	model := task.SelectModel(stage, cfg.Model)

	switch cfg.Provider {
	case config.ProviderClaude, "":
		return NewClaude(model, ""), nil
	case config.ProviderOpenAI:
		if cfg.Model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   model,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}

// NewClaude wraps the claude CLI. An empty workdir uses the current
// directory.
func NewClaude(model, workdir string) story.Completer {
	if workdir == "" {
		workdir = "."
	}
	return llm.NewClaudeCLI(
		llm.WithModel(model),
		llm.WithWorkdir(workdir),
		llm.WithDangerouslySkipPermissions(),
	)
}
