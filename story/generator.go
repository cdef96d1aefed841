package story

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/randalmurphal/storyflow/prompt"
)

// Generator produces stories and subtasks.
type Generator struct {
	story    Completer
	subtasks Completer
	prompts  *prompt.Loader
	system   string
	logger   *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSubtaskCompleter uses a separate completer for subtask generation,
// typically one bound to a different model.
func WithSubtaskCompleter(c Completer) GeneratorOption {
	return func(g *Generator) {
		if c != nil {
			g.subtasks = c
		}
	}
}

// WithPromptLoader overrides the prompt loader.
func WithPromptLoader(l *prompt.Loader) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.prompts = l
		}
	}
}

// WithSystemPrompt sets a system prompt sent with every request.
func WithSystemPrompt(s string) GeneratorOption {
	return func(g *Generator) {
		g.system = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a generator backed by c. Prompts default to the
// embedded templates.
func NewGenerator(c Completer, opts ...GeneratorOption) *Generator {
	g := &Generator{
		story:    c,
		subtasks: c,
		prompts:  prompt.NewLoader(""),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateStory turns a topic into a story.
func (g *Generator) GenerateStory(ctx context.Context, topic string) (Story, error) {
	s, _, err := g.GenerateStoryWithUsage(ctx, topic)
	return s, err
}

// GenerateStoryWithUsage is GenerateStory that also reports token usage.
func (g *Generator) GenerateStoryWithUsage(ctx context.Context, topic string) (Story, Usage, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Story{}, Usage{}, ErrEmptyTopic
	}

	text, err := g.prompts.LoadWithVars(prompt.GenerateStory, map[string]any{
		"Topic":          topic,
		"MaxTitleLength": MaxTitleLength,
	})
	if err != nil {
		return Story{}, Usage{}, &GenerationError{Stage: "story", Err: err}
	}

	reply, usage, err := g.complete(ctx, g.story, text)
	if err != nil {
		return Story{}, usage, &GenerationError{Stage: "story", Err: err}
	}

	s := ParseStory(reply, topic)
	g.logger.Debug("story generated",
		"topic", topic,
		"criteria", len(s.AcceptanceCriteria),
		"tokens_in", usage.InputTokens,
		"tokens_out", usage.OutputTokens,
	)
	return s, usage, nil
}

// GenerateSubtasks breaks an approved story into MinSubtasks..MaxSubtasks
// subtasks.
func (g *Generator) GenerateSubtasks(ctx context.Context, parent Story) ([]SubtaskItem, error) {
	items, _, err := g.GenerateSubtasksWithUsage(ctx, parent)
	return items, err
}

// GenerateSubtasksWithUsage is GenerateSubtasks that also reports token usage.
func (g *Generator) GenerateSubtasksWithUsage(ctx context.Context, parent Story) ([]SubtaskItem, Usage, error) {
	text, err := g.prompts.LoadWithVars(prompt.GenerateSubtasks, map[string]any{
		"Title":              parent.Title,
		"Description":        parent.Description,
		"AcceptanceCriteria": parent.AcceptanceCriteria,
		"MinSubtasks":        MinSubtasks,
		"MaxSubtasks":        MaxSubtasks,
		"MaxTitleLength":     MaxTitleLength,
	})
	if err != nil {
		return nil, Usage{}, &GenerationError{Stage: "subtasks", Err: err}
	}

	reply, usage, err := g.complete(ctx, g.subtasks, text)
	if err != nil {
		return nil, usage, &GenerationError{Stage: "subtasks", Err: err}
	}

	items, err := ParseSubtasks(reply)
	if err != nil {
		g.logger.Warn("subtask reply rejected", "parent", parent.Title, "error", err)
		return nil, usage, err
	}
	return items, usage, nil
}

func (g *Generator) complete(ctx context.Context, c Completer, text string) (string, Usage, error) {
	if c == nil {
		return "", Usage{}, fmt.Errorf("no LLM client configured")
	}

	resp, err := c.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: g.system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
	})
	if err != nil {
		return "", Usage{}, err
	}

	usage := Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	return resp.Content, usage, nil
}
