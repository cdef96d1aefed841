package task

import (
	"github.com/randalmurphal/llmkit/model"
)

// Type is an LLM-backed workflow stage. It determines the model tier.
type Type string

const (
	GenerateStory    Type = "generate_story"
	GenerateSubtasks Type = "generate_subtasks"

	// Summarize is short text for notifications and previews.
	Summarize Type = "summarize"
)

// DefaultModelMap maps stages to default models.
var DefaultModelMap = map[Type]model.ModelName{
	GenerateStory:    model.ModelSonnet,
	GenerateSubtasks: model.ModelSonnet,
	Summarize:        model.ModelHaiku,
}

// TierForTask returns the tier for a stage.
func TierForTask(t Type) model.Tier {
	switch t {
	case Summarize:
		return model.TierFast
	default:
		return model.TierDefault
	}
}

// NewSelector creates a model selector that understands Type.
func NewSelector(opts ...model.SelectorOption) *model.Selector {
	allOpts := append([]model.SelectorOption{
		model.WithTierFunc(func(task any) model.Tier {
			if t, ok := task.(Type); ok {
				return TierForTask(t)
			}
			return model.TierDefault
		}),
	}, opts...)

	return model.NewSelector(allOpts...)
}

// SelectModel picks the model for a stage. A non-empty override, usually
// the configured llm_model, wins for every stage.
func SelectModel(t Type, override string) string {
	if override != "" {
		return override
	}
	if m, ok := DefaultModelMap[t]; ok {
		return string(m)
	}
	if TierForTask(t) == model.TierFast {
		return string(model.ModelHaiku)
	}
	return string(model.ModelSonnet)
}
