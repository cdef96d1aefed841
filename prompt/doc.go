// Package prompt loads the LLM prompt templates.
//
// Templates are text/template files named <name>.txt. Project overrides in
// .storyflow/prompts/ or prompts/ win over the copies embedded in the binary.
//
//	loader := prompt.NewLoader(".")
//	text, err := loader.LoadWithVars(prompt.GenerateStory, map[string]any{
//	    "Topic":          "password reset",
//	    "MaxTitleLength": 100,
//	})
package prompt
