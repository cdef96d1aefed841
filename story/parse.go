package story

import (
	"encoding/json"
	"strings"
)

// Defaults for a story whose reply could not be used.
func defaultTitle(topic string) string       { return "Story: " + topic }
func defaultDescription(topic string) string { return "Story about " + topic }

const defaultCriterion = "Story is complete"

// rawStory accepts acceptanceCriteria as a list or a single string.
type rawStory struct {
	Title              *string `json:"title"`
	Description        *string `json:"description"`
	AcceptanceCriteria any     `json:"acceptanceCriteria"`
}

// extractSpan returns text from the first opening byte to the last closing
// byte, or "" when there is no such span.
func extractSpan(text string, opening, closing byte) string {
	start := strings.IndexByte(text, opening)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// ParseStory builds a story from an LLM reply. Missing or unusable fields
// take defaults derived from topic, so the result is always complete.
func ParseStory(reply, topic string) Story {
	var raw rawStory
	if span := extractSpan(reply, '{', '}'); span != "" {
		if err := json.Unmarshal([]byte(span), &raw); err != nil {
			raw = rawStory{}
		}
	}
	return normalize(raw, topic)
}

func normalize(raw rawStory, key string) Story {
	s := Story{
		Title:              defaultTitle(key),
		Description:        defaultDescription(key),
		AcceptanceCriteria: criteriaList(raw.AcceptanceCriteria),
	}
	if raw.Title != nil && strings.TrimSpace(*raw.Title) != "" {
		s.Title = *raw.Title
	}
	if raw.Description != nil && strings.TrimSpace(*raw.Description) != "" {
		s.Description = strings.TrimSpace(*raw.Description)
	}
	s.Title = truncateRunes(strings.TrimSpace(s.Title), MaxTitleLength)
	if len(s.AcceptanceCriteria) == 0 {
		s.AcceptanceCriteria = []string{defaultCriterion}
	}
	return s
}

// criteriaList coerces a JSON value into non-blank criteria.
func criteriaList(v any) []string {
	var items []any
	switch val := v.(type) {
	case string:
		items = []any{val}
	case []any:
		items = val
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// ParseSubtasks extracts subtasks from an LLM reply. Entries without a
// title are dropped and the list is cut to MaxSubtasks. Fewer than
// MinSubtasks usable entries is a *SubtaskCountError.
func ParseSubtasks(reply string) ([]SubtaskItem, error) {
	var raws []rawStory
	if span := extractSpan(reply, '[', ']'); span != "" {
		if err := json.Unmarshal([]byte(span), &raws); err != nil {
			raws = nil
		}
	}

	items := make([]SubtaskItem, 0, MaxSubtasks)
	for _, raw := range raws {
		if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
			continue
		}
		items = append(items, normalize(raw, strings.TrimSpace(*raw.Title)))
		if len(items) == MaxSubtasks {
			break
		}
	}

	if len(items) < MinSubtasks {
		return nil, &SubtaskCountError{Got: len(items)}
	}
	return items, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
