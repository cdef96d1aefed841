// Package testutil provides fixtures, fakes and contexts for storyflow
// tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/storyflow/story"
)

// LoadFixture loads a file from the testdata directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", path))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", path, err)
	}
	return data
}

// LoadJSONFixture loads a testdata file and unmarshals it as JSON.
func LoadJSONFixture[T any](t *testing.T, path string) T {
	t.Helper()

	var result T
	if err := json.Unmarshal(LoadFixture(t, path), &result); err != nil {
		t.Fatalf("failed to parse JSON fixture %s: %v", path, err)
	}
	return result
}

// TempFile creates a file with content in a per-test directory and
// returns its path.
func TempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp file %s: %v", name, err)
	}
	return path
}

// SampleStory is a complete story used across tests.
func SampleStory() story.Story {
	return story.Story{
		Title:       "As a user, I want to toggle dark mode",
		Description: "As a user, I want to toggle dark mode so that the app is easier on my eyes at night.",
		AcceptanceCriteria: []string{
			"Given settings, when I flip the toggle, then the theme changes",
			"Given a reload, when the app starts, then my choice is kept",
		},
	}
}

// StoryReply renders s the way an LLM answers the story prompt: prose
// around a JSON object.
func StoryReply(s story.Story) string {
	data, _ := json.Marshal(s)
	return "Here is the story:\n" + string(data) + "\nLet me know if you need changes."
}

// SubtasksReply renders n subtasks as a JSON array reply.
func SubtasksReply(n int) string {
	items := make([]story.SubtaskItem, n)
	for i := range items {
		title := fmt.Sprintf("Subtask %d", i+1)
		items[i] = story.SubtaskItem{
			Title:              title,
			Description:        "Implement " + title,
			AcceptanceCriteria: []string{title + " is done"},
		}
	}
	data, _ := json.Marshal(items)
	return string(data)
}
