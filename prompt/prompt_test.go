package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmbeddedStoryPrompt(t *testing.T) {
	l := NewLoader("")

	got, err := l.LoadWithVars(GenerateStory, map[string]any{
		"Topic":          "password reset",
		"MaxTitleLength": 100,
	})
	if err != nil {
		t.Fatalf("LoadWithVars() error = %v", err)
	}

	for _, want := range []string{
		`The user wants a story about: "password reset"`,
		"max 100 characters",
		`"acceptanceCriteria"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLoadEmbeddedSubtasksPrompt(t *testing.T) {
	l := NewLoader("")

	got, err := l.LoadWithVars(GenerateSubtasks, struct {
		Title, Description       string
		AcceptanceCriteria       []string
		MinSubtasks, MaxSubtasks int
		MaxTitleLength           int
	}{
		Title:              "Password reset",
		Description:        "As a user...",
		AcceptanceCriteria: []string{"first", "second"},
		MinSubtasks:        3,
		MaxSubtasks:        5,
		MaxTitleLength:     100,
	})
	if err != nil {
		t.Fatalf("LoadWithVars() error = %v", err)
	}
	if !strings.Contains(got, "1. first\n2. second") {
		t.Errorf("criteria not numbered:\n%s", got)
	}
	if !strings.Contains(got, "3 to 5 subtasks") {
		t.Errorf("bounds missing:\n%s", got)
	}
}

func TestLoadMissingVariable(t *testing.T) {
	l := NewLoader("")
	if _, err := l.LoadWithVars(GenerateStory, map[string]any{"Topic": "x"}); err == nil {
		t.Error("LoadWithVars() without MaxTitleLength should fail")
	}
}

func TestProjectOverride(t *testing.T) {
	dir := t.TempDir()
	promptDir := filepath.Join(dir, ".storyflow", "prompts")
	if err := os.MkdirAll(promptDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(promptDir, GenerateStory+".txt"), []byte("custom {{.Topic | upper}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(dir)
	got, err := l.LoadWithVars(GenerateStory, map[string]any{"Topic": "login"})
	if err != nil {
		t.Fatalf("LoadWithVars() error = %v", err)
	}
	if got != "custom LOGIN" {
		t.Errorf("LoadWithVars() = %q, want %q", got, "custom LOGIN")
	}
}

func TestNotFound(t *testing.T) {
	l := NewLoader(t.TempDir())
	if l.Exists("nope") {
		t.Error("Exists(nope) = true")
	}
	if _, err := l.Load("nope"); err == nil {
		t.Error("Load(nope) should fail")
	}
}

func TestList(t *testing.T) {
	got := NewLoader("").List()
	want := []string{GenerateStory, GenerateSubtasks}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTemplateFuncs(t *testing.T) {
	if got := indentString(2, "a\n\nb"); got != "  a\n\n  b" {
		t.Errorf("indentString() = %q", got)
	}
	if got := defaultValue("d", ""); got != "d" {
		t.Errorf("defaultValue(empty) = %v", got)
	}
	if got := defaultValue("d", "v"); got != "v" {
		t.Errorf("defaultValue(v) = %v", got)
	}
}
