package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/sashabaranov/go-openai"

	"github.com/randalmurphal/storyflow/config"
	"github.com/randalmurphal/storyflow/task"
)

func fakeOpenAI(t *testing.T, handle func(openai.ChatCompletionRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, body := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := fakeOpenAI(t, func(req openai.ChatCompletionRequest) (int, any) {
		got = req
		return http.StatusOK, map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": `{"title":"T"}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
		}
	})

	c, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	resp, err := c.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You write Jira stories.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "dark mode"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != `{"title":"T"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("Usage = %+v, want 12/7", resp.Usage)
	}
	if got.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("Messages = %d, want 2", len(got.Messages))
	}
	if got.Messages[0].Role != openai.ChatMessageRoleSystem || got.Messages[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("roles = %s/%s", got.Messages[0].Role, got.Messages[1].Role)
	}
	if got.Messages[1].Content != "dark mode" {
		t.Errorf("user content = %q", got.Messages[1].Content)
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := fakeOpenAI(t, func(openai.ChatCompletionRequest) (int, any) {
		return http.StatusOK, map[string]any{"id": "x", "choices": []any{}}
	})
	c, _ := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})

	_, err := c.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAI_APIError(t *testing.T) {
	srv := fakeOpenAI(t, func(openai.ChatCompletionRequest) (int, any) {
		return http.StatusUnauthorized, map[string]any{
			"error": map[string]string{"message": "bad key", "type": "invalid_request_error"},
		}
	})
	c, _ := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})

	_, err := c.Complete(context.Background(), llm.CompletionRequest{})
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *openai.APIError", err)
	}
	if apiErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.HTTPStatusCode)
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestNew_Providers(t *testing.T) {
	c, err := New(config.LLMSettings{Provider: config.ProviderOpenAI, OpenAIKey: "sk-test"}, task.GenerateStory, nil)
	if err != nil {
		t.Fatalf("New(openai): %v", err)
	}
	oc, ok := c.(*OpenAI)
	if !ok {
		t.Fatalf("New(openai) = %T, want *OpenAI", c)
	}
	if oc.Model() != DefaultOpenAIModel {
		t.Errorf("Model = %q, want %q", oc.Model(), DefaultOpenAIModel)
	}

	if c, err := New(config.LLMSettings{Provider: config.ProviderClaude}, task.GenerateStory, nil); err != nil || c == nil {
		t.Errorf("New(claude) = %v, %v", c, err)
	}

	if _, err := New(config.LLMSettings{Provider: "bard"}, task.GenerateStory, nil); !errors.Is(err, config.ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}
