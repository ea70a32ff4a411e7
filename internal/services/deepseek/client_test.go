package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"papermill/internal/config"
	"papermill/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.LLM{APIKey: "test-key", Model: "deepseek-chat"}, WithBaseURL(server.URL))
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "deepseek-chat" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "translated section"}},
			},
		})
	}))

	out, err := client.Complete(context.Background(), "translate to english", "# Introduction\nbody")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "translated section" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCompleteRequiresUserPrompt(t *testing.T) {
	client := NewClient(config.LLM{APIKey: "test-key"})
	if _, err := client.Complete(context.Background(), "system", "   "); err == nil {
		t.Fatal("expected error for blank user prompt")
	}
}

func TestCompleteAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model overloaded"},
		})
	}))

	_, err := client.Complete(context.Background(), "", "text")
	if err == nil {
		t.Fatal("expected api error")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected api message in error, got %v", err)
	}
}

func TestCompleteRateLimitIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))

	_, err := client.Complete(context.Background(), "", "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient for 429, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))

	if _, err := client.Complete(context.Background(), "", "text"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
