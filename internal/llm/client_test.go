package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func completionBody(content string, prompt, completion, cached int) string {
	body := map[string]any{
		"model": "gpt-5-nano-2026-01-01",
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"prompt_tokens_details": map[string]any{
				"cached_tokens": cached,
			},
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func TestCompleteParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "gpt-5-nano" {
			t.Errorf("unexpected model %v", req["model"])
		}
		w.Write([]byte(completionBody(`{"ok":true}`, 100, 20, 40)))
	}))
	defer srv.Close()

	c, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := c.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Text != `{"ok":true}` {
		t.Errorf("unexpected text %q", res.Text)
	}
	if res.Model != "gpt-5-nano-2026-01-01" {
		t.Errorf("expected server-reported model, got %q", res.Model)
	}
	want := Usage{InputTokens: 100, OutputTokens: 20, CachedInput: 40}
	if res.Usage != want {
		t.Errorf("expected usage %+v, got %+v", want, res.Usage)
	}
}

func TestCompleteClampsCachedTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("{}", 10, 5, 99)))
	}))
	defer srv.Close()

	c, _ := New("test-key", WithBaseURL(srv.URL))
	res, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Usage.CachedInput != 10 {
		t.Errorf("expected cached clamped to input, got %d", res.Usage.CachedInput)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Write([]byte(completionBody("{}", 1, 1, 0)))
	}))
	defer srv.Close()

	c, _ := New("test-key", WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := New("test-key", WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected single attempt, got %d", calls.Load())
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	c, _ := New("test-key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New("")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

// --- output parsing ---

func TestExtractJSONDirect(t *testing.T) {
	var out map[string]int
	if err := extractJSON(`{"n": 3}`, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["n"] != 3 {
		t.Errorf("expected 3, got %d", out["n"])
	}
}

func TestExtractJSONFenced(t *testing.T) {
	text := "Here is the result:\n```json\n{\"title\": \"refactor\"}\n```\nDone."
	var out map[string]string
	if err := extractJSON(text, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["title"] != "refactor" {
		t.Errorf("expected extracted object, got %v", out)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	var out map[string]any
	if err := extractJSON("no json here", &out); err == nil {
		t.Fatal("expected error")
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5, CachedInput: 2}
	u.Add(Usage{InputTokens: 1, OutputTokens: 1, CachedInput: 1})
	want := Usage{InputTokens: 11, OutputTokens: 6, CachedInput: 3}
	if u != want {
		t.Fatalf("expected %+v, got %+v", want, u)
	}
}
