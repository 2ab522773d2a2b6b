// Package llm labels hour blocks and composes day summaries through
// an OpenAI-compatible Chat Completions endpoint. The distillation
// stages are deterministic; everything in this package is optional
// enrichment and must degrade to nothing on failure.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the standard OpenAI API base.
const DefaultBaseURL = "https://api.openai.com/v1"

// ErrMissingAPIKey is returned when no key is configured.
var ErrMissingAPIKey = errors.New("llm: OPENAI_API_KEY is not set")

// ErrEmptyResponse is returned when the API answers with no content.
var ErrEmptyResponse = errors.New("llm: empty completion")

// Usage is the token accounting for one completion. CachedInput is
// the portion of InputTokens served from the provider's prompt cache.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedInput  int `json:"cached_input_tokens,omitempty"`
}

// Add accumulates another call's usage.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CachedInput += other.CachedInput
}

// Result is one completed call.
type Result struct {
	Model string
	Text  string
	Usage Usage
}

// Client calls an OpenAI-compatible /chat/completions endpoint. The
// limiter spaces calls out; the retry loop absorbs transient 429/5xx
// and network failures.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL points the client at a compatible non-OpenAI endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client. An empty apiKey falls back to OPENAI_API_KEY;
// an unset base URL falls back to OPENAI_API_BASE then the default.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      "gpt-5-nano",
		httpClient: &http.Client{Timeout: 180 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(750*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == DefaultBaseURL {
		if env := os.Getenv("OPENAI_API_BASE"); env != "" {
			c.baseURL = env
		}
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends a system+user prompt pair and returns the full
// completion. The request forces a JSON object response.
func (c *Client) Complete(ctx context.Context, system, user string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limiter: %w", err)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	}
	reqBody := map[string]any{
		"model":           c.model,
		"messages":        messages,
		"response_format": map[string]string{"type": "json_object"},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	respBody, err := c.doWithRetry(ctx, jsonBody)
	if err != nil {
		return nil, err
	}

	var resp completionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		CachedInput:  resp.Usage.PromptTokensDetails.CachedTokens,
	}
	if usage.CachedInput > usage.InputTokens {
		usage.CachedInput = usage.InputTokens
	}
	return &Result{Model: model, Text: resp.Choices[0].Message.Content, Usage: usage}, nil
}

// doWithRetry posts jsonBody to /chat/completions, retrying up to 3
// times on 429, 5xx, and network errors with backoff (1s, 2s, 4s).
// A Retry-After header on 429 overrides the backoff, capped at 30s.
func (c *Client) doWithRetry(ctx context.Context, jsonBody []byte) ([]byte, error) {
	const maxRetries = 3
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	url := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("llm: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("llm: request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("llm: request failed: %w", err)
			if attempt < maxRetries {
				if err := sleep(ctx, backoffs[attempt]); err != nil {
					return nil, err
				}
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("llm: read response: %w", readErr)
			if attempt < maxRetries {
				if err := sleep(ctx, backoffs[attempt]); err != nil {
					return nil, err
				}
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm: API error (status %d): %s", resp.StatusCode, body)
			if attempt < maxRetries {
				delay := backoffs[attempt]
				if resp.StatusCode == http.StatusTooManyRequests {
					if ra := resp.Header.Get("Retry-After"); ra != "" {
						if seconds, parseErr := strconv.Atoi(ra); parseErr == nil && seconds > 0 {
							delay = time.Duration(seconds) * time.Second
							if delay > 30*time.Second {
								delay = 30 * time.Second
							}
						}
					}
				}
				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
			}
			continue
		}

		return nil, fmt.Errorf("llm: API error (status %d): %s", resp.StatusCode, body)
	}
	return nil, fmt.Errorf("llm: request failed after %d retries: %w", maxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// completionResponse is the subset of the Chat Completions payload we
// consume.
type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON decodes text into out. Models occasionally wrap the
// JSON in prose or fences; fall back to the outermost object found.
func extractJSON(text string, out any) error {
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	m := jsonObjectRe.FindString(text)
	if m == "" {
		return errors.New("llm: output is not valid JSON")
	}
	if err := json.Unmarshal([]byte(m), out); err != nil {
		return fmt.Errorf("llm: parse JSON from output: %w", err)
	}
	return nil
}
