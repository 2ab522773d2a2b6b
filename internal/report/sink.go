package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Sink delivers a rendered report somewhere.
type Sink interface {
	Write(ctx context.Context, d Day, markdown string) error
	Close() error
}

// FileSink writes the markdown into a directory, one versioned file
// per run.
type FileSink struct {
	dir    string
	suffix string

	// Path is set after a successful Write.
	Path string
}

// NewFileSink creates a sink writing into dir with an optional file
// name suffix.
func NewFileSink(dir, suffix string) *FileSink {
	return &FileSink{dir: dir, suffix: suffix}
}

func (s *FileSink) Write(_ context.Context, d Day, markdown string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("file sink: mkdir %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, FileName(d.Date, d.Title, s.suffix))
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("file sink: write %s: %w", path, err)
	}
	s.Path = path
	return nil
}

func (s *FileSink) Close() error { return nil }

// StdoutSink prints the markdown to stdout.
type StdoutSink struct {
	out io.Writer
}

// NewStdoutSink creates a stdout sink.
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{out: os.Stdout}
}

func (s *StdoutSink) Write(_ context.Context, _ Day, markdown string) error {
	if _, err := io.WriteString(s.out, markdown); err != nil {
		return fmt.Errorf("stdout sink: %w", err)
	}
	return nil
}

func (s *StdoutSink) Close() error { return nil }

// WebhookSink POSTs the report as JSON to an HTTP endpoint, retrying
// on 5xx with exponential backoff.
type WebhookSink struct {
	client  *http.Client
	url     string
	headers map[string]string
}

const webhookMaxRetries = 3

// NewWebhookSink creates a webhook sink targeting url.
func NewWebhookSink(url string, headers map[string]string) *WebhookSink {
	return &WebhookSink{
		client:  &http.Client{Timeout: 10 * time.Second},
		url:     url,
		headers: headers,
	}
}

type webhookPayload struct {
	Date       string   `json:"date"`
	RunID      string   `json:"run_id"`
	Title      string   `json:"title,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
	Markdown   string   `json:"markdown"`
}

func (s *WebhookSink) Write(ctx context.Context, d Day, markdown string) error {
	body, err := json.Marshal(webhookPayload{
		Date:       d.Date,
		RunID:      d.RunID,
		Title:      d.Title,
		Summary:    d.Summary,
		Highlights: d.Highlights,
		Markdown:   markdown,
	})
	if err != nil {
		return fmt.Errorf("webhook sink: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= webhookMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook sink: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("webhook sink: %w", err)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook sink: HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr
		}
	}
	return lastErr
}

func (s *WebhookSink) Close() error { return nil }

// MultiSink fans a report out to several sinks. Every sink receives
// the report even when an earlier one fails.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out sink.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Write(ctx context.Context, d Day, markdown string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, d, markdown); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
