// Package source reads capture-agent day logs, the upstream boundary
// of the pipeline. Events arrive already passed through the agent's
// exclusion and redaction rules; nothing here re-applies them.
package source

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pronoun-studio/everlog/internal/jsonl"
	"github.com/pronoun-studio/everlog/internal/model"
)

// rawEvent is the capture agent's on-disk schema.
type rawEvent struct {
	ID          string `json:"id"`
	TS          string `json:"ts"`
	IntervalSec int    `json:"interval_sec"`
	ActiveApp   string `json:"active_app"`
	WindowTitle string `json:"window_title"`
	Browser     *struct {
		Name   string `json:"name"`
		URL    string `json:"url"`
		Domain string `json:"domain"`
	} `json:"browser"`
	Excluded bool `json:"excluded"`
	// Error is bool in older logs, a message string in newer ones.
	Error    json.RawMessage `json:"error"`
	Displays []struct {
		Display  int    `json:"display"`
		Text     string `json:"ocr_text"`
		IsActive bool   `json:"is_active_display"`
	} `json:"ocr_by_display"`
}

// ReadDay parses the day log at path into capture events, preserving
// file order. Corrupt lines and unparseable timestamps are skipped
// with a warning — a crashed capture mid-write must not poison the
// whole day. A missing file yields zero events.
func ReadDay(path string) ([]model.CaptureEvent, error) {
	var events []model.CaptureEvent
	skipped := 0
	err := jsonl.ForEachLine(path, func(line []byte) error {
		var raw rawEvent
		if err := json.Unmarshal(line, &raw); err != nil {
			skipped++
			return nil
		}
		ts, err := time.Parse(time.RFC3339, raw.TS)
		if err != nil {
			skipped++
			return nil
		}
		e := model.CaptureEvent{
			ID:          raw.ID,
			Timestamp:   ts,
			IntervalSec: raw.IntervalSec,
			ActiveApp:   raw.ActiveApp,
			WindowTitle: raw.WindowTitle,
			Excluded:    raw.Excluded,
			Error:       errorMessage(raw.Error),
		}
		if raw.Browser != nil {
			e.Domain = raw.Browser.Domain
		}
		for _, d := range raw.Displays {
			e.Displays = append(e.Displays, model.DisplayObservation{
				Display:  d.Display,
				Text:     d.Text,
				IsActive: d.IsActive,
			})
		}
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.Warn("skipped unparseable day-log lines", "path", path, "count", skipped)
	}
	return events, nil
}

// Valid returns the events eligible for distillation: neither
// excluded nor errored. The full slice still feeds activity
// estimation.
func Valid(events []model.CaptureEvent) []model.CaptureEvent {
	out := make([]model.CaptureEvent, 0, len(events))
	for _, e := range events {
		if e.Excluded || e.Error != "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// errorMessage normalizes the mixed bool/string error field.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return "capture error"
}
