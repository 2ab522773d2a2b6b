package model

import (
	"strings"
	"time"
)

// DisplayObservation is one display's OCR result inside a capture event.
// Text arrives already passed through exclusion/redaction upstream.
type DisplayObservation struct {
	Display  int    `json:"display"`
	Text     string `json:"ocr_text"`
	IsActive bool   `json:"is_active_display"`
}

// CaptureEvent is one sampling tick as recorded by the capture agent.
type CaptureEvent struct {
	ID          string               `json:"id"`
	Timestamp   time.Time            `json:"ts"`
	IntervalSec int                  `json:"interval_sec"`
	ActiveApp   string               `json:"active_app"`
	WindowTitle string               `json:"window_title"`
	Domain      string               `json:"domain,omitempty"`
	Displays    []DisplayObservation `json:"ocr_by_display"`
	Excluded    bool                 `json:"excluded,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// ContextKey is the (app, domain, window title) tuple that defines
// segment contiguity. Equality is exact tuple equality.
type ContextKey struct {
	App    string `json:"app"`
	Domain string `json:"domain"`
	Title  string `json:"title"`
}

// Label renders the key as "app / domain / title", skipping empty and
// repeated components.
func (k ContextKey) Label() string {
	var parts []string
	add := func(s string) {
		if s == "" {
			return
		}
		for _, p := range parts {
			if p == s {
				return
			}
		}
		parts = append(parts, s)
	}
	add(strings.TrimSpace(k.App))
	add(strings.TrimSpace(k.Domain))
	add(strings.TrimSpace(k.Title))
	if len(parts) == 0 {
		return "(unknown)"
	}
	return strings.Join(parts, " / ")
}

// PrimarySource tags where a normalized event's primary text came from.
type PrimarySource string

const (
	SourceActiveDisplay PrimarySource = "active_display"
	SourceAllDisplays   PrimarySource = "fallback_all_displays"
	SourceEmpty         PrimarySource = "fallback_empty"
)

// NormalizedEvent is a capture event after context extraction and
// newline collapsing. Display texts are carried forward in full; the
// primary text and source tag are metadata for feature extraction.
type NormalizedEvent struct {
	EventID     string               `json:"event_id"`
	Timestamp   time.Time            `json:"ts"`
	IntervalSec int                  `json:"interval_sec"`
	Key         ContextKey           `json:"key"`
	PrimaryText string               `json:"primary_text"`
	Source      PrimarySource        `json:"primary_source"`
	Keywords    []string             `json:"keywords,omitempty"`
	Snippets    []string             `json:"snippets,omitempty"`
	Displays    []DisplayObservation `json:"ocr_by_display"`
}
