package model

import "time"

// Segment is a maximal contiguous run of events sharing one context key.
// Segments never reopen: once an incoming event's key differs (or the
// idle gap is exceeded), the segment is closed for good.
type Segment struct {
	ID       int        `json:"segment_id"`
	Key      ContextKey `json:"segment_key"`
	Label    string     `json:"label"`
	EventIDs []string   `json:"event_ids"`
	Start    time.Time  `json:"start_ts"`
	End      time.Time  `json:"end_ts"`

	// DurationSec is estimated from sampling intervals, not measured
	// usage (one interval per member capture).
	DurationSec int      `json:"duration_sec"`
	Captures    int      `json:"captures"`
	Keywords    []string `json:"keywords,omitempty"`
	Snippets    []string `json:"ocr_snippets,omitempty"`
}

// EventResidual is the "what's new" portion of one event's OCR text on
// one display after intra-segment deduplication.
type EventResidual struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"ts"`
	IsActive  bool      `json:"is_active_display"`
	Text      string    `json:"ocr_text"`
}

// CommonText is a chunk that recurred across two or more events within
// a segment, promoted out of per-event residuals.
type CommonText struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// DisplayResiduals holds one display's deduplicated event texts plus
// the display's pool of recurring chunks.
type DisplayResiduals struct {
	Display     int             `json:"display"`
	Events      []EventResidual `json:"events"`
	CommonTexts []CommonText    `json:"common_texts,omitempty"`
}

// CompactedSegment is a segment with its OCR text deduplicated per
// display. Residuals plus the common pools reconstruct everything
// observed in the segment; chunks are relocated, never dropped.
type CompactedSegment struct {
	Segment
	Displays []DisplayResiduals `json:"ocr_by_display"`
}
