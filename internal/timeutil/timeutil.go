package timeutil

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NowISOLocal returns the current local time as an ISO-8601 string at
// second precision, matching the format the capture agent writes.
func NowISOLocal() string {
	return time.Now().Truncate(time.Second).Format(time.RFC3339)
}

// NormalizeDateArg resolves "today" and "yesterday" to local calendar
// dates; anything else is returned unchanged (expected "YYYY-MM-DD").
func NormalizeDateArg(arg string) string {
	switch arg {
	case "today", "":
		return time.Now().Format("2006-01-02")
	case "yesterday":
		return time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	}
	return arg
}

// HourStart truncates t to the start of its hour in t's location.
// Computed field-wise so half-hour UTC offsets bucket correctly.
func HourStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// NewRunID returns a ULID identifying one summarize run. Outputs and
// traces are versioned under it so runs can be diffed.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// Entropy exhaustion is the only failure mode; fall back to a
		// timestamp-only ID rather than aborting a whole run.
		return time.Now().Format("20060102T150405")
	}
	return id.String()
}
