// Package normalize extracts per-event context and feature metadata
// from raw capture events and flattens multi-line OCR text, the first
// stage of the distillation pipeline.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pronoun-studio/everlog/internal/model"
)

const (
	maxTitleLen   = 80
	maxKeywords   = 8
	maxSnippets   = 3
	maxSnippetLen = 120
)

var (
	fileTokenRe = regexp.MustCompile(`(?i)\b[\w./-]+\.(?:py|md|txt|json|toml|ya?ml|sh|zsh|bash|ts|js|tsx|jsx|go|rs|swift|java|kt|rb|php)\b`)
	wordRe      = regexp.MustCompile(`[A-Za-z0-9_./-]{4,}`)
	cjkRe       = regexp.MustCompile(`[\x{3040}-\x{30ff}\x{4e00}-\x{9faf}]{2,}`)
)

// Event turns one capture event into a normalized event. It never
// fails: missing context fields render as empty strings, and absence
// of usable text degrades the primary-source tag instead of erroring.
func Event(e model.CaptureEvent) model.NormalizedEvent {
	primary, source, rawPrimary := primaryText(e.Displays)

	displays := make([]model.DisplayObservation, len(e.Displays))
	for i, d := range e.Displays {
		d.Text = CollapseNewlines(d.Text)
		displays[i] = d
	}

	return model.NormalizedEvent{
		EventID:     e.ID,
		Timestamp:   e.Timestamp,
		IntervalSec: e.IntervalSec,
		Key: model.ContextKey{
			App:    strings.TrimSpace(e.ActiveApp),
			Domain: strings.TrimSpace(e.Domain),
			Title:  shorten(e.WindowTitle, maxTitleLen),
		},
		PrimaryText: CollapseNewlines(primary),
		Source:      source,
		Keywords:    Keywords(rawPrimary, maxKeywords),
		Snippets:    Snippets(rawPrimary, maxSnippets, maxSnippetLen),
		Displays:    displays,
	}
}

// Events normalizes a batch, preserving order.
func Events(events []model.CaptureEvent) []model.NormalizedEvent {
	out := make([]model.NormalizedEvent, len(events))
	for i, e := range events {
		out[i] = Event(e)
	}
	return out
}

// primaryText picks the text used for feature extraction. The active
// display wins when it has text; otherwise all non-empty displays are
// space-joined; otherwise empty. rawPrimary keeps line breaks so
// snippet extraction can still see line structure.
func primaryText(displays []model.DisplayObservation) (string, model.PrimarySource, string) {
	for _, d := range displays {
		if d.IsActive && strings.TrimSpace(d.Text) != "" {
			return d.Text, model.SourceActiveDisplay, d.Text
		}
	}
	var parts []string
	for _, d := range displays {
		if strings.TrimSpace(d.Text) != "" {
			parts = append(parts, d.Text)
		}
	}
	if len(parts) > 0 {
		joined := strings.Join(parts, " ")
		return joined, model.SourceAllDisplays, strings.Join(parts, "\n")
	}
	return "", model.SourceEmpty, ""
}

// CollapseNewlines replaces every whitespace run that contains a line
// break with a single space. Runs without a line break pass through
// untouched, so intra-line spacing is preserved.
func CollapseNewlines(s string) string {
	if !strings.ContainsAny(s, "\n\r") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		hasBreak := false
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			if runes[j] == '\n' || runes[j] == '\r' {
				hasBreak = true
			}
			j++
		}
		if hasBreak {
			b.WriteByte(' ')
		} else {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}

// Keywords extracts up to limit frequent tokens from OCR text,
// preferring file-path-like tokens over generic words.
func Keywords(text string, limit int) []string {
	if text == "" || limit <= 0 {
		return nil
	}
	text = strings.ReplaceAll(text, "\x00", " ")
	hits := fileTokenRe.FindAllString(text, -1)
	if len(hits) == 0 {
		hits = append(hits, wordRe.FindAllString(text, -1)...)
		hits = append(hits, cjkRe.FindAllString(text, -1)...)
	}
	if len(hits) == 0 {
		return nil
	}
	return topByCount(hits, limit)
}

// Snippets extracts up to limit distinct non-empty lines, shortened.
func Snippets(text string, limit, maxLen int) []string {
	if text == "" || limit <= 0 {
		return nil
	}
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if len(out) >= limit {
			break
		}
		s := shorten(ln, maxLen)
		if s == "" {
			continue
		}
		dup := false
		for _, prev := range out {
			if prev == s {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// topByCount returns the limit most frequent values, ties broken by
// first appearance.
func topByCount(values []string, limit int) []string {
	counts := make(map[string]int, len(values))
	first := make(map[string]int, len(values))
	var order []string
	for i, v := range values {
		if _, ok := counts[v]; !ok {
			first[v] = i
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(a, b int) bool {
		if counts[order[a]] != counts[order[b]] {
			return counts[order[a]] > counts[order[b]]
		}
		return first[order[a]] < first[order[b]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

// shorten collapses whitespace and truncates to maxLen runes with an
// ellipsis, matching the capture agent's title shortening.
func shorten(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimRight(string(runes[:maxLen-1]), " ") + "…"
}
