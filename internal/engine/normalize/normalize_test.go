package normalize

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pronoun-studio/everlog/internal/model"
)

// --- primary text cascade ---

func TestEventActiveDisplayWins(t *testing.T) {
	e := model.CaptureEvent{
		ID: "e1",
		Displays: []model.DisplayObservation{
			{Display: 1, Text: "background noise"},
			{Display: 2, Text: "the active screen", IsActive: true},
		},
	}
	n := Event(e)
	if n.PrimaryText != "the active screen" {
		t.Fatalf("expected active display text, got %q", n.PrimaryText)
	}
	if n.Source != model.SourceActiveDisplay {
		t.Fatalf("expected source %q, got %q", model.SourceActiveDisplay, n.Source)
	}
}

func TestEventFallbackAllDisplays(t *testing.T) {
	e := model.CaptureEvent{
		Displays: []model.DisplayObservation{
			{Display: 1, Text: "left screen"},
			{Display: 2, Text: "   ", IsActive: true}, // active but blank
			{Display: 3, Text: "right screen"},
		},
	}
	n := Event(e)
	if n.PrimaryText != "left screen right screen" {
		t.Fatalf("expected joined text, got %q", n.PrimaryText)
	}
	if n.Source != model.SourceAllDisplays {
		t.Fatalf("expected source %q, got %q", model.SourceAllDisplays, n.Source)
	}
}

func TestEventFallbackEmpty(t *testing.T) {
	e := model.CaptureEvent{
		Displays: []model.DisplayObservation{
			{Display: 1, Text: "  \n "},
		},
	}
	n := Event(e)
	if n.PrimaryText != "" {
		t.Fatalf("expected empty primary text, got %q", n.PrimaryText)
	}
	if n.Source != model.SourceEmpty {
		t.Fatalf("expected source %q, got %q", model.SourceEmpty, n.Source)
	}
}

func TestEventNeverDropsDisplayText(t *testing.T) {
	e := model.CaptureEvent{
		Displays: []model.DisplayObservation{
			{Display: 1, Text: "line one\nline two"},
			{Display: 2, Text: "other", IsActive: true},
		},
	}
	n := Event(e)
	if len(n.Displays) != 2 {
		t.Fatalf("expected 2 displays, got %d", len(n.Displays))
	}
	if n.Displays[0].Text != "line one line two" {
		t.Fatalf("expected collapsed display text, got %q", n.Displays[0].Text)
	}
}

// --- context key ---

func TestEventKey(t *testing.T) {
	e := model.CaptureEvent{
		ActiveApp:   "  Safari ",
		Domain:      "github.com",
		WindowTitle: "pronoun-studio/parameter-coin",
	}
	n := Event(e)
	want := model.ContextKey{App: "Safari", Domain: "github.com", Title: "pronoun-studio/parameter-coin"}
	if n.Key != want {
		t.Fatalf("expected key %+v, got %+v", want, n.Key)
	}
}

func TestEventKeyLongTitleShortened(t *testing.T) {
	e := model.CaptureEvent{WindowTitle: strings.Repeat("はてな", 50)}
	n := Event(e)
	r := []rune(n.Key.Title)
	if len(r) != 80 {
		t.Fatalf("expected 80-rune title, got %d", len(r))
	}
	if r[len(r)-1] != '…' {
		t.Fatalf("expected ellipsis suffix, got %q", n.Key.Title)
	}
}

// --- newline collapsing ---

func TestCollapseNewlines(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"a\nb", "a b"},
		{"a \n\t b", "a b"},
		{"a\r\nb", "a b"},
		{"a  b", "a  b"},     // no break: spacing preserved
		{"a\tb", "a\tb"},     // tab run without break untouched
		{"日本\n語", "日本 語"},
	}
	for _, c := range cases {
		if got := CollapseNewlines(c.in); got != c.want {
			t.Errorf("CollapseNewlines(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// --- keywords ---

func TestKeywordsPrefersFileTokens(t *testing.T) {
	text := "editing summarize.py and config.json in the terminal terminal terminal"
	got := Keywords(text, 8)
	want := []string{"summarize.py", "config.json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestKeywordsFrequencyOrder(t *testing.T) {
	text := "alpha beta alpha gamma beta alpha"
	got := Keywords(text, 2)
	want := []string{"alpha", "beta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestKeywordsCJK(t *testing.T) {
	got := Keywords("作業ログを 確認 作業ログを", 8)
	if len(got) == 0 {
		t.Fatal("expected CJK tokens, got none")
	}
	if got[0] != "作業ログを" {
		t.Fatalf("expected most frequent CJK token first, got %v", got)
	}
}

func TestKeywordsEmpty(t *testing.T) {
	if got := Keywords("", 8); got != nil {
		t.Fatalf("expected nil for empty text, got %v", got)
	}
}

// --- snippets ---

func TestSnippetsDistinctLines(t *testing.T) {
	text := "first line\n\nfirst line\nsecond line\nthird line\nfourth line"
	got := Snippets(text, 3, 120)
	want := []string{"first line", "second line", "third line"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSnippetsShortened(t *testing.T) {
	text := strings.Repeat("x", 200)
	got := Snippets(text, 3, 120)
	if len(got) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(got))
	}
	if r := []rune(got[0]); len(r) != 120 {
		t.Fatalf("expected 120-rune snippet, got %d", len(r))
	}
}

// --- batch ---

func TestEventsPreservesOrder(t *testing.T) {
	base := time.Date(2026, 2, 9, 12, 0, 0, 0, time.Local)
	events := []model.CaptureEvent{
		{ID: "a", Timestamp: base},
		{ID: "b", Timestamp: base.Add(5 * time.Minute)},
	}
	out := Events(events)
	if len(out) != 2 || out[0].EventID != "a" || out[1].EventID != "b" {
		t.Fatalf("expected order preserved, got %+v", out)
	}
}
