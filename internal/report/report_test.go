package report

import (
	"strings"
	"testing"
	"time"

	"github.com/pronoun-studio/everlog/internal/llm"
)

// --- filenames ---

func TestFileName(t *testing.T) {
	cases := []struct {
		name  string
		date  string
		title string
		want  string
	}{
		{"plain", "2026-02-09", "everlog pipeline work", "26-02-09_everlog pipeline work.md"},
		{"forbidden chars", "2026-02-09", `fix a/b: "quote"`, "26-02-09_fix a-b- -quote-.md"},
		{"empty title", "2026-02-09", "", "26-02-09_work log.md"},
		{"whitespace title", "2026-02-09", "   ", "26-02-09_work log.md"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := FileName(c.date, c.title, ""); got != c.want {
				t.Errorf("expected %q, got %q", c.want, got)
			}
		})
	}
}

func TestFileNameCapsLongTitle(t *testing.T) {
	long := strings.Repeat("長いタイトル", 30)
	got := FileName("2026-02-09", long, "")
	base := strings.TrimSuffix(strings.TrimPrefix(got, "26-02-09_"), ".md")
	if n := len([]rune(base)); n > 80 {
		t.Fatalf("expected title capped at 80 runes, got %d", n)
	}
}

func TestFileNameSuffix(t *testing.T) {
	got := FileName("2026-02-09", "draft", "_01HZX")
	if got != "26-02-09_draft_01HZX.md" {
		t.Fatalf("unexpected name %q", got)
	}
}

// --- rendering ---

func sampleDay() Day {
	start := time.Date(2026, 2, 9, 9, 2, 0, 0, time.Local)
	return Day{
		Date:          "2026-02-09",
		RunID:         "01HZX",
		Title:         "everlog hour packer",
		Summary:       "Built and tested the hour packer.",
		Highlights:    []string{"hourpack tests green", "report renderer wired"},
		Start:         start,
		End:           start.Add(7*time.Hour + 30*time.Minute),
		CaptureCount:  90,
		ValidCount:    84,
		ExcludedCount: 4,
		ErrorCount:    2,
		TotalSecValid: 84 * 300,
		TotalSecAll:   90 * 300,
		LLMUsage: []UsageLine{
			{
				Label:   "hour labeling",
				Ran:     true,
				Model:   "gpt-5-nano",
				Usage:   llm.Usage{InputTokens: 12345, OutputTokens: 678, CachedInput: 4000},
				CostUSD: 0.000812,
				HasCost: true,
			},
			{Label: "daily summary", Ran: false},
		},
		Apps: []AppRow{
			{App: "Code", Sec: 18000, Captures: 60, Uses: []string{"main.go", "hourpack.go"}},
			{App: "Slack", Sec: 3000, Captures: 10, Uses: []string{"#team"}},
		},
		Hours: []HourSection{
			{
				Start:     time.Date(2026, 2, 9, 9, 0, 0, 0, time.Local),
				End:       time.Date(2026, 2, 9, 9, 59, 59, 0, time.Local),
				ActiveMin: 48,
				Title:     "everlog pipeline work",
				Summary:   "Editing main.go in the everlog repo.",
				Screens:   []string{"Code / main.go", "Code / hourpack.go", "Slack / #team"},
			},
		},
	}
}

func TestRenderFullDay(t *testing.T) {
	md := Render(sampleDay())

	for _, want := range []string{
		"# 26-02-09_everlog hour packer",
		"- Recording period: 09:02 – 16:32 (about 7h30m)",
		"- Captures: 90 (valid 84 / excluded 4 / failed 2)",
		"- Estimated total: 7h00m (valid only) / 7h30m (including excluded and failed)",
		"hour labeling: input 12,345 (cached 4,000) / output 678 tokens (cost: $0.000812) / model gpt-5-nano",
		"daily summary: not run",
		"- total: input 12,345 / output 678 tokens (cost: $0.000812)",
		"- Estimate: everlog hour packer",
		"- Overview: Built and tested the hour packer.",
		"### Highlights",
		"- hourpack tests green",
		"| Code | 5h00m | 60 | top | main.go / hourpack.go |",
		"| Slack | 50m | 10 | low | #team |",
		"### 09:00–09:59 (est. active: 48 min)",
		"- Main work: everlog pipeline work",
		"- Main screens: Code / main.go, Code / hourpack.go",
		"## Data quality",
		"- Excluded: 4",
		"- Capture/OCR failures: 2",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected rendered report to contain %q\n---\n%s", want, md)
		}
	}
	if strings.Contains(md, "Slack / #team,") {
		t.Error("expected screens capped at 2")
	}
	if strings.Contains(md, "Incomplete") {
		t.Error("expected no incomplete warning")
	}
}

func TestRenderIncompleteWarning(t *testing.T) {
	d := sampleDay()
	d.TimelineIncomplete = true
	md := Render(d)
	if !strings.Contains(md, "⚠️ Incomplete") || !strings.Contains(md, "EVERLOG_HOURLY_LLM=1") {
		t.Fatalf("expected incomplete warning, got:\n%s", md)
	}
}

func TestRenderHourTitleFallbackJoin(t *testing.T) {
	d := sampleDay()
	d.Title, d.Summary, d.Highlights = "", "", nil
	d.Hours = append(d.Hours, HourSection{
		Start: time.Date(2026, 2, 9, 10, 0, 0, 0, time.Local),
		End:   time.Date(2026, 2, 9, 10, 59, 59, 0, time.Local),
		Title: "code review",
	})
	md := Render(d)
	if !strings.Contains(md, "- Estimate: everlog pipeline work / code review") {
		t.Fatalf("expected joined hour titles, got:\n%s", md)
	}
	if !strings.Contains(md, "# Work log 2026-02-09") {
		t.Error("expected fallback header")
	}
}

func TestRenderEmptyDay(t *testing.T) {
	md := Render(Day{Date: "2026-02-09"})
	for _, want := range []string{
		"# Work log 2026-02-09",
		"- Recording period: (unknown: no parseable timestamps)",
		"(no valid log entries; if captures keep failing, check the screen recording permission)",
		"(no valid log entries)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in:\n%s", want, md)
		}
	}
}

func TestRenderUnknownHourTitle(t *testing.T) {
	d := sampleDay()
	d.Hours[0].Title = ""
	d.Hours[0].Summary = ""
	md := Render(d)
	if !strings.Contains(md, "- Main work: (unknown)") {
		t.Fatalf("expected unknown marker, got:\n%s", md)
	}
}

// --- helpers ---

func TestFmtHM(t *testing.T) {
	cases := []struct {
		sec  int
		want string
	}{
		{0, "0m"},
		{59, "0m"},
		{60, "1m"},
		{3600, "1h00m"},
		{5460, "1h31m"},
	}
	for _, c := range cases {
		if got := fmtHM(c.sec); got != c.want {
			t.Errorf("fmtHM(%d): expected %q, got %q", c.sec, c.want, got)
		}
	}
}

func TestFmtInt(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}
	for _, c := range cases {
		if got := fmtInt(c.n); got != c.want {
			t.Errorf("fmtInt(%d): expected %q, got %q", c.n, c.want, got)
		}
	}
}

func TestUsageTier(t *testing.T) {
	cases := []struct {
		sec, max int
		want     string
	}{
		{100, 100, "top"},
		{70, 100, "high"},
		{40, 100, "mid"},
		{10, 100, "low"},
		{0, 0, "low"},
	}
	for _, c := range cases {
		if got := usageTier(c.sec, c.max); got != c.want {
			t.Errorf("usageTier(%d, %d): expected %q, got %q", c.sec, c.max, c.want, got)
		}
	}
}
