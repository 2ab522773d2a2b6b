// Package report renders a day's distilled activity as a markdown
// work log and delivers it through pluggable sinks.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pronoun-studio/everlog/internal/llm"
)

// UsageLine is one LLM call site's token accounting for the usage
// breakdown section.
type UsageLine struct {
	Label   string
	Ran     bool
	Model   string
	Usage   llm.Usage
	CostUSD float64
	HasCost bool
}

// AppRow is one application's aggregate for the usage table.
type AppRow struct {
	App      string
	Sec      int
	Captures int
	Uses     []string
}

// HourSection is one rendered timeline block.
type HourSection struct {
	Start     time.Time
	End       time.Time
	ActiveMin int
	Title     string
	Summary   string
	Screens   []string
}

// Day is everything the markdown report needs, assembled by the
// summarize run.
type Day struct {
	Date  string
	RunID string

	Title      string
	Summary    string
	Highlights []string

	Start time.Time
	End   time.Time

	CaptureCount  int
	ValidCount    int
	ExcludedCount int
	ErrorCount    int

	TotalSecValid int
	TotalSecAll   int

	// TimelineIncomplete marks a run where hour labeling was enabled
	// but produced nothing, so timeline titles fall back to heuristics.
	TimelineIncomplete bool

	LLMUsage []UsageLine
	Apps     []AppRow
	Hours    []HourSection
}

const fallbackTitle = "work log"

// FileName builds the versioned markdown name: yy-mm-dd_<title>.md.
func FileName(date, title, suffix string) string {
	short := date
	if len(short) >= 8 {
		short = short[2:]
	}
	safe := sanitizeTitle(title)
	if safe == "" {
		safe = fallbackTitle
	}
	return short + "_" + safe + suffix + ".md"
}

var forbiddenFilenameRe = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)

func sanitizeTitle(title string) string {
	t := strings.Join(strings.Fields(title), " ")
	t = forbiddenFilenameRe.ReplaceAllString(t, "-")
	t = strings.Trim(strings.TrimSpace(t), " .")
	if r := []rune(t); len(r) > 80 {
		t = strings.TrimSpace(string(r[:80]))
	}
	return t
}

// Render produces the full markdown document.
func Render(d Day) string {
	var b strings.Builder
	w := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	short := d.Date
	if len(short) >= 8 {
		short = short[2:]
	}
	if title := strings.Join(strings.Fields(d.Title), " "); title != "" {
		w("# %s_%s", short, title)
	} else {
		w("# Work log %s", d.Date)
	}
	w("")
	if d.TimelineIncomplete {
		w("⚠️ Incomplete: hour labeling was disabled or failed, so the timeline uses heuristic titles.")
		w("   (set EVERLOG_HOURLY_LLM=1 and OPENAI_API_KEY to enable it)")
		w("")
	}

	if !d.Start.IsZero() && !d.End.IsZero() {
		wall := int(d.End.Sub(d.Start).Seconds())
		note := ""
		if wall > 0 {
			note = fmt.Sprintf(" (about %s)", fmtHM(wall))
		}
		w("- Recording period: %s – %s%s", d.Start.Format("15:04"), d.End.Format("15:04"), note)
	} else {
		w("- Recording period: (unknown: no parseable timestamps)")
	}
	w("- Captures: %d (valid %d / excluded %d / failed %d)",
		d.CaptureCount, d.ValidCount, d.ExcludedCount, d.ErrorCount)
	if d.TotalSecAll > 0 && d.TotalSecAll >= d.TotalSecValid {
		w("- Estimated total: %s (valid only) / %s (including excluded and failed)",
			fmtHM(d.TotalSecValid), fmtHM(d.TotalSecAll))
	} else {
		w("- Estimated total: %s (valid only)", fmtHM(d.TotalSecValid))
	}

	if len(d.LLMUsage) > 0 {
		w("- LLM usage:")
		var totalIn, totalOut int
		var totalCost float64
		anyCost := false
		for _, u := range d.LLMUsage {
			w("  - %s", usageLine(u))
			if u.Ran {
				totalIn += u.Usage.InputTokens
				totalOut += u.Usage.OutputTokens
				if u.HasCost {
					totalCost += u.CostUSD
					anyCost = true
				}
			}
		}
		cost := "n/a"
		if anyCost {
			cost = fmtUSD(totalCost)
		}
		w("  - total: input %s / output %s tokens (cost: %s)", fmtInt(totalIn), fmtInt(totalOut), cost)
	}
	w("")

	w("## Main work")
	w("")
	if d.Title != "" || d.Summary != "" {
		if d.Title != "" {
			w("- Estimate: %s", d.Title)
		}
		if d.Summary != "" {
			w("- Overview: %s", d.Summary)
		}
		if len(d.Highlights) > 0 {
			w("")
			w("### Highlights")
			w("")
			for i, h := range d.Highlights {
				if i >= 5 {
					break
				}
				w("- %s", h)
			}
		}
	} else if len(d.Hours) > 0 {
		var items []string
		for _, h := range d.Hours {
			if h.Title == "" {
				continue
			}
			if !contains(items, h.Title) {
				items = append(items, h.Title)
			}
		}
		if len(items) > 6 {
			items = items[:6]
		}
		if len(items) > 0 {
			w("- Estimate: %s", strings.Join(items, " / "))
		} else {
			w("(no usable activity found)")
		}
	} else {
		w("(no valid log entries; if captures keep failing, check the screen recording permission)")
	}
	w("")

	w("## App usage (estimated)")
	w("")
	w("| App | Est. time | Captures | Usage | Main contexts |")
	w("|---|---:|---:|---|---|")
	maxSec := 0
	for _, a := range d.Apps {
		if a.Sec > maxSec {
			maxSec = a.Sec
		}
	}
	for _, a := range d.Apps {
		w("| %s | %s | %d | %s | %s |",
			a.App, fmtHM(a.Sec), a.Captures, usageTier(a.Sec, maxSec), strings.Join(a.Uses, " / "))
	}
	w("")

	w("## Timeline (hourly, estimated)")
	w("")
	if len(d.Hours) == 0 {
		w("(no valid log entries)")
	}
	for _, h := range d.Hours {
		w("### %s–%s (est. active: %d min)", h.Start.Format("15:04"), h.End.Format("15:04"), h.ActiveMin)
		w("")
		title := h.Title
		if title == "" {
			title = "(unknown)"
		}
		w("- Main work: %s", title)
		if h.Summary != "" {
			w("- Overview: %s", h.Summary)
		}
		if len(h.Screens) > 0 {
			n := len(h.Screens)
			if n > 2 {
				n = 2
			}
			w("- Main screens: %s", strings.Join(h.Screens[:n], ", "))
		}
		w("")
	}

	w("## Data quality")
	w("")
	w("- Excluded: %d", d.ExcludedCount)
	w("- Capture/OCR failures: %d", d.ErrorCount)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func usageLine(u UsageLine) string {
	if !u.Ran {
		return u.Label + ": not run"
	}
	cached := ""
	if u.Usage.CachedInput > 0 {
		cached = fmt.Sprintf(" (cached %s)", fmtInt(u.Usage.CachedInput))
	}
	cost := "n/a"
	if u.HasCost {
		cost = fmtUSD(u.CostUSD)
	}
	model := ""
	if u.Model != "" {
		model = " / model " + u.Model
	}
	return fmt.Sprintf("%s: input %s%s / output %s tokens (cost: %s)%s",
		u.Label, fmtInt(u.Usage.InputTokens), cached, fmtInt(u.Usage.OutputTokens), cost, model)
}

func fmtHM(totalSec int) string {
	h := totalSec / 3600
	m := (totalSec % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func fmtInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}

func fmtUSD(cost float64) string {
	return fmt.Sprintf("$%.6f", cost)
}

// usageTier buckets an app's time against the day's busiest app.
func usageTier(sec, maxSec int) string {
	if maxSec <= 0 {
		return "low"
	}
	if sec == maxSec && sec > 0 {
		return "top"
	}
	r := float64(sec) / float64(maxSec)
	switch {
	case r >= 0.66:
		return "high"
	case r >= 0.33:
		return "mid"
	default:
		return "low"
	}
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
