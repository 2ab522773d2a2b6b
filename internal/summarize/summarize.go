// Package summarize orchestrates a full day run: read the capture
// log, distill it, optionally label it with the LLM, and deliver the
// markdown report.
package summarize

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pronoun-studio/everlog/internal/config"
	"github.com/pronoun-studio/everlog/internal/engine"
	"github.com/pronoun-studio/everlog/internal/llm"
	"github.com/pronoun-studio/everlog/internal/model"
	"github.com/pronoun-studio/everlog/internal/report"
	"github.com/pronoun-studio/everlog/internal/source"
	"github.com/pronoun-studio/everlog/internal/timeutil"
	"github.com/pronoun-studio/everlog/internal/trace"
)

// Progress reports run milestones: percent complete and a stage name.
type Progress func(percent int, stage string)

// hourTSFormat keys hour annotations to hour packs.
const hourTSFormat = "2006-01-02T15:04:05-07:00"

// Options tunes one summarize run.
type Options struct {
	Date     string // date argument ("today", "yesterday", "YYYY-MM-DD")
	RunID    string // optional; generated when empty
	Sinks    []report.Sink
	Progress Progress
}

// Outcome is what a completed run produced.
type Outcome struct {
	Date     string
	RunID    string
	OutPath  string
	Markdown string
	Result   *engine.Result
}

// Runner executes summarize runs against one everlog home.
type Runner struct {
	cfg   *config.Config
	paths config.Paths
	log   *slog.Logger
}

// New creates a Runner.
func New(cfg *config.Config, paths config.Paths) *Runner {
	return &Runner{cfg: cfg, paths: paths, log: slog.Default().With("component", "summarize")}
}

// Day runs the whole pipeline for one day and writes the report.
func (r *Runner) Day(ctx context.Context, opts Options) (*Outcome, error) {
	progress := opts.Progress
	if progress == nil {
		progress = func(int, string) {}
	}

	date := timeutil.NormalizeDateArg(opts.Date)
	if err := r.paths.EnsureDirs(); err != nil {
		return nil, err
	}
	runID := opts.RunID
	if runID == "" {
		runID = timeutil.NewRunID()
	}
	log := r.log.With("date", date, "run_id", runID)

	progress(0, "reading day log")
	events, err := source.ReadDay(r.paths.DayLog(date))
	if err != nil {
		return nil, err
	}
	valid := source.Valid(events)
	log.Info("day log loaded", "events", len(events), "valid", len(valid))

	progress(10, "distilling")
	eng := engine.New(engine.Config{
		IntervalSec:     r.intervalSec(events),
		GapThresholdSec: r.cfg.GapThreshold(),
	})
	res, err := eng.Run(events, engine.StageHourPacks)
	if err != nil {
		return nil, err
	}
	progress(30, "hour packs built")

	var tw *trace.Writer
	if r.cfg.Pipeline.Trace {
		tw = trace.New(r.paths.RunTrace(date, runID))
		tw.WriteResult(res)
		log.Info("stage trace written", "dir", tw.Dir())
	}

	day := r.buildDay(date, runID, events, valid, res)

	var hourMap map[string]llm.HourAnnotation
	if r.cfg.LLM.Enabled && len(res.HourPacks) > 0 {
		progress(50, "labeling hours")
		hourMap = r.runHourLLM(ctx, date, res.HourPacks, &day, tw)
		progress(70, "summarizing day")
		r.runDailyLLM(ctx, date, res.HourPacks, hourMap, &day, tw)
	}
	day.TimelineIncomplete = r.cfg.LLM.Enabled && len(res.HourPacks) > 0 && len(hourMap) == 0
	day.Hours = hourSections(res.HourPacks, hourMap)

	progress(95, "writing report")
	markdown := report.Render(day)

	fileSink := report.NewFileSink(r.paths.RunOut(date, runID), "")
	sinks := append([]report.Sink{fileSink}, opts.Sinks...)
	multi := report.NewMultiSink(sinks...)
	if err := multi.Write(ctx, day, markdown); err != nil {
		multi.Close()
		return nil, err
	}
	if err := multi.Close(); err != nil {
		return nil, err
	}

	progress(100, "done")
	log.Info("report written", "path", fileSink.Path)
	return &Outcome{
		Date:     date,
		RunID:    runID,
		OutPath:  fileSink.Path,
		Markdown: markdown,
		Result:   res,
	}, nil
}

// intervalSec prefers the capture agent's own interval over config.
func (r *Runner) intervalSec(events []model.CaptureEvent) int {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].IntervalSec > 0 {
			return events[i].IntervalSec
		}
	}
	return r.cfg.IntervalSec
}

// buildDay assembles the report skeleton from the pipeline result.
func (r *Runner) buildDay(date, runID string, events, valid []model.CaptureEvent, res *engine.Result) report.Day {
	day := report.Day{
		Date:         date,
		RunID:        runID,
		CaptureCount: len(events),
		ValidCount:   len(valid),
	}
	for _, e := range events {
		if e.Excluded {
			day.ExcludedCount++
		}
		if e.Error != "" {
			day.ErrorCount++
		}
		if day.Start.IsZero() || e.Timestamp.Before(day.Start) {
			day.Start = e.Timestamp
		}
		if e.Timestamp.After(day.End) {
			day.End = e.Timestamp
		}
	}
	for _, seg := range res.Segments {
		day.TotalSecValid += seg.DurationSec
	}
	for _, p := range res.HourPacks {
		day.TotalSecAll += p.ActiveSecEst
	}
	day.Apps = appRows(res.Segments)
	return day
}

// runHourLLM labels the busiest hour packs, returning annotations
// keyed by hour start. Failures degrade to nil.
func (r *Runner) runHourLLM(ctx context.Context, date string, packs []model.HourPack, day *report.Day, tw *trace.Writer) map[string]llm.HourAnnotation {
	usage := report.UsageLine{Label: "hour-llm (timeline)"}
	defer func() { day.LLMUsage = append(day.LLMUsage, usage) }()

	client, err := r.newClient()
	if err != nil {
		r.log.Warn("hour labeling skipped", "error", err)
		return nil
	}
	eligible := eligiblePacks(packs, r.cfg.LLM.MinActiveSec, r.cfg.LLM.MaxHours)
	if len(eligible) == 0 {
		return nil
	}
	analysis, err := client.AnalyzeHourBlocks(ctx, date, eligible)
	if err != nil {
		r.log.Warn("hour labeling failed", "error", err)
		return nil
	}
	if analysis == nil {
		return nil
	}
	usage.Ran = true
	usage.Model = analysis.Model
	usage.Usage = analysis.Usage
	usage.CostUSD, usage.HasCost = llm.CostUSD(analysis.Usage, analysis.Model)
	if tw != nil {
		rows := make([]any, len(analysis.Hours))
		for i, h := range analysis.Hours {
			rows[i] = h
		}
		tw.WriteExtra("stage-05-hour-llm", rows...)
	}

	out := make(map[string]llm.HourAnnotation, len(analysis.Hours))
	for _, h := range analysis.Hours {
		if h.HourStart != "" {
			out[h.HourStart] = h
		}
	}
	return out
}

// runDailyLLM composes the whole-day summary from per-hour rows.
func (r *Runner) runDailyLLM(ctx context.Context, date string, packs []model.HourPack, hourMap map[string]llm.HourAnnotation, day *report.Day, tw *trace.Writer) {
	usage := report.UsageLine{Label: "daily-llm (day summary)"}
	defer func() { day.LLMUsage = append(day.LLMUsage, usage) }()

	client, err := r.newClient()
	if err != nil {
		return
	}
	var hours []llm.DayHourInput
	for _, p := range packs {
		key := p.Start.Format(hourTSFormat)
		ann := hourMap[key]
		title := ann.Title
		summary := ann.Summary
		if title == "" {
			labels := clusterLabels(p)
			if len(labels) > 0 {
				title = labels[0]
			} else {
				title = observation(p)
			}
		}
		if summary == "" {
			summary = observation(p)
		}
		if title == "" && summary == "" {
			continue
		}
		hours = append(hours, llm.DayHourInput{
			HourStart:    key,
			HourEnd:      p.End.Format(hourTSFormat),
			ActiveMinEst: p.ActiveSecEst / 60,
			Title:        title,
			Summary:      shorten(summary, 240),
		})
	}
	if len(hours) == 0 {
		return
	}
	analysis, err := client.AnalyzeDaySummary(ctx, date, hours)
	if err != nil {
		r.log.Warn("day summary failed", "error", err)
		return
	}
	if analysis == nil {
		return
	}
	usage.Ran = true
	usage.Model = analysis.Model
	usage.Usage = analysis.Usage
	usage.CostUSD, usage.HasCost = llm.CostUSD(analysis.Usage, analysis.Model)
	if tw != nil {
		tw.WriteExtra("stage-06-daily-llm", analysis.Daily)
	}

	day.Title = analysis.Daily.Title
	day.Summary = analysis.Daily.Summary
	day.Highlights = analysis.Daily.Highlights
}

func (r *Runner) newClient() (*llm.Client, error) {
	opts := []llm.Option{
		llm.WithModel(r.cfg.LLM.Model),
		llm.WithTimeout(time.Duration(r.cfg.LLM.TimeoutSec) * time.Second),
	}
	if r.cfg.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(r.cfg.LLM.BaseURL))
	}
	return llm.New("", opts...)
}

// eligiblePacks keeps packs with enough estimated activity, capped at
// maxHours busiest packs, returned in chronological order.
func eligiblePacks(packs []model.HourPack, minActiveSec, maxHours int) []model.HourPack {
	eligible := make([]model.HourPack, 0, len(packs))
	for _, p := range packs {
		if p.ActiveSecEst >= minActiveSec {
			eligible = append(eligible, p)
		}
	}
	if maxHours > 0 && len(eligible) > maxHours {
		sort.SliceStable(eligible, func(i, j int) bool {
			if eligible[i].ActiveSecEst != eligible[j].ActiveSecEst {
				return eligible[i].ActiveSecEst > eligible[j].ActiveSecEst
			}
			return eligible[i].Start.Before(eligible[j].Start)
		})
		eligible = eligible[:maxHours]
		sort.Slice(eligible, func(i, j int) bool {
			return eligible[i].Start.Before(eligible[j].Start)
		})
	}
	return eligible
}

// hourSections builds the timeline blocks, preferring LLM titles and
// falling back to cluster labels and raw observations.
func hourSections(packs []model.HourPack, hourMap map[string]llm.HourAnnotation) []report.HourSection {
	sections := make([]report.HourSection, 0, len(packs))
	for _, p := range packs {
		ann := hourMap[p.Start.Format(hourTSFormat)]
		labels := clusterLabels(p)
		title := ann.Title
		if title == "" && len(labels) > 0 {
			title = labels[0]
		}
		summary := ann.Summary
		if summary == "" {
			summary = observation(p)
		}
		if nearDuplicate(summary, title) {
			summary = ""
		}
		sections = append(sections, report.HourSection{
			Start:     p.Start,
			End:       p.End.Add(-time.Second),
			ActiveMin: p.ActiveSecEst / 60,
			Title:     title,
			Summary:   summary,
			Screens:   labels,
		})
	}
	return sections
}

// clusterLabels returns the distinct context labels of a pack's
// clusters, busiest first.
func clusterLabels(p model.HourPack) []string {
	var out []string
	for _, c := range p.Clusters {
		label := c.Key.Label()
		if label == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == label {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, label)
		}
	}
	return out
}

// observation picks the most representative raw text in a pack: the
// first timeline entry, else the first common text.
func observation(p model.HourPack) string {
	for _, c := range p.Clusters {
		for _, e := range c.Timeline {
			if t := strings.TrimSpace(e.Text); t != "" {
				return shorten(t, 80)
			}
		}
	}
	for _, ct := range p.CommonTexts {
		if t := strings.TrimSpace(ct); t != "" {
			return shorten(t, 80)
		}
	}
	return ""
}

// nearDuplicate reports whether a summary merely restates the title:
// equal after whitespace/case folding, or one containing the other.
func nearDuplicate(summary, title string) bool {
	a := strings.ToLower(strings.Join(strings.Fields(summary), " "))
	b := strings.ToLower(strings.Join(strings.Fields(title), " "))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// appRows aggregates segment time per application for the usage
// table, busiest first.
func appRows(segs []model.Segment) []report.AppRow {
	type appAgg struct {
		sec      int
		captures int
		labelSec map[string]int
		labels   []string
	}
	byApp := map[string]*appAgg{}
	var order []string
	for _, s := range segs {
		app := strings.TrimSpace(s.Key.App)
		if app == "" {
			app = "(unknown)"
		}
		agg := byApp[app]
		if agg == nil {
			agg = &appAgg{labelSec: map[string]int{}}
			byApp[app] = agg
			order = append(order, app)
		}
		agg.sec += s.DurationSec
		agg.captures += s.Captures
		if _, seen := agg.labelSec[s.Label]; !seen {
			agg.labels = append(agg.labels, s.Label)
		}
		agg.labelSec[s.Label] += s.DurationSec
	}

	rows := make([]report.AppRow, 0, len(byApp))
	for _, app := range order {
		agg := byApp[app]
		sort.SliceStable(agg.labels, func(i, j int) bool {
			return agg.labelSec[agg.labels[i]] > agg.labelSec[agg.labels[j]]
		})
		uses := make([]string, 0, 2)
		for _, lbl := range agg.labels {
			if len(uses) >= 2 {
				break
			}
			uses = append(uses, strings.TrimPrefix(lbl, app+" / "))
		}
		rows = append(rows, report.AppRow{App: app, Sec: agg.sec, Captures: agg.captures, Uses: uses})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Sec > rows[j].Sec })
	return rows
}

func shorten(s string, maxLen int) string {
	t := strings.Join(strings.Fields(s), " ")
	r := []rune(t)
	if len(r) <= maxLen {
		return t
	}
	return strings.TrimRight(string(r[:maxLen-1]), " ") + "…"
}
