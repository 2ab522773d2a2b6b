package everlog

import (
	"context"
	"fmt"

	"github.com/pronoun-studio/everlog/internal/config"
	"github.com/pronoun-studio/everlog/internal/report"
	"github.com/pronoun-studio/everlog/internal/summarize"
)

// Everlog is a configured day-summarization pipeline rooted at one
// everlog home directory. Safe for concurrent SummarizeDay calls on
// distinct dates.
type Everlog struct {
	cfg      config.Config
	paths    config.Paths
	progress summarize.Progress
}

// Run describes one completed summarize run.
type Run struct {
	Date     string
	RunID    string
	Path     string // markdown location on disk
	Markdown string

	Events    int
	Segments  int
	HourPacks int
}

// Open resolves the everlog home, loads (or creates) its config, and
// applies option overrides.
func Open(opts ...Option) (*Everlog, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	home := o.home
	if home == "" {
		var err error
		home, err = config.DefaultHome()
		if err != nil {
			return nil, fmt.Errorf("everlog: %w", err)
		}
	}
	cfg, err := config.Load(home)
	if err != nil {
		return nil, fmt.Errorf("everlog: %w", err)
	}
	if o.trace != nil {
		cfg.Pipeline.Trace = *o.trace
	}
	if o.llm != nil {
		cfg.LLM.Enabled = *o.llm
	}
	if o.model != "" {
		cfg.LLM.Model = o.model
	}

	return &Everlog{cfg: cfg, paths: config.NewPaths(home), progress: o.progress}, nil
}

// Home returns the resolved everlog home directory.
func (e *Everlog) Home() string {
	return e.paths.Home
}

// SummarizeDay distills one day's capture log into a markdown work
// log, writing it under out/<date>/<run-id>/ plus any destinations
// configured in the output section.
func (e *Everlog) SummarizeDay(ctx context.Context, date string) (*Run, error) {
	runner := summarize.New(&e.cfg, e.paths)
	out, err := runner.Day(ctx, summarize.Options{
		Date:     date,
		Sinks:    e.extraSinks(),
		Progress: e.progress,
	})
	if err != nil {
		return nil, fmt.Errorf("everlog: %w", err)
	}
	return &Run{
		Date:      out.Date,
		RunID:     out.RunID,
		Path:      out.OutPath,
		Markdown:  out.Markdown,
		Events:    len(out.Result.Events),
		Segments:  len(out.Result.Segments),
		HourPacks: len(out.Result.HourPacks),
	}, nil
}

// extraSinks maps the output config onto report sinks beyond the
// always-on file sink.
func (e *Everlog) extraSinks() []report.Sink {
	var sinks []report.Sink
	if e.cfg.Output.Format == "stdout" {
		sinks = append(sinks, report.NewStdoutSink())
	}
	if e.cfg.Output.WebhookURL != "" {
		sinks = append(sinks, report.NewWebhookSink(e.cfg.Output.WebhookURL, nil))
	}
	return sinks
}
