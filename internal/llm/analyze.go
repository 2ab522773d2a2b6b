package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pronoun-studio/everlog/internal/model"
)

const jsonOnlySystemPrompt = "You are a precise assistant that returns JSON only. " +
	"Do not include any extra text outside of JSON."

// HourAnnotation is the model's label for one hour block, keyed by
// the block's start timestamp.
type HourAnnotation struct {
	HourStart string `json:"hour_start_ts"`
	Title     string `json:"hour_title"`
	Summary   string `json:"hour_summary"`
}

// HourAnalysis is the outcome of labeling a day's hour blocks.
type HourAnalysis struct {
	Model string
	Usage Usage
	Hours []HourAnnotation
}

// hourBlockInput is the wire shape sent per hour: the pack minus
// per-segment residual detail the model does not need.
type hourBlockInput struct {
	HourStart   string             `json:"hour_start_ts"`
	HourEnd     string             `json:"hour_end_ts"`
	CommonTexts []string           `json:"hour_common_texts"`
	Clusters    []hourClusterInput `json:"clusters"`
}

type hourClusterInput struct {
	Key        model.ContextKey      `json:"segment_key"`
	SegmentIDs []int                 `json:"segment_ids"`
	Timeline   []model.TimelineEntry `json:"active_timeline"`
}

// AnalyzeHourBlocks asks the model to title and summarize each hour
// pack. Packs with neither clusters nor common texts are skipped.
func (c *Client) AnalyzeHourBlocks(ctx context.Context, date string, packs []model.HourPack) (*HourAnalysis, error) {
	input := make([]hourBlockInput, 0, len(packs))
	for _, p := range packs {
		if len(p.Clusters) == 0 && len(p.CommonTexts) == 0 {
			continue
		}
		clusters := make([]hourClusterInput, 0, len(p.Clusters))
		for _, cl := range p.Clusters {
			clusters = append(clusters, hourClusterInput{
				Key:        cl.Key,
				SegmentIDs: cl.SegmentIDs,
				Timeline:   cl.Timeline,
			})
		}
		input = append(input, hourBlockInput{
			HourStart:   p.Start.Format("2006-01-02T15:04:05-07:00"),
			HourEnd:     p.End.Format("2006-01-02T15:04:05-07:00"),
			CommonTexts: p.CommonTexts,
			Clusters:    clusters,
		})
	}
	if len(input) == 0 {
		return nil, nil
	}

	payload, err := json.MarshalIndent(map[string]any{"date": date, "hours": input}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("llm: marshal hour blocks: %w", err)
	}
	user := fmt.Sprintf(`You are analyzing a person's own screen activity log.
For each hour block below, produce a short concrete "hour_title" and a
one or two sentence "hour_summary" of what was being worked on.

Rules:
- Be specific: anchor each summary to at least one concrete detail
  (file name, directory, URL, screen name) found in the input.
- Never end with only abstract phrasing like "data exploration" or
  "checking files".
- Do not invent activity the input does not support.
- Never output secrets: mask anything resembling an API key, token,
  email address, or password; respect existing [REDACTED_*] markers.

Return JSON only, in this shape:
{
  "hours": [
    {"hour_start_ts": "...", "hour_title": "short title", "hour_summary": "1-2 sentences"}
  ]
}

Input:
%s
`, payload)

	slog.Debug("hour-block prompt built", "hours", len(input), "tokens", CountTokens(user))
	res, err := c.Complete(ctx, jsonOnlySystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Hours []HourAnnotation `json:"hours"`
	}
	if err := extractJSON(res.Text, &parsed); err != nil {
		return nil, err
	}
	return &HourAnalysis{Model: res.Model, Usage: res.Usage, Hours: parsed.Hours}, nil
}

// DayHourInput is the condensed per-hour row fed to the day summary:
// one title and summary per hour, from the hour analysis when
// available or from pack heuristics otherwise.
type DayHourInput struct {
	HourStart    string `json:"hour_start_ts"`
	HourEnd      string `json:"hour_end_ts"`
	ActiveMinEst int    `json:"active_min_est"`
	Title        string `json:"hour_title"`
	Summary      string `json:"hour_summary"`
}

// DaySummary is the model's whole-day narrative.
type DaySummary struct {
	Title      string   `json:"daily_title"`
	Summary    string   `json:"daily_summary"`
	Highlights []string `json:"highlights,omitempty"`
}

// DayAnalysis is the outcome of summarizing the whole day.
type DayAnalysis struct {
	Model string
	Usage Usage
	Daily DaySummary
}

// AnalyzeDaySummary composes a one-day narrative from per-hour rows.
func (c *Client) AnalyzeDaySummary(ctx context.Context, date string, hours []DayHourInput) (*DayAnalysis, error) {
	if len(hours) == 0 {
		return nil, nil
	}
	payload, err := json.MarshalIndent(map[string]any{"date": date, "hours": hours}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("llm: marshal day hours: %w", err)
	}
	user := fmt.Sprintf(`Below is one day of a person's own work, one row per hour.
Write a "daily_title" (one short line naming the day's main thread of
work), a "daily_summary" (2-4 sentences covering the arc of the day),
and up to 5 "highlights" (concrete accomplishments or notable events).

Rules:
- Stay grounded in the hour rows; do not invent work.
- Prefer concrete anchors (project names, files, sites) over abstractions.
- Never output secrets; respect existing [REDACTED_*] markers.

Return JSON only, in this shape:
{
  "daily_title": "...",
  "daily_summary": "...",
  "highlights": ["..."]
}

Input:
%s
`, payload)

	slog.Debug("day-summary prompt built", "hours", len(hours), "tokens", CountTokens(user))
	res, err := c.Complete(ctx, jsonOnlySystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var parsed DaySummary
	if err := extractJSON(res.Text, &parsed); err != nil {
		return nil, err
	}
	return &DayAnalysis{Model: res.Model, Usage: res.Usage, Daily: parsed}, nil
}
