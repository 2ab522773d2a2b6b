// Package engine orchestrates the four-stage distillation pipeline:
// normalize → segment → compact → hour-pack. Each stage is a pure
// function of the previous stage's output; the engine only wires them
// in order and exposes prefix runs.
package engine

import (
	"fmt"

	"github.com/pronoun-studio/everlog/internal/engine/compact"
	"github.com/pronoun-studio/everlog/internal/engine/hourpack"
	"github.com/pronoun-studio/everlog/internal/engine/normalize"
	"github.com/pronoun-studio/everlog/internal/engine/segment"
	"github.com/pronoun-studio/everlog/internal/logging"
	"github.com/pronoun-studio/everlog/internal/model"
)

// Stage identifies a point in the pipeline chain. A caller can
// request any prefix; Run fills the Result up to and including the
// requested stage.
type Stage int

const (
	StageRaw Stage = iota
	StageNormalized
	StageSegments
	StageCompacted
	StageHourPacks
)

// String returns the trace-file name component for the stage.
func (s Stage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageNormalized:
		return "entities"
	case StageSegments:
		return "segment"
	case StageCompacted:
		return "compacted"
	case StageHourPacks:
		return "hour-pack"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Config tunes the pipeline.
type Config struct {
	IntervalSec     int
	GapThresholdSec int
}

// Engine runs the distillation chain.
type Engine struct {
	cfg Config
}

// New creates an Engine with the given config.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Result holds each stage's output, populated up to the requested
// stage. Handoffs are single-writer: no stage mutates a slice after
// placing it here.
type Result struct {
	Events     []model.CaptureEvent
	Normalized []model.NormalizedEvent
	Membership segment.Membership
	Segments   []model.Segment
	Compacted  []model.CompactedSegment
	HourPacks  []model.HourPack
}

// Run executes the pipeline over events, which must be sorted
// ascending by timestamp, up to and including upTo. Zero events is a
// valid input yielding an empty Result. Excluded and errored events
// skip normalization but still count toward hour activity estimates.
func (e *Engine) Run(events []model.CaptureEvent, upTo Stage) (*Result, error) {
	res := &Result{Events: events}
	if upTo <= StageRaw {
		return res, nil
	}

	valid := make([]model.CaptureEvent, 0, len(events))
	for _, ev := range events {
		if ev.Excluded || ev.Error != "" {
			continue
		}
		valid = append(valid, ev)
	}
	res.Normalized = normalize.Events(valid)
	logging.Stage(StageNormalized.String()).Debug("normalized",
		"events", len(res.Normalized), "withheld", len(events)-len(valid))
	if upTo <= StageNormalized {
		return res, nil
	}

	segs, membership, err := segment.Build(res.Normalized, segment.Config{
		IntervalSec:     e.cfg.IntervalSec,
		GapThresholdSec: e.cfg.GapThresholdSec,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	res.Segments = segs
	res.Membership = membership
	logging.Stage(StageSegments.String()).Debug("segmented", "segments", len(segs))
	if upTo <= StageSegments {
		return res, nil
	}

	res.Compacted = make([]model.CompactedSegment, 0, len(segs))
	for _, seg := range segs {
		members := segment.Members(seg, res.Normalized, membership)
		res.Compacted = append(res.Compacted, compact.Compact(seg, members))
	}
	logging.Stage(StageCompacted.String()).Debug("compacted", "segments", len(res.Compacted))
	if upTo <= StageCompacted {
		return res, nil
	}

	res.HourPacks = hourpack.Build(res.Compacted, events, hourpack.Config{
		IntervalSec: e.cfg.IntervalSec,
	})
	logging.Stage(StageHourPacks.String()).Debug("packed", "hours", len(res.HourPacks))
	return res, nil
}
