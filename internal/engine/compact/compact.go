// Package compact deduplicates repeated OCR text across one segment's
// events, the third stage of the distillation pipeline. Screens
// redisplay most of their content every sampling tick; compaction
// reduces each event to what newly appeared while recurring fragments
// move to a per-display common pool.
package compact

import (
	"sort"
	"strings"

	"github.com/pronoun-studio/everlog/internal/model"
)

// residualSep joins the surviving chunks of one event's residual.
const residualSep = " / "

// stream identifies an independent dedup domain: one display in one
// activity state. Active-display chunks never suppress (or get
// suppressed by) inactive-display chunks, even when textually equal,
// so the summarizer keeps the signal/reference distinction.
type stream struct {
	display int
	active  bool
}

// Compact deduplicates seg's member events per display. events must be
// seg's members in timestamp order. Pure function of its inputs: all
// accumulator state is local to one invocation, so independent
// segments compact in parallel safely.
func Compact(seg model.Segment, events []model.NormalizedEvent) model.CompactedSegment {
	out := model.CompactedSegment{Segment: seg}

	// Display order: first appearance across events.
	var displayOrder []int
	seenDisplay := map[int]bool{}
	for _, e := range events {
		for _, d := range e.Displays {
			if !seenDisplay[d.Display] {
				seenDisplay[d.Display] = true
				displayOrder = append(displayOrder, d.Display)
			}
		}
	}

	// Pass 1: per-stream occurrence counts. A chunk is counted once
	// per event (an event redisplaying a chunk twice is one sighting).
	counts := map[stream]map[string]*occ{}
	appearance := 0
	for _, e := range events {
		for _, d := range e.Displays {
			chunks := Chunks(d.Text)
			if len(chunks) == 0 {
				continue
			}
			st := stream{display: d.Display, active: d.IsActive}
			if counts[st] == nil {
				counts[st] = map[string]*occ{}
			}
			inEvent := map[string]bool{}
			for _, c := range chunks {
				k := Key(c)
				if k == "" || inEvent[k] {
					continue
				}
				inEvent[k] = true
				o := counts[st][k]
				if o == nil {
					o = &occ{sample: c, first: appearance}
					appearance++
					counts[st][k] = o
				}
				o.count++
			}
		}
	}

	// Pass 2: residuals. Chunks already promoted to a stream's common
	// pool, or already seen earlier in the stream, are dropped. An
	// event whose every chunk is suppressed keeps its first chunk so
	// it stays addressable on the reconstructed timeline.
	for _, display := range displayOrder {
		var residuals []model.EventResidual
		seen := map[stream]map[string]bool{}
		for _, e := range events {
			d, ok := findDisplay(e, display)
			if !ok {
				continue
			}
			chunks := Chunks(d.Text)
			if len(chunks) == 0 {
				continue
			}
			st := stream{display: display, active: d.IsActive}
			if seen[st] == nil {
				seen[st] = map[string]bool{}
			}
			var fresh []string
			for _, c := range chunks {
				k := Key(c)
				if k == "" {
					continue
				}
				if o := counts[st][k]; o != nil && o.count >= 2 {
					continue // lives in the common pool
				}
				if seen[st][k] {
					continue
				}
				seen[st][k] = true
				fresh = append(fresh, c)
			}
			if len(fresh) == 0 {
				fresh = []string{chunks[0]}
				if k := Key(chunks[0]); k != "" {
					seen[st][k] = true
				}
			}
			residuals = append(residuals, model.EventResidual{
				EventID:   e.EventID,
				Timestamp: e.Timestamp,
				IsActive:  d.IsActive,
				Text:      strings.Join(fresh, residualSep),
			})
		}

		common := commonPool(counts, display)
		if len(residuals) > 0 || len(common) > 0 {
			out.Displays = append(out.Displays, model.DisplayResiduals{
				Display:     display,
				Events:      residuals,
				CommonTexts: common,
			})
		}
	}

	return out
}

// occ tracks one chunk's sightings within a stream.
type occ struct {
	count  int
	sample string
	first  int // appearance order within the segment
}

// findDisplay returns e's observation for the given display index.
func findDisplay(e model.NormalizedEvent, display int) (model.DisplayObservation, bool) {
	for _, d := range e.Displays {
		if d.Display == display {
			return d, true
		}
	}
	return model.DisplayObservation{}, false
}

// commonPool merges a display's recurring chunks (per-stream count
// ≥2) from both activity streams, ordered by count descending then
// first appearance. The pool is uncapped: every suppressed chunk must
// stay reconstructable from residuals plus pool, and the hour packer
// bounds what reaches the summarizer.
func commonPool(counts map[stream]map[string]*occ, display int) []model.CommonText {
	type entry struct {
		text  string
		count int
		first int
	}
	merged := map[string]*entry{}
	for _, active := range []bool{true, false} {
		for k, o := range counts[stream{display: display, active: active}] {
			if o.count < 2 {
				continue
			}
			e := merged[k]
			if e == nil || o.first < e.first {
				if e == nil {
					e = &entry{text: o.sample, first: o.first}
					merged[k] = e
				} else {
					e.text = o.sample
					e.first = o.first
				}
			}
			e.count += o.count
		}
	}
	if len(merged) == 0 {
		return nil
	}
	entries := make([]*entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].count != entries[b].count {
			return entries[a].count > entries[b].count
		}
		return entries[a].first < entries[b].first
	})
	out := make([]model.CommonText, len(entries))
	for i, e := range entries {
		out[i] = model.CommonText{Text: e.text, Count: e.count}
	}
	return out
}
