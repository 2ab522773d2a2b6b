// Package hourpack aggregates compacted segments into one-hour
// windows, the final stage of the distillation pipeline. Each pack
// carries at most MaxClusters context clusters and MaxCommonTexts
// ranked background fragments, bounding what any downstream
// summarizer call can receive.
package hourpack

import (
	"sort"
	"strings"
	"time"

	"github.com/pronoun-studio/everlog/internal/engine/compact"
	"github.com/pronoun-studio/everlog/internal/model"
	"github.com/pronoun-studio/everlog/internal/timeutil"
)

// maxCommonNormLen truncates normalized common-text keys so tiny
// trailing diffs in large OCR blocks don't explode variants.
const maxCommonNormLen = 240

// Config controls hour packing.
type Config struct {
	// IntervalSec is the default sampling interval for activity
	// estimates when an event carries none.
	IntervalSec int
}

func (c Config) interval() int {
	if c.IntervalSec > 0 {
		return c.IntervalSec
	}
	return 300
}

// Build aggregates segments into hour packs. A segment is attributed
// wholly to the hour containing its start timestamp — never
// duplicated across hours. events (the full day's captures, including
// excluded/errored ones) feed the per-hour activity estimate; they
// may be nil. Zero input produces zero packs, not an error.
func Build(segs []model.CompactedSegment, events []model.CaptureEvent, cfg Config) []model.HourPack {
	buckets := map[time.Time]*bucket{}
	get := func(hour time.Time) *bucket {
		b := buckets[hour]
		if b == nil {
			b = &bucket{
				hour:     hour,
				common:   map[string]*commonEntry{},
				clusters: map[model.ContextKey]*cluster{},
			}
			buckets[hour] = b
		}
		return b
	}

	// Activity estimate keeps excluded/errored events: the hour was
	// worked even when its text was withheld.
	for _, e := range events {
		if e.Timestamp.IsZero() {
			continue
		}
		dur := e.IntervalSec
		if dur <= 0 {
			dur = cfg.interval()
		}
		get(timeutil.HourStart(e.Timestamp)).activeSecEst += dur
	}

	for _, seg := range segs {
		if seg.Start.IsZero() {
			continue
		}
		b := get(timeutil.HourStart(seg.Start))
		b.addCommon(seg)
		b.addCluster(seg)
	}

	hours := make([]time.Time, 0, len(buckets))
	for h := range buckets {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	packs := make([]model.HourPack, 0, len(hours))
	for _, h := range hours {
		b := buckets[h]
		packs = append(packs, model.HourPack{
			Start:        h,
			End:          h.Add(time.Hour),
			ActiveSecEst: b.activeSecEst,
			CommonTexts:  b.rankedCommon(),
			Clusters:     b.topClusters(),
		})
	}
	return packs
}

type commonEntry struct {
	sample string
	count  int
}

type cluster struct {
	key        model.ContextKey
	segmentIDs []int
	activeSec  int
	earliest   time.Time
	timeline   []model.TimelineEntry
}

type bucket struct {
	hour         time.Time
	activeSecEst int
	common       map[string]*commonEntry
	commonOrder  []string
	clusters     map[model.ContextKey]*cluster
	clusterOrder []model.ContextKey
}

// addCommon counts the segment's pooled texts, once per distinct
// (segment, display, normalized text) triple, so one segment with a
// persistently redisplayed block cannot dominate the hour's ranking.
func (b *bucket) addCommon(seg model.CompactedSegment) {
	for _, d := range seg.Displays {
		seen := map[string]bool{}
		for _, ct := range d.CommonTexts {
			norm := normalizeCommon(ct.Text)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			e := b.common[norm]
			if e == nil {
				e = &commonEntry{sample: strings.TrimSpace(ct.Text)}
				b.common[norm] = e
				b.commonOrder = append(b.commonOrder, norm)
			}
			e.count++
		}
	}
}

// addCluster folds the segment into its context-key cluster: summed
// wall-clock duration (clipped non-negative) and active-display
// residuals onto the timeline.
func (b *bucket) addCluster(seg model.CompactedSegment) {
	c := b.clusters[seg.Key]
	if c == nil {
		c = &cluster{key: seg.Key, earliest: seg.Start}
		b.clusters[seg.Key] = c
		b.clusterOrder = append(b.clusterOrder, seg.Key)
	}
	c.segmentIDs = append(c.segmentIDs, seg.ID)
	if dur := seg.End.Sub(seg.Start); dur > 0 {
		c.activeSec += int(dur.Seconds())
	}
	if seg.Start.Before(c.earliest) {
		c.earliest = seg.Start
	}
	for _, d := range seg.Displays {
		for _, ev := range d.Events {
			if !ev.IsActive || strings.TrimSpace(ev.Text) == "" {
				continue
			}
			c.timeline = append(c.timeline, model.TimelineEntry{
				Timestamp: ev.Timestamp,
				SegmentID: seg.ID,
				Text:      ev.Text,
			})
		}
	}
}

// rankedCommon returns the hour's common texts, highest triple-count
// first, longer samples breaking count ties, capped at MaxCommonTexts.
func (b *bucket) rankedCommon() []string {
	order := make([]string, len(b.commonOrder))
	copy(order, b.commonOrder)
	sort.SliceStable(order, func(i, j int) bool {
		a, c := b.common[order[i]], b.common[order[j]]
		if a.count != c.count {
			return a.count > c.count
		}
		return len(a.sample) > len(c.sample)
	})
	var out []string
	for _, norm := range order {
		if s := b.common[norm].sample; s != "" {
			out = append(out, s)
		}
		if len(out) >= model.MaxCommonTexts {
			break
		}
	}
	return out
}

// topClusters selects the hour's top clusters by summed duration,
// earliest start breaking ties, capped at MaxClusters. Survivors with
// an empty active timeline are dropped; losers were already counted
// into the common ranking and are discarded here.
func (b *bucket) topClusters() []model.Cluster {
	order := make([]model.ContextKey, len(b.clusterOrder))
	copy(order, b.clusterOrder)
	sort.SliceStable(order, func(i, j int) bool {
		a, c := b.clusters[order[i]], b.clusters[order[j]]
		if a.activeSec != c.activeSec {
			return a.activeSec > c.activeSec
		}
		return a.earliest.Before(c.earliest)
	})
	if len(order) > model.MaxClusters {
		order = order[:model.MaxClusters]
	}
	var out []model.Cluster
	for _, key := range order {
		c := b.clusters[key]
		if len(c.timeline) == 0 {
			continue
		}
		timeline := make([]model.TimelineEntry, len(c.timeline))
		copy(timeline, c.timeline)
		sort.SliceStable(timeline, func(i, j int) bool {
			return timeline[i].Timestamp.Before(timeline[j].Timestamp)
		})
		ids := make([]int, len(c.segmentIDs))
		copy(ids, c.segmentIDs)
		sort.Ints(ids)
		out = append(out, model.Cluster{
			Key:        key,
			SegmentIDs: ids,
			ActiveSec:  c.activeSec,
			Timeline:   timeline,
		})
	}
	return out
}

// normalizeCommon builds the hour-level identity key for a pooled
// text: the chunk dedup key with all spaces removed and a length cap.
func normalizeCommon(text string) string {
	t := compact.Key(text)
	t = strings.ReplaceAll(t, " ", "")
	runes := []rune(t)
	if len(runes) > maxCommonNormLen {
		runes = runes[:maxCommonNormLen]
	}
	return string(runes)
}
