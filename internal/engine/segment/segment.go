// Package segment groups time-ordered normalized events into maximal
// contiguous runs sharing one context key, the second stage of the
// distillation pipeline.
package segment

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pronoun-studio/everlog/internal/model"
)

// ErrOutOfOrder reports input events that are not sorted ascending by
// timestamp. The contiguity guarantee depends on caller-supplied
// order, so the run is aborted rather than silently re-sorted.
var ErrOutOfOrder = errors.New("segment: events out of timestamp order")

// Config controls segmentation.
type Config struct {
	// IntervalSec is the default sampling interval, used when an
	// event carries none.
	IntervalSec int
	// GapThresholdSec closes the open segment when the gap to the
	// previous event exceeds it, even with an unchanged context key.
	// Zero derives max(120, 2.5×IntervalSec).
	GapThresholdSec int
}

func (c Config) interval() int {
	if c.IntervalSec > 0 {
		return c.IntervalSec
	}
	return 300
}

func (c Config) gap() time.Duration {
	g := c.GapThresholdSec
	if g <= 0 {
		g = c.interval() * 5 / 2
		if g < 120 {
			g = 120
		}
	}
	return time.Duration(g) * time.Second
}

// Membership maps each input event (by position) to its segment ID.
type Membership []int

// Build groups events into segments. Events must already be sorted
// ascending by timestamp; a violation returns ErrOutOfOrder. Every
// input event lands in exactly one segment.
func Build(events []model.NormalizedEvent, cfg Config) ([]model.Segment, Membership, error) {
	if len(events) == 0 {
		return nil, nil, nil
	}

	gap := cfg.gap()
	var segs []model.Segment
	membership := make(Membership, len(events))

	type acc struct {
		seg      model.Segment
		lastTS   time.Time
		keywords map[string]*counter
		snippets map[string]*counter
		kwOrder  []string
		snOrder  []string
	}
	var cur *acc

	flush := func() {
		if cur == nil {
			return
		}
		cur.seg.Keywords = mostCommon(cur.keywords, cur.kwOrder, 8)
		cur.seg.Snippets = mostCommon(cur.snippets, cur.snOrder, 3)
		segs = append(segs, cur.seg)
		cur = nil
	}

	for i, e := range events {
		if i > 0 && e.Timestamp.Before(events[i-1].Timestamp) {
			return nil, nil, fmt.Errorf("%w: event %q at %s precedes %s",
				ErrOutOfOrder, e.EventID, e.Timestamp.Format(time.RFC3339), events[i-1].Timestamp.Format(time.RFC3339))
		}

		dur := e.IntervalSec
		if dur <= 0 {
			dur = cfg.interval()
		}

		if cur == nil || e.Key != cur.seg.Key || e.Timestamp.Sub(cur.lastTS) > gap {
			flush()
			cur = &acc{
				seg: model.Segment{
					ID:          len(segs),
					Key:         e.Key,
					Label:       e.Key.Label(),
					Start:       e.Timestamp,
					End:         e.Timestamp,
					DurationSec: dur,
					Captures:    1,
					EventIDs:    []string{e.EventID},
				},
				lastTS:   e.Timestamp,
				keywords: make(map[string]*counter),
				snippets: make(map[string]*counter),
			}
		} else {
			cur.seg.End = e.Timestamp
			cur.seg.DurationSec += dur
			cur.seg.Captures++
			cur.seg.EventIDs = append(cur.seg.EventIDs, e.EventID)
			cur.lastTS = e.Timestamp
		}
		membership[i] = len(segs) // ID of the open segment
		cur.kwOrder = count(cur.keywords, cur.kwOrder, e.Keywords)
		cur.snOrder = count(cur.snippets, cur.snOrder, e.Snippets)
	}
	flush()

	return segs, membership, nil
}

// Members returns the events belonging to seg, in input order.
func Members(seg model.Segment, events []model.NormalizedEvent, m Membership) []model.NormalizedEvent {
	var out []model.NormalizedEvent
	for i := range events {
		if m[i] == seg.ID {
			out = append(out, events[i])
		}
	}
	return out
}

type counter struct {
	n     int
	first int
}

func count(m map[string]*counter, order []string, values []string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		c, ok := m[v]
		if !ok {
			c = &counter{first: len(order)}
			m[v] = c
			order = append(order, v)
		}
		c.n++
	}
	return order
}

// mostCommon returns the limit highest-count values, ties broken by
// first appearance.
func mostCommon(m map[string]*counter, order []string, limit int) []string {
	if len(order) == 0 {
		return nil
	}
	out := make([]string, len(order))
	copy(out, order)
	sort.SliceStable(out, func(a, b int) bool {
		ca, cb := m[out[a]], m[out[b]]
		if ca.n != cb.n {
			return ca.n > cb.n
		}
		return ca.first < cb.first
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
