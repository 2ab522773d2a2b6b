package model

import "time"

// TimelineEntry is one active-display residual placed on a cluster's
// reconstructed timeline.
type TimelineEntry struct {
	Timestamp time.Time `json:"ts"`
	SegmentID int       `json:"segment_id"`
	Text      string    `json:"ocr_text"`
}

// Cluster groups an hour's segments sharing one context key.
type Cluster struct {
	Key        ContextKey      `json:"segment_key"`
	SegmentIDs []int           `json:"segment_ids"`
	ActiveSec  int             `json:"active_sec"`
	Timeline   []TimelineEntry `json:"active_timeline"`
}

// HourPack is the unit of work handed to the summarizer: one hour
// window with ranked background texts and the top clusters by active
// time. MaxClusters and MaxCommonTexts bound what any downstream LLM
// call can receive.
type HourPack struct {
	Start        time.Time `json:"hour_start_ts"`
	End          time.Time `json:"hour_end_ts"`
	ActiveSecEst int       `json:"active_sec_est"`
	CommonTexts  []string  `json:"hour_common_texts"`
	Clusters     []Cluster `json:"clusters"`
}

// Hour pack emission caps.
const (
	MaxClusters    = 3
	MaxCommonTexts = 20
)
