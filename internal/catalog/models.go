// Package catalog persists a local record of every pipeline run: the source
// video, the segmentation parameters, and the per-clip outcome with its
// remote identifiers. The catalog is an audit trail; the remote index stays
// the source of truth for search.
package catalog

import "time"

// Run is one segmentation-and-indexing run over a single source video.
type Run struct {
	ID             string
	SourcePath     string
	IndexID        string
	IndexName      string
	ClipDuration   float64
	LastClipPolicy string
	TotalClips     int
	IndexedCount   int
	DroppedCount   int
	CreatedAt      time.Time
}

// Asset is the per-clip outcome of a run. State is "indexed" for clips that
// reached the remote index, otherwise the failure kind with a reason.
type Asset struct {
	ID        string
	RunID     string
	Path      string
	ClipIndex int
	StartTime float64
	EndTime   float64
	Duration  float64
	VideoID   string
	State     string
	Reason    string
	CreatedAt time.Time
}

const StateIndexed = "indexed"
