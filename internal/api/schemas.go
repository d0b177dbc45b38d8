package api

import (
	"time"

	"github.com/clipdex/clipdex/internal/catalog"
	"github.com/clipdex/clipdex/internal/pipeline"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type EventResponse struct {
	Stage   string `json:"stage"`
	Clip    string `json:"clip,omitempty"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

type StatusResponse struct {
	State       string         `json:"state"`
	LastEvent   *EventResponse `json:"last_event,omitempty"`
	RunsCount   int            `json:"runs_count"`
	AssetsCount int            `json:"assets_count"`
}

type RunResponse struct {
	ID             string  `json:"id"`
	SourcePath     string  `json:"source_path"`
	IndexID        string  `json:"index_id"`
	IndexName      string  `json:"index_name"`
	ClipDuration   float64 `json:"clip_duration"`
	LastClipPolicy string  `json:"last_clip_policy"`
	TotalClips     int     `json:"total_clips"`
	IndexedCount   int     `json:"indexed_count"`
	DroppedCount   int     `json:"dropped_count"`
	CreatedAt      string  `json:"created_at"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type AssetResponse struct {
	ID        string  `json:"id"`
	Path      string  `json:"path"`
	ClipIndex int     `json:"clip_index"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	VideoID   string  `json:"video_id,omitempty"`
	State     string  `json:"state"`
	Reason    string  `json:"reason,omitempty"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

func RunToResponse(run *catalog.Run) RunResponse {
	return RunResponse{
		ID:             run.ID,
		SourcePath:     run.SourcePath,
		IndexID:        run.IndexID,
		IndexName:      run.IndexName,
		ClipDuration:   run.ClipDuration,
		LastClipPolicy: run.LastClipPolicy,
		TotalClips:     run.TotalClips,
		IndexedCount:   run.IndexedCount,
		DroppedCount:   run.DroppedCount,
		CreatedAt:      run.CreatedAt.Format(time.RFC3339),
	}
}

func AssetToResponse(a *catalog.Asset) AssetResponse {
	return AssetResponse{
		ID:        a.ID,
		Path:      a.Path,
		ClipIndex: a.ClipIndex,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Duration:  a.Duration,
		VideoID:   a.VideoID,
		State:     a.State,
		Reason:    a.Reason,
	}
}

func EventToResponse(ev pipeline.Event) *EventResponse {
	if ev.Time.IsZero() {
		return nil
	}
	return &EventResponse{
		Stage:   string(ev.Stage),
		Clip:    ev.Clip,
		Message: ev.Message,
		Time:    ev.Time.Format(time.RFC3339),
	}
}
