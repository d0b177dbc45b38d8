package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clipdex/clipdex/internal/media"
	"github.com/clipdex/clipdex/internal/pipeline"
	"github.com/clipdex/clipdex/internal/segment"
)

// RecordRun persists one completed pipeline run and all of its per-clip
// outcomes. Persistence failures surface to the caller; they never undo the
// remote indexing that already happened.
func RecordRun(ctx context.Context, repo Repository, sourcePath string, opts segment.Options, result *pipeline.Result) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:             uuid.NewString(),
		SourcePath:     sourcePath,
		IndexID:        result.Index.ID,
		IndexName:      result.Index.Name,
		ClipDuration:   opts.ClipDuration,
		LastClipPolicy: string(opts.Policy),
		TotalClips:     len(result.Assets) + len(result.Dropped),
		IndexedCount:   len(result.Assets),
		DroppedCount:   len(result.Dropped),
		CreatedAt:      now,
	}
	if err := repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	for _, asset := range result.Assets {
		rec := assetRecord(run.ID, asset, now)
		rec.State = StateIndexed
		rec.VideoID = metaString(asset.Metadata, "video_id")
		if err := repo.CreateAsset(ctx, rec); err != nil {
			return nil, err
		}
	}
	for _, dropped := range result.Dropped {
		rec := assetRecord(run.ID, dropped.Asset, now)
		rec.State = string(dropped.Kind)
		rec.Reason = dropped.Reason
		if err := repo.CreateAsset(ctx, rec); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func assetRecord(runID string, asset media.VideoAsset, now time.Time) *Asset {
	return &Asset{
		ID:        uuid.NewString(),
		RunID:     runID,
		Path:      asset.Path,
		ClipIndex: metaInt(asset.Metadata, "clip_index"),
		StartTime: metaFloat(asset.Metadata, "start_time"),
		EndTime:   metaFloat(asset.Metadata, "end_time"),
		Duration:  metaFloat(asset.Metadata, "duration"),
		CreatedAt: now,
	}
}

func metaString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func metaFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
