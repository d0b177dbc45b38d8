package catalog

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	CreateAsset(ctx context.Context, asset *Asset) error
	GetAssetsByRun(ctx context.Context, runID string) ([]*Asset, error)
	CountAssets(ctx context.Context) (int, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_path, index_id, index_name, clip_duration, last_clip_policy,
			total_clips, indexed_count, dropped_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourcePath, run.IndexID, run.IndexName, run.ClipDuration, run.LastClipPolicy,
		run.TotalClips, run.IndexedCount, run.DroppedCount, run.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source_path, index_id, index_name, clip_duration, last_clip_policy,
			total_clips, indexed_count, dropped_count, created_at
		FROM runs WHERE id = ?
	`, id)

	var run Run
	var createdAt string
	err := row.Scan(&run.ID, &run.SourcePath, &run.IndexID, &run.IndexName,
		&run.ClipDuration, &run.LastClipPolicy,
		&run.TotalClips, &run.IndexedCount, &run.DroppedCount, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &run, nil
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_path, index_id, index_name, clip_duration, last_clip_policy,
			total_clips, indexed_count, dropped_count, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var createdAt string
		if err := rows.Scan(&run.ID, &run.SourcePath, &run.IndexID, &run.IndexName,
			&run.ClipDuration, &run.LastClipPolicy,
			&run.TotalClips, &run.IndexedCount, &run.DroppedCount, &createdAt); err != nil {
			return nil, err
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a *Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (id, run_id, path, clip_index, start_time, end_time, duration,
			video_id, state, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RunID, a.Path, a.ClipIndex, a.StartTime, a.EndTime, a.Duration,
		nullString(a.VideoID), a.State, nullString(a.Reason), a.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetAssetsByRun(ctx context.Context, runID string) ([]*Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, path, clip_index, start_time, end_time, duration,
			video_id, state, reason, created_at
		FROM assets WHERE run_id = ? ORDER BY clip_index
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		var a Asset
		var videoID, reason sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Path, &a.ClipIndex,
			&a.StartTime, &a.EndTime, &a.Duration,
			&videoID, &a.State, &reason, &createdAt); err != nil {
			return nil, err
		}
		a.VideoID = videoID.String
		a.Reason = reason.String
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) CountAssets(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&count)
	return count, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
