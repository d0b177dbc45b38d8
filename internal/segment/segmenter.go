package segment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipdex/clipdex/internal/ffmpeg"
	"github.com/clipdex/clipdex/internal/media"
)

// SubprocessError reports a failed ffprobe/ffmpeg invocation. Any single
// extraction failure is fatal to the whole segmentation call.
type SubprocessError struct {
	Op   string // "probe" or "extract"
	Path string
	Err  error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, filepath.Base(e.Path), e.Err)
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}

// Options configures one segmentation call.
type Options struct {
	ClipDuration    float64 // seconds, must be positive
	Policy          Policy
	IncludeOriginal bool   // prepend the whole source video as an asset
	OutputDir       string // empty = unique directory next to the source
}

// Segmenter splits a source video into clip assets via the ffmpeg runner.
type Segmenter struct {
	runner ffmpeg.Runner
	logger *slog.Logger
	now    func() time.Time
}

func NewSegmenter(runner ffmpeg.Runner, logger *slog.Logger) *Segmenter {
	return &Segmenter{runner: runner, logger: logger, now: time.Now}
}

// Split probes videoPath, plans the clip ranges, and extracts each retained
// range into a standalone file. The returned assets carry the clip metadata
// consumed downstream by the indexing pipeline.
func (s *Segmenter) Split(ctx context.Context, videoPath string, opts Options) ([]media.VideoAsset, error) {
	if videoPath == "" {
		return nil, fmt.Errorf("%w: video path is required", ErrInvalidInput)
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: video file not found: %s", ErrInvalidInput, videoPath)
	}

	totalDuration, err := s.runner.ProbeDuration(ctx, videoPath)
	if err != nil {
		return nil, &SubprocessError{Op: "probe", Path: videoPath, Err: err}
	}

	ranges, err := Plan(totalDuration, opts.ClipDuration, opts.Policy)
	if err != nil {
		return nil, err
	}

	numClips := NumClips(totalDuration, opts.ClipDuration)
	s.logger.Info("planned video split",
		"source", filepath.Base(videoPath),
		"total_duration", totalDuration,
		"clip_duration", opts.ClipDuration,
		"num_clips", numClips,
		"retained", len(ranges),
		"policy", opts.Policy,
	)

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = s.outputDir(videoPath)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create clip output dir: %w", err)
	}

	originalName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	originalInfo := map[string]any{
		"name":          originalName,
		"filename":      filepath.Base(videoPath),
		"path":          videoPath,
		"duration":      totalDuration,
		"total_clips":   numClips,
		"clip_duration": opts.ClipDuration,
	}

	assets := make([]media.VideoAsset, 0, len(ranges)+1)

	if opts.IncludeOriginal {
		assets = append(assets, media.VideoAsset{
			ID:   uuid.New().String(),
			Path: videoPath,
			Metadata: map[string]any{
				"source":         videoPath,
				"type":           "video",
				"clip_index":     -1,
				"duration":       totalDuration,
				"original_video": originalInfo,
			},
		})
	}

	for _, r := range ranges {
		outputPath := filepath.Join(outputDir, fmt.Sprintf("clip_%03d.mp4", r.Index))

		if err := s.runner.ExtractClip(ctx, videoPath, r.Start, r.Duration(), outputPath); err != nil {
			return nil, &SubprocessError{Op: "extract", Path: outputPath, Err: err}
		}

		assets = append(assets, media.VideoAsset{
			ID:   uuid.New().String(),
			Path: outputPath,
			Metadata: map[string]any{
				"source":         videoPath,
				"type":           "video",
				"clip_index":     r.Index,
				"start_time":     r.Start,
				"end_time":       r.End,
				"duration":       r.Duration(),
				"original_video": originalInfo,
				"clip": map[string]any{
					"index":      r.Index,
					"total":      numClips,
					"duration":   r.Duration(),
					"start_time": r.Start,
					"end_time":   r.End,
					"timestamp":  rangeTimestamp(r.Start, r.End),
				},
			},
		})
	}

	s.logger.Info("created clips", "count", len(assets), "output_dir", outputDir)
	return assets, nil
}

// outputDir builds a unique clip directory next to the source video, keyed
// by basename, timestamp, and a short hash of the full path.
func (s *Segmenter) outputDir(videoPath string) string {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	timestamp := s.now().Format("2006-01-02_15-04-05")
	sum := sha256.Sum256([]byte(videoPath))
	pathHash := hex.EncodeToString(sum[:])[:8]
	return filepath.Join(filepath.Dir(videoPath), fmt.Sprintf("clips_%s_%s_%s", base, timestamp, pathHash))
}

func rangeTimestamp(start, end float64) string {
	return fmt.Sprintf("%02d:%02d - %02d:%02d",
		int(start)/60, int(start)%60,
		int(end)/60, int(end)%60,
	)
}
