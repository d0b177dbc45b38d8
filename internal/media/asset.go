// Package media defines the video asset model shared by the segmenter and
// the indexing pipeline, plus loading of local video files into assets.
package media

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// VideoAsset is a local video file plus its accumulated metadata. The
// segmenter produces one asset per clip; the pipeline extends Metadata with
// the remote identifiers after successful indexing.
type VideoAsset struct {
	ID       string         `json:"id"`
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata"`
}

// VideoExtensions lists the container formats accepted for ingestion.
var VideoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
	".flv": true, ".wmv": true, ".mpg": true, ".mpeg": true, ".m4v": true,
	".3gp": true, ".3g2": true, ".m2v": true, ".mxf": true, ".dv": true,
	".vob": true, ".ogv": true, ".rm": true, ".rmvb": true, ".amv": true,
	".divx": true, ".m2ts": true, ".mts": true, ".ts": true, ".qt": true,
	".yuv": true, ".y4m": true,
}

// IsVideoFile reports whether filename has a recognised video extension.
func IsVideoFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return VideoExtensions[ext]
}

// Load validates path and wraps it into a VideoAsset with base metadata.
func Load(path string) (*VideoAsset, error) {
	if path == "" {
		return nil, fmt.Errorf("video path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file not found: %w", err)
	}
	if !IsVideoFile(path) {
		return nil, fmt.Errorf("unsupported video format: %s", filepath.Ext(path))
	}

	return &VideoAsset{
		ID:   uuid.New().String(),
		Path: path,
		Metadata: map[string]any{
			"source": path,
			"type":   "video",
		},
	}, nil
}

// LoadBatch loads many paths, skipping entries that fail validation.
// Missing or invalid files are a skip condition, not a fatal error.
func LoadBatch(paths []string, logger *slog.Logger) []VideoAsset {
	assets := make([]VideoAsset, 0, len(paths))
	for _, p := range paths {
		asset, err := Load(p)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping video file", "path", p, "error", err)
			}
			continue
		}
		assets = append(assets, *asset)
	}
	return assets
}
