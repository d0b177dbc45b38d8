// Package ffmpeg wraps the external ffmpeg/ffprobe binaries behind a small
// transcoding interface used by the segmenter.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// Runner is the transcoding contract: probe a video's duration and extract a
// time range into a standalone media file. A non-zero ffmpeg exit is
// surfaced as an error.
type Runner interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractClip(ctx context.Context, input string, start, duration float64, output string) error
}

// FFmpegRunner is the production Runner, invoking ffmpeg via ffmpeg-go.
type FFmpegRunner struct {
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *FFmpegRunner {
	return &FFmpegRunner{logger: logger}
}

// probeFormat matches the format section of ffprobe JSON output.
type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the container duration in seconds.
func (r *FFmpegRunner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out, err := ffmpeggo.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", filepath.Base(path), err)
	}

	var probe probeFormat
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return 0, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse duration %q: %w", probe.Format.Duration, err)
	}

	return duration, nil
}

// ExtractClip re-encodes [start, start+duration) of input into output,
// overwriting any existing file at output.
func (r *FFmpegRunner) ExtractClip(ctx context.Context, input string, start, duration float64, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("invalid clip duration %.3f: must be positive", duration)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("cannot create clip output dir: %w", err)
	}

	started := time.Now()
	var stderr bytes.Buffer

	err := ffmpeggo.Input(input, ffmpeggo.KwArgs{"ss": start}).
		Output(output, ffmpeggo.KwArgs{
			"t":   duration,
			"c:v": "libx264",
			"c:a": "aac",
		}).
		OverWriteOutput().
		WithErrorOutput(&limitedWriter{w: &stderr, limit: maxStderrBytes}).
		Run()

	elapsed := time.Since(started)

	if err != nil {
		if r.logger != nil {
			r.logger.Warn("clip extraction failed",
				"input", filepath.Base(input),
				"output", filepath.Base(output),
				"duration_ms", elapsed.Milliseconds(),
				"stderr_tail", truncate(stderr.String(), 512),
			)
		}
		return fmt.Errorf("ffmpeg failed extracting %s: %w", filepath.Base(output), err)
	}

	if r.logger != nil {
		r.logger.Debug("clip extracted",
			"output", filepath.Base(output),
			"start", start,
			"clip_seconds", duration,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
