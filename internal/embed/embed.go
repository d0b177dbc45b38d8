// Package embed wraps the remote embedding tasks API: submit a video,
// poll to completion, and pick the single embedding vector that best
// represents the whole video.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/clipdex/clipdex/internal/cloud"
)

const (
	// DefaultModelName is the retrieval embedding model.
	DefaultModelName = "Marengo-retrieval-2.7"

	// DefaultPollInterval between embedding task status checks.
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxPollAttempts bounds the wait for an embedding task.
	DefaultMaxPollAttempts = 120
)

// ErrNoEmbeddings is returned when a task completes without producing any
// usable segment.
var ErrNoEmbeddings = errors.New("no embeddings were generated for the video")

// Embedder turns a local video file into one embedding vector.
type Embedder struct {
	client cloud.EmbedAPI
	logger *slog.Logger

	ModelName       string
	PollInterval    time.Duration
	MaxPollAttempts int

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration)
}

func New(client cloud.EmbedAPI, logger *slog.Logger) *Embedder {
	return &Embedder{
		client:          client,
		logger:          logger,
		ModelName:       DefaultModelName,
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
		sleep:           sleepCtx,
	}
}

// EmbedVideo submits the video, waits for the task to reach a terminal
// state, and returns the video-scope embedding. When the model only emitted
// clip-scope segments the first clip embedding stands in for the video.
func (e *Embedder) EmbedVideo(ctx context.Context, videoPath string) ([]float64, error) {
	if videoPath == "" {
		return nil, errors.New("video path is required")
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not accessible: %w", err)
	}

	name := filepath.Base(videoPath)
	taskID, err := e.client.CreateEmbedTask(ctx, e.ModelName, videoPath)
	if err != nil {
		return nil, fmt.Errorf("cannot create embedding task for %s: %w", name, err)
	}
	e.logger.Info("embedding task created", "task_id", taskID, "video", name)

	task, err := e.wait(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != cloud.TaskReady {
		return nil, fmt.Errorf("embedding task %s ended in status %s", taskID, task.Status)
	}

	return pickSegment(task)
}

func (e *Embedder) wait(ctx context.Context, taskID string) (*cloud.EmbedTask, error) {
	for attempt := 0; attempt < e.MaxPollAttempts; attempt++ {
		task, err := e.client.RetrieveEmbedTask(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("cannot check embedding task %s: %w", taskID, err)
		}
		if task.Status.Terminal() {
			return task, nil
		}
		e.sleep(ctx, e.PollInterval)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("timeout waiting for embedding task %s", taskID)
}

// pickSegment prefers the whole-video embedding over per-clip ones.
func pickSegment(task *cloud.EmbedTask) ([]float64, error) {
	segments := task.VideoEmbedding.Segments
	for _, s := range segments {
		if s.Scope == "video" && len(s.Embedding) > 0 {
			return s.Embedding, nil
		}
	}
	for _, s := range segments {
		if len(s.Embedding) > 0 {
			return s.Embedding, nil
		}
	}
	return nil, ErrNoEmbeddings
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
