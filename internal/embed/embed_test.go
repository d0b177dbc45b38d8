package embed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipdex/clipdex/internal/cloud"
)

type fakeEmbedAPI struct {
	createErr error
	statuses  []cloud.TaskStatus
	segments  []cloud.EmbedSegment
	polls     int
}

func (f *fakeEmbedAPI) CreateEmbedTask(ctx context.Context, modelName, videoPath string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "embed-task-1", nil
}

func (f *fakeEmbedAPI) RetrieveEmbedTask(ctx context.Context, taskID string) (*cloud.EmbedTask, error) {
	n := f.polls
	f.polls++
	if n >= len(f.statuses) {
		n = len(f.statuses) - 1
	}
	task := &cloud.EmbedTask{ID: taskID, Status: f.statuses[n]}
	if task.Status == cloud.TaskReady {
		task.VideoEmbedding.Segments = f.segments
	}
	return task, nil
}

func newTestEmbedder(t *testing.T, fake *fakeEmbedAPI) *Embedder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	e := New(fake, logger)
	e.sleep = func(ctx context.Context, d time.Duration) {}
	return e
}

func tempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmbedVideoPrefersVideoScope(t *testing.T) {
	fake := &fakeEmbedAPI{
		statuses: []cloud.TaskStatus{cloud.TaskQueued, cloud.TaskIndexing, cloud.TaskReady},
		segments: []cloud.EmbedSegment{
			{Scope: "clip", StartSec: 0, EndSec: 6, Embedding: []float64{0.1, 0.2}},
			{Scope: "video", Embedding: []float64{0.9, 0.8}},
		},
	}
	e := newTestEmbedder(t, fake)

	vec, err := e.EmbedVideo(context.Background(), tempVideo(t))
	if err != nil {
		t.Fatalf("EmbedVideo: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.9 {
		t.Errorf("got %v, want the video-scope vector", vec)
	}
	if fake.polls != 3 {
		t.Errorf("polls = %d, want 3", fake.polls)
	}
}

func TestEmbedVideoFallsBackToClipScope(t *testing.T) {
	fake := &fakeEmbedAPI{
		statuses: []cloud.TaskStatus{cloud.TaskReady},
		segments: []cloud.EmbedSegment{
			{Scope: "clip", StartSec: 0, EndSec: 6, Embedding: []float64{0.1, 0.2}},
			{Scope: "clip", StartSec: 6, EndSec: 12, Embedding: []float64{0.3, 0.4}},
		},
	}
	e := newTestEmbedder(t, fake)

	vec, err := e.EmbedVideo(context.Background(), tempVideo(t))
	if err != nil {
		t.Fatalf("EmbedVideo: %v", err)
	}
	if vec[0] != 0.1 {
		t.Errorf("got %v, want the first clip vector", vec)
	}
}

func TestEmbedVideoNoSegments(t *testing.T) {
	fake := &fakeEmbedAPI{statuses: []cloud.TaskStatus{cloud.TaskReady}}
	e := newTestEmbedder(t, fake)

	_, err := e.EmbedVideo(context.Background(), tempVideo(t))
	if !errors.Is(err, ErrNoEmbeddings) {
		t.Fatalf("err = %v, want ErrNoEmbeddings", err)
	}
}

func TestEmbedVideoFailedTask(t *testing.T) {
	fake := &fakeEmbedAPI{statuses: []cloud.TaskStatus{cloud.TaskFailed}}
	e := newTestEmbedder(t, fake)

	_, err := e.EmbedVideo(context.Background(), tempVideo(t))
	if err == nil {
		t.Fatal("expected error for failed task")
	}
}

func TestEmbedVideoMissingFile(t *testing.T) {
	e := newTestEmbedder(t, &fakeEmbedAPI{statuses: []cloud.TaskStatus{cloud.TaskReady}})
	if _, err := e.EmbedVideo(context.Background(), "/nope/video.mp4"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
