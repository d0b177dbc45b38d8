package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clipdex/clipdex/internal/cloud"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClient is an in-memory cloud.API with scriptable per-clip task status
// sequences and failure injection.
type fakeClient struct {
	mu sync.Mutex

	indexes          []cloud.Index
	retrieveIndexErr map[string]error
	createIndexCalls int

	uploadErr map[string]error // keyed by filepath.Base(videoPath)

	taskSeq      int
	taskClip     map[string]string             // task id -> clip base name
	taskStatuses map[string][]cloud.TaskStatus // clip base name -> status sequence (last repeats)
	taskErrMsg   map[string]string             // clip base name -> remote error message
	pollCounts   map[string]int                // task id -> RetrieveTask calls

	retrieveTaskErr  error // when set, RetrieveTask always fails
	failFirstNPolls  int   // RetrieveTask failures before succeeding
	totalPollCalls   int32
	pollDelay        time.Duration
	activePolls      int32
	maxActivePolls   int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		retrieveIndexErr: make(map[string]error),
		uploadErr:        make(map[string]error),
		taskClip:         make(map[string]string),
		taskStatuses:     make(map[string][]cloud.TaskStatus),
		taskErrMsg:       make(map[string]string),
		pollCounts:       make(map[string]int),
	}
}

func (f *fakeClient) RetrieveIndex(ctx context.Context, id string) (*cloud.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.retrieveIndexErr[id]; ok {
		return nil, err
	}
	for _, idx := range f.indexes {
		if idx.ID == id {
			cp := idx
			return &cp, nil
		}
	}
	return nil, &cloud.APIError{StatusCode: http.StatusNotFound, Body: "index not found"}
}

func (f *fakeClient) ListIndexes(ctx context.Context) ([]cloud.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]cloud.Index, len(f.indexes))
	copy(out, f.indexes)
	return out, nil
}

func (f *fakeClient) CreateIndex(ctx context.Context, name string, models []cloud.ModelConfig) (*cloud.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createIndexCalls++
	idx := cloud.Index{ID: fmt.Sprintf("idx-created-%d", f.createIndexCalls), Name: name, Models: models}
	f.indexes = append(f.indexes, idx)
	cp := idx
	return &cp, nil
}

func (f *fakeClient) CreateTask(ctx context.Context, indexID, videoPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := filepath.Base(videoPath)
	if err, ok := f.uploadErr[base]; ok {
		return "", err
	}
	f.taskSeq++
	taskID := fmt.Sprintf("task-%d", f.taskSeq)
	f.taskClip[taskID] = base
	return taskID, nil
}

func (f *fakeClient) RetrieveTask(ctx context.Context, taskID string) (*cloud.Task, error) {
	active := atomic.AddInt32(&f.activePolls, 1)
	defer atomic.AddInt32(&f.activePolls, -1)
	for {
		prev := atomic.LoadInt32(&f.maxActivePolls)
		if active <= prev || atomic.CompareAndSwapInt32(&f.maxActivePolls, prev, active) {
			break
		}
	}
	if f.pollDelay > 0 {
		time.Sleep(f.pollDelay)
	}

	call := atomic.AddInt32(&f.totalPollCalls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retrieveTaskErr != nil {
		return nil, f.retrieveTaskErr
	}
	if int(call) <= f.failFirstNPolls {
		return nil, &cloud.APIError{StatusCode: http.StatusServiceUnavailable, Body: "try again"}
	}

	clip := f.taskClip[taskID]
	seq := f.taskStatuses[clip]
	n := f.pollCounts[taskID]
	f.pollCounts[taskID] = n + 1

	status := cloud.TaskReady
	if len(seq) > 0 {
		if n >= len(seq) {
			n = len(seq) - 1
		}
		status = seq[n]
	}

	task := &cloud.Task{ID: taskID, Status: status}
	switch status {
	case cloud.TaskReady:
		task.VideoID = "vid-" + clip
	case cloud.TaskFailed, cloud.TaskError:
		task.ErrorMessage = f.taskErrMsg[clip]
	}
	return task, nil
}

// newTestPipeline builds a pipeline with instant sleeps.
func newTestPipeline(t *testing.T, client cloud.API, cfg Config) *Pipeline {
	t.Helper()
	p := New(client, cfg, testLogger())
	p.sleep = func(ctx context.Context, d time.Duration) {}
	return p
}

// writeClip creates a placeholder clip file and returns its path.
func writeClip(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("clip"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
