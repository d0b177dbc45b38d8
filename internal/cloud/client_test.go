package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, "test-key", 10*time.Second, testLogger())
}

func TestRetrieveIndex_Success(t *testing.T) {
	var receivedKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/indexes/idx-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		receivedKey = r.Header.Get("x-api-key")
		json.NewEncoder(w).Encode(Index{ID: "idx-1", Name: "movies"})
	})

	idx, err := client.RetrieveIndex(context.Background(), "idx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.ID != "idx-1" || idx.Name != "movies" {
		t.Errorf("index = %+v", idx)
	}
	if receivedKey != "test-key" {
		t.Errorf("x-api-key = %q, want test-key", receivedKey)
	}
}

func TestRetrieveIndex_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"resource_not_exists"}`))
	})

	_, err := client.RetrieveIndex(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if !apiErr.IsNotFound() {
		t.Errorf("expected not-found error, got status %d", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("404 should not be retryable")
	}
}

func TestListIndexes_Paginates(t *testing.T) {
	pages := map[string][]Index{
		"1": make([]Index, listPageLimit),
		"2": {{ID: "idx-last", Name: "tail"}},
	}
	for i := range pages["1"] {
		pages["1"][i] = Index{ID: fmt.Sprintf("idx-%d", i), Name: fmt.Sprintf("name-%d", i)}
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		json.NewEncoder(w).Encode(map[string]any{"data": pages[page]})
	})

	indexes, err := client.ListIndexes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indexes) != listPageLimit+1 {
		t.Fatalf("indexes = %d, want %d", len(indexes), listPageLimit+1)
	}
	if indexes[listPageLimit].ID != "idx-last" {
		t.Errorf("last index = %+v", indexes[listPageLimit])
	}
}

func TestCreateIndex_SendsModelConfig(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/indexes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]string{"_id": "idx-new"})
	})

	idx, err := client.CreateIndex(context.Background(), "clips", []ModelConfig{
		{Name: "pegasus1.2", Options: []string{"visual", "audio"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.ID != "idx-new" || idx.Name != "clips" {
		t.Errorf("index = %+v", idx)
	}
	if received["index_name"] != "clips" {
		t.Errorf("request index_name = %v", received["index_name"])
	}
	models, ok := received["models"].([]any)
	if !ok || len(models) != 1 {
		t.Fatalf("request models = %v", received["models"])
	}
}

func TestCreateTask_UploadsMultipart(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "clip_000.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	var receivedIndexID, receivedFilename string
	var receivedBytes []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		receivedIndexID = r.FormValue("index_id")
		file, header, err := r.FormFile("video_file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		receivedFilename = header.Filename
		buf := make([]byte, header.Size)
		file.Read(buf)
		receivedBytes = buf
		json.NewEncoder(w).Encode(map[string]string{"_id": "task-42"})
	})

	taskID, err := client.CreateTask(context.Background(), "idx-1", videoPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taskID != "task-42" {
		t.Errorf("task id = %q, want task-42", taskID)
	}
	if receivedIndexID != "idx-1" {
		t.Errorf("index_id = %q, want idx-1", receivedIndexID)
	}
	if receivedFilename != "clip_000.mp4" {
		t.Errorf("filename = %q, want clip_000.mp4", receivedFilename)
	}
	if string(receivedBytes) != "fake video bytes" {
		t.Errorf("uploaded bytes = %q", receivedBytes)
	}
}

func TestCreateTask_ServerRejection(t *testing.T) {
	videoPath := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(videoPath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"video_resolution_too_low"}`))
	})

	_, err := client.CreateTask(context.Background(), "idx-1", videoPath)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 APIError", err)
	}
}

func TestRetrieveTask_Statuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Task{ID: "task-1", Status: TaskReady, VideoID: "vid-9"})
	})

	task, err := client.RetrieveTask(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != TaskReady || task.VideoID != "vid-9" {
		t.Errorf("task = %+v", task)
	}
	if !task.Status.Terminal() {
		t.Error("ready should be terminal")
	}
	if TaskIndexing.Terminal() {
		t.Error("indexing should not be terminal")
	}
}

func TestRetrieveEmbedTask_Segments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/tasks/emb-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"_id": "emb-1",
			"status": "ready",
			"video_embedding": {"segments": [
				{"embedding_scope": "video", "float": [0.1, 0.2]},
				{"embedding_scope": "clip", "start_offset_sec": 0, "end_offset_sec": 6, "float": [0.3]}
			]}
		}`))
	})

	task, err := client.RetrieveEmbedTask(context.Background(), "emb-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(task.VideoEmbedding.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(task.VideoEmbedding.Segments))
	}
	if task.VideoEmbedding.Segments[0].Scope != "video" {
		t.Errorf("scope = %q", task.VideoEmbedding.Segments[0].Scope)
	}
}

func TestAPIError_Retryable(t *testing.T) {
	if !(&APIError{StatusCode: http.StatusInternalServerError}).IsRetryable() {
		t.Error("5xx should be retryable")
	}
	if !(&APIError{StatusCode: http.StatusTooManyRequests}).IsRetryable() {
		t.Error("429 should be retryable")
	}
	if (&APIError{StatusCode: http.StatusBadRequest}).IsRetryable() {
		t.Error("400 should be permanent")
	}
}
