package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clipdex/clipdex/internal/catalog"
	"github.com/clipdex/clipdex/internal/pipeline"
)

type fakeRepository struct {
	runs   []*catalog.Run
	assets map[string][]*catalog.Asset
}

func (f *fakeRepository) CreateRun(ctx context.Context, run *catalog.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRepository) GetRun(ctx context.Context, id string) (*catalog.Run, error) {
	for _, run := range f.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) ListRuns(ctx context.Context, limit int) ([]*catalog.Run, error) {
	if limit > len(f.runs) {
		limit = len(f.runs)
	}
	return f.runs[:limit], nil
}

func (f *fakeRepository) CreateAsset(ctx context.Context, asset *catalog.Asset) error {
	if f.assets == nil {
		f.assets = make(map[string][]*catalog.Asset)
	}
	f.assets[asset.RunID] = append(f.assets[asset.RunID], asset)
	return nil
}

func (f *fakeRepository) GetAssetsByRun(ctx context.Context, runID string) ([]*catalog.Asset, error) {
	return f.assets[runID], nil
}

func (f *fakeRepository) CountAssets(ctx context.Context) (int, error) {
	count := 0
	for _, a := range f.assets {
		count += len(a)
	}
	return count, nil
}

type fakeEventSource struct {
	event pipeline.Event
}

func (f *fakeEventSource) LastEvent() pipeline.Event { return f.event }

func testConfig(repo catalog.Repository, events EventSource) ServerConfig {
	return ServerConfig{
		Port:       8690,
		Repository: repo,
		Events:     events,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		StartTime:  time.Now(),
		Version:    "0.1.0",
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthHandler(t *testing.T) {
	cfg := testConfig(&fakeRepository{}, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	healthHandler(cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "0.1.0" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestStatusHandler_Idle(t *testing.T) {
	cfg := testConfig(&fakeRepository{}, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	statusHandler(cfg).ServeHTTP(rr, req)

	body := decodeJSONBody(t, rr)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	if _, ok := body["last_event"]; ok {
		t.Error("last_event should be omitted when no pipeline ran")
	}
}

func TestStatusHandler_Indexing(t *testing.T) {
	events := &fakeEventSource{event: pipeline.Event{
		Stage:   pipeline.StagePoll,
		Clip:    "/clips/clip_000.mp4",
		Message: "Checking task status",
		Time:    time.Now(),
	}}
	cfg := testConfig(&fakeRepository{}, events)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	statusHandler(cfg).ServeHTTP(rr, req)

	body := decodeJSONBody(t, rr)
	if body["state"] != "indexing" {
		t.Errorf("state = %v, want indexing", body["state"])
	}
	event, ok := body["last_event"].(map[string]interface{})
	if !ok {
		t.Fatal("last_event missing from response")
	}
	if event["stage"] != "poll" {
		t.Errorf("last_event.stage = %v, want poll", event["stage"])
	}
}

func TestListRunsHandler(t *testing.T) {
	repo := &fakeRepository{runs: []*catalog.Run{
		{ID: "run-1", SourcePath: "/v.mp4", IndexName: "lectures", CreatedAt: time.Now()},
	}}
	cfg := testConfig(repo, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)

	listRunsHandler(cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d", rr.Code)
	}
	var resp RunsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].ID != "run-1" {
		t.Errorf("runs = %+v", resp.Runs)
	}
}

func TestGetRunHandler_NotFound(t *testing.T) {
	cfg := testConfig(&fakeRepository{}, nil)
	router := NewRouter(cfg)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/nope", nil)

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListRunAssetsHandler(t *testing.T) {
	repo := &fakeRepository{
		runs: []*catalog.Run{{ID: "run-1", CreatedAt: time.Now()}},
		assets: map[string][]*catalog.Asset{
			"run-1": {
				{ID: "a", RunID: "run-1", ClipIndex: 0, State: catalog.StateIndexed, VideoID: "vid-1"},
				{ID: "b", RunID: "run-1", ClipIndex: 1, State: "task_timeout", Reason: "timeout"},
			},
		},
	}
	cfg := testConfig(repo, nil)
	router := NewRouter(cfg)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/run-1/assets", nil)

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d", rr.Code)
	}
	var resp AssetsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Assets) != 2 {
		t.Fatalf("assets = %d, want 2", len(resp.Assets))
	}
	if resp.Assets[0].VideoID != "vid-1" || resp.Assets[1].Reason != "timeout" {
		t.Errorf("assets = %+v", resp.Assets)
	}
}

func TestAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"no token configured", "", "", http.StatusOK},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"wrong scheme", "secret", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "secret", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "secret", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(tt.token, logger)(next)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status code = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
