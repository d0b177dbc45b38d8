// Package cloud is the HTTP client for the remote video-intelligence
// service: index management, asynchronous indexing tasks, and embedding
// tasks. All calls are outbound; the service itself is an external
// collaborator.
package cloud

import "context"

// TaskStatus is the remote indexing task status domain.
type TaskStatus string

const (
	TaskQueued   TaskStatus = "queued"
	TaskIndexing TaskStatus = "indexing"
	TaskReady    TaskStatus = "ready"
	TaskFailed   TaskStatus = "failed"
	TaskError    TaskStatus = "error"
)

// Terminal reports whether no further status transition can occur remotely.
func (s TaskStatus) Terminal() bool {
	return s == TaskReady || s == TaskFailed || s == TaskError
}

// ModelConfig selects the analysis model and options for a created index.
type ModelConfig struct {
	Name    string   `json:"model_name"`
	Options []string `json:"model_options"`
}

// Index is a named remote collection that indexed assets become searchable
// within.
type Index struct {
	ID     string        `json:"_id"`
	Name   string        `json:"index_name"`
	Models []ModelConfig `json:"models,omitempty"`
}

// Task is one asynchronous indexing job for a single uploaded video.
type Task struct {
	ID           string     `json:"_id"`
	IndexID      string     `json:"index_id,omitempty"`
	Status       TaskStatus `json:"status"`
	VideoID      string     `json:"video_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// EmbedSegment is one embedding vector with its scope (video or clip).
type EmbedSegment struct {
	Scope     string    `json:"embedding_scope"`
	StartSec  float64   `json:"start_offset_sec,omitempty"`
	EndSec    float64   `json:"end_offset_sec,omitempty"`
	Embedding []float64 `json:"float"`
}

// EmbedTask is one asynchronous embedding job and, once ready, its result.
type EmbedTask struct {
	ID             string     `json:"_id"`
	Status         TaskStatus `json:"status"`
	VideoEmbedding struct {
		Segments []EmbedSegment `json:"segments"`
	} `json:"video_embedding"`
}

// API is the remote service surface consumed by the pipeline. Implemented
// by HTTPClient; tests substitute fakes.
type API interface {
	RetrieveIndex(ctx context.Context, id string) (*Index, error)
	ListIndexes(ctx context.Context) ([]Index, error)
	CreateIndex(ctx context.Context, name string, models []ModelConfig) (*Index, error)
	CreateTask(ctx context.Context, indexID, videoPath string) (string, error)
	RetrieveTask(ctx context.Context, taskID string) (*Task, error)
}

// EmbedAPI is the embedding surface consumed by the embed wrapper.
type EmbedAPI interface {
	CreateEmbedTask(ctx context.Context, modelName, videoPath string) (string, error)
	RetrieveEmbedTask(ctx context.Context, taskID string) (*EmbedTask, error)
}
