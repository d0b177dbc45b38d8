package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const listPageLimit = 50

// APIError represents a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote service error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
// Other client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound returns true when the requested entity does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// HTTPClient talks to the video-intelligence service over HTTP with an API
// key. Safe for concurrent use; all state is read-only after construction.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// RetrieveIndex looks up an index by id.
func (c *HTTPClient) RetrieveIndex(ctx context.Context, id string) (*Index, error) {
	var idx Index
	if err := c.doJSON(ctx, http.MethodGet, "/indexes/"+id, nil, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// ListIndexes returns all remote indexes, following pagination.
func (c *HTTPClient) ListIndexes(ctx context.Context) ([]Index, error) {
	var all []Index
	for page := 1; ; page++ {
		path := fmt.Sprintf("/indexes?page=%d&page_limit=%d", page, listPageLimit)
		var wrapper struct {
			Data []Index `json:"data"`
		}
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &wrapper); err != nil {
			return nil, err
		}
		all = append(all, wrapper.Data...)
		if len(wrapper.Data) < listPageLimit {
			return all, nil
		}
	}
}

// CreateIndex creates a new index with the given model configuration.
func (c *HTTPClient) CreateIndex(ctx context.Context, name string, models []ModelConfig) (*Index, error) {
	body := map[string]any{
		"index_name": name,
		"models":     models,
	}
	var created struct {
		ID string `json:"_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/indexes", body, &created); err != nil {
		return nil, err
	}

	c.logger.Info("created index", "index_id", created.ID, "index_name", name)
	return &Index{ID: created.ID, Name: name, Models: models}, nil
}

// CreateTask streams the video file to the service as a new indexing task
// and returns the task id.
func (c *HTTPClient) CreateTask(ctx context.Context, indexID, videoPath string) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("cannot open video file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("cannot stat video file: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		var werr error
		defer func() { pw.CloseWithError(werr) }()
		if werr = mw.WriteField("index_id", indexID); werr != nil {
			return
		}
		var part io.Writer
		if part, werr = mw.CreateFormFile("video_file", filepath.Base(videoPath)); werr != nil {
			return
		}
		if _, werr = io.Copy(part, file); werr != nil {
			return
		}
		werr = mw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", pr)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuthHeaders(req)

	c.logger.Info("uploading video for indexing",
		"index_id", indexID,
		"file", filepath.Base(videoPath),
		"size_bytes", info.Size(),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var created struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("unmarshal task response: %w", err)
	}

	c.logger.Info("indexing task created", "task_id", created.ID, "file", filepath.Base(videoPath))
	return created.ID, nil
}

// RetrieveTask fetches the current status of an indexing task.
func (c *HTTPClient) RetrieveTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/"+taskID, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateEmbedTask submits a video for embedding generation.
func (c *HTTPClient) CreateEmbedTask(ctx context.Context, modelName, videoPath string) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("cannot open video file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model_name", modelName); err != nil {
		return "", err
	}
	for _, scope := range []string{"video", "clip"} {
		if err := mw.WriteField("video_embedding_scope", scope); err != nil {
			return "", err
		}
	}
	part, err := mw.CreateFormFile("video_file", filepath.Base(videoPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("cannot read video file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/tasks", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var created struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("unmarshal embed task response: %w", err)
	}
	return created.ID, nil
}

// RetrieveEmbedTask fetches the status and result of an embedding task.
func (c *HTTPClient) RetrieveEmbedTask(ctx context.Context, taskID string) (*EmbedTask, error) {
	var task EmbedTask
	if err := c.doJSON(ctx, http.MethodGet, "/embed/tasks/"+taskID, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// doJSON issues one JSON request against the service and decodes the
// response into out when non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("X-Request-Id", uuid.NewString())
}
