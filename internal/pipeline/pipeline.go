// Package pipeline is the job-orchestration engine: it resolves the target
// index once, uploads each clip as an asynchronous indexing task, polls
// every task to a terminal state under a bounded worker pool, and merges the
// resulting remote identifiers back into each asset's metadata.
//
// Pre-flight and index-resolution failures abort the run; every other
// failure is isolated to its clip and degrades the result set.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/clipdex/clipdex/internal/cloud"
	"github.com/clipdex/clipdex/internal/media"
)

// Config carries the run parameters. Zero values take documented defaults.
type Config struct {
	IndexID   string // optional: id of an existing index
	IndexName string // optional: index name, created when absent
	ModelName string // indexing model for created indexes (default pegasus1.2)

	PollInterval         time.Duration // between status checks (default 10s)
	MaxPollAttempts      int           // non-terminal polls before timeout (default 120)
	MaxConsecutiveErrors int           // consecutive error budget (default 5)
	RetryAttempts        int           // inner retries per status check (default 5)
	RetryBaseDelay       time.Duration // inner backoff base (default 5s)
	RetryMaxDelay        time.Duration // inner backoff cap (default 60s)
	MaxWorkers           int           // polling pool bound (default 10)

	Progress ProgressFunc // optional progress event sink
}

func (c Config) withDefaults() Config {
	if c.ModelName == "" {
		c.ModelName = "pegasus1.2"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.MaxPollAttempts == 0 {
		c.MaxPollAttempts = 120
	}
	if c.MaxConsecutiveErrors == 0 {
		c.MaxConsecutiveErrors = 5
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 5
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = 60 * time.Second
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = 10
	}
	return c
}

// Result is the output of one pipeline run. Assets holds the successfully
// indexed clips in input order; Dropped records every clip that did not make
// it, with a reason. An empty Assets with a populated Dropped is a valid,
// fully degraded run.
type Result struct {
	Index   *cloud.Index
	Assets  []media.VideoAsset
	Dropped []DroppedClip
}

// Pipeline orchestrates one batch of video assets against the remote
// service. The client and resolved index are shared read-only across the
// polling workers.
type Pipeline struct {
	client cloud.API
	cfg    Config
	logger *slog.Logger

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration)

	mu        sync.Mutex
	lastEvent Event
}

func New(client cloud.API, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Run executes the full pipeline for a batch of assets: resolve index,
// upload sequentially, poll in parallel, merge. Assets with missing or
// unreadable paths are skipped, not fatal.
func (p *Pipeline) Run(ctx context.Context, assets []media.VideoAsset) (*Result, error) {
	index, err := p.resolveIndex(ctx)
	if err != nil {
		return nil, err
	}
	p.emit(StageResolveIndex, "", fmt.Sprintf("Using index: %s (ID: %s)", index.Name, index.ID))

	valid := make([]media.VideoAsset, 0, len(assets))
	for _, a := range assets {
		if a.Path == "" {
			p.logger.Warn("skipping asset with missing path")
			continue
		}
		if _, err := os.Stat(a.Path); err != nil {
			p.logger.Warn("video file not found, skipping", "path", a.Path)
			continue
		}
		valid = append(valid, a)
	}

	result := &Result{Index: index}
	if len(valid) == 0 {
		p.logger.Info("no valid videos to process")
		return result, nil
	}

	jobs := p.upload(ctx, index, valid, result)
	outcomes := p.track(ctx, jobs)
	p.merge(index, outcomes, result)

	p.emit(StageMerge, "",
		fmt.Sprintf("Finished indexing %d/%d videos", len(result.Assets), len(valid)))
	p.logger.Info("pipeline run complete",
		"index_id", index.ID,
		"indexed", len(result.Assets),
		"dropped", len(result.Dropped),
	)
	return result, nil
}

// resolveIndex maps the configured index id/name onto a stable descriptor,
// creating the index when a name is given but not found. Runs once per
// pipeline; the result is immutable for the rest of the run.
func (p *Pipeline) resolveIndex(ctx context.Context) (*cloud.Index, error) {
	if p.cfg.IndexID == "" && p.cfg.IndexName == "" {
		return nil, &InvalidInputError{Reason: "either index name or index id must be provided"}
	}

	if p.cfg.IndexID != "" {
		index, err := p.client.RetrieveIndex(ctx, p.cfg.IndexID)
		if err == nil {
			return index, nil
		}
		if p.cfg.IndexName == "" {
			return nil, &IndexResolutionError{
				Err: fmt.Errorf("invalid index id %q and no index name for fallback: %w", p.cfg.IndexID, err),
			}
		}
		p.logger.Warn("index id lookup failed, falling back to name resolution",
			"index_id", p.cfg.IndexID, "error", err)
	}

	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return nil, &IndexResolutionError{Err: fmt.Errorf("cannot list indexes: %w", err)}
	}
	for _, idx := range indexes {
		if idx.Name == p.cfg.IndexName {
			return &cloud.Index{ID: idx.ID, Name: idx.Name}, nil
		}
	}

	created, err := p.client.CreateIndex(ctx, p.cfg.IndexName, []cloud.ModelConfig{
		{Name: p.cfg.ModelName, Options: []string{"visual", "audio"}},
	})
	if err != nil {
		return nil, &IndexResolutionError{Err: fmt.Errorf("cannot create index %q: %w", p.cfg.IndexName, err)}
	}
	return created, nil
}

// upload submits each valid asset strictly sequentially, in input order.
// A submit failure is recorded against that clip only.
func (p *Pipeline) upload(ctx context.Context, index *cloud.Index, valid []media.VideoAsset, result *Result) []job {
	jobs := make([]job, 0, len(valid))
	for pos, asset := range valid {
		name := filepath.Base(asset.Path)
		p.emit(StageUpload, asset.Path, fmt.Sprintf("Uploading %s to index %s...", name, index.ID))

		taskID, err := p.client.CreateTask(ctx, index.ID, asset.Path)
		if err != nil {
			reason := fmt.Sprintf("failed to upload %s: %v", name, err)
			p.logger.Warn("upload failed", "clip", name, "error", err)
			p.emit(StageUpload, asset.Path, reason)
			result.Dropped = append(result.Dropped, DroppedClip{
				Asset: asset, Kind: FailureUpload, Reason: reason,
			})
			continue
		}

		p.emit(StageUpload, asset.Path, fmt.Sprintf("Upload complete for %s. Task ID: %s", name, taskID))
		jobs = append(jobs, job{pos: pos, asset: asset, taskID: taskID})
	}
	return jobs
}

// merge stitches the remote identifiers into each ready asset's metadata
// and records a reason for every other terminal state. Output is re-sorted
// to input order: polling completion order is not deterministic.
func (p *Pipeline) merge(index *cloud.Index, outcomes []outcome, result *Result) {
	sort.Slice(outcomes, func(i, k int) bool { return outcomes[i].pos < outcomes[k].pos })

	for _, o := range outcomes {
		if o.state != StateReady {
			p.logger.Warn("clip dropped", "clip", filepath.Base(o.asset.Path),
				"state", string(o.state), "reason", o.reason)
			result.Dropped = append(result.Dropped, DroppedClip{
				Asset: o.asset, Kind: failureKind(o.state), Reason: o.reason,
			})
			continue
		}

		asset := o.asset
		if asset.Metadata == nil {
			asset.Metadata = make(map[string]any)
		}
		asset.Metadata["video_id"] = o.videoID
		asset.Metadata["index_id"] = index.ID
		asset.Metadata["index_name"] = index.Name

		p.emit(StageMerge, asset.Path,
			fmt.Sprintf("Video %s indexed successfully. Video ID: %s", filepath.Base(asset.Path), o.videoID))
		result.Assets = append(result.Assets, asset)
	}
}

func failureKind(state JobState) FailureKind {
	switch state {
	case StateFailed:
		return FailureTask
	case StateError:
		return FailureTaskError
	case StateTimedOut:
		return FailureTimeout
	case StateAborted:
		return FailureConsecutiveErrors
	default:
		return FailureKind(state)
	}
}
