package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/clipdex/clipdex/internal/cloud"
	"github.com/clipdex/clipdex/internal/media"
)

// JobState is the lifecycle of one indexing job. READY, FAILED, ERROR,
// TIMED_OUT, and ABORTED are terminal.
type JobState string

const (
	StateSubmitted JobState = "submitted"
	StatePolling   JobState = "polling"
	StateReady     JobState = "ready"
	StateFailed    JobState = "failed"
	StateError     JobState = "error"
	StateTimedOut  JobState = "timed_out"
	StateAborted   JobState = "aborted"
)

// job is one submitted upload awaiting a terminal status. pos preserves the
// clip's position in the input batch.
type job struct {
	pos    int
	asset  media.VideoAsset
	taskID string
}

// outcome is a job's terminal result.
type outcome struct {
	job
	state   JobState
	videoID string
	reason  string
}

// track polls every job to a terminal state under a bounded worker pool.
// Jobs are fully independent: one job timing out or aborting never affects
// its siblings. Results arrive in completion order.
func (p *Pipeline) track(ctx context.Context, jobs []job) []outcome {
	if len(jobs) == 0 {
		return nil
	}

	workers := min(p.cfg.MaxWorkers, len(jobs))
	jobCh := make(chan job)
	resCh := make(chan outcome, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				resCh <- p.trackJob(ctx, j)
			}
		}()
	}

	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	wg.Wait()
	close(resCh)

	outcomes := make([]outcome, 0, len(jobs))
	for o := range resCh {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// trackJob runs one job's polling state machine to a terminal state.
//
// Each status check is retried internally to absorb transient call failures
// (checkTask); an exhausted retry budget counts as one consecutive error and
// backs off the outer loop by interval * 2^count. Non-terminal statuses
// sleep a fixed interval and re-poll, up to MaxPollAttempts.
func (p *Pipeline) trackJob(ctx context.Context, j job) outcome {
	name := filepath.Base(j.asset.Path)
	attempts := 0
	consecutiveErrors := 0

	for attempts < p.cfg.MaxPollAttempts {
		p.emit(StagePoll, j.asset.Path,
			fmt.Sprintf("Checking task status for %s (attempt %d)", name, attempts+1))

		task, err := p.checkTask(ctx, j.taskID)
		if err != nil {
			consecutiveErrors++
			p.logger.Warn("status check failed",
				"task_id", j.taskID,
				"clip", name,
				"consecutive_errors", consecutiveErrors,
				"error", err,
			)
			if consecutiveErrors >= p.cfg.MaxConsecutiveErrors {
				return outcome{job: j, state: StateAborted,
					reason: fmt.Sprintf("too many consecutive errors checking task status for %s: %v", name, err)}
			}
			p.sleep(ctx, p.cfg.PollInterval*time.Duration(1<<consecutiveErrors))
			continue
		}
		consecutiveErrors = 0

		switch task.Status {
		case cloud.TaskReady:
			p.emit(StagePoll, j.asset.Path, fmt.Sprintf("Indexing for %s completed successfully", name))
			return outcome{job: j, state: StateReady, videoID: task.VideoID}
		case cloud.TaskFailed:
			return outcome{job: j, state: StateFailed,
				reason: fmt.Sprintf("task failed for %s: %s", name, remoteReason(task))}
		case cloud.TaskError:
			return outcome{job: j, state: StateError,
				reason: fmt.Sprintf("task encountered an error for %s: %s", name, remoteReason(task))}
		}

		p.sleep(ctx, p.cfg.PollInterval)
		attempts++
		p.emit(StagePoll, j.asset.Path,
			fmt.Sprintf("Indexing %s... %ds elapsed", name, attempts*int(p.cfg.PollInterval/time.Second)))
	}

	return outcome{job: j, state: StateTimedOut,
		reason: fmt.Sprintf("timeout waiting for indexing of %s after %d seconds",
			name, p.cfg.MaxPollAttempts*int(p.cfg.PollInterval/time.Second))}
}

// checkTask issues one status check, retrying transient call failures with
// exponential backoff. It inspects only call success, never job status.
func (p *Pipeline) checkTask(ctx context.Context, taskID string) (*cloud.Task, error) {
	delay := p.cfg.RetryBaseDelay
	var lastErr error

	for attempt := 0; attempt < p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			p.sleep(ctx, delay)
			delay *= 2
			if delay > p.cfg.RetryMaxDelay {
				delay = p.cfg.RetryMaxDelay
			}
		}

		task, err := p.client.RetrieveTask(ctx, taskID)
		if err == nil {
			return task, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func remoteReason(task *cloud.Task) string {
	if task.ErrorMessage != "" {
		return task.ErrorMessage
	}
	return "unknown error"
}

// sleepCtx sleeps for d or until ctx is cancelled.
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
