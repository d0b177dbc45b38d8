package pipeline

import (
	"fmt"

	"github.com/clipdex/clipdex/internal/media"
)

// InvalidInputError marks a pre-flight validation failure. Fatal: the run
// never starts.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// IndexResolutionError marks a failure to resolve or create the target
// index. Fatal: without an index no uploads are possible.
type IndexResolutionError struct {
	Err error
}

func (e *IndexResolutionError) Error() string {
	return fmt.Sprintf("index resolution failed: %v", e.Err)
}

func (e *IndexResolutionError) Unwrap() error {
	return e.Err
}

// FailureKind classifies per-clip failures. These never abort the run; the
// affected clip is dropped and the rest of the batch continues.
type FailureKind string

const (
	FailureUpload            FailureKind = "upload_failed"
	FailureTask              FailureKind = "task_failed"
	FailureTaskError         FailureKind = "task_error"
	FailureTimeout           FailureKind = "task_timeout"
	FailureConsecutiveErrors FailureKind = "too_many_consecutive_errors"
)

// DroppedClip records a clip excluded from the output, with a
// human-readable reason for observability.
type DroppedClip struct {
	Asset  media.VideoAsset
	Kind   FailureKind
	Reason string
}
