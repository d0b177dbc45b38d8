// Package segment splits a source video into fixed-duration clips. Planning
// is pure arithmetic over the probed duration; extraction delegates to the
// ffmpeg runner.
package segment

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Policy controls how the final clip is handled when its natural duration
// falls short of the configured clip duration.
type Policy string

const (
	// PolicyTruncate drops the short final clip entirely.
	PolicyTruncate Policy = "truncate"
	// PolicyOverlapPrevious pulls the final clip's start earlier so it keeps
	// full duration, overlapping the previous clip.
	PolicyOverlapPrevious Policy = "overlap_previous"
	// PolicyKeepShort keeps the final clip at its natural, shorter length.
	PolicyKeepShort Policy = "keep_short"
)

// MinClipSeconds is the minimum viable clip duration. Ranges shorter than
// this are dropped regardless of policy.
const MinClipSeconds = 1.0

// ErrInvalidInput marks pre-flight validation failures, fatal to the call.
var ErrInvalidInput = errors.New("invalid segmentation input")

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyTruncate:
		return PolicyTruncate, nil
	case PolicyOverlapPrevious:
		return PolicyOverlapPrevious, nil
	case PolicyKeepShort:
		return PolicyKeepShort, nil
	default:
		return "", fmt.Errorf("%w: unknown last-clip policy %q", ErrInvalidInput, s)
	}
}

// Range is one planned clip: [Start, End) in seconds of the source video.
// Index is the clip's position in the natural (pre-policy) sequence.
type Range struct {
	Index int
	Start float64
	End   float64
}

// Duration returns the range length in seconds.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// NumClips returns ceil(totalDuration / clipDuration), the natural clip
// count before policy adjustments.
func NumClips(totalDuration, clipDuration float64) int {
	return int(math.Ceil(totalDuration / clipDuration))
}

// Plan computes the clip ranges for a video of totalDuration seconds.
// Range i is [i*clipDuration, min((i+1)*clipDuration, totalDuration)); the
// final range is adjusted per policy when shorter than clipDuration, and any
// range shorter than MinClipSeconds is dropped.
func Plan(totalDuration, clipDuration float64, policy Policy) ([]Range, error) {
	if totalDuration <= 0 {
		return nil, fmt.Errorf("%w: total duration must be positive, got %.3f", ErrInvalidInput, totalDuration)
	}
	if clipDuration <= 0 {
		return nil, fmt.Errorf("%w: clip duration must be positive, got %.3f", ErrInvalidInput, clipDuration)
	}

	numClips := NumClips(totalDuration, clipDuration)
	ranges := make([]Range, 0, numClips)

	for i := 0; i < numClips; i++ {
		start := float64(i) * clipDuration
		end := math.Min(float64(i+1)*clipDuration, totalDuration)

		if i == numClips-1 && end-start < clipDuration {
			switch policy {
			case PolicyTruncate:
				continue
			case PolicyOverlapPrevious:
				if i > 0 {
					start = totalDuration - clipDuration
					end = totalDuration
				}
			case PolicyKeepShort:
				// natural range unchanged
			}
		}

		if end-start < MinClipSeconds {
			continue
		}

		ranges = append(ranges, Range{Index: i, Start: start, End: end})
	}

	return ranges, nil
}
