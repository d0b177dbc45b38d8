package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
)

// ExtractCall records one ExtractClip invocation made against a StubRunner.
type ExtractCall struct {
	Input    string
	Start    float64
	Duration float64
	Output   string
}

// StubRunner is a test Runner that reports a fixed duration and writes a
// placeholder file for each extracted clip.
type StubRunner struct {
	Duration   float64
	ProbeErr   error
	ExtractErr error
	FailAt     int // 1-based call number that returns ExtractErr; 0 = every call

	Calls []ExtractCall
}

func (s *StubRunner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if s.ProbeErr != nil {
		return 0, s.ProbeErr
	}
	return s.Duration, nil
}

func (s *StubRunner) ExtractClip(ctx context.Context, input string, start, duration float64, output string) error {
	s.Calls = append(s.Calls, ExtractCall{Input: input, Start: start, Duration: duration, Output: output})
	if s.ExtractErr != nil && (s.FailAt == 0 || s.FailAt == len(s.Calls)) {
		return s.ExtractErr
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("stub clip"), 0644)
}
