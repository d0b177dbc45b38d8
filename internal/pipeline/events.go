package pipeline

import "time"

// Stage tags a progress event with the pipeline stage that produced it.
type Stage string

const (
	StageResolveIndex Stage = "resolve_index"
	StageUpload       Stage = "upload"
	StagePoll         Stage = "poll"
	StageMerge        Stage = "merge"
)

// Event is one structured progress update. Events replace the original
// mutable status string: observability is decoupled from control flow.
type Event struct {
	Stage   Stage     `json:"stage"`
	Clip    string    `json:"clip,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ProgressFunc receives progress events. It is called from the polling
// workers concurrently and must be safe for concurrent use.
type ProgressFunc func(Event)

func (p *Pipeline) emit(stage Stage, clip, message string) {
	ev := Event{Stage: stage, Clip: clip, Message: message, Time: time.Now()}

	p.mu.Lock()
	p.lastEvent = ev
	p.mu.Unlock()

	if p.cfg.Progress != nil {
		p.cfg.Progress(ev)
	}
}

// LastEvent returns the most recent progress event, for status reporting.
func (p *Pipeline) LastEvent() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastEvent
}
