package pipeline

import "time"

// Stage outcome labels recorded in the timeline.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusFallback = "fallback"
	StatusSkipped  = "skipped"
)

// StageTiming is one completed stage measurement. Entries are appended as
// stages finish and never mutated afterwards.
type StageTiming struct {
	Stage      string
	Status     string
	DurationMS int64
}

// Timings is the stable timing surface of a response.
type Timings struct {
	Load          int64 `json:"load"`
	Separation    int64 `json:"separation"`
	Transcription int64 `json:"transcription"`
	Total         int64 `json:"total"`
}

// recorder accumulates per-stage durations for a single request. One request
// runs on one goroutine, so no locking.
type recorder struct {
	start  time.Time
	stages []StageTiming
}

func newRecorder() *recorder {
	return &recorder{start: time.Now()}
}

func (r *recorder) record(stage, status string, d time.Duration) {
	r.stages = append(r.stages, StageTiming{
		Stage:      stage,
		Status:     status,
		DurationMS: d.Milliseconds(),
	})
}

func (r *recorder) durationMS(stage string) int64 {
	var total int64
	for _, s := range r.stages {
		if s.Stage == stage {
			total += s.DurationMS
		}
	}
	return total
}

func (r *recorder) totalMS() int64 {
	return time.Since(r.start).Milliseconds()
}
