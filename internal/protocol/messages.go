package protocol

import "time"

// TranscriptCompleted announces one finished pipeline run on the bus so
// downstream consumers (indexers, notifiers) can react without polling.
type TranscriptCompleted struct {
	RequestID          string    `json:"request_id"`
	DurationSec        float64   `json:"duration_sec"`
	Language           string    `json:"language"`
	Text               string    `json:"text"`
	Segments           int       `json:"segments"`
	SeparationFallback bool      `json:"separation_fallback"`
	TotalMS            int64     `json:"total_ms"`
	Timestamp          time.Time `json:"timestamp"`
}

const SubjectTranscriptCompleted = "scribe.transcript.completed"
