package pipeline

import "github.com/scribelabs/scribe-core/internal/asr"

// State names the orchestrator's position in one request's lifecycle.
type State string

const (
	StateReceived           State = "RECEIVED"
	StateDecoded            State = "DECODED"
	StateSeparated          State = "SEPARATED"
	StateSeparationSkipped  State = "SEPARATION_SKIPPED"
	StateSeparationFallback State = "SEPARATION_FALLBACK"
	StateTranscribed        State = "TRANSCRIBED"
	StateAssembled          State = "ASSEMBLED"
	StateFailed             State = "FAILED"
)

type SeparationSummary struct {
	Enabled  bool   `json:"enabled"`
	Method   string `json:"method"`
	Fallback bool   `json:"fallback"`
}

type TranscriptionSummary struct {
	Model string `json:"model"`
}

// Summary records which stages ran and how.
type Summary struct {
	Separation    SeparationSummary    `json:"separation"`
	Transcription TranscriptionSummary `json:"transcription"`
}

// Result is the assembled response for one request. It is immutable after
// assembly and never outlives the request.
type Result struct {
	RequestID   string        `json:"request_id"`
	DurationSec float64       `json:"duration_sec"`
	SampleRate  int           `json:"sample_rate"`
	Pipeline    Summary       `json:"pipeline"`
	Segments    []asr.Segment `json:"segments"`
	Text        string        `json:"text"`
	Language    string        `json:"language"`
	TimingsMS   Timings       `json:"timings_ms"`
}
