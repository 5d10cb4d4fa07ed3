package asr

import (
	"context"
	"strings"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/device"
)

// Segment is one timestamped span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result captures recognizer output for one waveform.
type Result struct {
	Segments []Segment
	Text     string
	Language string
	// ModelLoadMS is the model-load portion of the call, reported separately
	// so the pipeline can expose it as the "load" timing.
	ModelLoadMS int64
}

// Request carries the per-call knobs into a recognizer.
type Request struct {
	ModelSize    string
	LanguageHint string
	Device       device.Handle
}

// Recognizer abstracts speech-to-text backends.
type Recognizer interface {
	Transcribe(ctx context.Context, buf *audio.Buffer, req Request) (Result, error)
}

// JoinSegments concatenates segment texts with single spaces, trimmed.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
