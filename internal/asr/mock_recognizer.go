package asr

import (
	"context"
	"fmt"

	"github.com/scribelabs/scribe-core/internal/audio"
)

type mockRecognizer struct{}

// NewMockRecognizer returns a deterministic recognizer: identical input
// produces identical segments, which keeps pipeline runs reproducible.
func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, buf *audio.Buffer, req Request) (Result, error) {
	const chunkSec = 5.0
	duration := buf.DurationSec()

	var segments []Segment
	for start, i := 0.0, 0; start < duration; start, i = start+chunkSec, i+1 {
		end := start + chunkSec
		if end > duration {
			end = duration
		}
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  fmt.Sprintf("mock %s segment %d", req.ModelSize, i),
		})
	}
	if len(segments) == 0 {
		segments = []Segment{{Start: 0, End: duration, Text: "mock silence"}}
	}

	language := req.LanguageHint
	if language == "" {
		language = "en"
	}
	return Result{
		Segments:    segments,
		Text:        JoinSegments(segments),
		Language:    language,
		ModelLoadMS: 1,
	}, nil
}
