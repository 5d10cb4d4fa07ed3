package pipeline

import (
	"errors"
	"fmt"
)

// Kind tags a pipeline failure so the boundary layer can map it onto a
// transport status without parsing error strings.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindOversizedInput       Kind = "oversized_input"
	KindDecodeFailure        Kind = "decode_failure"
	KindTranscriptionFailure Kind = "transcription_failure"
	KindCancelled            Kind = "cancelled"
)

// Error is the only error type the orchestrator surfaces. It always carries
// the request identifier so failed requests stay correlatable.
type Error struct {
	Kind      Kind
	RequestID string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind, defaulting to transcription_failure for
// anything untagged.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTranscriptionFailure
}

// RequestIDOf extracts the request identifier from a pipeline error, if any.
func RequestIDOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RequestID
	}
	return ""
}
