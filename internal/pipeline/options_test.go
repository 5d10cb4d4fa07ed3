package pipeline

import (
	"errors"
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
)

func baseDefaults() Options {
	cfg := config.Default()
	return DefaultOptions(cfg.ASR, cfg.Pipeline.TargetSampleRate)
}

func TestDefaultOptions(t *testing.T) {
	opts := baseDefaults()
	if opts.ModelSize != "small" {
		t.Fatalf("expected default model small, got %q", opts.ModelSize)
	}
	if opts.LanguageHint != "en" {
		t.Fatalf("expected default language en, got %q", opts.LanguageHint)
	}
	if !opts.EnableSeparation {
		t.Fatal("separation should default on")
	}
	if opts.TargetSR != 16000 {
		t.Fatalf("expected target_sr 16000, got %d", opts.TargetSR)
	}
}

func TestParseOptionsEmptyKeepsDefaults(t *testing.T) {
	opts, err := ParseOptions(nil, baseDefaults())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts != baseDefaults() {
		t.Fatalf("defaults mutated: %+v", opts)
	}
}

func TestParseOptionsOverridesFields(t *testing.T) {
	raw := []byte(`{"language_hint":"de","model_size":"large","enable_separation":false}`)
	opts, err := ParseOptions(raw, baseDefaults())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.LanguageHint != "de" || opts.ModelSize != "large" || opts.EnableSeparation {
		t.Fatalf("overrides not applied: %+v", opts)
	}
	if opts.TargetSR != 16000 {
		t.Fatalf("untouched field changed: %d", opts.TargetSR)
	}
}

func TestParseOptionsDiarizeAcceptedAndIgnored(t *testing.T) {
	opts, err := ParseOptions([]byte(`{"diarize":true}`), baseDefaults())
	if err != nil {
		t.Fatalf("diarize flag must not be an error: %v", err)
	}
	if !opts.Diarize {
		t.Fatal("diarize flag not carried")
	}
}

func TestParseOptionsMalformedJSON(t *testing.T) {
	_, err := ParseOptions([]byte(`{"model_size":`), baseDefaults())
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindInvalidInput {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestParseOptionsUnknownModelSize(t *testing.T) {
	_, err := ParseOptions([]byte(`{"model_size":"huge"}`), baseDefaults())
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindInvalidInput {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestValidateRejectsNonPositiveRate(t *testing.T) {
	opts := baseDefaults()
	opts.TargetSR = 0
	if err := opts.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestKindOfUntaggedError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindTranscriptionFailure {
		t.Fatalf("expected transcription_failure default, got %s", got)
	}
	err := &Error{Kind: KindOversizedInput, RequestID: "req-9"}
	if got := KindOf(err); got != KindOversizedInput {
		t.Fatalf("expected oversized_input, got %s", got)
	}
	if got := RequestIDOf(err); got != "req-9" {
		t.Fatalf("expected req-9, got %q", got)
	}
}
