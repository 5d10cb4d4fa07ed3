package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/scribelabs/scribe-core/internal/config"
)

// Options is the per-request configuration. Defaults come from service
// config; a JSON document from the caller overrides individual fields.
type Options struct {
	LanguageHint     string `json:"language_hint"`
	EnableSeparation bool   `json:"enable_separation"`
	// Diarize is accepted but ignored: diarization is not implemented yet
	// and the contract treats the flag as a no-op rather than an error.
	Diarize   bool   `json:"diarize"`
	ModelSize string `json:"model_size"`
	TargetSR  int    `json:"target_sr"`
}

var modelSizes = map[string]struct{}{
	"tiny":   {},
	"small":  {},
	"medium": {},
	"large":  {},
}

// DefaultOptions builds the baseline request options from service config.
func DefaultOptions(cfg config.ASRConfig, targetSR int) Options {
	return Options{
		LanguageHint:     cfg.DefaultLanguage,
		EnableSeparation: true,
		ModelSize:        cfg.DefaultModelSize,
		TargetSR:         targetSR,
	}
}

// ParseOptions overlays a caller-supplied JSON document on defaults and
// validates the result. Malformed JSON and unknown model sizes are both
// invalid input, never silently corrected.
func ParseOptions(raw []byte, defaults Options) (Options, error) {
	opts := defaults
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return opts, &Error{Kind: KindInvalidInput, Detail: "malformed configuration JSON", Err: err}
		}
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate enforces the option invariants.
func (o Options) Validate() error {
	if _, ok := modelSizes[o.ModelSize]; !ok {
		return &Error{Kind: KindInvalidInput, Detail: fmt.Sprintf("unknown model_size %q, must be one of tiny|small|medium|large", o.ModelSize)}
	}
	if o.TargetSR <= 0 {
		return &Error{Kind: KindInvalidInput, Detail: "target_sr must be positive"}
	}
	return nil
}
