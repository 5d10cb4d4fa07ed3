// Package model carries the failure type shared by the wrapped inference
// backends. The pipeline needs to tell device/memory exhaustion apart from
// ordinary inference failures to drive its one-shot CPU downgrade.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a classified failure from an inference backend.
type Error struct {
	Stage    string
	Resource bool
	Err      error
}

func (e *Error) Error() string {
	if e.Resource {
		return fmt.Sprintf("%s: resource exhaustion: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsResource reports whether err (or anything it wraps) is a resource
// exhaustion failure.
func IsResource(err error) bool {
	var me *Error
	return errors.As(err, &me) && me.Resource
}

var resourceMarkers = []string{
	"out of memory",
	"cuda error",
	"cudnn",
	"device-side assert",
	"resource exhausted",
}

// Classify wraps an exec backend failure, sniffing its stderr for the
// accelerator failure signatures the runtimes actually print.
func Classify(stage string, err error, stderr string) error {
	lower := strings.ToLower(stderr)
	for _, marker := range resourceMarkers {
		if strings.Contains(lower, marker) {
			return &Error{Stage: stage, Resource: true, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr))}
		}
	}
	return &Error{Stage: stage, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr))}
}
