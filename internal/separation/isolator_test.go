package separation

import (
	"context"
	"testing"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/device"
)

func TestNewExecIsolatorRejectsBadCommands(t *testing.T) {
	cfg := config.SeparationConfig{Mode: "exec"}
	if _, err := NewExecIsolator(cfg, t.TempDir()); err == nil {
		t.Fatal("expected error for empty command")
	}
	cfg.Command = `demucs "unterminated`
	if _, err := NewExecIsolator(cfg, t.TempDir()); err == nil {
		t.Fatal("expected error for unparseable command")
	}
	cfg.Command = "demucs-vocals --two-stems vocals"
	if _, err := NewExecIsolator(cfg, t.TempDir()); err != nil {
		t.Fatalf("valid command rejected: %v", err)
	}
}

func TestMockIsolatorPreservesShape(t *testing.T) {
	iso := NewMockIsolator()
	mix := &audio.Buffer{
		Samples:    []int{1, 2, 3, 4, 5, 6},
		SampleRate: 16000,
		Channels:   2,
	}

	stem, err := iso.Separate(context.Background(), mix, device.CPU)
	if err != nil {
		t.Fatalf("separate: %v", err)
	}
	if stem.SampleRate != mix.SampleRate || stem.Channels != mix.Channels {
		t.Fatalf("shape changed: %+v", stem)
	}
	if stem.Frames() != mix.Frames() {
		t.Fatalf("frame count changed: %d -> %d", mix.Frames(), stem.Frames())
	}
}

func TestMockIsolatorDoesNotAliasInput(t *testing.T) {
	iso := NewMockIsolator()
	mix := &audio.Buffer{
		Samples:    []int{10, 20, 30},
		SampleRate: 16000,
		Channels:   1,
	}

	stem, err := iso.Separate(context.Background(), mix, device.CPU)
	if err != nil {
		t.Fatalf("separate: %v", err)
	}
	stem.Samples[0] = 99
	if mix.Samples[0] != 10 {
		t.Fatal("stem shares backing storage with the mix")
	}
}
