package audio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func pipelineCfg(t *testing.T) config.PipelineConfig {
	t.Helper()
	return config.PipelineConfig{
		MaxFileSizeMB:    1,
		SupportedFormats: []string{"wav", "mp3"},
		TargetSampleRate: 16000,
		TempDir:          t.TempDir(),
	}
}

// wavBytes encodes a sine-ish ramp of the given shape into a WAV stream.
func wavBytes(t *testing.T, sampleRate, channels int, seconds float64) []byte {
	t.Helper()
	frames := int(float64(sampleRate) * seconds)
	buf := &Buffer{
		Samples:    make([]int, frames*channels),
		SampleRate: sampleRate,
		Channels:   channels,
	}
	for i := range buf.Samples {
		buf.Samples[i] = int(int16(1000 * math.Sin(float64(i)/40)))
	}
	path, cleanup, err := WriteScratchWAV(t.TempDir(), "fixture_*.wav", buf)
	if err != nil {
		t.Fatalf("write fixture wav: %v", err)
	}
	defer cleanup()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture wav: %v", err)
	}
	return data
}

func TestDecodeResamplesToTargetRate(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	data := wavBytes(t, 8000, 1, 2.0)

	buf, err := d.Decode(context.Background(), data, "clip.wav", 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SampleRate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", buf.SampleRate)
	}
	if got := buf.DurationSec(); got < 1.95 || got > 2.05 {
		t.Fatalf("expected ~2s duration, got %.3f", got)
	}
}

func TestDecodeHonorsRequestedRate(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	data := wavBytes(t, 16000, 1, 2.0)

	buf, err := d.Decode(context.Background(), data, "clip.wav", 8000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SampleRate != 8000 {
		t.Fatalf("expected requested rate 8000, got %d", buf.SampleRate)
	}
	if got := buf.DurationSec(); got < 1.95 || got > 2.05 {
		t.Fatalf("expected ~2s duration, got %.3f", got)
	}
}

func TestDecodeKeepsNativeRate(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	data := wavBytes(t, 16000, 1, 1.0)

	buf, err := d.Decode(context.Background(), data, "clip.wav", 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SampleRate != 16000 {
		t.Fatalf("unexpected sample rate %d", buf.SampleRate)
	}
	if buf.Frames() != 16000 {
		t.Fatalf("expected 16000 frames, got %d", buf.Frames())
	}
}

func TestDecodeStereoKeepsChannels(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	data := wavBytes(t, 8000, 2, 1.0)

	buf, err := d.Decode(context.Background(), data, "clip.wav", 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Channels != 2 {
		t.Fatalf("expected 2 channels, got %d", buf.Channels)
	}
	if got := buf.DurationSec(); got < 0.95 || got > 1.05 {
		t.Fatalf("expected ~1s duration, got %.3f", got)
	}
}

func TestDecodeDurationInvariant(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	data := wavBytes(t, 22050, 1, 3.0)

	buf, err := d.Decode(context.Background(), data, "clip.wav", 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := float64(buf.Frames()) / float64(buf.SampleRate)
	if buf.DurationSec() != want {
		t.Fatalf("duration %.6f does not equal frames/rate %.6f", buf.DurationSec(), want)
	}
}

func TestDecodeRejectsUnsupportedFormat(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	_, err := d.Decode(context.Background(), []byte("not audio"), "notes.txt", 0)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeRejectsMissingFilename(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	_, err := d.Decode(context.Background(), []byte("x"), "", 0)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	data := make([]byte, 1024*1024+1)
	_, err := d.Decode(context.Background(), data, "big.wav", 0)
	if !errors.Is(err, ErrOversized) {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
}

func TestDecodeRejectsCorruptBytes(t *testing.T) {
	d := NewDecoder(pipelineCfg(t), newLogger())
	_, err := d.Decode(context.Background(), []byte("RIFFgarbage"), "clip.wav", 0)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestWriteScratchWAVCleanup(t *testing.T) {
	dir := t.TempDir()
	buf := &Buffer{Samples: make([]int, 1600), SampleRate: 16000, Channels: 1}

	path, cleanup, err := WriteScratchWAV(dir, "scratch_*.wav", buf)
	if err != nil {
		t.Fatalf("write scratch: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("scratch file missing: %v", err)
	}
	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("scratch file not removed")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty scratch dir, found %d entries", len(entries))
	}
}

func TestReadWAVFileRoundTrip(t *testing.T) {
	buf := &Buffer{Samples: []int{1, -2, 3, -4, 5, -6}, SampleRate: 16000, Channels: 1}
	path, cleanup, err := WriteScratchWAV(t.TempDir(), "round_*.wav", buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	defer cleanup()

	got, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.SampleRate != 16000 || got.Channels != 1 {
		t.Fatalf("format mismatch: %+v", got)
	}
	if len(got.Samples) != len(buf.Samples) {
		t.Fatalf("expected %d samples, got %d", len(buf.Samples), len(got.Samples))
	}
	for i, s := range buf.Samples {
		if got.Samples[i] != s {
			t.Fatalf("sample %d: expected %d, got %d", i, s, got.Samples[i])
		}
	}
}
