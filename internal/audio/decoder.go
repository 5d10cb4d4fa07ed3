package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/scribelabs/scribe-core/internal/config"
)

// Sentinel decode errors. The pipeline maps these onto its error taxonomy,
// so the distinction between a rejected format, an oversized payload, and
// bytes that fail to parse must survive wrapping.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrOversized         = errors.New("audio payload exceeds size limit")
	ErrUnreadable        = errors.New("unreadable audio data")
)

// Decoder validates raw uploads and produces waveforms at the target sample
// rate. WAV payloads decode in-process; other allow-listed formats go through
// ffmpeg via scratch files that are removed on every exit path.
type Decoder struct {
	maxBytes int64
	formats  map[string]struct{}
	targetSR int
	tempDir  string
	log      *slog.Logger
}

func NewDecoder(cfg config.PipelineConfig, log *slog.Logger) *Decoder {
	formats := make(map[string]struct{}, len(cfg.SupportedFormats))
	for _, f := range cfg.SupportedFormats {
		formats[strings.ToLower(strings.TrimPrefix(f, "."))] = struct{}{}
	}
	return &Decoder{
		maxBytes: int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		formats:  formats,
		targetSR: cfg.TargetSampleRate,
		tempDir:  cfg.TempDir,
		log:      log.With(slog.String("component", "decoder")),
	}
}

// Decode validates data against the size limit and format allow-list, decodes
// it, and resamples to targetSR. A non-positive targetSR falls back to the
// configured service default.
func (d *Decoder) Decode(ctx context.Context, data []byte, filenameHint string, targetSR int) (*Buffer, error) {
	ext, err := d.validate(data, filenameHint)
	if err != nil {
		return nil, err
	}
	if targetSR <= 0 {
		targetSR = d.targetSR
	}

	var buf *Buffer
	if ext == "wav" {
		buf, err = DecodeWAV(data)
	} else {
		buf, err = d.transcode(ctx, data, ext, targetSR)
	}
	if err != nil {
		return nil, err
	}

	if buf.SampleRate != targetSR {
		buf = resample(buf, targetSR)
	}
	return buf, nil
}

func (d *Decoder) validate(data []byte, filenameHint string) (string, error) {
	if strings.TrimSpace(filenameHint) == "" {
		return "", fmt.Errorf("%w: no filename provided", ErrUnsupportedFormat)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filenameHint), "."))
	if _, ok := d.formats[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if int64(len(data)) > d.maxBytes {
		return "", fmt.Errorf("%w: %d bytes over limit of %d", ErrOversized, len(data), d.maxBytes)
	}
	return ext, nil
}

// DecodeWAV parses a WAV byte stream into a Buffer at its native rate.
func DecodeWAV(data []byte) (*Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav stream", ErrUnreadable)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if pcm.Format == nil || pcm.Format.SampleRate <= 0 || pcm.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: missing format chunk", ErrUnreadable)
	}
	return &Buffer{
		Samples:    pcm.Data,
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
	}, nil
}

// transcode shells out to ffmpeg for the non-WAV allow-listed codecs. Both
// scratch files are scoped to this call.
func (d *Decoder) transcode(ctx context.Context, data []byte, ext string, targetSR int) (*Buffer, error) {
	in, err := os.CreateTemp(d.tempDir, "scribe_in_*."+ext)
	if err != nil {
		return nil, fmt.Errorf("scratch input: %w", err)
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, fmt.Errorf("write scratch input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("close scratch input: %w", err)
	}

	outPath := in.Name() + ".wav"
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", in.Name(),
		"-ar", strconv.Itoa(targetSR),
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		d.log.Warn("ffmpeg decode failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrUnreadable, err, lastLine(stderr.String()))
	}

	decoded, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read transcoded wav: %w", err)
	}
	return DecodeWAV(decoded)
}

// resample performs per-channel linear interpolation. Good enough for speech
// models that only need a uniform rate, not archival quality.
func resample(src *Buffer, targetSR int) *Buffer {
	srcFrames := src.Frames()
	if srcFrames == 0 {
		return &Buffer{SampleRate: targetSR, Channels: src.Channels}
	}
	dstFrames := int(float64(srcFrames) * float64(targetSR) / float64(src.SampleRate))
	if dstFrames < 1 {
		dstFrames = 1
	}
	out := make([]int, dstFrames*src.Channels)
	ratio := float64(srcFrames-1) / float64(max(dstFrames-1, 1))
	for frame := 0; frame < dstFrames; frame++ {
		pos := float64(frame) * ratio
		lo := int(pos)
		hi := lo + 1
		if hi >= srcFrames {
			hi = srcFrames - 1
		}
		frac := pos - float64(lo)
		for ch := 0; ch < src.Channels; ch++ {
			a := float64(src.Samples[lo*src.Channels+ch])
			b := float64(src.Samples[hi*src.Channels+ch])
			out[frame*src.Channels+ch] = int(a + (b-a)*frac)
		}
	}
	return &Buffer{Samples: out, SampleRate: targetSR, Channels: src.Channels}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
