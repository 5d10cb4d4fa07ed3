package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAVFile decodes a WAV file on disk into a Buffer at its native rate.
func ReadWAVFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav file: %w", err)
	}
	return DecodeWAV(data)
}

// WriteScratchWAV writes buf into a temp WAV file under dir and returns the
// path plus a cleanup func. Callers must defer cleanup so the scratch file
// never outlives the request, whatever the exit path.
func WriteScratchWAV(dir string, pattern string, buf *Buffer) (string, func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(file.Name()) }

	if err := encodeWAV(file, buf); err != nil {
		file.Close()
		cleanup()
		return "", nil, err
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close wav file: %w", err)
	}
	return file.Name(), cleanup, nil
}

func encodeWAV(file *os.File, buf *Buffer) error {
	intBuf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           buf.Samples,
		SourceBitDepth: 16,
	}
	enc := wav.NewEncoder(file, buf.SampleRate, 16, buf.Channels, 1)
	if err := enc.Write(intBuf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
