package separation

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/device"
	"github.com/scribelabs/scribe-core/internal/model"
)

// execIsolator shells out to a separator command. The command receives the
// mix as a scratch WAV and must write the isolated vocal stem to --output.
type execIsolator struct {
	cmd     []string
	cfg     config.SeparationConfig
	tempDir string
	mu      sync.Mutex
}

func NewExecIsolator(cfg config.SeparationConfig, tempDir string) (Isolator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse separation command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("separation command is empty")
	}
	return &execIsolator{cmd: args, cfg: cfg, tempDir: tempDir}, nil
}

func (e *execIsolator) Separate(ctx context.Context, buf *audio.Buffer, dev device.Handle) (*audio.Buffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inPath, cleanup, err := audio.WriteScratchWAV(e.tempDir, "scribe_mix_*.wav", buf)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := inPath + ".vocals.wav"
	defer os.Remove(outPath)

	args := append([]string{}, e.cmd[1:]...)
	args = append(args, "--audio", inPath, "--output", outPath, "--device", string(dev))
	if e.cfg.Model != "" {
		args = append(args, "--model", e.cfg.Model)
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, model.Classify("separation", fmt.Errorf("separator command failed: %w", err), stderr.String())
	}

	stem, err := audio.ReadWAVFile(outPath)
	if err != nil {
		return nil, &model.Error{Stage: "separation", Err: fmt.Errorf("decode vocal stem: %w", err)}
	}
	return stem, nil
}
