package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/model"
)

type execRecognizer struct {
	cmd     []string
	cfg     config.ASRConfig
	tempDir string
	mu      sync.Mutex
}

type execResult struct {
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	ModelLoadMS int64     `json:"model_load_ms"`
	Segments    []Segment `json:"segments"`
}

// NewExecRecognizer wraps a speech-recognition command that reads a WAV file
// and prints a JSON result on stdout.
func NewExecRecognizer(cfg config.ASRConfig, tempDir string) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse asr command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("asr command is empty")
	}
	return &execRecognizer{cmd: args, cfg: cfg, tempDir: tempDir}, nil
}

func (r *execRecognizer) Transcribe(ctx context.Context, buf *audio.Buffer, req Request) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, cleanup, err := audio.WriteScratchWAV(r.tempDir, "scribe_asr_*.wav", buf)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	args := append([]string{}, r.cmd[1:]...)
	args = append(args, "--audio", path, "--model", req.ModelSize, "--device", string(req.Device))
	if req.LanguageHint != "" {
		args = append(args, "--language", req.LanguageHint)
	}
	if r.cfg.ModelDir != "" {
		args = append(args, "--model-dir", r.cfg.ModelDir)
	}

	cmd := exec.CommandContext(ctx, r.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, model.Classify("transcription", fmt.Errorf("asr command failed: %w", err), stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, &model.Error{Stage: "transcription", Err: fmt.Errorf("decode asr response: %w", err)}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = JoinSegments(resp.Segments)
	}
	language := resp.Language
	if language == "" {
		language = req.LanguageHint
	}
	return Result{
		Segments:    resp.Segments,
		Text:        text,
		Language:    language,
		ModelLoadMS: resp.ModelLoadMS,
	}, nil
}
