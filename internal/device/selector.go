package device

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/scribelabs/scribe-core/internal/config"
)

// Handle names a compute target the inference backends understand.
type Handle string

const (
	CPU         Handle = "cpu"
	Accelerator Handle = "cuda"
)

func (h Handle) IsAccelerator() bool {
	return h == Accelerator
}

// Selector decides CPU vs accelerator placement. Selection never fails: when
// the probe is absent, broken, or reports nothing, CPU is the answer. The
// probe result is cached for the life of the process.
type Selector struct {
	cfg config.DeviceConfig
	log *slog.Logger

	mu       sync.Mutex
	probed   bool
	probeHit bool
}

func NewSelector(cfg config.DeviceConfig, log *slog.Logger) *Selector {
	return &Selector{
		cfg: cfg,
		log: log.With(slog.String("component", "device-selector")),
	}
}

// Select returns the compute target for the next inference call.
func (s *Selector) Select(ctx context.Context) Handle {
	switch s.cfg.Preference {
	case "cpu":
		return CPU
	case "accelerator":
		return Accelerator
	}
	if s.acceleratorAvailable(ctx) {
		return Accelerator
	}
	return CPU
}

func (s *Selector) acceleratorAvailable(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.probed {
		return s.probeHit
	}
	s.probed = true
	s.probeHit = s.runProbe(ctx)
	return s.probeHit
}

func (s *Selector) runProbe(ctx context.Context) bool {
	if s.cfg.ProbeCommand == "" {
		return false
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(s.cfg.ProbeCommand)
	if err != nil || len(args) == 0 {
		s.log.Warn("invalid device probe command", slog.String("command", s.cfg.ProbeCommand))
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		s.log.Info("accelerator probe negative", slog.String("error", err.Error()))
		return false
	}
	s.log.Info("accelerator probe positive")
	return true
}
