package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scribelabs/scribe-core/internal/asr"
	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/bus"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/device"
	"github.com/scribelabs/scribe-core/internal/natsserver"
	"github.com/scribelabs/scribe-core/internal/pipeline"
	"github.com/scribelabs/scribe-core/internal/requeststore"
	"github.com/scribelabs/scribe-core/internal/separation"
)

// Runtime assembles the pipeline and serves it over HTTP. Concurrency across
// requests is bounded by a fixed pool of worker slots; each admitted request
// runs its pipeline synchronously on its own handler goroutine.
type Runtime struct {
	cfg            config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	telemetryClose func(context.Context) error
	pipe           *pipeline.Pipeline
	store          *requeststore.Store
	busClient      *bus.Client
	embedded       *natsserver.EmbeddedServer
	slots          chan struct{}
	ready          atomic.Bool
	wg             sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetryClose = shutdownTelemetry

	store, err := requeststore.Open(ctx, r.cfg.RequestStore, r.logger)
	if err != nil {
		return fmt.Errorf("open request store: %w", err)
	}
	r.store = store

	var publisher pipeline.CompletionPublisher
	if r.cfg.Bus.Enabled {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded bus: %w", err)
		}
		r.embedded = embedded

		busCfg := r.cfg.Bus
		if busCfg.Embedded {
			busCfg.Servers = []string{fmt.Sprintf("nats://localhost:%d", busCfg.Port)}
		}
		client, err := bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("connect to bus: %w", err)
		}
		r.busClient = client
		publisher = bus.NewPublisher(client)
	}

	isolator, recognizer, err := buildBackends(r.cfg)
	if err != nil {
		return err
	}

	r.pipe = pipeline.New(
		r.cfg,
		audio.NewDecoder(r.cfg.Pipeline, r.logger),
		device.NewSelector(r.cfg.Device, r.logger),
		isolator,
		recognizer,
		store,
		publisher,
		r.logger,
	)
	r.slots = make(chan struct{}, r.cfg.Pipeline.Workers)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/v1/transcribe", r.handleTranscribe)
	mux.HandleFunc("/", r.handleRoot)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Int("workers", r.cfg.Pipeline.Workers))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.busClient.Close()
	r.embedded.Shutdown()
	if err := r.store.Close(); err != nil {
		r.logger.Error("request store close error", slog.String("error", err.Error()))
	}
	if r.telemetryClose != nil {
		if err := r.telemetryClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func buildBackends(cfg config.Config) (separation.Isolator, asr.Recognizer, error) {
	var isolator separation.Isolator
	switch cfg.Separation.Mode {
	case "exec":
		ex, err := separation.NewExecIsolator(cfg.Separation, cfg.Pipeline.TempDir)
		if err != nil {
			return nil, nil, fmt.Errorf("build separator: %w", err)
		}
		isolator = ex
	default:
		isolator = separation.NewMockIsolator()
	}

	var recognizer asr.Recognizer
	switch cfg.ASR.Mode {
	case "exec":
		ex, err := asr.NewExecRecognizer(cfg.ASR, cfg.Pipeline.TempDir)
		if err != nil {
			return nil, nil, fmt.Errorf("build recognizer: %w", err)
		}
		recognizer = ex
	default:
		recognizer = asr.NewMockRecognizer()
	}

	return isolator, recognizer, nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !r.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	if r.cfg.Bus.Enabled && !r.busClient.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("bus disconnected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
