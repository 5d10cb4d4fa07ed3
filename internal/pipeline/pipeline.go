package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/scribelabs/scribe-core/internal/asr"
	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/device"
	"github.com/scribelabs/scribe-core/internal/model"
	"github.com/scribelabs/scribe-core/internal/separation"
)

// TimelineStore persists per-request stage telemetry for diagnostics.
type TimelineStore interface {
	AppendRequest(ctx context.Context, requestID, filename string) error
	AppendStage(ctx context.Context, requestID, stage, status string, durationMS int64) error
}

// CompletionPublisher broadcasts assembled results to downstream consumers.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, res *Result) error
}

// Pipeline sequences decode, separation, and transcription for one request
// at a time. It holds no per-request state; every Process call owns its
// buffers exclusively.
type Pipeline struct {
	cfg        config.Config
	decoder    *audio.Decoder
	selector   *device.Selector
	isolator   separation.Isolator
	recognizer asr.Recognizer
	store      TimelineStore
	publisher  CompletionPublisher
	logger     *slog.Logger
	tracer     trace.Tracer
	requests   metric.Int64Counter
	fallbacks  metric.Int64Counter
	failures   metric.Int64Counter
}

// New wires a pipeline. store and publisher may be nil.
func New(cfg config.Config, decoder *audio.Decoder, selector *device.Selector, isolator separation.Isolator, recognizer asr.Recognizer, store TimelineStore, publisher CompletionPublisher, logger *slog.Logger) *Pipeline {
	meter := otel.Meter("scribe-core/pipeline")
	requests, _ := meter.Int64Counter("scribe.pipeline.requests")
	fallbacks, _ := meter.Int64Counter("scribe.pipeline.separation_fallbacks")
	failures, _ := meter.Int64Counter("scribe.pipeline.failures")
	return &Pipeline{
		cfg:        cfg,
		decoder:    decoder,
		selector:   selector,
		isolator:   isolator,
		recognizer: recognizer,
		store:      store,
		publisher:  publisher,
		logger:     logger.With(slog.String("component", "pipeline")),
		tracer:     otel.Tracer("scribe-core/pipeline"),
		requests:   requests,
		fallbacks:  fallbacks,
		failures:   failures,
	}
}

// Process runs the full pipeline over one uploaded payload.
func (p *Pipeline) Process(ctx context.Context, data []byte, filenameHint string, opts Options) (*Result, error) {
	requestID := uuid.NewString()
	log := p.logger.With(slog.String("request_id", requestID))

	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()
	p.requests.Add(ctx, 1)

	rec := newRecorder()
	state := StateReceived
	p.appendRequest(requestID, filenameHint)

	fail := func(kind Kind, detail string, err error) (*Result, error) {
		transition(log, &state, StateFailed)
		p.failures.Add(ctx, 1)
		p.persistTimeline(requestID, rec)
		log.Error("pipeline failed",
			slog.String("kind", string(kind)),
			slog.String("detail", detail),
			slog.String("error", errString(err)))
		return nil, &Error{Kind: kind, RequestID: requestID, Detail: detail, Err: err}
	}

	// Malformed configuration fails before any stage runs.
	if err := opts.Validate(); err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return fail(pe.Kind, pe.Detail, pe.Err)
		}
		return fail(KindInvalidInput, "invalid configuration", err)
	}

	// RECEIVED -> DECODED
	if err := ctx.Err(); err != nil {
		return fail(KindCancelled, "request aborted before decode", err)
	}
	decodeStart := time.Now()
	buf, err := p.decoder.Decode(ctx, data, filenameHint, opts.TargetSR)
	if err != nil {
		rec.record("decode", StatusFailed, time.Since(decodeStart))
		switch {
		case errors.Is(err, audio.ErrOversized):
			return fail(KindOversizedInput, "audio payload exceeds configured size limit", err)
		case errors.Is(err, audio.ErrUnsupportedFormat):
			return fail(KindInvalidInput, "unsupported audio format", err)
		default:
			return fail(KindDecodeFailure, "audio payload could not be decoded", err)
		}
	}
	rec.record("decode", StatusOK, time.Since(decodeStart))
	transition(log, &state, StateDecoded)
	span.SetAttributes(
		attribute.Float64("audio.duration_sec", buf.DurationSec()),
		attribute.Int("audio.sample_rate", buf.SampleRate),
	)

	dev := p.selector.Select(ctx)
	log.Info("compute target selected", slog.String("device", string(dev)))

	// DECODED -> SEPARATED | SEPARATION_SKIPPED | SEPARATION_FALLBACK
	active := buf
	sepSummary := SeparationSummary{Enabled: opts.EnableSeparation, Method: p.cfg.Separation.Method}
	if !opts.EnableSeparation {
		rec.record("separation", StatusSkipped, 0)
		transition(log, &state, StateSeparationSkipped)
	} else {
		if err := ctx.Err(); err != nil {
			return fail(KindCancelled, "request aborted before separation", err)
		}
		sepStart := time.Now()
		stem, sepErr := p.separate(ctx, log, buf, dev)
		elapsed := time.Since(sepStart)
		if sepErr != nil {
			// Soft failure: the request continues on the original mix. The
			// fallback must stay visible in telemetry, never swallowed.
			rec.record("separation", StatusFallback, elapsed)
			p.fallbacks.Add(ctx, 1)
			sepSummary.Fallback = true
			transition(log, &state, StateSeparationFallback)
			log.Warn("vocal separation failed, continuing with original mix",
				slog.String("error", sepErr.Error()))
		} else {
			rec.record("separation", StatusOK, elapsed)
			active = stem
			transition(log, &state, StateSeparated)
		}
	}

	// * -> TRANSCRIBED
	if err := ctx.Err(); err != nil {
		return fail(KindCancelled, "request aborted before transcription", err)
	}
	asrStart := time.Now()
	res, asrErr := p.transcribe(ctx, log, active, opts, dev)
	asrElapsed := time.Since(asrStart)
	if asrErr != nil {
		rec.record("transcription", StatusFailed, asrElapsed)
		return fail(KindTranscriptionFailure, "speech recognition failed", asrErr)
	}
	rec.record("transcription", StatusOK, asrElapsed)
	transition(log, &state, StateTranscribed)

	// TRANSCRIBED -> ASSEMBLED
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = asr.JoinSegments(res.Segments)
	}
	language := res.Language
	if language == "" {
		language = opts.LanguageHint
	}
	result := &Result{
		RequestID:   requestID,
		DurationSec: buf.DurationSec(),
		SampleRate:  buf.SampleRate,
		Pipeline: Summary{
			Separation:    sepSummary,
			Transcription: TranscriptionSummary{Model: opts.ModelSize},
		},
		Segments: res.Segments,
		Text:     text,
		Language: language,
		TimingsMS: Timings{
			Load:          res.ModelLoadMS,
			Separation:    rec.durationMS("separation"),
			Transcription: rec.durationMS("transcription"),
			Total:         rec.totalMS(),
		},
	}
	transition(log, &state, StateAssembled)
	p.persistTimeline(requestID, rec)
	p.publish(ctx, log, result)

	log.Info("transcription completed",
		slog.Float64("duration_sec", result.DurationSec),
		slog.Int("segments", len(result.Segments)),
		slog.Bool("separation_fallback", sepSummary.Fallback),
		slog.Int64("total_ms", result.TimingsMS.Total))
	return result, nil
}

// separate invokes the isolator with the one-shot CPU downgrade and checks
// the stem against the mix: same rate and channel count, duration within one
// frame of the input.
func (p *Pipeline) separate(ctx context.Context, log *slog.Logger, mix *audio.Buffer, dev device.Handle) (*audio.Buffer, error) {
	var stem *audio.Buffer
	err := p.withCPUDowngrade(log, "separation", dev, func(d device.Handle) error {
		out, err := p.isolator.Separate(ctx, mix, d)
		if err != nil {
			return err
		}
		if err := validateStem(mix, out); err != nil {
			return err
		}
		stem = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stem, nil
}

func (p *Pipeline) transcribe(ctx context.Context, log *slog.Logger, buf *audio.Buffer, opts Options, dev device.Handle) (asr.Result, error) {
	var res asr.Result
	err := p.withCPUDowngrade(log, "transcription", dev, func(d device.Handle) error {
		out, err := p.recognizer.Transcribe(ctx, buf, asr.Request{
			ModelSize:    opts.ModelSize,
			LanguageHint: opts.LanguageHint,
			Device:       d,
		})
		if err != nil {
			return err
		}
		res = out
		return nil
	})
	return res, err
}

// withCPUDowngrade applies the single permitted retry: accelerator resource
// exhaustion re-runs the stage once on CPU, then the stage's own policy
// decides what the failure means.
func (p *Pipeline) withCPUDowngrade(log *slog.Logger, stage string, dev device.Handle, fn func(device.Handle) error) error {
	err := fn(dev)
	if err == nil || !dev.IsAccelerator() || !model.IsResource(err) {
		return err
	}
	log.Warn("accelerator resource failure, retrying once on cpu",
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	return fn(device.CPU)
}

func validateStem(mix, stem *audio.Buffer) error {
	if stem.SampleRate != mix.SampleRate {
		return fmt.Errorf("stem sample rate %d differs from mix %d", stem.SampleRate, mix.SampleRate)
	}
	if stem.Channels != mix.Channels {
		return fmt.Errorf("stem channel count %d differs from mix %d", stem.Channels, mix.Channels)
	}
	if delta := stem.Frames() - mix.Frames(); delta > 1 || delta < -1 {
		return fmt.Errorf("stem length off by %d frames", delta)
	}
	return nil
}

func (p *Pipeline) appendRequest(requestID, filename string) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.store.AppendRequest(ctx, requestID, filename); err != nil {
		p.logger.Warn("failed to record request", slog.String("error", err.Error()))
	}
}

// persistTimeline writes stage timings on every exit path, so failed
// requests still leave a diagnosable trail. Uses a detached context: the
// request context may already be cancelled here.
func (p *Pipeline) persistTimeline(requestID string, rec *recorder) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, st := range rec.stages {
		if err := p.store.AppendStage(ctx, requestID, st.Stage, st.Status, st.DurationMS); err != nil {
			p.logger.Warn("failed to record stage timing",
				slog.String("stage", st.Stage),
				slog.String("error", err.Error()))
			return
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, res *Result) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishCompletion(ctx, res); err != nil {
		log.Warn("failed to publish completion event", slog.String("error", err.Error()))
	}
}

func transition(log *slog.Logger, state *State, to State) {
	log.Debug("state transition",
		slog.String("from", string(*state)),
		slog.String("to", string(to)))
	*state = to
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
