package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scribelabs/scribe-core/internal/pipeline"
)

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Detail    string `json:"detail"`
}

type serviceInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// Version is stamped at build time.
var Version = "0.1.0-dev"

func (r *Runtime) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	writeJSON(w, http.StatusOK, serviceInfo{
		Service: r.cfg.ServiceName,
		Version: Version,
		Health:  "/healthz",
	})
}

// handleTranscribe is the boundary for the pipeline: multipart upload in,
// assembled result or typed error out. The pipeline owns everything between.
func (r *Runtime) handleTranscribe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
			RequestID: uuid.NewString(),
			Error:     "method_not_allowed",
			Detail:    "use POST",
		})
		return
	}

	// Admission control: beyond pool capacity, reject rather than queue.
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	default:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			RequestID: uuid.NewString(),
			Error:     "saturated",
			Detail:    "all pipeline workers are busy",
		})
		return
	}

	// One MiB of slack over the payload limit for multipart framing; the
	// decoder enforces the exact payload limit itself.
	maxBytes := int64(r.cfg.Pipeline.MaxFileSizeMB)*1024*1024 + 1024*1024
	req.Body = http.MaxBytesReader(w, req.Body, maxBytes)

	if err := req.ParseMultipartForm(32 << 20); err != nil {
		status := http.StatusBadRequest
		detail := "malformed multipart form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			detail = "upload exceeds the configured size limit"
		}
		writeJSON(w, status, errorResponse{
			RequestID: uuid.NewString(),
			Error:     string(pipeline.KindInvalidInput),
			Detail:    detail,
		})
		return
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := req.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			RequestID: uuid.NewString(),
			Error:     string(pipeline.KindInvalidInput),
			Detail:    "missing file field",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			RequestID: uuid.NewString(),
			Error:     string(pipeline.KindInvalidInput),
			Detail:    "could not read upload",
		})
		return
	}

	defaults := pipeline.DefaultOptions(r.cfg.ASR, r.cfg.Pipeline.TargetSampleRate)
	opts, err := pipeline.ParseOptions([]byte(req.FormValue("config")), defaults)
	if err != nil {
		r.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), time.Duration(r.cfg.Pipeline.RequestTimeoutSec)*time.Second)
	defer cancel()

	result, err := r.pipe.Process(ctx, data, header.Filename, opts)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeError maps pipeline error kinds onto transport status codes. Only the
// kind and human-readable detail cross the boundary, never model internals.
func (r *Runtime) writeError(w http.ResponseWriter, err error) {
	kind := pipeline.KindOf(err)
	requestID := pipeline.RequestIDOf(err)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	detail := "internal processing error"
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		detail = pe.Detail
	}

	status := http.StatusInternalServerError
	switch kind {
	case pipeline.KindInvalidInput:
		status = http.StatusBadRequest
	case pipeline.KindOversizedInput:
		status = http.StatusRequestEntityTooLarge
	case pipeline.KindDecodeFailure:
		status = http.StatusUnprocessableEntity
	case pipeline.KindCancelled:
		status = http.StatusGatewayTimeout
	}

	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error:     string(kind),
		Detail:    detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to encode response", slog.String("error", err.Error()))
	}
}
