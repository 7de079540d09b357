package downloader

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ytdl-proxy/internal/platform/metrics"

	"github.com/google/uuid"
)

//go:embed static/index.html
var indexHTML []byte

const (
	maxRequestBody  = 1 << 20
	corsMaxAge      = "86400"
	timeoutMessage  = "download timed out"
	outcomeComplete = "ok"
)

// Handler exposes the download endpoints.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. Metrics may be nil to disable recording.
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

type downloadRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", corsMaxAge)
}

// Preflight handles OPTIONS /download.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	w.WriteHeader(http.StatusOK)
}

// Index serves the download form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Download handles POST /download.
// Body: { "url": "https://youtu.be/dQw4w9WgXcQ", "quality": "1080p" }.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	log := h.log.With(slog.String("download_id", uuid.NewString()))

	var body downloadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		h.fail(w, log, E(KindInvalidInput, "decode request", fmt.Errorf("invalid JSON body: %w", err)))
		return
	}

	id, err := ExtractVideoID(body.URL)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	height := ParseQuality(body.Quality)
	log = log.With(slog.String("video_id", id), slog.Int("height", height))

	dl, err := h.svc.Prepare(r.Context(), QualityRequest{VideoID: id, Height: height})
	if err != nil {
		h.fail(w, log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.svc.FetchTimeout())
	defer cancel()

	start := time.Now()
	payload, err := h.svc.Open(ctx, dl)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	defer payload.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", "video/mp4")
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	if payload.Size > 0 {
		hdr.Set("Content-Length", strconv.FormatInt(payload.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, payload)
	if h.metrics != nil {
		h.metrics.AddBytesStreamed(n)
	}
	if err != nil {
		// Headers are gone; the client sees a truncated body.
		kind := KindOf(err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		log.Error("stream aborted after response started",
			slog.String("strategy", payload.Strategy),
			slog.Int64("bytes", n),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		h.recordOutcome(kind.String())
		return
	}

	log.Info("download complete",
		slog.String("strategy", payload.Strategy),
		slog.String("tier", dl.Selection.Tier),
		slog.Int("itag", payload.Stream.Itag),
		slog.Int64("bytes", n),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	h.recordOutcome(outcomeComplete)
}

func (h *Handler) recordOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.IncDownloads(outcome)
	}
}

// fail writes the classified JSON error for err.
func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	kind := KindOf(err)
	status := StatusFor(kind)

	msg := err.Error()
	if kind == KindTimeout {
		msg = timeoutMessage
	}

	if status >= http.StatusInternalServerError {
		log.Error("download failed", slog.String("kind", kind.String()), slog.String("error", err.Error()))
	} else {
		log.Info("download rejected", slog.String("kind", kind.String()), slog.String("error", err.Error()))
	}
	h.recordOutcome(kind.String())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Kind: kind.String()})
}
