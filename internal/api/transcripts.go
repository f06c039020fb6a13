package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meetmate/meetmate-backend/internal/metrics"
	"github.com/meetmate/meetmate-backend/internal/transcript"
	"github.com/rs/zerolog/hlog"
)

// Ingester appends a raw request body to the transcript log.
type Ingester interface {
	Ingest(source string, body []byte) error
}

// TranscriptReader returns the current day's lines.
type TranscriptReader interface {
	Today() ([]string, error)
}

// StatusResponse acknowledges a successful ingest.
type StatusResponse struct {
	Status string `json:"status"`
}

// TranscriptsResponse lists the current day's lines.
type TranscriptsResponse struct {
	Transcripts []string `json:"transcripts"`
}

type TranscriptsHandler struct {
	ingest       Ingester
	reader       TranscriptReader
	maxBodyBytes int64
}

func NewTranscriptsHandler(ingest Ingester, reader TranscriptReader, maxBodyBytes int64) *TranscriptsHandler {
	return &TranscriptsHandler{ingest: ingest, reader: reader, maxBodyBytes: maxBodyBytes}
}

// Create appends the posted transcript to today's file.
func (h *TranscriptsHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if r.Body == nil {
		r.Body = http.NoBody
	}
	body := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		metrics.TranscriptErrorsTotal.WithLabelValues(metrics.SourceHTTP, transcript.KindDecode.String()).Inc()
		log.Warn().Err(err).Msg("failed to read transcript body")
		WriteTranscriptError(w, &transcript.Error{Kind: transcript.KindDecode, Op: "read body", Err: err})
		return
	}

	if err := h.ingest.Ingest(metrics.SourceHTTP, data); err != nil {
		log.Warn().Err(err).Str("kind", transcript.KindOf(err).String()).Msg("transcript not stored")
		WriteTranscriptError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, StatusResponse{Status: "received"})
}

// List returns today's lines in append order.
func (h *TranscriptsHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.reader.Today()
	if err != nil {
		metrics.TranscriptErrorsTotal.WithLabelValues(metrics.SourceHTTP, transcript.KindOf(err).String()).Inc()
		hlog.FromRequest(r).Error().Err(err).Msg("failed to read transcripts")
		WriteTranscriptError(w, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	WriteJSON(w, http.StatusOK, TranscriptsResponse{Transcripts: lines})
}

// Routes registers transcript routes on the given router.
func (h *TranscriptsHandler) Routes(r chi.Router) {
	r.Post("/transcripts", h.Create)
	r.Get("/transcripts", h.List)
}
