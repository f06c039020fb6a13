package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meetmate/meetmate-backend/internal/config"
	"github.com/meetmate/meetmate-backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	http   *http.Server
	cancel context.CancelFunc
	log    zerolog.Logger
}

type ServerOptions struct {
	Config    *config.Config
	Ingest    Ingester
	Reader    TranscriptReader
	Live      LiveSource // nil disables /transcripts/stream
	Health    HealthDeps
	Version   string
	StartTime time.Time
	Log       zerolog.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(opts ServerOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Logger(opts.Log))
	r.Use(Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS(opts.Config.AllowedOrigins()))

	NewTranscriptsHandler(opts.Ingest, opts.Reader, opts.Config.MaxBodyBytes).Routes(r)
	NewEventsHandler(opts.Live).Routes(r)

	r.Get("/health", NewHealthHandler(opts.Health, opts.Version, opts.StartTime).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	// Request contexts derive from baseCtx so Shutdown can end open SSE streams.
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(opts),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			BaseContext:  func(net.Listener) context.Context { return baseCtx },
		},
		cancel: cancel,
		log:    opts.Log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	s.cancel()
	return s.http.Shutdown(ctx)
}
