// Package ingest turns incoming payloads, from HTTP or MQTT, into lines in the
// daily transcript log.
package ingest

import (
	"sync/atomic"

	"github.com/meetmate/meetmate-backend/internal/metrics"
	"github.com/meetmate/meetmate-backend/internal/transcript"
	"github.com/rs/zerolog"
)

// Appender is the write side of the transcript log.
type Appender interface {
	Append(text string) error
}

// Service decodes payloads and appends the extracted text.
type Service struct {
	log      Appender
	logger   zerolog.Logger
	received atomic.Int64
	failed   atomic.Int64
}

// NewService creates a Service writing to log.
func NewService(log Appender, logger zerolog.Logger) *Service {
	return &Service{
		log:    log,
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest extracts the transcript text from body and appends it. Decoding
// happens first, so a malformed body never touches storage. Returned errors
// are *transcript.Error.
func (s *Service) Ingest(source string, body []byte) error {
	text, err := transcript.ExtractText(body)
	if err != nil {
		s.fail(source, err)
		return err
	}
	if err := s.log.Append(text); err != nil {
		s.fail(source, err)
		return err
	}

	s.received.Add(1)
	metrics.TranscriptsIngestedTotal.WithLabelValues(source).Inc()
	metrics.TranscriptBytesTotal.Add(float64(len(text)))
	s.logger.Info().Str("source", source).Int("bytes", len(text)).Msg("transcription received")
	s.logger.Debug().Str("source", source).Str("text", text).Msg("transcription text")
	return nil
}

// HandleMQTT is an mqttclient.MessageHandler. Failures are logged and dropped.
func (s *Service) HandleMQTT(topic string, payload []byte) {
	if err := s.Ingest(metrics.SourceMQTT, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("mqtt transcript rejected")
	}
}

// Counts returns the number of successful and failed ingests.
func (s *Service) Counts() (received, failed int64) {
	return s.received.Load(), s.failed.Load()
}

func (s *Service) fail(source string, err error) {
	s.failed.Add(1)
	metrics.TranscriptErrorsTotal.WithLabelValues(source, transcript.KindOf(err).String()).Inc()
	s.logger.Debug().Err(err).Str("source", source).Msg("ingest failed")
}
