package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meetmate/meetmate-backend/internal/api"
	"github.com/meetmate/meetmate-backend/internal/config"
	"github.com/meetmate/meetmate-backend/internal/ingest"
	"github.com/meetmate/meetmate-backend/internal/live"
	"github.com/meetmate/meetmate-backend/internal/metrics"
	"github.com/meetmate/meetmate-backend/internal/mqttclient"
	"github.com/meetmate/meetmate-backend/internal/storage"
	"github.com/meetmate/meetmate-backend/internal/transcript"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.TranscriptsDir, "transcripts-dir", "", "transcript storage directory (overrides TRANSCRIPTS_DIR)")
	flag.StringVar(&overrides.MQTTBrokerURL, "mqtt-broker", "", "MQTT broker URL (overrides MQTT_BROKER_URL)")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("meetmate starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transcript log
	loc, _ := cfg.Location() // validated by config.Load
	tlog := transcript.New(transcript.Options{
		Dir:       cfg.TranscriptsDir,
		Location:  loc,
		Serialize: cfg.SerializeAppends,
	})
	ingestSvc := ingest.NewService(tlog, log)
	log.Info().
		Str("dir", cfg.TranscriptsDir).
		Str("timezone", loc.String()).
		Bool("serialize_appends", cfg.SerializeAppends).
		Msg("transcript log ready")

	health := api.HealthDeps{TranscriptsDir: cfg.TranscriptsDir}

	// Live stream
	var liveSrc api.LiveSource
	var bus *live.Bus
	if cfg.LiveEnabled {
		bus = live.NewBus(cfg.LiveReplaySize)
		tailer := live.NewTailer(cfg.TranscriptsDir, bus, log)
		if err := tailer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start transcript tailer")
		}
		defer tailer.Stop()
		liveSrc = bus
		health.Tailer = tailer
	}

	// MQTT
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topics:    cfg.MQTTTopics,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			QoS:       cfg.MQTTQoS,
			Handler:   ingestSvc.HandleMQTT,
			Log:       log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
		health.MQTT = mqtt
	}

	// Archive
	archiver, err := storage.New(cfg.Archive, tlog, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize archive")
	}
	if archiver != nil {
		archiver.Start()
		defer archiver.Stop()
		health.Archive = true
	}

	// Metrics
	var liveStats metrics.LiveStats
	if bus != nil {
		liveStats = bus
	}
	var mqttConn metrics.Connectivity
	if mqtt != nil {
		mqttConn = mqtt
	}
	prometheus.MustRegister(metrics.NewCollector(liveStats, mqttConn))

	// HTTP Server
	srv := api.NewServer(api.ServerOptions{
		Config:    cfg,
		Ingest:    ingestSvc,
		Reader:    tlog,
		Live:      liveSrc,
		Health:    health,
		Version:   version,
		StartTime: startTime,
		Log:       log.With().Str("component", "http").Logger(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	received, failed := ingestSvc.Counts()
	log.Info().Int64("received", received).Int64("failed", failed).Msg("meetmate stopped")
}
