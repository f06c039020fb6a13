package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"` // 0 keeps SSE streams open
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxBodyBytes int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	TranscriptsDir      string `env:"TRANSCRIPTS_DIR" envDefault:"transcripts"`
	TranscriptsTimezone string `env:"TRANSCRIPTS_TIMEZONE"`
	SerializeAppends    bool   `env:"SERIALIZE_APPENDS" envDefault:"true"`

	// Comma-separated origin allowlist. Empty allows every origin.
	CORSOrigins string `env:"CORS_ORIGINS"`

	LiveEnabled    bool `env:"LIVE_ENABLED" envDefault:"true"`
	LiveReplaySize int  `env:"LIVE_REPLAY_SIZE" envDefault:"256"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopics    string `env:"MQTT_TOPICS" envDefault:"meetmate/transcripts"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"meetmate"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`
	MQTTQoS       uint8  `env:"MQTT_QOS" envDefault:"1"`

	Archive ArchiveConfig

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// ArchiveConfig configures the copy of completed daily files to S3, or to a
// local directory when no bucket is set.
type ArchiveConfig struct {
	Dir       string        `env:"ARCHIVE_DIR"`
	Bucket    string        `env:"S3_BUCKET"`
	Endpoint  string        `env:"S3_ENDPOINT"`
	Region    string        `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey string        `env:"S3_ACCESS_KEY"`
	SecretKey string        `env:"S3_SECRET_KEY"`
	Prefix    string        `env:"ARCHIVE_PREFIX" envDefault:"transcripts/"`
	Interval  time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"1h"`
}

// Enabled reports whether archiving is configured.
func (c ArchiveConfig) Enabled() bool { return c.Bucket != "" || c.Dir != "" }

// Location resolves TranscriptsTimezone. Empty means the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TranscriptsTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TranscriptsTimezone)
	if err != nil {
		return nil, fmt.Errorf("TRANSCRIPTS_TIMEZONE %q: %w", c.TranscriptsTimezone, err)
	}
	return loc, nil
}

// AllowedOrigins splits CORSOrigins into a list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile        string
	HTTPAddr       string
	LogLevel       string
	TranscriptsDir string
	MQTTBrokerURL  string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.TranscriptsDir != "" {
		cfg.TranscriptsDir = overrides.TranscriptsDir
	}
	if overrides.MQTTBrokerURL != "" {
		cfg.MQTTBrokerURL = overrides.MQTTBrokerURL
	}

	if cfg.TranscriptsDir == "" {
		return nil, fmt.Errorf("TRANSCRIPTS_DIR must not be empty")
	}
	if cfg.LiveReplaySize < 1 {
		cfg.LiveReplaySize = 1
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}
