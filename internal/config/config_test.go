package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"S3_BUCKET":   "meetmate-archive",
		"MQTT_TOPICS": "a/b, c/d",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8000" {
			t.Errorf("HTTPAddr = %q, want :8000", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.TranscriptsDir != "transcripts" {
			t.Errorf("TranscriptsDir = %q, want transcripts", cfg.TranscriptsDir)
		}
		if !cfg.SerializeAppends {
			t.Error("SerializeAppends = false, want true")
		}
		if cfg.MaxBodyBytes != 1<<20 {
			t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 1<<20)
		}
		if !cfg.LiveEnabled {
			t.Error("LiveEnabled = false, want true")
		}
		if cfg.MQTTBrokerURL != "" {
			t.Errorf("MQTTBrokerURL = %q, want empty", cfg.MQTTBrokerURL)
		}
		if cfg.Archive.Region != "us-east-1" {
			t.Errorf("Archive.Region = %q, want us-east-1", cfg.Archive.Region)
		}
		if cfg.Archive.Interval != time.Hour {
			t.Errorf("Archive.Interval = %v, want 1h", cfg.Archive.Interval)
		}
		if cfg.WriteTimeout != 0 {
			t.Errorf("WriteTimeout = %v, want 0", cfg.WriteTimeout)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !cfg.Archive.Enabled() {
			t.Error("Archive.Enabled() = false with S3_BUCKET set")
		}
		if cfg.Archive.Bucket != "meetmate-archive" {
			t.Errorf("Archive.Bucket = %q, want meetmate-archive", cfg.Archive.Bucket)
		}
		if cfg.MQTTTopics != "a/b, c/d" {
			t.Errorf("MQTTTopics = %q", cfg.MQTTTopics)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:        "nonexistent.env",
			HTTPAddr:       ":9090",
			LogLevel:       "debug",
			TranscriptsDir: "/tmp/t",
			MQTTBrokerURL:  "tcp://override:1883",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.TranscriptsDir != "/tmp/t" {
			t.Errorf("TranscriptsDir = %q, want /tmp/t", cfg.TranscriptsDir)
		}
		if cfg.MQTTBrokerURL != "tcp://override:1883" {
			t.Errorf("MQTTBrokerURL = %q, want override", cfg.MQTTBrokerURL)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"TRANSCRIPTS_DIR": ""})
	defer cleanup()
	os.Unsetenv("TRANSCRIPTS_DIR")
	defer os.Unsetenv("TRANSCRIPTS_DIR")

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TRANSCRIPTS_DIR=/data/from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Overrides{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TranscriptsDir != "/data/from-dotenv" {
		t.Errorf("TranscriptsDir = %q, want /data/from-dotenv", cfg.TranscriptsDir)
	}
}

func TestLoadInvalidTimezone(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"TRANSCRIPTS_TIMEZONE": "Not/AZone"})
	defer cleanup()

	if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestArchiveLocalDir(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"ARCHIVE_DIR":      "/mnt/backup",
		"ARCHIVE_PREFIX":   "meetmate/",
		"ARCHIVE_INTERVAL": "15m",
	})
	defer cleanup()

	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Archive.Enabled() {
		t.Error("Archive.Enabled() = false with ARCHIVE_DIR set")
	}
	if cfg.Archive.Dir != "/mnt/backup" || cfg.Archive.Prefix != "meetmate/" {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if cfg.Archive.Interval != 15*time.Minute {
		t.Errorf("Archive.Interval = %v, want 15m", cfg.Archive.Interval)
	}
}

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "http://localhost:3000", want: []string{"http://localhost:3000"}},
		{name: "whitespace_trimmed", input: " https://a.dev , https://b.dev ", want: []string{"https://a.dev", "https://b.dev"}},
		{name: "trailing_comma", input: "https://a.dev,", want: []string{"https://a.dev"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{CORSOrigins: tt.input}
			if got := cfg.AllowedOrigins(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllowedOrigins() = %v, want %v", got, tt.want)
			}
		})
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
