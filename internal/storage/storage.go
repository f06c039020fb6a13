// Package storage copies completed daily transcript files to an object store.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/meetmate/meetmate-backend/internal/config"
	"github.com/rs/zerolog"
)

// ObjectStore abstracts the archive backend.
type ObjectStore interface {
	// Save stores data under key.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Exists reports whether key is already stored.
	Exists(ctx context.Context, key string) (bool, error)

	// Type returns the backend name, e.g. "s3".
	Type() string
}

// New builds the archiver for cfg, or returns nil when archiving is not
// configured. S3 wins over a local directory when both are set. Returns an
// error if S3 is configured but unreachable.
func New(cfg config.ArchiveConfig, days DaySource, log zerolog.Logger) (*Archiver, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	if cfg.Bucket == "" {
		log.Info().Str("dir", cfg.Dir).Msg("archiving to local directory")
		return NewArchiver(days, NewLocalStore(cfg.Dir), cfg.Prefix, cfg.Interval, log), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return NewArchiver(days, s3store, cfg.Prefix, cfg.Interval, log), nil
}
