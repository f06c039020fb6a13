package storage

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/meetmate/meetmate-backend/internal/metrics"
	"github.com/rs/zerolog"
)

// DaySource is the read side of the transcript log that the archiver needs.
type DaySource interface {
	Days() ([]string, error)
	TodayKey() string
	Path(date string) string
}

// Archiver uploads every completed daily file (any date before today) to the
// object store once. Local files are never modified or removed.
type Archiver struct {
	days     DaySource
	store    ObjectStore
	prefix   string
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	archived map[string]bool // dates known to be in the store

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewArchiver creates an archiver that runs every interval.
func NewArchiver(days DaySource, store ObjectStore, prefix string, interval time.Duration, log zerolog.Logger) *Archiver {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Archiver{
		days:     days,
		store:    store,
		prefix:   prefix,
		interval: interval,
		log:      log.With().Str("component", "archiver").Logger(),
		archived: make(map[string]bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (a *Archiver) Start() { go a.loop() }

func (a *Archiver) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	<-a.done
}

func (a *Archiver) loop() {
	defer close(a.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.stop
		cancel()
	}()

	a.Run(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.Run(ctx)
		case <-a.stop:
			return
		}
	}
}

// Key returns the object key for a date.
func (a *Archiver) Key(date string) string {
	return a.prefix + date + ".txt"
}

// Run performs one archive pass and returns the number of files uploaded.
func (a *Archiver) Run(ctx context.Context) int {
	days, err := a.days.Days()
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to list transcript days")
		return 0
	}
	today := a.days.TodayKey()

	var uploaded, failed, skipped int
	for _, date := range days {
		if ctx.Err() != nil {
			break
		}
		// Today's file is still being appended to.
		if date >= today {
			continue
		}
		a.mu.Lock()
		done := a.archived[date]
		a.mu.Unlock()
		if done {
			continue
		}

		key := a.Key(date)
		exists, err := a.store.Exists(ctx, key)
		if err != nil {
			failed++
			metrics.ArchiveUploadsTotal.WithLabelValues("error").Inc()
			a.log.Warn().Err(err).Str("key", key).Msg("archive existence check failed")
			continue
		}
		if exists {
			skipped++
			a.markArchived(date)
			continue
		}

		data, err := os.ReadFile(a.days.Path(date))
		if err != nil {
			failed++
			metrics.ArchiveUploadsTotal.WithLabelValues("error").Inc()
			a.log.Warn().Err(err).Str("date", date).Msg("failed to read daily file")
			continue
		}
		if err := a.store.Save(ctx, key, data, "text/plain; charset=utf-8"); err != nil {
			failed++
			metrics.ArchiveUploadsTotal.WithLabelValues("error").Inc()
			a.log.Warn().Err(err).Str("key", key).Msg("archive upload failed")
			continue
		}
		uploaded++
		metrics.ArchiveUploadsTotal.WithLabelValues("ok").Inc()
		a.markArchived(date)
	}

	if uploaded > 0 || failed > 0 {
		a.log.Info().
			Int("uploaded", uploaded).
			Int("failed", failed).
			Int("already_archived", skipped).
			Str("backend", a.store.Type()).
			Msg("archive pass complete")
	}
	return uploaded
}

func (a *Archiver) markArchived(date string) {
	a.mu.Lock()
	a.archived[date] = true
	a.mu.Unlock()
}
