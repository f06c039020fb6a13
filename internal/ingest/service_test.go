package ingest

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/meetmate/meetmate-backend/internal/metrics"
	"github.com/meetmate/meetmate-backend/internal/transcript"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

// recordingAppender captures appended lines in memory.
type recordingAppender struct {
	lines []string
	err   error
}

func (r *recordingAppender) Append(text string) error {
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, text)
	return nil
}

func TestServiceIngest(t *testing.T) {
	t.Run("appends_transcript_field", func(t *testing.T) {
		app := &recordingAppender{}
		svc := NewService(app, zerolog.Nop())

		if err := svc.Ingest(metrics.SourceHTTP, []byte(`{"transcript":"hello world"}`)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if !reflect.DeepEqual(app.lines, []string{"hello world"}) {
			t.Errorf("lines = %q, want [hello world]", app.lines)
		}
		if recv, failed := svc.Counts(); recv != 1 || failed != 0 {
			t.Errorf("Counts() = %d, %d, want 1, 0", recv, failed)
		}
	})

	t.Run("malformed_body_does_not_append", func(t *testing.T) {
		app := &recordingAppender{}
		svc := NewService(app, zerolog.Nop())

		before := testutil.ToFloat64(metrics.TranscriptErrorsTotal.WithLabelValues(metrics.SourceHTTP, "decode"))
		err := svc.Ingest(metrics.SourceHTTP, []byte(`{not json`))
		if transcript.KindOf(err) != transcript.KindDecode {
			t.Fatalf("err = %v, want decode error", err)
		}
		if len(app.lines) != 0 {
			t.Errorf("lines = %q, want none", app.lines)
		}
		after := testutil.ToFloat64(metrics.TranscriptErrorsTotal.WithLabelValues(metrics.SourceHTTP, "decode"))
		if after-before != 1 {
			t.Errorf("decode error counter delta = %v, want 1", after-before)
		}
	})

	t.Run("storage_error_passes_through", func(t *testing.T) {
		storageFail := &transcript.Error{Kind: transcript.KindStorage, Op: "write", Err: errors.New("disk full")}
		svc := NewService(&recordingAppender{err: storageFail}, zerolog.Nop())

		err := svc.Ingest(metrics.SourceHTTP, []byte(`{"transcript":"x"}`))
		if transcript.KindOf(err) != transcript.KindStorage {
			t.Fatalf("err = %v, want storage error", err)
		}
		if _, failed := svc.Counts(); failed != 1 {
			t.Errorf("failed = %d, want 1", failed)
		}
	})
}

func TestHandleMQTT(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	log := transcript.New(transcript.Options{Dir: dir, Now: func() time.Time { return now }, Location: time.UTC})
	svc := NewService(log, zerolog.Nop())

	svc.HandleMQTT("meetmate/transcripts", []byte(`{"transcript":"from the broker"}`))
	svc.HandleMQTT("meetmate/transcripts", []byte(`garbage`))
	svc.HandleMQTT("meetmate/transcripts", []byte(`{"speaker":"bo"}`))

	got, err := log.Today()
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	want := []string{"from the broker", `{"speaker":"bo"}`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Today() = %q, want %q", got, want)
	}
}
