package live

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// collector records published lines.
type collector struct {
	mu    sync.Mutex
	lines []Line
}

func (c *collector) Publish(date, text string) {
	c.mu.Lock()
	c.lines = append(c.lines, Line{Date: date, Text: text})
	c.mu.Unlock()
}

func (c *collector) snapshot() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.lines...)
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(s); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestTailerDrain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2024-05-01.txt")
	c := &collector{}
	tl := NewTailer(dir, c, zerolog.Nop())

	t.Run("complete_lines_only", func(t *testing.T) {
		appendFile(t, path, "one\ntwo\nthr")
		if err := tl.drain(path, "2024-05-01"); err != nil {
			t.Fatalf("drain: %v", err)
		}
		want := []Line{{"2024-05-01", "one"}, {"2024-05-01", "two"}}
		if got := c.snapshot(); !reflect.DeepEqual(got, want) {
			t.Errorf("published = %v, want %v", got, want)
		}
	})

	t.Run("partial_line_completed_later", func(t *testing.T) {
		appendFile(t, path, "ee\r\n")
		if err := tl.drain(path, "2024-05-01"); err != nil {
			t.Fatalf("drain: %v", err)
		}
		got := c.snapshot()
		if last := got[len(got)-1]; last.Text != "three" {
			t.Errorf("last line = %q, want three", last.Text)
		}
	})

	t.Run("no_new_data_publishes_nothing", func(t *testing.T) {
		before := len(c.snapshot())
		if err := tl.drain(path, "2024-05-01"); err != nil {
			t.Fatalf("drain: %v", err)
		}
		if after := len(c.snapshot()); after != before {
			t.Errorf("published %d extra lines", after-before)
		}
	})

	t.Run("truncation_restarts_from_zero", func(t *testing.T) {
		if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := tl.drain(path, "2024-05-01"); err != nil {
			t.Fatalf("drain: %v", err)
		}
		got := c.snapshot()
		if last := got[len(got)-1]; last.Text != "fresh" {
			t.Errorf("last line = %q, want fresh", last.Text)
		}
	})

	t.Run("missing_file_is_not_an_error", func(t *testing.T) {
		if err := tl.drain(filepath.Join(dir, "2024-05-09.txt"), "2024-05-09"); err != nil {
			t.Errorf("drain on missing file: %v", err)
		}
	})
}

func TestTailerWatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(dir, "2024-05-01.txt")
	appendFile(t, existing, "old line\n")

	c := &collector{}
	tl := NewTailer(dir, c, zerolog.Nop())
	if err := tl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tl.Stop()

	if tl.Status() != "watching" {
		t.Errorf("Status = %q, want watching", tl.Status())
	}

	appendFile(t, existing, "new line\n")
	appendFile(t, filepath.Join(dir, "2024-05-02.txt"), "next day\n")
	appendFile(t, filepath.Join(dir, "notes.txt"), "ignored\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(c.snapshot()) < 2 {
		time.Sleep(20 * time.Millisecond)
	}

	got := c.snapshot()
	want := []Line{{"2024-05-01", "new line"}, {"2024-05-02", "next day"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("published = %v, want %v", got, want)
	}
}

func TestTailerWaitsForDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "transcripts")

	c := &collector{}
	tl := NewTailer(dir, c, zerolog.Nop())
	if err := tl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tl.Stop()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("Start created %s, want it left to the first append", dir)
	}
	if tl.Status() != "waiting" {
		t.Errorf("Status = %q, want waiting", tl.Status())
	}

	// a dated file in the parent is not a transcript file
	appendFile(t, filepath.Join(root, "2024-05-01.txt"), "stray\n")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	appendFile(t, filepath.Join(dir, "2024-05-01.txt"), "first\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(c.snapshot()) < 1 {
		time.Sleep(20 * time.Millisecond)
	}
	// later writes go through the directory watch
	appendFile(t, filepath.Join(dir, "2024-05-01.txt"), "second\n")
	for time.Now().Before(deadline) && len(c.snapshot()) < 2 {
		time.Sleep(20 * time.Millisecond)
	}

	want := []Line{{"2024-05-01", "first"}, {"2024-05-01", "second"}}
	if got := c.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("published = %v, want %v", got, want)
	}
	if tl.Status() != "watching" {
		t.Errorf("Status = %q, want watching", tl.Status())
	}
}

func TestTailerCreatesOnlyParent(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "data")
	dir := filepath.Join(parent, "transcripts")

	tl := NewTailer(dir, &collector{}, zerolog.Nop())
	if err := tl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tl.Stop()

	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		t.Errorf("parent not created: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("transcript directory must not be created")
	}
}
