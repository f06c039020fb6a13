// Package transcript stores transcript lines in one append-only text file per
// calendar day.
package transcript

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	dateLayout = "2006-01-02"
	fileExt    = ".txt"
)

// Options configures a Log.
type Options struct {
	// Dir is the storage directory. Required.
	Dir string
	// Now is the clock used to pick the daily file. Defaults to time.Now.
	Now func() time.Time
	// Location is the timezone for calendar dates. Defaults to time.Local.
	Location *time.Location
	// Serialize holds an in-process lock around each append so concurrent
	// writers never interleave within a line.
	Serialize bool
}

// Log is a directory of daily transcript files.
type Log struct {
	dir       string
	now       func() time.Time
	loc       *time.Location
	serialize bool
	mu        sync.Mutex
}

// New creates a Log. The directory is created lazily on first append.
func New(opts Options) *Log {
	l := &Log{
		dir:       opts.Dir,
		now:       opts.Now,
		loc:       opts.Location,
		serialize: opts.Serialize,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	return l
}

// Dir returns the storage directory.
func (l *Log) Dir() string { return l.dir }

// DateKey formats t as the daily file key (YYYY-MM-DD) in the log's timezone.
func (l *Log) DateKey(t time.Time) string {
	return t.In(l.loc).Format(dateLayout)
}

// TodayKey returns the key of the file that appends currently go to.
func (l *Log) TodayKey() string {
	return l.DateKey(l.now())
}

// Path returns the file path for a date key.
func (l *Log) Path(date string) string {
	return filepath.Join(l.dir, date+fileExt)
}

// Append writes text followed by a newline to today's file.
func (l *Log) Append(text string) error {
	date := l.TodayKey()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return storageErr("create dir", err)
	}

	if l.serialize {
		l.mu.Lock()
		defer l.mu.Unlock()
	}

	path := l.Path(date)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return storageErr("open "+date, err)
	}
	if _, err := f.WriteString(text + "\n"); err != nil {
		f.Close()
		return storageErr("write "+date, err)
	}
	if err := f.Close(); err != nil {
		return storageErr("close "+date, err)
	}
	return nil
}

// Today returns the lines logged for the current date.
func (l *Log) Today() ([]string, error) {
	return l.Read(l.TodayKey())
}

// Read returns the lines of the file for date, in append order. A missing
// file yields an empty slice.
func (l *Log) Read(date string) ([]string, error) {
	data, err := os.ReadFile(l.Path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, storageErr("read "+date, err)
	}
	return splitLines(string(data)), nil
}

// Days lists the date keys that have a file, oldest first.
func (l *Log) Days() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("list dir", err)
	}

	var days []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		date, ok := ParseFileName(e.Name())
		if ok {
			days = append(days, date)
		}
	}
	sort.Strings(days)
	return days, nil
}

// ParseFileName returns the date key for a daily file name such as
// "2024-05-01.txt".
func ParseFileName(name string) (string, bool) {
	date, ok := strings.CutSuffix(filepath.Base(name), fileExt)
	if !ok {
		return "", false
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", false
	}
	return date, true
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
