package live

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/meetmate/meetmate-backend/internal/transcript"
	"github.com/rs/zerolog"
)

// Publisher receives each complete line the Tailer reads.
type Publisher interface {
	Publish(date, text string)
}

// Tailer watches the transcript directory and publishes every line appended
// to a daily file, whoever wrote it. Lines present before Start are skipped.
//
// The directory itself is never created here, so it still appears lazily on
// the first append. While it is missing the Tailer watches its parent and
// attaches once the directory appears.
type Tailer struct {
	dir    string
	parent string
	pub    Publisher
	log    zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.Mutex
	offsets map[string]int64  // date -> bytes consumed
	partial map[string][]byte // date -> trailing bytes without a newline yet

	linesRead atomic.Int64
	status    atomic.Value // string: "starting", "waiting", "watching", "stopped"
}

// NewTailer creates a tailer for dir.
func NewTailer(dir string, pub Publisher, log zerolog.Logger) *Tailer {
	dir = filepath.Clean(dir)
	t := &Tailer{
		dir:     dir,
		parent:  filepath.Dir(dir),
		pub:     pub,
		log:     log.With().Str("component", "tailer").Logger(),
		offsets: make(map[string]int64),
		partial: make(map[string][]byte),
	}
	t.status.Store("starting")
	return t
}

// Start records the current size of every daily file and begins watching for
// writes. If the directory does not exist yet, its parent is watched instead,
// and the parent alone is created when it is missing too.
func (t *Tailer) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(t.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(t.parent, 0o755); err != nil {
			w.Close()
			return fmt.Errorf("mkdir %s: %w", t.parent, err)
		}
		if err := w.Add(t.parent); err != nil {
			w.Close()
			return fmt.Errorf("watch %s: %w", t.parent, err)
		}
		t.status.Store("waiting")
		t.log.Info().Str("dir", t.dir).Msg("transcript directory missing, waiting for it")
	case err != nil:
		w.Close()
		return err
	default:
		t.mu.Lock()
		for _, e := range entries {
			date, ok := transcript.ParseFileName(e.Name())
			if !ok || e.IsDir() {
				continue
			}
			if info, err := e.Info(); err == nil {
				t.offsets[date] = info.Size()
			}
		}
		t.mu.Unlock()

		if err := w.Add(t.dir); err != nil {
			w.Close()
			return fmt.Errorf("watch %s: %w", t.dir, err)
		}
		t.status.Store("watching")
		t.log.Info().Str("dir", t.dir).Int("files", len(entries)).Msg("transcript tailer started")
	}

	t.watcher = w
	t.done = make(chan struct{})
	go t.watchLoop()
	return nil
}

// Stop closes the watcher and waits for the event loop to exit.
func (t *Tailer) Stop() {
	t.status.Store("stopped")
	if t.watcher == nil {
		return
	}
	t.watcher.Close()
	<-t.done
	t.log.Info().Int64("lines_read", t.linesRead.Load()).Msg("transcript tailer stopped")
}

// Status returns "starting", "waiting", "watching" or "stopped".
func (t *Tailer) Status() string {
	s, _ := t.status.Load().(string)
	return s
}

func (t *Tailer) watchLoop() {
	defer close(t.done)
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if name == t.dir {
				if event.Op&fsnotify.Create != 0 && t.Status() == "waiting" {
					t.attach()
				}
				continue
			}
			if filepath.Dir(name) != t.dir {
				continue
			}
			date, ok := transcript.ParseFileName(name)
			if !ok {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := t.drain(name, date); err != nil {
					t.log.Warn().Err(err).Str("file", name).Msg("failed to read appended lines")
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				t.forget(date)
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.log.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

// attach switches from watching the parent to watching the directory. Files
// already in the directory were written after Start, so they are read from
// the beginning.
func (t *Tailer) attach() {
	if err := t.watcher.Add(t.dir); err != nil {
		t.log.Warn().Err(err).Str("dir", t.dir).Msg("failed to watch transcript directory")
		return
	}
	if err := t.watcher.Remove(t.parent); err != nil {
		t.log.Debug().Err(err).Str("dir", t.parent).Msg("failed to stop watching parent")
	}
	t.status.Store("watching")
	t.log.Info().Str("dir", t.dir).Msg("transcript directory appeared, tailer attached")

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		t.log.Warn().Err(err).Str("dir", t.dir).Msg("failed to list transcript directory")
		return
	}
	for _, e := range entries {
		date, ok := transcript.ParseFileName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		path := filepath.Join(t.dir, e.Name())
		if err := t.drain(path, date); err != nil {
			t.log.Warn().Err(err).Str("file", path).Msg("failed to read appended lines")
		}
	}
}

// drain reads everything past the stored offset of path and publishes each
// complete line.
func (t *Tailer) drain(path, date string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			delete(t.offsets, date)
			delete(t.partial, date)
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	offset := t.offsets[date]
	if info.Size() < offset {
		// truncated or replaced
		offset = 0
		delete(t.partial, date)
	}
	if info.Size() == offset {
		t.offsets[date] = offset
		return nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	chunk, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	t.offsets[date] = offset + int64(len(chunk))

	buf := append(t.partial[date], chunk...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(buf[:i], "\r"))
		buf = buf[i+1:]
		t.pub.Publish(date, line)
		t.linesRead.Add(1)
	}
	if len(buf) > 0 {
		t.partial[date] = append([]byte(nil), buf...)
	} else {
		delete(t.partial, date)
	}
	return nil
}

func (t *Tailer) forget(date string) {
	t.mu.Lock()
	delete(t.offsets, date)
	delete(t.partial, date)
	t.mu.Unlock()
}
