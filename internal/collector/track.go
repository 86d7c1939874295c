package collector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Tracker feeds a Session from filesystem activity on one document.
// Each write to the document counts its byte delta as accepted input
// events; the absence of writes beyond the idle threshold pauses active
// time through the normal tick path.
type Tracker struct {
	session  *Session
	path     string
	log      *slog.Logger
	lastSize int64
}

// NewTracker creates a tracker for the document at path. The file must
// exist when tracking starts.
func NewTracker(session *Session, path string, log *slog.Logger) (*Tracker, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("collector: stat document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("collector: %s is a directory", absPath)
	}
	return &Tracker{
		session:  session,
		path:     absPath,
		log:      log,
		lastSize: info.Size(),
	}, nil
}

// Path returns the absolute path of the tracked document.
func (t *Tracker) Path() string { return t.path }

// Run watches the document until ctx is cancelled. It drives the
// session's tick loop and translates write events into input events.
func (t *Tracker) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("collector: create watcher: %w", err)
	}
	defer fsWatcher.Close()

	// Watch the directory, not the file: editors that save via rename
	// replace the inode and a direct file watch would go stale.
	if err := fsWatcher.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("collector: watch %s: %w", filepath.Dir(t.path), err)
	}

	ticker := time.NewTicker(DefaultTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-ticker.C:
			t.session.Tick(now)

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Name != t.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t.handleWrite()

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			t.log.Warn("watch error", "path", t.path, "error", err)
		}
	}
}

// handleWrite converts a document write into input events. The byte
// delta approximates how much text the write carried; a size-neutral
// save still counts as one event so edits in place keep the session
// alive.
func (t *Tracker) handleWrite() {
	info, err := os.Stat(t.path)
	if err != nil {
		t.log.Warn("stat after write", "path", t.path, "error", err)
		return
	}

	delta := info.Size() - t.lastSize
	t.lastSize = info.Size()
	if delta < 0 {
		delta = -delta
	}
	if delta == 0 {
		delta = 1
	}

	t.session.RecordInput(int(delta))
	t.log.Debug("document write", "path", t.path, "input_events", delta,
		"keystrokes", t.session.Keystrokes())
}
