package profile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Tracker keeps the current text of the on-disk profile document available
// without re-reading it on every round. It watches the document's directory
// (editors replace files by rename, so watching the file itself would lose
// the watch) and reloads on change. When the watcher cannot be created the
// tracker degrades to reading the file on every Current call.
type Tracker struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current string

	watcher *fsnotify.Watcher
	done    chan struct{}
	polling bool
}

// NewTracker loads the document at path and starts watching it. A missing
// document is an empty profile, not an error.
func NewTracker(path string, logger *zap.Logger) *Tracker {
	t := &Tracker{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	t.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("profile watcher unavailable, falling back to per-read loads", zap.Error(err))
		t.polling = true
		return t
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("profile directory not watchable", zap.String("dir", filepath.Dir(path)), zap.Error(err))
		watcher.Close()
		t.polling = true
		return t
	}
	t.watcher = watcher
	go t.loop()
	return t
}

// Current returns the latest document text.
func (t *Tracker) Current() string {
	if t.polling {
		t.reload()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Close stops the watcher.
func (t *Tracker) Close() {
	close(t.done)
	if t.watcher != nil {
		t.watcher.Close()
	}
}

func (t *Tracker) loop() {
	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				t.reload()
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("profile watcher error", zap.Error(err))
		}
	}
}

func (t *Tracker) reload() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("profile document unreadable", zap.String("path", t.path), zap.Error(err))
		}
		data = nil
	}
	t.mu.Lock()
	t.current = string(data)
	t.mu.Unlock()
}
