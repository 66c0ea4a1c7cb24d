package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jedcn/baud/internal/logging"
)

// Watcher reloads collaborator files (expansions, trigger patterns)
// when they change on disk, so edits take effect mid-session.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *logging.Logger

	mu      sync.Mutex
	reloads map[string]func() error
	closed  bool

	done chan struct{}
}

// NewWatcher creates a watcher and starts its event loop.
func NewWatcher(log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.NullLogger
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		log:     log.WithComponent("watcher"),
		reloads: make(map[string]func() error),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch registers a reload callback for a file path. The callback runs
// whenever the file is written or recreated; its error is logged, and
// the previous state stays in effect.
func (w *Watcher) Watch(path string, reload func() error) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.reloads[absPath] = reload
	w.mu.Unlock()

	// Watch the directory, not the file: editors that replace files
	// on save would otherwise drop the watch.
	return w.watcher.Add(filepath.Dir(absPath))
}

// run dispatches fsnotify events to the registered reload callbacks.
func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.dispatch(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) dispatch(name string) {
	absPath, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	reload := w.reloads[absPath]
	w.mu.Unlock()

	if reload == nil {
		return
	}

	if err := reload(); err != nil {
		w.log.Warn("reload of %s failed, keeping previous: %v", filepath.Base(absPath), err)
		return
	}
	w.log.Info("reloaded %s", filepath.Base(absPath))
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.watcher.Close()
}
